package engine

import (
	"github.com/codexfi/memory/internal/vectorstore"
)

// MemoryType is the enumerated label on every memory row (spec data model).
type MemoryType string

const (
	TypeProjectBrief   MemoryType = "project-brief"
	TypeArchitecture   MemoryType = "architecture"
	TypeTechContext    MemoryType = "tech-context"
	TypeProductContext MemoryType = "product-context"
	TypeSessionSummary MemoryType = "session-summary"
	TypeProgress       MemoryType = "progress"
	TypeErrorSolution  MemoryType = "error-solution"
	TypePreference     MemoryType = "preference"
	TypeLearnedPattern MemoryType = "learned-pattern"
	TypeProjectConfig  MemoryType = "project-config"
	TypeConversation   MemoryType = "conversation"
)

var validTypes = map[MemoryType]bool{
	TypeProjectBrief:   true,
	TypeArchitecture:   true,
	TypeTechContext:    true,
	TypeProductContext: true,
	TypeSessionSummary: true,
	TypeProgress:       true,
	TypeErrorSolution:  true,
	TypePreference:     true,
	TypeLearnedPattern: true,
	TypeProjectConfig:  true,
	TypeConversation:   true,
}

// coerceType maps an unrecognized type label to "conversation" (invariant 6).
func coerceType(t string) MemoryType {
	mt := MemoryType(t)
	if validTypes[mt] {
		return mt
	}
	return TypeConversation
}

// Memory is the canonical persisted unit returned by list/profile.
type Memory = vectorstore.Row

// EventKind distinguishes an ADD from an UPDATE in the ingest event stream.
type EventKind string

const (
	EventAdd    EventKind = "ADD"
	EventUpdate EventKind = "UPDATE"
)

// Event is the only observable side channel an ingest caller may rely on.
type Event struct {
	ID     string
	Memory string
	Event  EventKind
}

// IngestOptions controls one ingest call. The zero value selects normal
// in-session ingestion mode.
type IngestOptions struct {
	Mode string // one of "normal" (default), "summary", "init"
}

// SearchOptions controls one search call. A Limit of zero or less selects
// 20; a zero Threshold selects the engine's configured SearchThreshold.
type SearchOptions struct {
	Limit         int
	Threshold     float64 // 0 selects the engine's configured default; a negative value applies no floor
	RecencyWeight float64
	Types         []string
}

// SearchResult is one ranked row returned by Search.
type SearchResult struct {
	ID       string
	Memory   string
	Chunk    string
	Score    float64
	Metadata map[string]string
	Date     string
}

// ListOptions controls List.
type ListOptions struct {
	IncludeSuperseded bool
	Limit             int
}

type preparedFact struct {
	Memory string
	Chunk  string
	Type   MemoryType
	Vector []float32

	// CompressedFrom, when set, is the id of a row this fact supersedes via
	// session-summary compression (Step 3); it is stamped onto the new
	// row's metadata as provenance.
	CompressedFrom string
}
