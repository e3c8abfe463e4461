// Package codexfi provides a minimal public API for embedding the memory
// engine into a host application.
//
// It re-exports the names a Go program needs to load config, open the
// vector store, ledger and names directory, hold an Engine and call its
// operations without reaching into internal/ itself. The caller supplies
// its own Embedder and Extractor adapters.
package codexfi

import (
	"context"

	"github.com/codexfi/memory/internal/capability"
	"github.com/codexfi/memory/internal/config"
	"github.com/codexfi/memory/internal/engine"
	"github.com/codexfi/memory/internal/ledger"
	"github.com/codexfi/memory/internal/names"
	"github.com/codexfi/memory/internal/vectorstore"
)

// Engine is the composed memory engine. Construct it with New.
type Engine = engine.Engine

// New composes an Engine from its collaborators. cfg must already be
// validated (see config.Load); store/embedder/extractor are long-lived
// objects owned by the caller for the lifetime of the Engine.
func New(cfg config.Config, store vectorstore.Store, embedder capability.Embedder, extractor capability.Extractor, led *ledger.Ledger, nm *names.Directory) (*Engine, error) {
	return engine.New(cfg, store, embedder, extractor, led, nm, nil)
}

// Config and LoadConfig are re-exported so a host application need not import
// internal/config directly.
type Config = config.Config

func LoadConfig() (Config, error) { return config.Load() }

// Store is the vector store interface an Engine depends on, and
// OpenSQLiteStore opens the bundled sqlite-vec-backed implementation.
type Store = vectorstore.Store

func OpenSQLiteStore(ctx context.Context, path string, dim int) (*vectorstore.SQLiteStore, error) {
	return vectorstore.Open(ctx, path, dim)
}

// Embedder and Extractor are the two capability interfaces a host
// application must supply concrete adapters for.
type (
	Embedder  = capability.Embedder
	Extractor = capability.Extractor
	Message   = capability.Message
	Fact      = capability.Fact
	Role      = capability.Role
)

const (
	RoleDocument = capability.RoleDocument
	RoleQuery    = capability.RoleQuery
)

// Memory data model and operation option types.
type (
	Memory        = engine.Memory
	MemoryType    = engine.MemoryType
	Event         = engine.Event
	EventKind     = engine.EventKind
	IngestOptions = engine.IngestOptions
	SearchOptions = engine.SearchOptions
	SearchResult  = engine.SearchResult
	ListOptions   = engine.ListOptions
)

const (
	TypeProjectBrief   = engine.TypeProjectBrief
	TypeArchitecture   = engine.TypeArchitecture
	TypeTechContext    = engine.TypeTechContext
	TypeProductContext = engine.TypeProductContext
	TypeSessionSummary = engine.TypeSessionSummary
	TypeProgress       = engine.TypeProgress
	TypeErrorSolution  = engine.TypeErrorSolution
	TypePreference     = engine.TypePreference
	TypeLearnedPattern = engine.TypeLearnedPattern
	TypeProjectConfig  = engine.TypeProjectConfig
	TypeConversation   = engine.TypeConversation

	EventAdd    = engine.EventAdd
	EventUpdate = engine.EventUpdate
)

// Ledger and names.Directory are re-exported so a host application can
// open them without importing internal/ledger and internal/names.
type (
	Ledger         = ledger.Ledger
	NamesDirectory = names.Directory
)

func OpenLedger(dataDir string) (*Ledger, error) { return ledger.Open(dataDir) }

func OpenNamesDirectory(dataDir string) (*NamesDirectory, error) { return names.Open(dataDir) }
