// Package vectorstore is the append-only, cosine-similarity-searchable table
// of memory rows backed by sqlite-vec. It is the only component that talks
// to the database; everything above it (internal/engine) sees only the
// Store interface.
package vectorstore

import (
	"context"
	"errors"
	"time"
)

// Kind classifies a store-level failure per the taxonomy in the engine's
// error handling design.
type Kind string

const (
	KindArg      Kind = "E_ARG"
	KindDim      Kind = "E_DIM"
	KindIO       Kind = "E_IO"
	KindNotFound Kind = "E_NOT_FOUND"
	KindTimeout  Kind = "E_TIMEOUT"
)

// Error is the typed error every Store method returns on failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind) + ": " + e.Op
	}
	return string(e.Kind) + ": " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is lets callers write errors.Is(err, vectorstore.ErrNotFound) and similar.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

var (
	// ErrNotFound is a sentinel *Error usable with errors.Is.
	ErrNotFound = &Error{Kind: KindNotFound}
	ErrArg      = &Error{Kind: KindArg}
	ErrDim      = &Error{Kind: KindDim}
)

// Row is the canonical persisted memory row (spec data model §3).
type Row struct {
	ID            string
	Memory        string
	Chunk         string
	UserID        string
	Vector        []float32
	Metadata      map[string]string
	Type          string
	Hash          string
	SupersededBy  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Patch describes the bounded set of fields update() may mutate. A nil
// pointer field is left untouched; a non-nil pointer (including one
// pointing at a zero value, e.g. "") overwrites it.
type Patch struct {
	Memory       *string
	Chunk        *string
	Metadata     map[string]string
	Type         *string
	SupersededBy *string
	UpdatedAt    *time.Time
}

// ScanOptions controls the non-ranked enumeration query.
type ScanOptions struct {
	IncludeSuperseded bool
	Limit             int // 0 means "no limit"
}

// Store is the contract implemented by the sqlite-vec backend. Every method
// accepts a context for cancellation/timeout per the concurrency model.
type Store interface {
	Insert(ctx context.Context, rows []Row) error
	Update(ctx context.Context, id string, patch Patch) error
	Delete(ctx context.Context, id string) error
	SearchByVector(ctx context.Context, q []float32, userID string, limit int, threshold float64) ([]ScoredRow, error)
	Scan(ctx context.Context, userID string, opts ScanOptions) ([]Row, error)
	// FindActiveByHash returns the active row with the given (userID, hash)
	// pair, or nil if none exists. It is never an error for no row to match.
	FindActiveByHash(ctx context.Context, userID, hash string) (*Row, error)
	Count(ctx context.Context, userID string) (int, error)
	Refresh(ctx context.Context) error
	Close() error
}

// ScoredRow pairs a Row with its cosine similarity to the query vector.
type ScoredRow struct {
	Row
	Score float64
}
