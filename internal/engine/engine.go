// Package engine composes the tag resolver, vector store, embedder,
// extractor, privacy filter, dedup/versioning logic, ingestion pipeline,
// retrieval pipeline, and lifecycle operations into one long-lived value
// (C0), replacing the global-singleton style the source used for these
// same collaborators.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codexfi/memory/internal/capability"
	"github.com/codexfi/memory/internal/config"
	"github.com/codexfi/memory/internal/ledger"
	"github.com/codexfi/memory/internal/names"
	"github.com/codexfi/memory/internal/privacy"
	"github.com/codexfi/memory/internal/scope"
	"github.com/codexfi/memory/internal/vectorstore"
)

const (
	embedTimeout   = 30 * time.Second
	extractTimeout = 60 * time.Second
	storeOpTimeout = 10 * time.Second
)

// Engine is the single composed value a caller constructs; every exported
// method is safe for concurrent use across scopes.
type Engine struct {
	cfg       config.Config
	store     vectorstore.Store
	embedder  capability.Embedder
	extractor capability.Extractor
	ledger    *ledger.Ledger
	names     *names.Directory
	logger    *slog.Logger

	scopeMu    sync.Mutex
	scopeLocks map[string]*sync.Mutex
}

// New composes an Engine from its collaborators. cfg must already be
// validated (see config.Load); store/embedder/extractor are long-lived
// objects owned by the caller for the lifetime of the Engine.
func New(cfg config.Config, store vectorstore.Store, embedder capability.Embedder, extractor capability.Extractor, led *ledger.Ledger, nm *names.Directory, logger *slog.Logger) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("engine: store is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("engine: embedder is required")
	}
	if extractor == nil {
		return nil, fmt.Errorf("engine: extractor is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:        cfg,
		store:      store,
		embedder:   embedder,
		extractor:  extractor,
		ledger:     led,
		names:      nm,
		logger:     logger,
		scopeLocks: make(map[string]*sync.Mutex),
	}, nil
}

// Tags resolves the container identifiers for a working directory, honoring
// any explicit overrides from configuration (C1).
func (e *Engine) Tags(emailOrUser, absDir string) scope.Tags {
	base := scope.Resolve(e.cfg.ContainerTagPrefix, emailOrUser, absDir)
	return base.Override(e.cfg.UserContainerTag, e.cfg.ProjectContainerTag)
}

// SetDisplayName records a human label for userID (C12).
func (e *Engine) SetDisplayName(userID, displayName string) error {
	if e.names == nil {
		return nil
	}
	if err := e.names.Set(userID, displayName); err != nil {
		return newEngineErr(KindIO, "set_display_name", err)
	}
	return nil
}

// DisplayName returns the label set by SetDisplayName, or "" if none.
func (e *Engine) DisplayName(userID string) string {
	if e.names == nil {
		return ""
	}
	return e.names.Get(userID)
}

// scopeLock returns the mutex serializing ingests for userID, creating one
// on first use (lock striping by scope per the concurrency model).
func (e *Engine) scopeLock(userID string) *sync.Mutex {
	e.scopeMu.Lock()
	defer e.scopeMu.Unlock()
	m, ok := e.scopeLocks[userID]
	if !ok {
		m = &sync.Mutex{}
		e.scopeLocks[userID] = m
	}
	return m
}

func (e *Engine) stripFullyPrivate(s string) string {
	stripped := privacy.Strip(s)
	if privacy.IsFullyPrivate(stripped) {
		return ""
	}
	return stripped
}

func (e *Engine) embedRetry(ctx context.Context, text string, role capability.Role) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, embedTimeout)
	defer cancel()
	v, err := e.embedder.Embed(ctx, text, role)
	if err != nil {
		if ctx.Err() != nil {
			return nil, newEngineErr(KindTimeout, "embed", err)
		}
		return nil, newEngineErr(KindUpstream, "embed", err)
	}
	return v, nil
}

func (e *Engine) extractRetry(ctx context.Context, messages []capability.Message, mode capability.Mode) ([]capability.Fact, error) {
	ctx, cancel := context.WithTimeout(ctx, extractTimeout)
	defer cancel()
	facts, err := e.extractor.Extract(ctx, messages, mode)
	if err != nil {
		if ctx.Err() != nil {
			return nil, newEngineErr(KindTimeout, "extract", err)
		}
		return nil, newEngineErr(KindUpstream, "extract", err)
	}
	return facts, nil
}

// withIORetry runs fn; if it fails with a store E_IO error, it refreshes
// the store handle and retries fn once (spec §7's E_IO policy).
func (e *Engine) withIORetry(ctx context.Context, fn func(ctx context.Context) error) error {
	opCtx, cancel := context.WithTimeout(ctx, storeOpTimeout)
	err := fn(opCtx)
	cancel()
	if err == nil || !isStoreIOErr(err) {
		return err
	}
	if rerr := e.store.Refresh(ctx); rerr != nil {
		e.logger.Warn("refresh before retry failed", "err", rerr)
	}
	opCtx2, cancel2 := context.WithTimeout(ctx, storeOpTimeout)
	defer cancel2()
	return fn(opCtx2)
}

func (e *Engine) insertRetry(ctx context.Context, rows []vectorstore.Row) error {
	return e.withIORetry(ctx, func(ctx context.Context) error { return e.store.Insert(ctx, rows) })
}

func (e *Engine) updateRetry(ctx context.Context, id string, patch vectorstore.Patch) error {
	return e.withIORetry(ctx, func(ctx context.Context) error { return e.store.Update(ctx, id, patch) })
}

func (e *Engine) deleteRetry(ctx context.Context, id string) error {
	return e.withIORetry(ctx, func(ctx context.Context) error { return e.store.Delete(ctx, id) })
}

func (e *Engine) scanRetry(ctx context.Context, userID string, opts vectorstore.ScanOptions) ([]vectorstore.Row, error) {
	var rows []vectorstore.Row
	err := e.withIORetry(ctx, func(ctx context.Context) error {
		r, err := e.store.Scan(ctx, userID, opts)
		rows = r
		return err
	})
	return rows, err
}

func (e *Engine) searchByVectorRetry(ctx context.Context, q []float32, userID string, limit int, threshold float64) ([]vectorstore.ScoredRow, error) {
	var rows []vectorstore.ScoredRow
	err := e.withIORetry(ctx, func(ctx context.Context) error {
		r, err := e.store.SearchByVector(ctx, q, userID, limit, threshold)
		rows = r
		return err
	})
	return rows, err
}

func (e *Engine) findActiveByHashRetry(ctx context.Context, userID, hash string) (*vectorstore.Row, error) {
	var row *vectorstore.Row
	err := e.withIORetry(ctx, func(ctx context.Context) error {
		r, err := e.store.FindActiveByHash(ctx, userID, hash)
		row = r
		return err
	})
	return row, err
}
