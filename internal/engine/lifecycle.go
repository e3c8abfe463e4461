package engine

import (
	"context"
	"errors"

	"github.com/codexfi/memory/internal/vectorstore"
)

// List returns an unordered slice of rows for userID (C9).
func (e *Engine) List(ctx context.Context, userID string, opts ListOptions) ([]Memory, error) {
	if userID == "" {
		return nil, newEngineErr(KindArg, "list", errEmptyUserID)
	}
	rows, err := e.scanRetry(ctx, userID, vectorstore.ScanOptions{
		IncludeSuperseded: opts.IncludeSuperseded,
		Limit:             opts.Limit,
	})
	if err != nil {
		return nil, wrapStoreErr("list", err)
	}
	return rows, nil
}

// Profile returns the n most recent active rows by updated_at desc, id
// desc, used to seed prompt-context sections.
func (e *Engine) Profile(ctx context.Context, userID string, n int) ([]Memory, error) {
	if userID == "" {
		return nil, newEngineErr(KindArg, "profile", errEmptyUserID)
	}
	rows, err := e.scanRetry(ctx, userID, vectorstore.ScanOptions{Limit: n})
	if err != nil {
		return nil, wrapStoreErr("profile", err)
	}
	return rows, nil
}

// Delete hard-deletes a row by id. A missing id is treated as success
// (spec §7: "delete treats E_NOT_FOUND as success").
func (e *Engine) Delete(ctx context.Context, id string) error {
	err := e.deleteRetry(ctx, id)
	if err == nil {
		return nil
	}
	var se *vectorstore.Error
	if errors.As(err, &se) && se.Kind == vectorstore.KindNotFound {
		return nil
	}
	return wrapStoreErr("delete", err)
}

// Cleanup enumerates every row (including superseded tombstones) for
// userID and hard-deletes each, best-effort: individual failures are
// logged and do not abort the sweep.
func (e *Engine) Cleanup(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, newEngineErr(KindArg, "cleanup", errEmptyUserID)
	}
	rows, err := e.scanRetry(ctx, userID, vectorstore.ScanOptions{IncludeSuperseded: true})
	if err != nil {
		return 0, wrapStoreErr("cleanup: scan", err)
	}

	deleted := 0
	for _, r := range rows {
		if err := e.deleteRetry(ctx, r.ID); err != nil {
			var se *vectorstore.Error
			if errors.As(err, &se) && se.Kind == vectorstore.KindNotFound {
				continue
			}
			e.logger.Warn("cleanup: delete failed, continuing sweep", "id", r.ID, "err", err)
			continue
		}
		deleted++
	}
	return deleted, nil
}
