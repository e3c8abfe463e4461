package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/codexfi/memory/internal/capability"
	"github.com/codexfi/memory/internal/privacy"
)

var errEmptyUserID = errors.New("user_id must not be empty")

// Ingest orchestrates privacy-strip -> extract -> embed -> dedup/version ->
// commit for one batch of conversation messages, returning the ordered
// per-fact outcomes (C7).
func (e *Engine) Ingest(ctx context.Context, userID string, messages []capability.Message, opts IngestOptions) ([]Event, error) {
	if userID == "" {
		return nil, newEngineErr(KindArg, "ingest", errEmptyUserID)
	}

	lock := e.scopeLock(userID)
	lock.Lock()
	defer lock.Unlock()

	stripped := make([]capability.Message, len(messages))
	for i, m := range messages {
		stripped[i] = capability.Message{Role: m.Role, Content: privacy.Strip(m.Content)}
	}

	mode := capability.Mode(opts.Mode)
	if mode == "" {
		mode = capability.ModeNormal
	}

	facts, err := e.extractRetry(ctx, stripped, mode)
	if err != nil {
		return nil, err
	}

	var events []Event
	for _, fc := range facts {
		memory := e.stripFullyPrivate(fc.Memory)
		if strings.TrimSpace(memory) == "" {
			continue
		}
		chunk := e.stripFullyPrivate(fc.Chunk)

		vec, err := e.embedRetry(ctx, normalize(memory), capability.RoleDocument)
		if err != nil {
			e.logger.Warn("embed failed for fact, skipping", "err", err)
			continue
		}

		ev, err := e.dedupAndCommit(ctx, userID, preparedFact{
			Memory: memory,
			Chunk:  chunk,
			Type:   coerceType(fc.Type),
			Vector: vec,
		})
		if err != nil {
			e.logger.Warn("dedup/commit failed for fact, skipping", "err", err)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}
