package engine

import (
	"context"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/codexfi/memory/internal/capability"
	"github.com/codexfi/memory/internal/vectorstore"
)

type dedupAction int

const (
	actionUpdateInPlace dedupAction = iota
	actionKnowledgeUpdate
)

// dedupPolicy maps a (existing type, incoming type) pair to the Step 2
// behaviour, a data table rather than scattered branches (spec §9 open
// question). Pairs absent from the table fall back to actionUpdateInPlace
// ("all other combinations").
var dedupPolicy = buildDedupPolicy()

func buildDedupPolicy() map[[2]MemoryType]dedupAction {
	knowledgeUpdateGroup := []MemoryType{TypeProgress, TypeSessionSummary, TypeErrorSolution}
	knowledgeUpdateGroup = append(knowledgeUpdateGroup, TypePreference, TypeProjectConfig, TypeTechContext)

	m := make(map[[2]MemoryType]dedupAction)
	for _, a := range knowledgeUpdateGroup {
		for _, b := range knowledgeUpdateGroup {
			m[[2]MemoryType{a, b}] = actionKnowledgeUpdate
		}
	}
	return m
}

func dedupActionFor(existing, incoming MemoryType) dedupAction {
	if a, ok := dedupPolicy[[2]MemoryType{existing, incoming}]; ok {
		return a
	}
	return actionUpdateInPlace
}

// dedupAndCommit runs the Step 1-4 algorithm for one extracted-and-embedded
// candidate and returns the event to surface to the ingest caller.
func (e *Engine) dedupAndCommit(ctx context.Context, userID string, f preparedFact) (Event, error) {
	norm := normalize(f.Memory)
	hash := contentHash(norm)

	existing, err := e.findActiveByHashRetry(ctx, userID, hash)
	if err != nil {
		return Event{}, wrapStoreErr("dedup: find_active_by_hash", err)
	}
	if existing != nil {
		if err := e.mergeUpdate(ctx, existing, f.Chunk); err != nil {
			return Event{}, err
		}
		return Event{ID: existing.ID, Memory: f.Memory, Event: EventUpdate}, nil
	}

	near, err := e.searchByVectorRetry(ctx, f.Vector, userID, 3, e.cfg.NearDuplicateCosine)
	if err != nil {
		return Event{}, wrapStoreErr("dedup: search_by_vector", err)
	}
	if len(near) > 0 {
		top := near[0]
		existingType := coerceType(top.Type)
		action := dedupActionFor(existingType, f.Type)
		if action == actionUpdateInPlace {
			if err := e.mergeUpdate(ctx, &top.Row, f.Chunk); err != nil {
				return Event{}, err
			}
			return Event{ID: top.ID, Memory: f.Memory, Event: EventUpdate}, nil
		}

		newID, err := e.commitInsert(ctx, userID, f)
		if err != nil {
			return Event{}, err
		}
		now := time.Now().UTC()
		if err := e.updateRetry(ctx, top.ID, vectorstore.Patch{SupersededBy: &newID, UpdatedAt: &now}); err != nil {
			return Event{}, wrapStoreErr("dedup: supersede", err)
		}
		return Event{ID: newID, Memory: f.Memory, Event: EventAdd}, nil
	}

	newID, err := e.commitInsert(ctx, userID, f)
	if err != nil {
		return Event{}, err
	}
	return Event{ID: newID, Memory: f.Memory, Event: EventAdd}, nil
}

// mergeUpdate implements Step 1's merge rule: keep the longer chunk, refresh
// updated_at, never touch the vector.
func (e *Engine) mergeUpdate(ctx context.Context, existing *vectorstore.Row, newChunk string) error {
	chunk := existing.Chunk
	if len(newChunk) > len(chunk) {
		chunk = newChunk
	}
	now := time.Now().UTC()
	patch := vectorstore.Patch{Chunk: &chunk, UpdatedAt: &now}
	if err := e.updateRetry(ctx, existing.ID, patch); err != nil {
		return wrapStoreErr("dedup: merge_update", err)
	}
	return nil
}

// commitInsert mints a fresh row, inserts it, and applies any type-specific
// uniqueness rule (Step 3) that follows from a fresh commit of this type.
func (e *Engine) commitInsert(ctx context.Context, userID string, f preparedFact) (string, error) {
	now := time.Now().UTC()
	id := ulid.Make().String()
	metadata := map[string]string{"type": string(f.Type), "date": now.Format("2006-01-02")}
	if f.CompressedFrom != "" {
		metadata["compressed_from"] = f.CompressedFrom
	}
	row := vectorstore.Row{
		ID:        id,
		Memory:    f.Memory,
		Chunk:     f.Chunk,
		UserID:    userID,
		Vector:    f.Vector,
		Metadata:  metadata,
		Type:      string(f.Type),
		Hash:      contentHash(normalize(f.Memory)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.insertRetry(ctx, []vectorstore.Row{row}); err != nil {
		return "", wrapStoreErr("dedup: insert", err)
	}
	if err := e.applyTypeUniqueness(ctx, userID, id, f.Type); err != nil {
		e.logger.Warn("type uniqueness follow-up failed", "type", f.Type, "id", id, "err", err)
	}
	return id, nil
}

// applyTypeUniqueness enforces invariant 7 (progress singleton) and the
// session-summary compression rule (Step 3).
func (e *Engine) applyTypeUniqueness(ctx context.Context, userID, newID string, t MemoryType) error {
	switch t {
	case TypeProgress:
		return e.supersedeSiblingsOfType(ctx, userID, newID, TypeProgress)
	case TypeSessionSummary:
		return e.compressOldestSessionSummaryIfThird(ctx, userID, newID)
	default:
		return nil
	}
}

func (e *Engine) supersedeSiblingsOfType(ctx context.Context, userID, newID string, t MemoryType) error {
	rows, err := e.scanRetry(ctx, userID, vectorstore.ScanOptions{})
	if err != nil {
		return wrapStoreErr("dedup: scan_siblings", err)
	}
	for _, r := range rows {
		if r.ID == newID || MemoryType(r.Type) != t || r.SupersededBy != "" {
			continue
		}
		supersededBy := newID
		if err := e.updateRetry(ctx, r.ID, vectorstore.Patch{SupersededBy: &supersededBy}); err != nil {
			e.logger.Warn("failed to supersede sibling row", "id", r.ID, "err", err)
		}
	}
	return nil
}

func (e *Engine) compressOldestSessionSummaryIfThird(ctx context.Context, userID, newID string) error {
	rows, err := e.scanRetry(ctx, userID, vectorstore.ScanOptions{})
	if err != nil {
		return wrapStoreErr("dedup: scan_summaries", err)
	}

	var summaries []vectorstore.Row
	for _, r := range rows {
		if MemoryType(r.Type) == TypeSessionSummary && r.SupersededBy == "" {
			summaries = append(summaries, r)
		}
	}
	if len(summaries) < 3 {
		return nil
	}
	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].CreatedAt.Equal(summaries[j].CreatedAt) {
			return summaries[i].CreatedAt.Before(summaries[j].CreatedAt)
		}
		return summaries[i].ID < summaries[j].ID
	})
	oldest := summaries[0]
	if oldest.ID == newID {
		return nil
	}

	facts, err := e.extractRetry(ctx, []capability.Message{{Role: "assistant", Content: oldest.Chunk}}, capability.ModeSummary)
	if err != nil {
		return err
	}
	for _, fc := range facts {
		memory := e.stripFullyPrivate(fc.Memory)
		if memory == "" {
			continue
		}
		vec, err := e.embedRetry(ctx, memory, capability.RoleDocument)
		if err != nil {
			e.logger.Warn("embed failed during summary compression", "err", err)
			continue
		}
		if _, err := e.commitInsert(ctx, userID, preparedFact{
			Memory:         memory,
			Chunk:          e.stripFullyPrivate(fc.Chunk),
			Type:           TypeLearnedPattern,
			Vector:         vec,
			CompressedFrom: oldest.ID,
		}); err != nil {
			e.logger.Warn("insert failed during summary compression", "err", err)
		}
	}

	if err := e.deleteRetry(ctx, oldest.ID); err != nil {
		e.logger.Warn("failed to delete compressed session summary", "id", oldest.ID, "err", err)
	}
	return nil
}
