package engine

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/codexfi/memory/internal/capability"
	"github.com/codexfi/memory/internal/privacy"
	"github.com/codexfi/memory/internal/vectorstore"
)

const maxAgeDays = 365

// Search embeds the query, runs a scope-isolated vector search, optionally
// unions a type-filtered enumeration, blends in recency, and returns a
// truncated, ranked result set (C8).
func (e *Engine) Search(ctx context.Context, query, userID string, opts SearchOptions) ([]SearchResult, error) {
	if userID == "" {
		return nil, newEngineErr(KindArg, "search", errEmptyUserID)
	}

	stripped := privacy.Strip(query)
	if strings.TrimSpace(stripped) == "" {
		return nil, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	threshold := opts.Threshold
	if threshold == 0 {
		threshold = e.cfg.SearchThreshold
	}

	vec, err := e.embedRetry(ctx, stripped, capability.RoleQuery)
	if err != nil {
		return nil, err
	}

	if err := e.store.Refresh(ctx); err != nil {
		e.logger.Warn("search refresh failed, proceeding with existing snapshot", "err", err)
	}

	vectorHits, err := e.searchByVectorRetry(ctx, vec, userID, limit, threshold)
	if err != nil {
		return nil, wrapStoreErr("search: search_by_vector", err)
	}

	merged := make(map[string]vectorstore.ScoredRow, len(vectorHits))
	for _, r := range vectorHits {
		merged[r.ID] = r
	}

	if len(opts.Types) > 0 {
		wanted := make(map[string]bool, len(opts.Types))
		for _, t := range opts.Types {
			wanted[t] = true
		}
		enumLimit := limit
		if enumLimit < 60 {
			enumLimit = 60
		}
		scanned, err := e.scanRetry(ctx, userID, vectorstore.ScanOptions{Limit: enumLimit})
		if err != nil {
			return nil, wrapStoreErr("search: scan", err)
		}
		for _, r := range scanned {
			if !wanted[r.Type] {
				continue
			}
			if _, ok := merged[r.ID]; ok {
				continue // vector-phase score wins
			}
			merged[r.ID] = vectorstore.ScoredRow{Row: r, Score: e.cfg.EnumerationBaseScore}
		}
	}

	now := time.Now().UTC()
	results := make([]vectorstore.ScoredRow, 0, len(merged))
	for _, r := range merged {
		if r.SupersededBy != "" {
			continue // defence-in-depth, C2 already filters
		}
		r.Score = blendRecency(r, opts.RecencyWeight, now)
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if !results[i].UpdatedAt.Equal(results[j].UpdatedAt) {
			return results[i].UpdatedAt.After(results[j].UpdatedAt)
		}
		return results[i].ID > results[j].ID
	})

	if len(results) > limit {
		results = results[:limit]
	}

	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		out = append(out, SearchResult{
			ID:       r.ID,
			Memory:   r.Memory,
			Chunk:    r.Chunk,
			Score:    r.Score,
			Metadata: r.Metadata,
			Date:     r.Metadata["date"],
		})
	}
	return out, nil
}

// blendRecency implements the linear cosine/recency combination (§4.8 step
// 5). Rows missing a parseable date are treated as recency = 0.
func blendRecency(r vectorstore.ScoredRow, w float64, now time.Time) float64 {
	if w <= 0 {
		return r.Score
	}
	recency := 0.0
	if dateStr, ok := r.Metadata["date"]; ok && dateStr != "" {
		if d, err := time.Parse("2006-01-02", dateStr); err == nil {
			ageDays := now.Sub(d).Hours() / 24
			if ageDays < 0 {
				ageDays = 0
			}
			if ageDays > maxAgeDays {
				ageDays = maxAgeDays
			}
			recency = 1 - ageDays/maxAgeDays
		}
	}
	return (1-w)*r.Score + w*recency
}
