package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LearnedStateStore is the persistence layer backing the learned-retrieval
// components: the query cache, feedback weights, learned query expansions,
// and fact anchors.
//
// Obtain one via [Store.Learned] rather than constructing directly.
// All methods are safe for concurrent use. Callers in pkg/learned are
// expected to treat every error returned here as recoverable (downgrade to
// in-memory-only operation) rather than fatal.
type LearnedStateStore struct {
	pool *pgxpool.Pool
}

// QueryCacheRow mirrors a single row of the query_cache_entries table.
type QueryCacheRow struct {
	NormalizedQuery string
	ResultIDs       []string
	HitCount        int
}

// LookupQueryCache returns the cached result for a normalized query, or
// (nil, nil) on a cache miss.
func (l *LearnedStateStore) LookupQueryCache(ctx context.Context, normalized string) (*QueryCacheRow, error) {
	const q = `
		SELECT normalized_query, result_ids, hit_count
		FROM   query_cache_entries
		WHERE  normalized_query = $1`

	row := l.pool.QueryRow(ctx, q, normalized)
	var r QueryCacheRow
	if err := row.Scan(&r.NormalizedQuery, &r.ResultIDs, &r.HitCount); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("learned state: lookup query cache: %w", err)
	}
	return &r, nil
}

// RecordQueryCacheSuccess upserts a cache entry for normalized, overwriting
// resultIDs and bumping hit_count and last_used_at.
func (l *LearnedStateStore) RecordQueryCacheSuccess(ctx context.Context, normalized string, resultIDs []string) error {
	const q = `
		INSERT INTO query_cache_entries (normalized_query, result_ids, hit_count, created_at, last_used_at)
		VALUES ($1, $2, 1, now(), now())
		ON CONFLICT (normalized_query) DO UPDATE SET
		    result_ids   = EXCLUDED.result_ids,
		    hit_count    = query_cache_entries.hit_count + 1,
		    last_used_at = now()`

	if _, err := l.pool.Exec(ctx, q, normalized, resultIDs); err != nil {
		return fmt.Errorf("learned state: record query cache success: %w", err)
	}
	return nil
}

// InvalidateQueryCachePath removes every cache entry whose result_ids
// contains memoryID, since a correction or deletion to that memory
// invalidates any cached recall that depended on it.
func (l *LearnedStateStore) InvalidateQueryCachePath(ctx context.Context, memoryID string) error {
	const q = `DELETE FROM query_cache_entries WHERE $1 = ANY(result_ids)`
	if _, err := l.pool.Exec(ctx, q, memoryID); err != nil {
		return fmt.Errorf("learned state: invalidate query cache path: %w", err)
	}
	return nil
}

// FeedbackWeightRow mirrors a single row of the feedback_weights table.
type FeedbackWeightRow struct {
	MemoryID   string
	UsedCount  int
	ShownCount int
	Weight     float64
}

// RecordRetrieval increments shown_count for every memory ID in ids.
func (l *LearnedStateStore) RecordRetrieval(ctx context.Context, ids []string) error {
	const q = `
		INSERT INTO feedback_weights (memory_id, shown_count, updated_at)
		SELECT unnest($1::text[]), 1, now()
		ON CONFLICT (memory_id) DO UPDATE SET
		    shown_count = feedback_weights.shown_count + 1,
		    updated_at  = now()`

	if _, err := l.pool.Exec(ctx, q, ids); err != nil {
		return fmt.Errorf("learned state: record retrieval: %w", err)
	}
	return nil
}

// RecordUsage increments used_count for memoryID, for exposure/usage
// telemetry distinct from the additive feedback weight (see [AdjustWeight]).
func (l *LearnedStateStore) RecordUsage(ctx context.Context, memoryID string) error {
	const q = `
		INSERT INTO feedback_weights (memory_id, used_count, shown_count, weight, updated_at)
		VALUES ($1, 1, 0, 0, now())
		ON CONFLICT (memory_id) DO UPDATE SET
		    used_count = feedback_weights.used_count + 1,
		    updated_at = now()`

	if _, err := l.pool.Exec(ctx, q, memoryID); err != nil {
		return fmt.Errorf("learned state: record usage: %w", err)
	}
	return nil
}

// AdjustWeight adds delta to memoryID's feedback weight, used by
// pkg/learned's reinforce (positive delta) and penalize (negative delta)
// operations.
func (l *LearnedStateStore) AdjustWeight(ctx context.Context, memoryID string, delta float64) error {
	const q = `
		INSERT INTO feedback_weights (memory_id, used_count, shown_count, weight, updated_at)
		VALUES ($1, 0, 0, $2, now())
		ON CONFLICT (memory_id) DO UPDATE SET
		    weight     = feedback_weights.weight + $2,
		    updated_at = now()`

	if _, err := l.pool.Exec(ctx, q, memoryID, delta); err != nil {
		return fmt.Errorf("learned state: adjust weight: %w", err)
	}
	return nil
}

// Weights returns the current feedback weight for every memory ID in ids.
// IDs with no recorded feedback are omitted from the result map.
func (l *LearnedStateStore) Weights(ctx context.Context, ids []string) (map[string]float64, error) {
	if len(ids) == 0 {
		return map[string]float64{}, nil
	}
	const q = `SELECT memory_id, weight FROM feedback_weights WHERE memory_id = ANY($1::text[])`

	rows, err := l.pool.Query(ctx, q, ids)
	if err != nil {
		return nil, fmt.Errorf("learned state: weights: %w", err)
	}
	result := map[string]float64{}
	_, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (struct{}, error) {
		var id string
		var w float64
		if err := row.Scan(&id, &w); err != nil {
			return struct{}{}, err
		}
		result[id] = w
		return struct{}{}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("learned state: weights: scan: %w", err)
	}
	return result, nil
}

// LearnedExpansionRow mirrors a single row of the learned_expansions table.
type LearnedExpansionRow struct {
	Term      string
	Expansion string
	Score     float64
}

// ExpansionsFor returns learned expansions for term ordered by descending
// score.
func (l *LearnedStateStore) ExpansionsFor(ctx context.Context, term string) ([]LearnedExpansionRow, error) {
	const q = `
		SELECT term, expansion, score
		FROM   learned_expansions
		WHERE  term = $1
		ORDER  BY score DESC`

	rows, err := l.pool.Query(ctx, q, term)
	if err != nil {
		return nil, fmt.Errorf("learned state: expansions for: %w", err)
	}
	result, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (LearnedExpansionRow, error) {
		var r LearnedExpansionRow
		if err := row.Scan(&r.Term, &r.Expansion, &r.Score); err != nil {
			return LearnedExpansionRow{}, err
		}
		return r, nil
	})
	if err != nil {
		return nil, fmt.Errorf("learned state: expansions for: scan: %w", err)
	}
	if result == nil {
		result = []LearnedExpansionRow{}
	}
	return result, nil
}

// RecordExpansion upserts a learned (term, expansion) pair, overwriting its
// score.
func (l *LearnedStateStore) RecordExpansion(ctx context.Context, term, expansion string, score float64) error {
	const q = `
		INSERT INTO learned_expansions (term, expansion, score)
		VALUES ($1, $2, $3)
		ON CONFLICT (term, expansion) DO UPDATE SET score = EXCLUDED.score`

	if _, err := l.pool.Exec(ctx, q, term, expansion, score); err != nil {
		return fmt.Errorf("learned state: record expansion: %w", err)
	}
	return nil
}

// RecordFactAnchor upserts the anchoring text for a memory, used to keep a
// short, stable description of why a memory was retrieved (e.g., for audit
// or for re-deriving learned expansions later).
func (l *LearnedStateStore) RecordFactAnchor(ctx context.Context, memoryID, anchorText string) error {
	const q = `
		INSERT INTO fact_anchors (memory_id, anchor_text, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (memory_id) DO UPDATE SET anchor_text = EXCLUDED.anchor_text`

	if _, err := l.pool.Exec(ctx, q, memoryID, anchorText); err != nil {
		return fmt.Errorf("learned state: record fact anchor: %w", err)
	}
	return nil
}
