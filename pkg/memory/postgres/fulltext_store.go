package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/agentmemory/memsvc/pkg/memory"
)

// FullTextStoreImpl is the keyword / full-text search layer backed by the
// same PostgreSQL memory_entries table as [VectorStoreImpl], relying on its
// GIN full-text index.
//
// Obtain one via [Store.FullText] rather than constructing directly.
// All methods are safe for concurrent use.
type FullTextStoreImpl struct {
	pool *pgxpool.Pool
}

// Index implements [memory.FullTextStore]. Since the full-text index lives on
// the same memory_entries table as the vector store, Index performs the same
// upsert as [VectorStoreImpl.Upsert] — callers typically only need to call
// one of the two when both components share a [Store].
func (s *FullTextStoreImpl) Index(ctx context.Context, entry memory.MemoryEntry) error {
	vs := VectorStoreImpl{pool: s.pool}
	return vs.Upsert(ctx, entry)
}

// Search implements [memory.FullTextStore]. It performs a PostgreSQL
// full-text search over the content column using plainto_tsquery, applies
// filter, and returns results ranked by descending ts_rank score.
func (s *FullTextStoreImpl) Search(ctx context.Context, query string, topK int, filter memory.EntryFilter) ([]memory.ScoredEntry, error) {
	args := []any{query} // $1 = FTS query string
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conditions := []string{
		"to_tsvector('english', content) @@ plainto_tsquery('english', $1)",
	}
	conditions = appendEntryFilterConditions(conditions, filter, next)

	args = append(args, topK)
	limitArg := fmt.Sprintf("$%d", len(args))

	q := fmt.Sprintf(`
		SELECT id, content, embedding, source_type, source_instance, context, tags, scope, workspace_id, importance, superseded_by, created_at, updated_at,
		       ts_rank(to_tsvector('english', content), plainto_tsquery('english', $1)) AS score
		FROM   memory_entries
		WHERE  %s
		ORDER  BY score DESC
		LIMIT  %s`, strings.Join(conditions, "\n  AND  "), limitArg)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("full-text store: search: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.ScoredEntry, error) {
		var (
			se  memory.ScoredEntry
			vec pgvector.Vector
		)
		if err := row.Scan(
			&se.Entry.ID,
			&se.Entry.Content,
			&vec,
			&se.Entry.SourceType,
			&se.Entry.SourceInstance,
			&se.Entry.Context,
			&se.Entry.Tags,
			&se.Entry.Scope,
			&se.Entry.WorkspaceID,
			&se.Entry.Importance,
			&se.Entry.SupersededBy,
			&se.Entry.CreatedAt,
			&se.Entry.UpdatedAt,
			&se.Score,
		); err != nil {
			return memory.ScoredEntry{}, err
		}
		se.Entry.Embedding = vec.Slice()
		return se, nil
	})
	if err != nil {
		return nil, fmt.Errorf("full-text store: scan rows: %w", err)
	}
	if results == nil {
		results = []memory.ScoredEntry{}
	}
	return results, nil
}

// Delete implements [memory.FullTextStore]. Deleting a non-existent entry is
// not an error.
func (s *FullTextStoreImpl) Delete(ctx context.Context, id string) error {
	vs := VectorStoreImpl{pool: s.pool}
	return vs.Delete(ctx, id)
}
