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

// VectorStoreImpl is the embedding similarity search layer backed by a
// PostgreSQL memory_entries table with a pgvector HNSW index for fast
// approximate nearest-neighbour search.
//
// Obtain one via [Store.Vector] rather than constructing directly.
// All methods are safe for concurrent use.
type VectorStoreImpl struct {
	pool *pgxpool.Pool
}

// Upsert implements [memory.VectorStore]. It stores entry, replacing any
// existing row with the same ID.
func (s *VectorStoreImpl) Upsert(ctx context.Context, entry memory.MemoryEntry) error {
	var vec any
	if entry.Embedding != nil {
		vec = pgvector.NewVector(entry.Embedding)
	}

	const q = `
		INSERT INTO memory_entries
		    (id, content, embedding, source_type, source_instance, context, tags, scope, workspace_id, importance, superseded_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
		    content         = EXCLUDED.content,
		    embedding       = EXCLUDED.embedding,
		    source_type     = EXCLUDED.source_type,
		    source_instance = EXCLUDED.source_instance,
		    context         = EXCLUDED.context,
		    tags            = EXCLUDED.tags,
		    scope           = EXCLUDED.scope,
		    workspace_id    = EXCLUDED.workspace_id,
		    importance      = EXCLUDED.importance,
		    superseded_by   = EXCLUDED.superseded_by,
		    updated_at      = EXCLUDED.updated_at`

	_, err := s.pool.Exec(ctx, q,
		entry.ID,
		entry.Content,
		vec,
		entry.SourceType,
		entry.SourceInstance,
		entry.Context,
		entry.Tags,
		entry.Scope,
		entry.WorkspaceID,
		entry.Importance,
		entry.SupersededBy,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("vector store: upsert: %w", err)
	}
	return nil
}

// Search implements [memory.VectorStore]. It finds the topK entries whose
// embeddings are closest (cosine distance) to the supplied query embedding,
// optionally filtered by filter.
//
// Results are ordered by descending Score (Score = 1 - cosine distance).
func (s *VectorStoreImpl) Search(ctx context.Context, embedding []float32, topK int, filter memory.EntryFilter) ([]memory.ScoredEntry, error) {
	queryVec := pgvector.NewVector(embedding)

	args := []any{queryVec} // $1 = query vector
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conditions := []string{"embedding IS NOT NULL"}
	conditions = appendEntryFilterConditions(conditions, filter, next)

	whereClause := "WHERE " + strings.Join(conditions, "\n  AND  ")

	args = append(args, topK)
	limitArg := fmt.Sprintf("$%d", len(args))

	q := fmt.Sprintf(`
		SELECT id, content, embedding, source_type, source_instance, context, tags, scope, workspace_id, importance, superseded_by, created_at, updated_at,
		       1 - (embedding <=> $1) AS score
		FROM   memory_entries
		%s
		ORDER  BY score DESC
		LIMIT  %s`, whereClause, limitArg)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("vector store: search: %w", err)
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
		return nil, fmt.Errorf("vector store: scan rows: %w", err)
	}
	if results == nil {
		results = []memory.ScoredEntry{}
	}
	return results, nil
}

// Get implements [memory.VectorStore]. It retrieves a single entry by ID.
// Returns (nil, nil) when the entry does not exist.
func (s *VectorStoreImpl) Get(ctx context.Context, id string) (*memory.MemoryEntry, error) {
	const q = `
		SELECT id, content, embedding, source_type, source_instance, context, tags, scope, workspace_id, importance, superseded_by, created_at, updated_at
		FROM   memory_entries
		WHERE  id = $1`

	row := s.pool.QueryRow(ctx, q, id)

	var (
		e   memory.MemoryEntry
		vec pgvector.Vector
	)
	if err := row.Scan(
		&e.ID, &e.Content, &vec, &e.SourceType, &e.SourceInstance, &e.Context, &e.Tags, &e.Scope, &e.WorkspaceID,
		&e.Importance, &e.SupersededBy, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("vector store: get: %w", err)
	}
	e.Embedding = vec.Slice()
	return &e, nil
}

// Delete implements [memory.VectorStore]. Deleting a non-existent entry is
// not an error.
func (s *VectorStoreImpl) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM memory_entries WHERE id = $1`
	if _, err := s.pool.Exec(ctx, q, id); err != nil {
		return fmt.Errorf("vector store: delete: %w", err)
	}
	return nil
}

// List implements [memory.VectorStore]. It returns every entry matching
// filter, used by stats/health reporting rather than by the recall pipeline.
func (s *VectorStoreImpl) List(ctx context.Context, filter memory.EntryFilter) ([]memory.MemoryEntry, error) {
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conditions := appendEntryFilterConditions(nil, filter, next)
	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, "\n  AND  ")
	}

	q := fmt.Sprintf(`
		SELECT id, content, embedding, source_type, source_instance, context, tags, scope, workspace_id, importance, superseded_by, created_at, updated_at
		FROM   memory_entries
		%s
		ORDER  BY created_at DESC`, whereClause)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("vector store: list: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.MemoryEntry, error) {
		var (
			e   memory.MemoryEntry
			vec pgvector.Vector
		)
		if err := row.Scan(
			&e.ID, &e.Content, &vec, &e.SourceType, &e.SourceInstance, &e.Context, &e.Tags, &e.Scope, &e.WorkspaceID,
			&e.Importance, &e.SupersededBy, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return memory.MemoryEntry{}, err
		}
		e.Embedding = vec.Slice()
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("vector store: scan rows: %w", err)
	}
	if results == nil {
		results = []memory.MemoryEntry{}
	}
	return results, nil
}

// appendEntryFilterConditions translates an [memory.EntryFilter] into SQL
// conditions shared by both the vector and full-text search queries.
func appendEntryFilterConditions(conditions []string, filter memory.EntryFilter, next func(any) string) []string {
	if len(filter.Tags) > 0 {
		conditions = append(conditions, "tags @> "+next(filter.Tags)+"::text[]")
	}
	if filter.Scope != "" {
		conditions = append(conditions, "scope = "+next(filter.Scope))
	}
	if filter.WorkspaceID != "" {
		conditions = append(conditions, "workspace_id = "+next(filter.WorkspaceID))
	}
	if len(filter.Sources) > 0 {
		conditions = append(conditions, "source_type = ANY("+next(filter.Sources)+"::text[])")
	}
	if !filter.After.IsZero() {
		conditions = append(conditions, "created_at > "+next(filter.After))
	}
	if !filter.Before.IsZero() {
		conditions = append(conditions, "created_at < "+next(filter.Before))
	}
	if !filter.IncludeSuperseded {
		conditions = append(conditions, "superseded_by = ''")
	}
	return conditions
}
