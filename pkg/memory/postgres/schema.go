// Package postgres provides a PostgreSQL-backed implementation of the memory
// service's storage layer: vector search, full-text search, the knowledge
// graph, the session index, and the learned-retrieval persistence tables.
//
// All layers share a single [pgxpool.Pool] connection pool. The pgvector
// extension must be available in the target database; [Migrate] installs it
// automatically via CREATE EXTENSION IF NOT EXISTS.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn, 1536)
//	if err != nil { … }
//
//	_ = store.Vector().Upsert(ctx, entry)
//	_ = store.Graph().AddEntity(ctx, entity)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ─────────────────────────────────────────────────────────────────────────────
// Memory entries (vector + full-text)
// ─────────────────────────────────────────────────────────────────────────────

// ddlEntries returns the memory_entries DDL with the embedding dimension
// substituted. The vector dimension is baked into the column type at schema
// creation time.
func ddlEntries(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS memory_entries (
    id              TEXT         PRIMARY KEY,
    content         TEXT         NOT NULL,
    embedding       vector(%d),
    source_type     TEXT         NOT NULL DEFAULT '',
    source_instance TEXT         NOT NULL DEFAULT '',
    context         TEXT         NOT NULL DEFAULT '',
    tags            TEXT[]       NOT NULL DEFAULT '{}',
    scope           TEXT         NOT NULL DEFAULT '',
    workspace_id    TEXT         NOT NULL DEFAULT '',
    importance      DOUBLE PRECISION NOT NULL DEFAULT 0,
    superseded_by   TEXT         NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_memory_entries_embedding
    ON memory_entries USING hnsw (embedding vector_cosine_ops);

CREATE INDEX IF NOT EXISTS idx_memory_entries_source_type
    ON memory_entries (source_type);

CREATE INDEX IF NOT EXISTS idx_memory_entries_fts
    ON memory_entries USING GIN (to_tsvector('english', content));

CREATE INDEX IF NOT EXISTS idx_memory_entries_tags
    ON memory_entries USING GIN (tags);

CREATE INDEX IF NOT EXISTS idx_memory_entries_scope
    ON memory_entries (scope);

CREATE INDEX IF NOT EXISTS idx_memory_entries_workspace
    ON memory_entries (workspace_id);

CREATE INDEX IF NOT EXISTS idx_memory_entries_created_at
    ON memory_entries (created_at);
`, embeddingDimensions)
}

// ─────────────────────────────────────────────────────────────────────────────
// Knowledge graph
// ─────────────────────────────────────────────────────────────────────────────

const ddlKnowledgeGraph = `
CREATE TABLE IF NOT EXISTS entities (
    id           TEXT         PRIMARY KEY,
    type         TEXT         NOT NULL,
    name         TEXT         NOT NULL,
    display_name TEXT         NOT NULL DEFAULT '',
    aliases      TEXT[]       NOT NULL DEFAULT '{}',
    attributes   JSONB        NOT NULL DEFAULT '{}',
    created_at   TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at   TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_entities_type ON entities (type);
CREATE INDEX IF NOT EXISTS idx_entities_name ON entities (name);

CREATE TABLE IF NOT EXISTS relationships (
    source_id   TEXT         NOT NULL REFERENCES entities (id) ON DELETE CASCADE,
    target_id   TEXT         NOT NULL REFERENCES entities (id) ON DELETE CASCADE,
    rel_type    TEXT         NOT NULL,
    weight      DOUBLE PRECISION NOT NULL DEFAULT 1,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (source_id, target_id, rel_type)
);

CREATE INDEX IF NOT EXISTS idx_rel_source ON relationships (source_id);
CREATE INDEX IF NOT EXISTS idx_rel_target ON relationships (target_id);
CREATE INDEX IF NOT EXISTS idx_rel_type   ON relationships (rel_type);

CREATE TABLE IF NOT EXISTS memory_entity_links (
    memory_id   TEXT         NOT NULL,
    entity_id   TEXT         NOT NULL REFERENCES entities (id) ON DELETE CASCADE,
    confidence  DOUBLE PRECISION NOT NULL DEFAULT 1,
    PRIMARY KEY (memory_id, entity_id)
);

CREATE INDEX IF NOT EXISTS idx_mel_entity ON memory_entity_links (entity_id);
CREATE INDEX IF NOT EXISTS idx_mel_memory ON memory_entity_links (memory_id);

CREATE TABLE IF NOT EXISTS temporal_facts (
    memory_id   TEXT         PRIMARY KEY,
    valid_from  TIMESTAMPTZ,
    valid_to    TIMESTAMPTZ
);
`

// ─────────────────────────────────────────────────────────────────────────────
// Session index
// ─────────────────────────────────────────────────────────────────────────────

const ddlSessionChunks = `
CREATE TABLE IF NOT EXISTS session_chunks (
    id          BIGSERIAL    PRIMARY KEY,
    session_id  TEXT         NOT NULL,
    role        TEXT         NOT NULL DEFAULT '',
    content     TEXT         NOT NULL,
    timestamp   TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_session_chunks_session_id
    ON session_chunks (session_id);

CREATE INDEX IF NOT EXISTS idx_session_chunks_session_timestamp
    ON session_chunks (session_id, timestamp);
`

// ─────────────────────────────────────────────────────────────────────────────
// Learned-retrieval persistence layer
// ─────────────────────────────────────────────────────────────────────────────

const ddlLearnedState = `
CREATE TABLE IF NOT EXISTS query_cache_entries (
    normalized_query TEXT         PRIMARY KEY,
    result_ids       TEXT[]       NOT NULL DEFAULT '{}',
    hit_count        INTEGER      NOT NULL DEFAULT 0,
    created_at       TIMESTAMPTZ  NOT NULL DEFAULT now(),
    last_used_at     TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS feedback_weights (
    memory_id    TEXT         PRIMARY KEY,
    used_count   INTEGER      NOT NULL DEFAULT 0,
    shown_count  INTEGER      NOT NULL DEFAULT 0,
    weight       DOUBLE PRECISION NOT NULL DEFAULT 0,
    updated_at   TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS learned_expansions (
    term         TEXT         NOT NULL,
    expansion    TEXT         NOT NULL,
    score        DOUBLE PRECISION NOT NULL DEFAULT 0,
    PRIMARY KEY (term, expansion)
);

CREATE TABLE IF NOT EXISTS fact_anchors (
    memory_id    TEXT         PRIMARY KEY,
    anchor_text  TEXT         NOT NULL,
    created_at   TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

// Migrate creates or ensures all required database tables, indexes, and
// extensions exist. It is idempotent (CREATE TABLE IF NOT EXISTS / CREATE
// INDEX IF NOT EXISTS) and safe to call on every application start.
//
// embeddingDimensions must match the vector model configured for your
// deployment (e.g., 1536 for OpenAI text-embedding-3-small, 768 for
// nomic-embed-text). Changing this value after the first migration requires
// a manual schema update.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	statements := []string{
		ddlEntries(embeddingDimensions),
		ddlKnowledgeGraph,
		ddlSessionChunks,
		ddlLearnedState,
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
