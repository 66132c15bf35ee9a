package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/agentmemory/memsvc/pkg/memory"
)

// Compile-time interface checks.
//
// VectorStore and FullTextStore both operate on the memory_entries table but
// are exposed as distinct sub-types ([Store.Vector], [Store.FullText]) so the
// service layer can depend on each capability independently, matching the
// component boundaries of the rest of the package.
var (
	_ memory.VectorStore   = (*VectorStoreImpl)(nil)
	_ memory.FullTextStore = (*FullTextStoreImpl)(nil)
	_ memory.GraphStore    = (*GraphStoreImpl)(nil)
	_ memory.SessionIndex  = (*SessionIndexImpl)(nil)
)

// Store is the central PostgreSQL-backed storage layer. It holds a single
// [pgxpool.Pool] and exposes each storage component as a typed accessor:
//
//   - [Store.Vector] returns a [VectorStoreImpl] implementing [memory.VectorStore]
//   - [Store.FullText] returns a [FullTextStoreImpl] implementing [memory.FullTextStore]
//   - [Store.Graph] returns a [GraphStoreImpl] implementing [memory.GraphStore]
//   - [Store.Sessions] returns a [SessionIndexImpl] implementing [memory.SessionIndex]
//   - [Store.Learned] returns a [LearnedStateStore] for the learned-retrieval
//     persistence layer.
//
// All operations are safe for concurrent use.
type Store struct {
	pool     *pgxpool.Pool
	vector   *VectorStoreImpl
	fulltext *FullTextStoreImpl
	graph    *GraphStoreImpl
	sessions *SessionIndexImpl
	learned  *LearnedStateStore
}

// NewStore creates a new Store, establishes a connection pool to the
// PostgreSQL database at dsn, registers pgvector types on every connection,
// and runs [Migrate] to ensure all required tables and extensions exist.
//
// embeddingDimensions must match the output dimension of the embedding
// provider used to produce [memory.MemoryEntry.Embedding] values (e.g., 1536
// for OpenAI text-embedding-3-small). Changing this value after the first
// migration requires a manual schema change.
func NewStore(ctx context.Context, dsn string, embeddingDimensions int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	// Register pgvector types on every new connection so that vector columns
	// can be scanned into and inserted from pgvector.Vector values.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool, embeddingDimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{
		pool:     pool,
		vector:   &VectorStoreImpl{pool: pool},
		fulltext: &FullTextStoreImpl{pool: pool},
		graph:    &GraphStoreImpl{pool: pool},
		sessions: &SessionIndexImpl{pool: pool},
		learned:  &LearnedStateStore{pool: pool},
	}, nil
}

// Vector returns the embedding similarity search component.
func (s *Store) Vector() *VectorStoreImpl { return s.vector }

// FullText returns the keyword / full-text search component.
func (s *Store) FullText() *FullTextStoreImpl { return s.fulltext }

// Graph returns the knowledge-graph component.
func (s *Store) Graph() *GraphStoreImpl { return s.graph }

// Sessions returns the session index component.
func (s *Store) Sessions() *SessionIndexImpl { return s.sessions }

// Learned returns the learned-retrieval persistence component.
func (s *Store) Learned() *LearnedStateStore { return s.learned }

// Pool exposes the underlying connection pool for components (e.g. the
// service layer's batch remember path) that need to coordinate a single
// round-trip across stores that all happen to share this pool.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Close releases all connections held by the underlying connection pool.
// It should be called when the Store is no longer needed, typically via defer.
func (s *Store) Close() {
	s.pool.Close()
}
