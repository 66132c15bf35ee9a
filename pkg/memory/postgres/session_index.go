package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agentmemory/memsvc/pkg/memory"
)

// SessionIndexImpl is the time-ordered session log backed by a PostgreSQL
// session_chunks table.
//
// Obtain one via [Store.Sessions] rather than constructing directly.
// All methods are safe for concurrent use.
type SessionIndexImpl struct {
	pool *pgxpool.Pool
}

// Append implements [memory.SessionIndex].
func (s *SessionIndexImpl) Append(ctx context.Context, chunk memory.SessionChunk) error {
	const q = `
		INSERT INTO session_chunks (session_id, role, content, timestamp)
		VALUES ($1, $2, $3, $4)`

	_, err := s.pool.Exec(ctx, q, chunk.SessionID, chunk.Role, chunk.Content, chunk.Timestamp)
	if err != nil {
		return fmt.Errorf("session index: append: %w", err)
	}
	return nil
}

// Recent implements [memory.SessionIndex]. It returns chunks in chronological
// order (oldest first).
func (s *SessionIndexImpl) Recent(ctx context.Context, sessionID string, duration time.Duration) ([]memory.SessionChunk, error) {
	const q = `
		SELECT session_id, role, content, timestamp
		FROM   session_chunks
		WHERE  session_id = $1
		  AND  timestamp  >= now() - ($2::bigint * interval '1 microsecond')
		ORDER  BY timestamp`

	rows, err := s.pool.Query(ctx, q, sessionID, duration.Microseconds())
	if err != nil {
		return nil, fmt.Errorf("session index: recent: %w", err)
	}

	chunks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.SessionChunk, error) {
		var c memory.SessionChunk
		if err := row.Scan(&c.SessionID, &c.Role, &c.Content, &c.Timestamp); err != nil {
			return memory.SessionChunk{}, err
		}
		return c, nil
	})
	if err != nil {
		return nil, fmt.Errorf("session index: recent: scan: %w", err)
	}
	if chunks == nil {
		chunks = []memory.SessionChunk{}
	}
	return chunks, nil
}

// TurnCount implements [memory.SessionIndex].
func (s *SessionIndexImpl) TurnCount(ctx context.Context, sessionID string) (int, error) {
	const q = `SELECT count(*) FROM session_chunks WHERE session_id = $1`
	var n int
	if err := s.pool.QueryRow(ctx, q, sessionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("session index: turn count: %w", err)
	}
	return n, nil
}
