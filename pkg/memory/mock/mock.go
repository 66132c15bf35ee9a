// Package mock provides in-memory test doubles for the memory storage
// interfaces in pkg/memory.
//
// Each mock records every method call for assertion in tests and exposes
// exported fields that control what the mock returns. All mocks are safe for
// concurrent use via an internal [sync.Mutex].
//
// Typical usage:
//
//	store := &mock.VectorStore{}
//	store.SearchResult = []memory.ScoredEntry{{Entry: memory.MemoryEntry{ID: "m1"}, Score: 0.9}}
//
//	// inject store into the system under test …
//
//	if got := store.CallCount("Search"); got != 1 {
//	    t.Errorf("expected 1 Search call, got %d", got)
//	}
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/agentmemory/memsvc/pkg/memory"
)

// Call records the name and arguments of a single method invocation.
type Call struct {
	// Method is the name of the interface method that was called.
	Method string

	// Args holds the non-context arguments passed to the method, in order.
	Args []any
}

// ─────────────────────────────────────────────────────────────────────────────
// VectorStore mock
// ─────────────────────────────────────────────────────────────────────────────

// VectorStore is a configurable test double for [memory.VectorStore].
// All exported *Err fields default to nil (success); all exported *Result
// fields default to nil (empty slice returned).
type VectorStore struct {
	mu    sync.Mutex
	calls []Call

	UpsertErr error

	SearchResult []memory.ScoredEntry
	SearchErr    error

	GetResult *memory.MemoryEntry
	GetErr    error

	DeleteErr error

	ListResult []memory.MemoryEntry
	ListErr    error
}

var _ memory.VectorStore = (*VectorStore)(nil)

func (m *VectorStore) record(method string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: method, Args: args})
}

// Calls returns a copy of all recorded method invocations.
func (m *VectorStore) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (m *VectorStore) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset clears all recorded calls.
func (m *VectorStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

func (m *VectorStore) Upsert(ctx context.Context, entry memory.MemoryEntry) error {
	m.record("Upsert", entry)
	return m.UpsertErr
}

func (m *VectorStore) Search(ctx context.Context, embedding []float32, topK int, filter memory.EntryFilter) ([]memory.ScoredEntry, error) {
	m.record("Search", embedding, topK, filter)
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	if m.SearchResult != nil {
		return m.SearchResult, nil
	}
	return []memory.ScoredEntry{}, nil
}

func (m *VectorStore) Get(ctx context.Context, id string) (*memory.MemoryEntry, error) {
	m.record("Get", id)
	return m.GetResult, m.GetErr
}

func (m *VectorStore) Delete(ctx context.Context, id string) error {
	m.record("Delete", id)
	return m.DeleteErr
}

func (m *VectorStore) List(ctx context.Context, filter memory.EntryFilter) ([]memory.MemoryEntry, error) {
	m.record("List", filter)
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	if m.ListResult != nil {
		return m.ListResult, nil
	}
	return []memory.MemoryEntry{}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// FullTextStore mock
// ─────────────────────────────────────────────────────────────────────────────

// FullTextStore is a configurable test double for [memory.FullTextStore].
type FullTextStore struct {
	mu    sync.Mutex
	calls []Call

	IndexErr error

	SearchResult []memory.ScoredEntry
	SearchErr    error

	DeleteErr error
}

var _ memory.FullTextStore = (*FullTextStore)(nil)

func (m *FullTextStore) record(method string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: method, Args: args})
}

func (m *FullTextStore) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *FullTextStore) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (m *FullTextStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

func (m *FullTextStore) Index(ctx context.Context, entry memory.MemoryEntry) error {
	m.record("Index", entry)
	return m.IndexErr
}

func (m *FullTextStore) Search(ctx context.Context, query string, topK int, filter memory.EntryFilter) ([]memory.ScoredEntry, error) {
	m.record("Search", query, topK, filter)
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	if m.SearchResult != nil {
		return m.SearchResult, nil
	}
	return []memory.ScoredEntry{}, nil
}

func (m *FullTextStore) Delete(ctx context.Context, id string) error {
	m.record("Delete", id)
	return m.DeleteErr
}

// ─────────────────────────────────────────────────────────────────────────────
// GraphStore mock
// ─────────────────────────────────────────────────────────────────────────────

// GraphStore is a configurable test double for [memory.GraphStore].
type GraphStore struct {
	mu    sync.Mutex
	calls []Call

	AddEntityErr error

	GetEntityResult *memory.Entity
	GetEntityErr    error

	FindEntitiesResult []memory.Entity
	FindEntitiesErr    error

	DeleteEntityErr error

	AddRelationshipErr error

	RelationshipsResult []memory.Relationship
	RelationshipsErr    error

	LinkMemoryErr error

	MemoriesForEntitiesResult []string
	MemoriesForEntitiesErr    error

	LinksForMemoriesResult []memory.MemoryEntityLink
	LinksForMemoriesErr    error

	FindConnectedResult []memory.ScoredEntity
	FindConnectedErr    error

	CleanupErr error
}

var _ memory.GraphStore = (*GraphStore)(nil)

func (m *GraphStore) record(method string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: method, Args: args})
}

func (m *GraphStore) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *GraphStore) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (m *GraphStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

func (m *GraphStore) AddEntity(ctx context.Context, entity memory.Entity) error {
	m.record("AddEntity", entity)
	return m.AddEntityErr
}

func (m *GraphStore) GetEntity(ctx context.Context, id string) (*memory.Entity, error) {
	m.record("GetEntity", id)
	return m.GetEntityResult, m.GetEntityErr
}

func (m *GraphStore) FindEntities(ctx context.Context, filter memory.EntityFilter) ([]memory.Entity, error) {
	m.record("FindEntities", filter)
	if m.FindEntitiesErr != nil {
		return nil, m.FindEntitiesErr
	}
	if m.FindEntitiesResult != nil {
		return m.FindEntitiesResult, nil
	}
	return []memory.Entity{}, nil
}

func (m *GraphStore) DeleteEntity(ctx context.Context, id string) error {
	m.record("DeleteEntity", id)
	return m.DeleteEntityErr
}

func (m *GraphStore) AddRelationship(ctx context.Context, rel memory.Relationship) error {
	m.record("AddRelationship", rel)
	return m.AddRelationshipErr
}

func (m *GraphStore) Relationships(ctx context.Context, entityID string, opts ...memory.RelQueryOpt) ([]memory.Relationship, error) {
	m.record("Relationships", entityID)
	if m.RelationshipsErr != nil {
		return nil, m.RelationshipsErr
	}
	if m.RelationshipsResult != nil {
		return m.RelationshipsResult, nil
	}
	return []memory.Relationship{}, nil
}

func (m *GraphStore) LinkMemory(ctx context.Context, link memory.MemoryEntityLink) error {
	m.record("LinkMemory", link)
	return m.LinkMemoryErr
}

func (m *GraphStore) MemoriesForEntities(ctx context.Context, entityIDs []string) ([]string, error) {
	m.record("MemoriesForEntities", entityIDs)
	if m.MemoriesForEntitiesErr != nil {
		return nil, m.MemoriesForEntitiesErr
	}
	if m.MemoriesForEntitiesResult != nil {
		return m.MemoriesForEntitiesResult, nil
	}
	return []string{}, nil
}

func (m *GraphStore) LinksForMemories(ctx context.Context, memoryIDs []string) ([]memory.MemoryEntityLink, error) {
	m.record("LinksForMemories", memoryIDs)
	if m.LinksForMemoriesErr != nil {
		return nil, m.LinksForMemoriesErr
	}
	if m.LinksForMemoriesResult != nil {
		return m.LinksForMemoriesResult, nil
	}
	return []memory.MemoryEntityLink{}, nil
}

func (m *GraphStore) FindConnected(ctx context.Context, entityID string, depth int, opts ...memory.TraversalOpt) ([]memory.ScoredEntity, error) {
	m.record("FindConnected", entityID, depth)
	if m.FindConnectedErr != nil {
		return nil, m.FindConnectedErr
	}
	if m.FindConnectedResult != nil {
		return m.FindConnectedResult, nil
	}
	return []memory.ScoredEntity{}, nil
}

func (m *GraphStore) Cleanup(ctx context.Context, memoryID string) error {
	m.record("Cleanup", memoryID)
	return m.CleanupErr
}

// ─────────────────────────────────────────────────────────────────────────────
// SessionIndex mock
// ─────────────────────────────────────────────────────────────────────────────

// SessionIndex is a configurable test double for [memory.SessionIndex].
type SessionIndex struct {
	mu    sync.Mutex
	calls []Call

	AppendErr error

	RecentResult []memory.SessionChunk
	RecentErr    error

	TurnCountResult int
	TurnCountErr    error
}

var _ memory.SessionIndex = (*SessionIndex)(nil)

func (m *SessionIndex) record(method string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: method, Args: args})
}

func (m *SessionIndex) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *SessionIndex) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (m *SessionIndex) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

func (m *SessionIndex) Append(ctx context.Context, chunk memory.SessionChunk) error {
	m.record("Append", chunk)
	return m.AppendErr
}

func (m *SessionIndex) Recent(ctx context.Context, sessionID string, duration time.Duration) ([]memory.SessionChunk, error) {
	m.record("Recent", sessionID, duration)
	if m.RecentErr != nil {
		return nil, m.RecentErr
	}
	if m.RecentResult != nil {
		return m.RecentResult, nil
	}
	return []memory.SessionChunk{}, nil
}

func (m *SessionIndex) TurnCount(ctx context.Context, sessionID string) (int, error) {
	m.record("TurnCount", sessionID)
	return m.TurnCountResult, m.TurnCountErr
}
