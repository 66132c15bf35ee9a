// Package memory defines the storage-layer architecture of the shared
// long-term memory service.
//
// Retrieval is organised as a set of independent stores that are composed by
// the service layer:
//
//   - [VectorStore]: embedding-based similarity search over [MemoryEntry]
//     content.
//   - [FullTextStore]: keyword / full-text search over the same entries.
//   - [GraphStore]: a graph of named [Entity] nodes connected by typed
//     [Relationship] edges, plus [MemoryEntityLink] associations back to
//     memory entries.
//   - [SessionIndex]: a time-ordered log of [SessionChunk] records used for
//     recency-scoped recall and session-level deduplication bookkeeping.
//
// All interfaces are public so that alternative storage backends (Postgres /
// pgvector, Redis, an in-memory store for tests, ...) can be supplied without
// depending on service-layer internals.
//
// Every implementation must be safe for concurrent use.
package memory

import (
	"context"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Core domain types
// ─────────────────────────────────────────────────────────────────────────────

// MemoryEntry is a single durable unit of remembered content.
type MemoryEntry struct {
	// ID is the unique identifier for this entry (a UUID string).
	ID string

	// Content is the natural-language text of the memory.
	Content string

	// Embedding is the vector representation of Content. May be nil when the
	// embedding provider was unavailable at write time (degraded capture).
	Embedding []float32

	// SourceType classifies how this entry entered the store: "user_explicit",
	// "deliberate", "auto_capture", or "correction". Corrections are written
	// with SourceType "correction" and a non-empty Supersedes on the new
	// entry is tracked via the superseded entry's SupersededBy instead (see
	// [MemoryEntry.SupersededBy]).
	SourceType string

	// SourceInstance identifies the agent process that wrote this entry.
	SourceInstance string

	// Context is an optional free-text provenance note supplied at capture
	// time (e.g., "observed during incident review").
	Context string

	// Tags are free-form labels attached at capture time.
	Tags []string

	// Scope is the visibility/partition boundary for this entry
	// (e.g., "user", "team", "global"). Empty means unscoped.
	Scope string

	// WorkspaceID partitions entries belonging to different tenants/workspaces.
	WorkspaceID string

	// Importance is a caller-supplied weight in [0, 1] used to bias ranking
	// and retention. Zero means "unspecified" and is treated as neutral.
	Importance float64

	// SupersededBy holds the ID of the [MemoryEntry] that corrects this one,
	// forming a correction chain. Empty when this entry is not superseded.
	SupersededBy string

	// CreatedAt is when this entry was first written.
	CreatedAt time.Time

	// UpdatedAt is when this entry was last modified (correction, re-embed, ...).
	UpdatedAt time.Time
}

// Entity represents a named object in the knowledge graph.
type Entity struct {
	// ID is the unique, stable identifier for this entity (a UUID string).
	ID string

	// Type classifies the entity (e.g., "person", "project", "tool", "org").
	// Custom values are allowed.
	Type string

	// Name is the canonical, lowercased form used for equality and lookup.
	Name string

	// DisplayName is the first surface form this entity was observed with,
	// preserved for presentation.
	DisplayName string

	// Aliases are alternative surface forms this entity may be referred to by.
	Aliases []string

	// Attributes holds arbitrary key/value metadata.
	Attributes map[string]any

	// CreatedAt is when the entity was first added to the graph.
	CreatedAt time.Time

	// UpdatedAt is when the entity was last modified.
	UpdatedAt time.Time
}

// Relationship is a directed, typed edge between two entities.
type Relationship struct {
	// SourceID is the ID of the originating entity.
	SourceID string

	// TargetID is the ID of the destination entity.
	TargetID string

	// RelType is the semantic label of the relationship
	// (e.g., "works_with", "depends_on", "reports_to").
	RelType string

	// Weight is a decayable strength/confidence score in [0, 1].
	Weight float64

	// CreatedAt is when this relationship was first added.
	CreatedAt time.Time
}

// MemoryEntityLink associates a [MemoryEntry] with an [Entity] it mentions.
type MemoryEntityLink struct {
	// MemoryID is the linked memory entry's ID.
	MemoryID string

	// EntityID is the linked entity's ID.
	EntityID string

	// Confidence is the extractor's confidence that EntityID is genuinely
	// mentioned by the memory (0.0–1.0).
	Confidence float64
}

// TemporalFact anchors a memory entry to a point or interval in time,
// distinct from CreatedAt/UpdatedAt (which describe storage bookkeeping, not
// the fact's own validity window).
type TemporalFact struct {
	// MemoryID is the anchored memory entry's ID.
	MemoryID string

	// ValidFrom is when the fact became true. Zero means unknown/unbounded.
	ValidFrom time.Time

	// ValidTo is when the fact stopped being true. Zero means still valid.
	ValidTo time.Time
}

// SessionChunk is a single turn recorded against a session, used for
// recency-window recall and as the basis for smart-trigger / dedup
// bookkeeping.
type SessionChunk struct {
	// SessionID groups chunks belonging to the same conversation.
	SessionID string

	// Role identifies the speaker ("user", "assistant", "system").
	Role string

	// Content is the raw turn text.
	Content string

	// Timestamp is when this chunk was recorded.
	Timestamp time.Time
}

// ─────────────────────────────────────────────────────────────────────────────
// Filters and functional options
// ─────────────────────────────────────────────────────────────────────────────

// EntryFilter narrows a vector or full-text search to a subset of entries.
// All non-zero fields are applied as AND conditions.
type EntryFilter struct {
	// Tags restricts results to entries containing every listed tag.
	Tags []string

	// Scope restricts results to a single scope. Empty matches all scopes.
	Scope string

	// WorkspaceID restricts results to a single workspace. Empty matches all.
	WorkspaceID string

	// After filters entries created after this instant (exclusive).
	After time.Time

	// Before filters entries created before this instant (exclusive).
	Before time.Time

	// Sources restricts results to entries whose SourceType is in this list.
	// Empty matches all source types.
	Sources []string

	// IncludeSuperseded includes entries that have been corrected by a newer
	// entry. By default superseded entries are excluded.
	IncludeSuperseded bool
}

// EntityFilter specifies predicates for entity lookup queries.
// All non-zero fields are applied as AND conditions.
type EntityFilter struct {
	// Type restricts results to entities of this type. Empty matches all types.
	Type string

	// Name restricts results to entities whose name or alias contains this
	// substring (case-insensitive). Empty matches all names.
	Name string
}

// relQueryOptions accumulates options for [GraphStore.Relationships].
type relQueryOptions struct {
	relTypes     []string
	directionIn  bool
	directionOut bool
	limit        int
}

// RelQueryOpt is a functional option for [GraphStore.Relationships].
type RelQueryOpt func(*relQueryOptions)

// WithRelTypes restricts returned relationships to those whose RelType is in
// the provided list. An empty list (the default) returns all types.
func WithRelTypes(relTypes ...string) RelQueryOpt {
	return func(o *relQueryOptions) {
		o.relTypes = append(o.relTypes, relTypes...)
	}
}

// WithIncoming includes relationships where the queried entity is the target.
// By default only outgoing relationships are returned.
func WithIncoming() RelQueryOpt {
	return func(o *relQueryOptions) { o.directionIn = true }
}

// WithOutgoing includes relationships where the queried entity is the source.
// This is the default; calling it explicitly is a no-op.
func WithOutgoing() RelQueryOpt {
	return func(o *relQueryOptions) { o.directionOut = true }
}

// WithRelLimit caps the number of relationships returned.
// A value of 0 means the implementation may apply its own default.
func WithRelLimit(n int) RelQueryOpt {
	return func(o *relQueryOptions) { o.limit = n }
}

// traversalOptions accumulates options for [GraphStore.FindConnected].
type traversalOptions struct {
	relTypes  []string
	nodeTypes []string
	maxNodes  int
}

// TraversalOpt is a functional option for [GraphStore.FindConnected].
type TraversalOpt func(*traversalOptions)

// TraverseRelTypes restricts traversal to edges whose RelType is in the
// provided list. An empty list (the default) follows all edge types.
func TraverseRelTypes(relTypes ...string) TraversalOpt {
	return func(o *traversalOptions) {
		o.relTypes = append(o.relTypes, relTypes...)
	}
}

// TraverseNodeTypes restricts traversal to entity nodes whose Type is in the
// provided list. An empty list (the default) visits all node types.
func TraverseNodeTypes(nodeTypes ...string) TraversalOpt {
	return func(o *traversalOptions) {
		o.nodeTypes = append(o.nodeTypes, nodeTypes...)
	}
}

// TraverseMaxNodes caps the number of entities returned during a traversal.
// A value of 0 means the implementation may apply its own default.
func TraverseMaxNodes(n int) TraversalOpt {
	return func(o *traversalOptions) { o.maxNodes = n }
}

// ApplyRelQueryOpts folds opts into a fresh relQueryOptions value, applying
// the package defaults (outgoing-only) when no direction option is supplied.
func ApplyRelQueryOpts(opts ...RelQueryOpt) (relTypes []string, includeIn, includeOut bool, limit int) {
	var o relQueryOptions
	for _, opt := range opts {
		opt(&o)
	}
	includeOut = true
	includeIn = o.directionIn
	return o.relTypes, includeIn, includeOut, o.limit
}

// ApplyTraversalOpts folds opts into plain return values for implementations
// that build their own SQL/BFS logic rather than holding the options struct.
func ApplyTraversalOpts(opts ...TraversalOpt) (relTypes, nodeTypes []string, maxNodes int) {
	var o traversalOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o.relTypes, o.nodeTypes, o.maxNodes
}

// ─────────────────────────────────────────────────────────────────────────────
// Vector store
// ─────────────────────────────────────────────────────────────────────────────

// ScoredEntry pairs a retrieved entry with its similarity score.
// Higher Score values indicate higher similarity.
type ScoredEntry struct {
	Entry MemoryEntry
	Score float64
}

// VectorStore is the embedding-based similarity search layer over
// [MemoryEntry] content.
//
// Implementations must be safe for concurrent use.
type VectorStore interface {
	// Upsert stores entry, replacing any existing row with the same ID.
	Upsert(ctx context.Context, entry MemoryEntry) error

	// Search finds the topK entries whose embeddings are most similar to
	// embedding, filtered by filter. Results are ordered by descending Score.
	// Returns an empty (non-nil) slice when no entries match.
	Search(ctx context.Context, embedding []float32, topK int, filter EntryFilter) ([]ScoredEntry, error)

	// Get retrieves a single entry by ID. Returns (nil, nil) when absent.
	Get(ctx context.Context, id string) (*MemoryEntry, error)

	// Delete removes an entry by ID. Deleting a non-existent entry is not an
	// error.
	Delete(ctx context.Context, id string) error

	// List returns every entry matching filter, used by stats/health
	// reporting rather than by the recall pipeline. Returns an empty
	// (non-nil) slice when no entries match.
	List(ctx context.Context, filter EntryFilter) ([]MemoryEntry, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// Full-text store
// ─────────────────────────────────────────────────────────────────────────────

// FullTextStore is the keyword / full-text search layer over [MemoryEntry]
// content.
//
// Implementations must be safe for concurrent use.
type FullTextStore interface {
	// Index makes entry searchable by Search. Implementations typically share
	// underlying storage with [VectorStore.Upsert] and may be a no-op wrapper
	// around the same table.
	Index(ctx context.Context, entry MemoryEntry) error

	// Search performs full-text search over indexed entries, ranked by
	// relevance (descending Score). Returns an empty (non-nil) slice when no
	// entries match.
	Search(ctx context.Context, query string, topK int, filter EntryFilter) ([]ScoredEntry, error)

	// Delete removes an entry from the full-text index by ID.
	Delete(ctx context.Context, id string) error
}

// ─────────────────────────────────────────────────────────────────────────────
// Graph store
// ─────────────────────────────────────────────────────────────────────────────

// GraphStore is the knowledge-graph layer: a graph of named [Entity] nodes
// connected by typed [Relationship] edges, plus the [MemoryEntityLink]
// associations back to memory entries.
//
// Mutating operations that act on a primary key (AddEntity, AddRelationship)
// behave as upserts rather than returning an error on duplicates. Deletions
// of non-existent records are not errors.
//
// Implementations must be safe for concurrent use.
type GraphStore interface {
	// AddEntity upserts an entity into the graph.
	AddEntity(ctx context.Context, entity Entity) error

	// GetEntity retrieves an entity by its unique ID. Returns (nil, nil) when
	// the entity does not exist.
	GetEntity(ctx context.Context, id string) (*Entity, error)

	// FindEntities returns all entities matching filter.
	// Returns an empty (non-nil) slice when no entities match.
	FindEntities(ctx context.Context, filter EntityFilter) ([]Entity, error)

	// DeleteEntity removes the entity, its relationships, and its memory links
	// from the graph. Deleting a non-existent entity is not an error.
	DeleteEntity(ctx context.Context, id string) error

	// AddRelationship upserts a directed edge between two entities.
	AddRelationship(ctx context.Context, rel Relationship) error

	// Relationships returns relationships associated with entityID.
	// By default only outgoing edges are returned; use [WithIncoming] to
	// include inbound edges, and [WithRelTypes] to filter by edge type.
	Relationships(ctx context.Context, entityID string, opts ...RelQueryOpt) ([]Relationship, error)

	// LinkMemory records that memory entryID mentions entityID.
	LinkMemory(ctx context.Context, link MemoryEntityLink) error

	// MemoriesForEntities returns the IDs of every memory entry linked to any
	// of the given entity IDs.
	MemoriesForEntities(ctx context.Context, entityIDs []string) ([]string, error)

	// LinksForMemories returns every [MemoryEntityLink] whose MemoryID is in
	// memoryIDs. Used by bundle export to recover the entity mentions of a
	// set of memory entries. Returns an empty (non-nil) slice when none match.
	LinksForMemories(ctx context.Context, memoryIDs []string) ([]MemoryEntityLink, error)

	// FindConnected performs a breadth-first traversal from entityID up to
	// depth hops and returns all reachable entities (the start entity is
	// excluded), together with a per-entity hop-decayed relevance score.
	// Returns an empty (non-nil) slice when no neighbours are reachable.
	FindConnected(ctx context.Context, entityID string, depth int, opts ...TraversalOpt) ([]ScoredEntity, error)

	// Cleanup removes every memory_entity_links row referencing memoryID, then
	// deletes any entity left with zero remaining memory links and zero
	// incoming/outgoing relationships. Called synchronously by Forget so a
	// forgotten memory leaves no trace in the graph.
	Cleanup(ctx context.Context, memoryID string) error
}

// ScoredEntity pairs a graph entity with a hop-decayed relevance score.
type ScoredEntity struct {
	Entity Entity
	Score  float64
	Hops   int
}

// ─────────────────────────────────────────────────────────────────────────────
// Session index
// ─────────────────────────────────────────────────────────────────────────────

// SessionIndex is the time-ordered log of [SessionChunk] records for one or
// more conversation sessions.
//
// Implementations must be safe for concurrent use.
type SessionIndex interface {
	// Append adds a chunk to the session log.
	Append(ctx context.Context, chunk SessionChunk) error

	// Recent returns all chunks for sessionID recorded in the last duration,
	// in chronological order.
	Recent(ctx context.Context, sessionID string, duration time.Duration) ([]SessionChunk, error)

	// TurnCount returns the number of chunks recorded for sessionID.
	TurnCount(ctx context.Context, sessionID string) (int, error)
}
