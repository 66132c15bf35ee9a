// Package bundle implements the self-describing export/import container of
// spec §6.2: a manifest plus memory entries plus the entity/relationship
// graph data keyed by memory ID, serialized with encoding/json in the same
// idiom pkg/memory/postgres uses for its own JSONB columns.
package bundle

import "time"

// SchemaVersion is the manifest schema_version this package reads and
// writes. Bumped on any incompatible change to the Bundle shape.
const SchemaVersion = "1.0.0"

// EmbeddingInfo describes the embedding model a bundle's vectors were
// produced with.
type EmbeddingInfo struct {
	ModelName  string `json:"model_name"`
	Dimensions int    `json:"dimensions"`
	Provider   string `json:"provider"`
}

// Manifest is a bundle's self-describing header.
type Manifest struct {
	SchemaVersion string        `json:"schema_version"`
	Embedding     EmbeddingInfo `json:"embedding"`
}

// Entry mirrors [memory.MemoryEntry] for serialization.
type Entry struct {
	ID             string    `json:"id"`
	Content        string    `json:"content"`
	Embedding      []float32 `json:"embedding,omitempty"`
	SourceType     string    `json:"source_type"`
	SourceInstance string    `json:"source_instance"`
	Context        string    `json:"context,omitempty"`
	Tags           []string  `json:"tags,omitempty"`
	Scope          string    `json:"scope,omitempty"`
	WorkspaceID    string    `json:"workspace_id,omitempty"`
	Importance     float64   `json:"importance,omitempty"`
	SupersededBy   string    `json:"superseded_by,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Entity mirrors [memory.Entity] for serialization.
type Entity struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	DisplayName string         `json:"display_name"`
	Aliases     []string       `json:"aliases,omitempty"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Relationship mirrors [memory.Relationship] for serialization.
type Relationship struct {
	SourceID  string    `json:"source_id"`
	TargetID  string    `json:"target_id"`
	RelType   string    `json:"rel_type"`
	Weight    float64   `json:"weight"`
	CreatedAt time.Time `json:"created_at"`
}

// Link mirrors [memory.MemoryEntityLink] for serialization, associating an
// entry with an entity it mentions.
type Link struct {
	MemoryID   string  `json:"memory_id"`
	EntityID   string  `json:"entity_id"`
	Confidence float64 `json:"confidence"`
}

// Bundle is the full exported container: a manifest plus every entry and
// the graph data reachable from those entries, keyed by memory ID via
// Links.
type Bundle struct {
	Manifest      Manifest       `json:"manifest"`
	Entries       []Entry        `json:"entries"`
	Entities      []Entity       `json:"entities,omitempty"`
	Relationships []Relationship `json:"relationships,omitempty"`
	Links         []Link         `json:"links,omitempty"`
}

// Strategy selects how Import handles a bundle's embeddings relative to the
// importing store's configured embedding model.
type Strategy string

const (
	// Keep imports vectors as-is. The bundle is rejected before any write
	// when its dimensions differ from the importing store's (when the store
	// reports a non-zero dimension); the model name is not compared.
	Keep Strategy = "keep"

	// Drop discards vectors on import; the caller is responsible for
	// re-embedding (e.g. via [Result.NeedsReembed]).
	Drop Strategy = "drop"

	// Auto keeps vectors iff (model_name, dimensions) match the importing
	// store's embedding configuration, otherwise drops them. This is the
	// default strategy.
	Auto Strategy = "auto"
)
