package bundle

import (
	"context"
	"fmt"

	"github.com/agentmemory/memsvc/pkg/embedding"
	"github.com/agentmemory/memsvc/pkg/memory"
)

// Result summarizes the outcome of an Import.
type Result struct {
	EntriesImported  int
	EntitiesImported int
	LinksImported    int
	VectorsKept      bool
}

// ValidationError reports a bundle rejected before any write (e.g. a
// dimension mismatch on import).
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "bundle: import: " + e.Reason }

// Import writes every entry, entity, relationship, and link in b into the
// given stores, applying strategy to decide whether b's vectors are kept or
// discarded.
//
// When strategy discards vectors (Drop, or Auto with a mismatched embedding
// model) and embedder is non-nil, each entry is re-embedded from its
// Content before being written; if embedder is nil the entries are written
// with a nil embedding, degrading that entry to keyword/graph-only recall
// until a later re-embed pass.
func Import(ctx context.Context, vector memory.VectorStore, fulltext memory.FullTextStore, graph memory.GraphStore, embedder embedding.Provider, storeEmbedding EmbeddingInfo, b *Bundle, strategy Strategy) (Result, error) {
	if b == nil {
		return Result{}, &ValidationError{Reason: "nil bundle"}
	}
	if strategy == "" {
		strategy = Auto
	}

	keep, err := resolveKeep(strategy, b.Manifest.Embedding, storeEmbedding)
	if err != nil {
		return Result{}, err
	}

	entries := make([]memory.MemoryEntry, len(b.Entries))
	for i, e := range b.Entries {
		entries[i] = fromExportEntry(e)
		if !keep {
			entries[i].Embedding = nil
		}
	}

	if !keep && embedder != nil {
		for i := range entries {
			vec, err := embedder.Embed(ctx, entries[i].Content)
			if err != nil {
				return Result{}, fmt.Errorf("bundle: import: re-embed %s: %w", entries[i].ID, err)
			}
			entries[i].Embedding = vec
		}
	}

	for _, entry := range entries {
		if err := vector.Upsert(ctx, entry); err != nil {
			return Result{}, fmt.Errorf("bundle: import: vector upsert %s: %w", entry.ID, err)
		}
		if err := fulltext.Index(ctx, entry); err != nil {
			return Result{}, fmt.Errorf("bundle: import: fulltext index %s: %w", entry.ID, err)
		}
	}

	result := Result{EntriesImported: len(entries), VectorsKept: keep}

	if graph == nil {
		return result, nil
	}

	for _, e := range b.Entities {
		if err := graph.AddEntity(ctx, fromExportEntity(e)); err != nil {
			return result, fmt.Errorf("bundle: import: add entity %s: %w", e.ID, err)
		}
		result.EntitiesImported++
	}
	for _, r := range b.Relationships {
		if err := graph.AddRelationship(ctx, memory.Relationship{
			SourceID: r.SourceID, TargetID: r.TargetID, RelType: r.RelType, Weight: r.Weight, CreatedAt: r.CreatedAt,
		}); err != nil {
			return result, fmt.Errorf("bundle: import: add relationship %s->%s: %w", r.SourceID, r.TargetID, err)
		}
	}
	for _, l := range b.Links {
		if err := graph.LinkMemory(ctx, memory.MemoryEntityLink{
			MemoryID: l.MemoryID, EntityID: l.EntityID, Confidence: l.Confidence,
		}); err != nil {
			return result, fmt.Errorf("bundle: import: link memory %s->%s: %w", l.MemoryID, l.EntityID, err)
		}
		result.LinksImported++
	}

	return result, nil
}

// resolveKeep decides whether to keep a bundle's vectors, validating a Keep
// strategy's dimensions up front so mismatches are rejected before any
// write.
func resolveKeep(strategy Strategy, bundleEmbedding, storeEmbedding EmbeddingInfo) (bool, error) {
	switch strategy {
	case Keep:
		if storeEmbedding.Dimensions != 0 && bundleEmbedding.Dimensions != storeEmbedding.Dimensions {
			return false, &ValidationError{Reason: fmt.Sprintf(
				"keep strategy requires matching dimensions: bundle has %d, store expects %d",
				bundleEmbedding.Dimensions, storeEmbedding.Dimensions)}
		}
		return true, nil
	case Drop:
		return false, nil
	case Auto, "":
		return bundleEmbedding.ModelName == storeEmbedding.ModelName &&
			bundleEmbedding.Dimensions == storeEmbedding.Dimensions, nil
	default:
		return false, &ValidationError{Reason: "unknown strategy: " + string(strategy)}
	}
}

func fromExportEntry(e Entry) memory.MemoryEntry {
	return memory.MemoryEntry{
		ID: e.ID, Content: e.Content, Embedding: e.Embedding,
		SourceType: e.SourceType, SourceInstance: e.SourceInstance, Context: e.Context,
		Tags: e.Tags, Scope: e.Scope, WorkspaceID: e.WorkspaceID, Importance: e.Importance,
		SupersededBy: e.SupersededBy, CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt,
	}
}

func fromExportEntity(e Entity) memory.Entity {
	return memory.Entity{
		ID: e.ID, Type: e.Type, Name: e.Name, DisplayName: e.DisplayName,
		Aliases: e.Aliases, Attributes: e.Attributes, CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt,
	}
}
