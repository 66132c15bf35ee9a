package bundle

import (
	"context"
	"fmt"

	"github.com/agentmemory/memsvc/pkg/memory"
)

// Export builds a [Bundle] of every entry matching filter, plus the entity
// graph data reachable from those entries (the entities they mention and
// the relationships between those entities).
func Export(ctx context.Context, vector memory.VectorStore, graph memory.GraphStore, embedding EmbeddingInfo, filter memory.EntryFilter) (*Bundle, error) {
	entries, err := vector.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("bundle: export: list entries: %w", err)
	}

	b := &Bundle{
		Manifest: Manifest{SchemaVersion: SchemaVersion, Embedding: embedding},
		Entries:  make([]Entry, len(entries)),
	}
	ids := make([]string, len(entries))
	for i, e := range entries {
		b.Entries[i] = toExportEntry(e)
		ids[i] = e.ID
	}

	if graph == nil || len(ids) == 0 {
		return b, nil
	}

	links, err := graph.LinksForMemories(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("bundle: export: links for memories: %w", err)
	}
	b.Links = make([]Link, len(links))
	entityIDs := map[string]bool{}
	for i, l := range links {
		b.Links[i] = Link{MemoryID: l.MemoryID, EntityID: l.EntityID, Confidence: l.Confidence}
		entityIDs[l.EntityID] = true
	}

	for id := range entityIDs {
		entity, err := graph.GetEntity(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("bundle: export: get entity %s: %w", id, err)
		}
		if entity == nil {
			continue
		}
		b.Entities = append(b.Entities, toExportEntity(*entity))

		rels, err := graph.Relationships(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("bundle: export: relationships for %s: %w", id, err)
		}
		for _, r := range rels {
			if !entityIDs[r.TargetID] {
				continue
			}
			b.Relationships = append(b.Relationships, Relationship{
				SourceID: r.SourceID, TargetID: r.TargetID, RelType: r.RelType,
				Weight: r.Weight, CreatedAt: r.CreatedAt,
			})
		}
	}

	return b, nil
}

func toExportEntry(e memory.MemoryEntry) Entry {
	return Entry{
		ID: e.ID, Content: e.Content, Embedding: e.Embedding,
		SourceType: e.SourceType, SourceInstance: e.SourceInstance, Context: e.Context,
		Tags: e.Tags, Scope: e.Scope, WorkspaceID: e.WorkspaceID, Importance: e.Importance,
		SupersededBy: e.SupersededBy, CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt,
	}
}

func toExportEntity(e memory.Entity) Entity {
	return Entity{
		ID: e.ID, Type: e.Type, Name: e.Name, DisplayName: e.DisplayName,
		Aliases: e.Aliases, Attributes: e.Attributes, CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt,
	}
}
