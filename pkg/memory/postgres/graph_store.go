package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agentmemory/memsvc/pkg/memory"
)

// GraphStoreImpl is the knowledge-graph layer backed by PostgreSQL entities,
// relationships, and memory_entity_links tables.
//
// Obtain one via [Store.Graph] rather than constructing directly.
// All methods are safe for concurrent use.
type GraphStoreImpl struct {
	pool *pgxpool.Pool
}

// AddEntity implements [memory.GraphStore]. It upserts an entity into the
// entities table, completely replacing an existing row with the same ID and
// refreshing its updated_at timestamp.
func (s *GraphStoreImpl) AddEntity(ctx context.Context, entity memory.Entity) error {
	attrsJSON, err := json.Marshal(entity.Attributes)
	if err != nil {
		return fmt.Errorf("graph store: marshal attributes: %w", err)
	}

	const q = `
		INSERT INTO entities (id, type, name, display_name, aliases, attributes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (id) DO UPDATE SET
		    type         = EXCLUDED.type,
		    name         = EXCLUDED.name,
		    display_name = EXCLUDED.display_name,
		    aliases      = EXCLUDED.aliases,
		    attributes   = EXCLUDED.attributes,
		    updated_at   = now()`

	_, err = s.pool.Exec(ctx, q, entity.ID, entity.Type, entity.Name, entity.DisplayName, entity.Aliases, attrsJSON)
	if err != nil {
		return fmt.Errorf("graph store: add entity: %w", err)
	}
	return nil
}

// GetEntity implements [memory.GraphStore]. Returns (nil, nil) when the
// entity does not exist.
func (s *GraphStoreImpl) GetEntity(ctx context.Context, id string) (*memory.Entity, error) {
	const q = `
		SELECT id, type, name, display_name, aliases, attributes, created_at, updated_at
		FROM   entities
		WHERE  id = $1`

	rows, err := s.pool.Query(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("graph store: get entity: %w", err)
	}
	entities, err := collectEntities(rows)
	if err != nil {
		return nil, fmt.Errorf("graph store: get entity: %w", err)
	}
	if len(entities) == 0 {
		return nil, nil
	}
	return &entities[0], nil
}

// FindEntities implements [memory.GraphStore]. All non-zero filter fields are
// applied as AND conditions.
func (s *GraphStoreImpl) FindEntities(ctx context.Context, filter memory.EntityFilter) ([]memory.Entity, error) {
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var conditions []string
	if filter.Type != "" {
		conditions = append(conditions, "type = "+next(filter.Type))
	}
	if filter.Name != "" {
		conditions = append(conditions, "(name ILIKE "+next("%"+filter.Name+"%")+" OR EXISTS (SELECT 1 FROM unnest(aliases) a WHERE a ILIKE "+next("%"+filter.Name+"%")+"))")
	}

	q := "SELECT id, type, name, display_name, aliases, attributes, created_at, updated_at\nFROM   entities"
	if len(conditions) > 0 {
		q += "\nWHERE " + strings.Join(conditions, "\n  AND ")
	}
	q += "\nORDER BY name"

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("graph store: find entities: %w", err)
	}
	result, err := collectEntities(rows)
	if err != nil {
		return nil, fmt.Errorf("graph store: find entities: %w", err)
	}
	return result, nil
}

// DeleteEntity implements [memory.GraphStore]. Relationships and memory
// links are removed via ON DELETE CASCADE. Deleting a non-existent entity is
// not an error.
func (s *GraphStoreImpl) DeleteEntity(ctx context.Context, id string) error {
	const q = `DELETE FROM entities WHERE id = $1`
	if _, err := s.pool.Exec(ctx, q, id); err != nil {
		return fmt.Errorf("graph store: delete entity: %w", err)
	}
	return nil
}

// AddRelationship implements [memory.GraphStore]. If the edge (SourceID,
// TargetID, RelType) already exists its Weight is replaced.
func (s *GraphStoreImpl) AddRelationship(ctx context.Context, rel memory.Relationship) error {
	const q = `
		INSERT INTO relationships (source_id, target_id, rel_type, weight, created_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (source_id, target_id, rel_type) DO UPDATE SET
		    weight = EXCLUDED.weight`

	_, err := s.pool.Exec(ctx, q, rel.SourceID, rel.TargetID, rel.RelType, rel.Weight)
	if err != nil {
		return fmt.Errorf("graph store: add relationship: %w", err)
	}
	return nil
}

// Relationships implements [memory.GraphStore]. By default only outgoing
// edges are returned; use [memory.WithIncoming] to include inbound edges and
// [memory.WithRelTypes] to filter by edge type.
func (s *GraphStoreImpl) Relationships(ctx context.Context, entityID string, opts ...memory.RelQueryOpt) ([]memory.Relationship, error) {
	relTypes, dirIn, dirOut, limit := memory.ApplyRelQueryOpts(opts...)
	if !dirIn && !dirOut {
		dirOut = true
	}

	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var dirParts []string
	if dirOut {
		dirParts = append(dirParts, "source_id = "+next(entityID))
	}
	if dirIn {
		dirParts = append(dirParts, "target_id = "+next(entityID))
	}
	conditions := []string{"(" + strings.Join(dirParts, " OR ") + ")"}

	if len(relTypes) > 0 {
		conditions = append(conditions, "rel_type = ANY("+next(relTypes)+"::text[])")
	}

	q := "SELECT source_id, target_id, rel_type, weight, created_at\n" +
		"FROM   relationships\n" +
		"WHERE  " + strings.Join(conditions, "\n  AND ") + "\n" +
		"ORDER  BY created_at"

	if limit > 0 {
		args = append(args, limit)
		q += fmt.Sprintf("\nLIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("graph store: relationships: %w", err)
	}
	result, err := collectRelationships(rows)
	if err != nil {
		return nil, fmt.Errorf("graph store: relationships: %w", err)
	}
	return result, nil
}

// LinkMemory implements [memory.GraphStore]. It upserts the association
// between a memory entry and an entity mention.
func (s *GraphStoreImpl) LinkMemory(ctx context.Context, link memory.MemoryEntityLink) error {
	const q = `
		INSERT INTO memory_entity_links (memory_id, entity_id, confidence)
		VALUES ($1, $2, $3)
		ON CONFLICT (memory_id, entity_id) DO UPDATE SET
		    confidence = EXCLUDED.confidence`

	_, err := s.pool.Exec(ctx, q, link.MemoryID, link.EntityID, link.Confidence)
	if err != nil {
		return fmt.Errorf("graph store: link memory: %w", err)
	}
	return nil
}

// MemoriesForEntities implements [memory.GraphStore].
func (s *GraphStoreImpl) MemoriesForEntities(ctx context.Context, entityIDs []string) ([]string, error) {
	if len(entityIDs) == 0 {
		return []string{}, nil
	}
	const q = `
		SELECT DISTINCT memory_id
		FROM   memory_entity_links
		WHERE  entity_id = ANY($1::text[])`

	rows, err := s.pool.Query(ctx, q, entityIDs)
	if err != nil {
		return nil, fmt.Errorf("graph store: memories for entities: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("graph store: memories for entities: scan: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// LinksForMemories implements [memory.GraphStore].
func (s *GraphStoreImpl) LinksForMemories(ctx context.Context, memoryIDs []string) ([]memory.MemoryEntityLink, error) {
	if len(memoryIDs) == 0 {
		return []memory.MemoryEntityLink{}, nil
	}
	const q = `
		SELECT memory_id, entity_id, confidence
		FROM   memory_entity_links
		WHERE  memory_id = ANY($1::text[])`

	rows, err := s.pool.Query(ctx, q, memoryIDs)
	if err != nil {
		return nil, fmt.Errorf("graph store: links for memories: %w", err)
	}
	links, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.MemoryEntityLink, error) {
		var l memory.MemoryEntityLink
		if err := row.Scan(&l.MemoryID, &l.EntityID, &l.Confidence); err != nil {
			return memory.MemoryEntityLink{}, err
		}
		return l, nil
	})
	if err != nil {
		return nil, fmt.Errorf("graph store: links for memories: scan: %w", err)
	}
	if links == nil {
		links = []memory.MemoryEntityLink{}
	}
	return links, nil
}

// FindConnected implements [memory.GraphStore]. It performs a breadth-first
// traversal from entityID up to depth hops using a PostgreSQL recursive CTE
// and returns all reachable entities (the start entity excluded) scored by
// hop-decayed relevance (score = 1 / (1 + hops)).
//
// Cycles are prevented by tracking visited node IDs in a PostgreSQL text
// array. [memory.TraversalOpt] options restrict which edge or node types are
// followed and cap the result set size.
func (s *GraphStoreImpl) FindConnected(ctx context.Context, entityID string, depth int, opts ...memory.TraversalOpt) ([]memory.ScoredEntity, error) {
	relTypes, nodeTypes, maxNodes := memory.ApplyTraversalOpts(opts...)

	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	startArg := next(entityID) // $1
	depthArg := next(depth)    // $2

	relTypeFilter := ""
	if len(relTypes) > 0 {
		relTypeFilter = "\n           AND rel.rel_type = ANY(" + next(relTypes) + "::text[])"
	}

	nodeTypeFilter := ""
	if len(nodeTypes) > 0 {
		nodeTypeFilter = "\n           AND e.type = ANY(" + next(nodeTypes) + "::text[])"
	}

	// dedup picks the smallest-depth row per entity (DISTINCT ON requires its
	// own ORDER BY id, depth to do so); the outer SELECT then re-orders the
	// deduplicated rows by (depth, name) per spec §4.4 ("ties broken by
	// smallest depth then lexicographic name").
	q := fmt.Sprintf(`
		WITH RECURSIVE reachable AS (
		    SELECT id,
		           ARRAY[id] AS visited,
		           0          AS depth
		    FROM   entities
		    WHERE  id = %s

		    UNION ALL

		    SELECT e.id,
		           r.visited || e.id,
		           r.depth + 1
		    FROM   reachable r
		    JOIN   relationships rel ON rel.source_id = r.id
		    JOIN   entities      e   ON e.id = rel.target_id
		    WHERE  r.depth < %s
		      AND  NOT (e.id = ANY(r.visited))%s%s
		),
		dedup AS (
		    SELECT DISTINCT ON (e.id)
		           e.id, e.type, e.name, e.display_name, e.aliases, e.attributes, e.created_at, e.updated_at,
		           rc.depth
		    FROM   reachable rc
		    JOIN   entities  e  ON e.id = rc.id
		    WHERE  rc.id != %s
		    ORDER  BY e.id, rc.depth
		)
		SELECT id, type, name, display_name, aliases, attributes, created_at, updated_at, depth
		FROM   dedup
		ORDER  BY depth, name`, startArg, depthArg, relTypeFilter, nodeTypeFilter, startArg)

	if maxNodes > 0 {
		args = append(args, maxNodes)
		q += fmt.Sprintf("\nLIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("graph store: find connected: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.ScoredEntity, error) {
		var (
			se        memory.ScoredEntity
			attrsJSON []byte
		)
		if err := row.Scan(
			&se.Entity.ID, &se.Entity.Type, &se.Entity.Name, &se.Entity.DisplayName, &se.Entity.Aliases,
			&attrsJSON, &se.Entity.CreatedAt, &se.Entity.UpdatedAt, &se.Hops,
		); err != nil {
			return memory.ScoredEntity{}, err
		}
		if len(attrsJSON) > 0 {
			if err := json.Unmarshal(attrsJSON, &se.Entity.Attributes); err != nil {
				return memory.ScoredEntity{}, fmt.Errorf("unmarshal entity attributes: %w", err)
			}
		}
		if se.Entity.Attributes == nil {
			se.Entity.Attributes = map[string]any{}
		}
		se.Score = 1.0 / float64(1+se.Hops)
		return se, nil
	})
	if err != nil {
		return nil, fmt.Errorf("graph store: find connected: scan: %w", err)
	}
	if results == nil {
		results = []memory.ScoredEntity{}
	}
	return results, nil
}

// Cleanup implements [memory.GraphStore]. It removes every
// memory_entity_links row for memoryID, then deletes any entity left
// with zero remaining memory links and zero incoming/outgoing relationships,
// in a single round trip.
func (s *GraphStoreImpl) Cleanup(ctx context.Context, memoryID string) error {
	const q = `
		WITH removed AS (
		    DELETE FROM memory_entity_links
		    WHERE  memory_id = $1
		    RETURNING entity_id
		)
		DELETE FROM entities e
		WHERE  e.id IN (SELECT DISTINCT entity_id FROM removed)
		  AND  NOT EXISTS (SELECT 1 FROM memory_entity_links l WHERE l.entity_id = e.id)
		  AND  NOT EXISTS (SELECT 1 FROM relationships r WHERE r.source_id = e.id OR r.target_id = e.id)`

	if _, err := s.pool.Exec(ctx, q, memoryID); err != nil {
		return fmt.Errorf("graph store: cleanup: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Private scan helpers
// ─────────────────────────────────────────────────────────────────────────────

// collectEntities scans pgx rows into a slice of Entity values.
func collectEntities(rows pgx.Rows) ([]memory.Entity, error) {
	entities, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.Entity, error) {
		var (
			e         memory.Entity
			attrsJSON []byte
		)
		if err := row.Scan(
			&e.ID, &e.Type, &e.Name, &e.DisplayName, &e.Aliases, &attrsJSON, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return memory.Entity{}, err
		}
		if len(attrsJSON) > 0 {
			if err := json.Unmarshal(attrsJSON, &e.Attributes); err != nil {
				return memory.Entity{}, fmt.Errorf("unmarshal entity attributes: %w", err)
			}
		}
		if e.Attributes == nil {
			e.Attributes = map[string]any{}
		}
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	if entities == nil {
		entities = []memory.Entity{}
	}
	return entities, nil
}

// collectRelationships scans pgx rows into a slice of Relationship values.
func collectRelationships(rows pgx.Rows) ([]memory.Relationship, error) {
	rels, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.Relationship, error) {
		var r memory.Relationship
		if err := row.Scan(&r.SourceID, &r.TargetID, &r.RelType, &r.Weight, &r.CreatedAt); err != nil {
			return memory.Relationship{}, err
		}
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	if rels == nil {
		rels = []memory.Relationship{}
	}
	return rels, nil
}

// isNoRows reports whether err is the pgx "no rows" sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
