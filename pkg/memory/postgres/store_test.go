package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/agentmemory/memsvc/pkg/memory"
	"github.com/agentmemory/memsvc/pkg/memory/postgres"
)

const testEmbeddingDim = 4

// testDSN returns the test database DSN from the environment, or skips the
// test if MEMSVC_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("MEMSVC_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("MEMSVC_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestStore creates a fresh [postgres.Store] with a clean schema.
// It calls t.Cleanup to close the store when the test finishes.
func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	cleanPool := mustPool(t, ctx, dsn)
	t.Cleanup(cleanPool.Close)
	dropSchema(t, ctx, cleanPool)

	store, err := postgres.NewStore(ctx, dsn, testEmbeddingDim)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

// mustPool opens a pgxpool with pgvector types registered (needed so the
// HNSW index doesn't refuse our connection during dropSchema).
func mustPool(t *testing.T, ctx context.Context, dsn string) *pgxpool.Pool {
	t.Helper()
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_ = pgxvec.RegisterTypes(ctx, conn) // best-effort: pgvector may not be installed yet
		return nil
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	return pool
}

// dropSchema removes all tables created by Migrate in reverse dependency order.
func dropSchema(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	for _, stmt := range []string{
		"DROP TABLE IF EXISTS fact_anchors CASCADE",
		"DROP TABLE IF EXISTS learned_expansions CASCADE",
		"DROP TABLE IF EXISTS feedback_weights CASCADE",
		"DROP TABLE IF EXISTS query_cache_entries CASCADE",
		"DROP TABLE IF EXISTS session_chunks CASCADE",
		"DROP TABLE IF EXISTS temporal_facts CASCADE",
		"DROP TABLE IF EXISTS memory_entity_links CASCADE",
		"DROP TABLE IF EXISTS relationships CASCADE",
		"DROP TABLE IF EXISTS entities CASCADE",
		"DROP TABLE IF EXISTS memory_entries CASCADE",
	} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("dropSchema %q: %v", stmt, err)
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Vector store
// ─────────────────────────────────────────────────────────────────────────────

func TestVectorStore_UpsertGetSearchDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	v := store.Vector()

	now := time.Now()
	entries := []memory.MemoryEntry{
		{
			ID: "mem-1", Content: "The deploy pipeline uses canary releases.",
			Embedding: []float32{1, 0, 0, 0}, SourceType: "user_explicit", Scope: "team",
			WorkspaceID: "ws-1", Tags: []string{"infra"}, CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: "mem-2", Content: "The on-call rotation changed to weekly.",
			Embedding: []float32{0, 1, 0, 0}, SourceType: "auto_capture", Scope: "team",
			WorkspaceID: "ws-1", CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: "mem-3", Content: "A memory in a different workspace.",
			Embedding: []float32{0, 0, 1, 0}, SourceType: "user_explicit", Scope: "team",
			WorkspaceID: "ws-2", CreatedAt: now, UpdatedAt: now,
		},
	}
	for _, e := range entries {
		if err := v.Upsert(ctx, e); err != nil {
			t.Fatalf("Upsert %s: %v", e.ID, err)
		}
	}

	got, err := v.Get(ctx, "mem-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.Content != entries[0].Content {
		t.Fatalf("Get: want %q, got %+v", entries[0].Content, got)
	}

	missing, err := v.Get(ctx, "does-not-exist")
	if err != nil {
		t.Fatalf("Get missing: %v", err)
	}
	if missing != nil {
		t.Errorf("Get missing: want nil, got %+v", missing)
	}

	results, err := v.Search(ctx, []float32{1, 0, 0, 0}, 10, memory.EntryFilter{WorkspaceID: "ws-1"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("Search workspace scope: want 2, got %d", len(results))
	}
	if len(results) > 0 && results[0].Entry.ID != "mem-1" {
		t.Errorf("Search: closest entry want mem-1, got %s (score %.4f)", results[0].Entry.ID, results[0].Score)
	}

	tagged, err := v.Search(ctx, []float32{1, 0, 0, 0}, 10, memory.EntryFilter{Tags: []string{"infra"}})
	if err != nil {
		t.Fatalf("Search tags: %v", err)
	}
	if len(tagged) != 1 || tagged[0].Entry.ID != "mem-1" {
		t.Errorf("Search tags: want [mem-1], got %v", entryIDs(tagged))
	}

	// Upsert replaces the row.
	updated := entries[0]
	updated.Content = "The deploy pipeline now uses blue/green releases."
	if err := v.Upsert(ctx, updated); err != nil {
		t.Fatalf("Upsert replace: %v", err)
	}
	after, _ := v.Get(ctx, "mem-1")
	if after.Content != updated.Content {
		t.Errorf("Upsert replace: want %q, got %q", updated.Content, after.Content)
	}

	list, err := v.List(ctx, memory.EntryFilter{WorkspaceID: "ws-1"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("List: want 2, got %d", len(list))
	}

	if err := v.Delete(ctx, "mem-2"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	afterDelete, _ := v.Get(ctx, "mem-2")
	if afterDelete != nil {
		t.Error("Delete: entry still present")
	}
	if err := v.Delete(ctx, "never-existed"); err != nil {
		t.Errorf("Delete non-existent: unexpected error: %v", err)
	}
}

func TestVectorStore_SupersededFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	v := store.Vector()

	now := time.Now()
	original := memory.MemoryEntry{
		ID: "orig-1", Content: "The API key rotates monthly.", Embedding: []float32{1, 0, 0, 0},
		SourceType: "user_explicit", CreatedAt: now, UpdatedAt: now,
	}
	if err := v.Upsert(ctx, original); err != nil {
		t.Fatalf("Upsert original: %v", err)
	}
	original.SupersededBy = "corr-1"
	if err := v.Upsert(ctx, original); err != nil {
		t.Fatalf("Upsert mark superseded: %v", err)
	}

	results, err := v.Search(ctx, []float32{1, 0, 0, 0}, 10, memory.EntryFilter{})
	if err != nil {
		t.Fatalf("Search default: %v", err)
	}
	for _, r := range results {
		if r.Entry.ID == "orig-1" {
			t.Error("Search default: superseded entry should be excluded")
		}
	}

	withSuperseded, err := v.Search(ctx, []float32{1, 0, 0, 0}, 10, memory.EntryFilter{IncludeSuperseded: true})
	if err != nil {
		t.Fatalf("Search include superseded: %v", err)
	}
	found := false
	for _, r := range withSuperseded {
		if r.Entry.ID == "orig-1" {
			found = true
		}
	}
	if !found {
		t.Error("Search IncludeSuperseded: expected orig-1 present")
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Full-text store
// ─────────────────────────────────────────────────────────────────────────────

func TestFullTextStore_Search(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	ft := store.FullText()

	now := time.Now()
	for _, e := range []memory.MemoryEntry{
		{ID: "ft-1", Content: "The dragon hoards treasure in the mountain.", CreatedAt: now, UpdatedAt: now},
		{ID: "ft-2", Content: "We should negotiate with the goblin tribe.", CreatedAt: now, UpdatedAt: now},
		{ID: "ft-3", Content: "The prophecy speaks of a chosen hero.", CreatedAt: now, UpdatedAt: now},
	} {
		if err := ft.Index(ctx, e); err != nil {
			t.Fatalf("Index %s: %v", e.ID, err)
		}
	}

	tests := []struct {
		name      string
		query     string
		wantCount int
		wantID    string
	}{
		{"dragon treasure", "dragon treasure", 1, "ft-1"},
		{"goblin", "goblin", 1, "ft-2"},
		{"no match", "wizard tower", 0, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			results, err := ft.Search(ctx, tc.query, 10, memory.EntryFilter{})
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if len(results) != tc.wantCount {
				t.Errorf("want %d results, got %d", tc.wantCount, len(results))
			}
			if tc.wantID != "" && len(results) > 0 && results[0].Entry.ID != tc.wantID {
				t.Errorf("want first result %s, got %s", tc.wantID, results[0].Entry.ID)
			}
		})
	}

	if err := ft.Delete(ctx, "ft-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	gone, err := ft.Search(ctx, "dragon", 10, memory.EntryFilter{})
	if err != nil {
		t.Fatalf("Search after delete: %v", err)
	}
	if len(gone) != 0 {
		t.Errorf("Search after delete: want 0, got %d", len(gone))
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Graph store — entities
// ─────────────────────────────────────────────────────────────────────────────

func TestGraphStore_EntityCRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	g := store.Graph()

	entity := memory.Entity{
		ID: "ent-1", Type: "person", Name: "alice", DisplayName: "Alice",
		Attributes: map[string]any{"role": "engineer"},
	}
	if err := g.AddEntity(ctx, entity); err != nil {
		t.Fatalf("AddEntity: %v", err)
	}

	got, err := g.GetEntity(ctx, entity.ID)
	if err != nil {
		t.Fatalf("GetEntity: %v", err)
	}
	if got == nil || got.DisplayName != "Alice" {
		t.Fatalf("GetEntity: want Alice, got %+v", got)
	}
	if got.Attributes["role"] != "engineer" {
		t.Errorf("Attributes: want role=engineer, got %v", got.Attributes)
	}

	// Upsert via AddEntity replaces attributes entirely.
	entity.Attributes = map[string]any{"role": "staff engineer", "team": "platform"}
	if err := g.AddEntity(ctx, entity); err != nil {
		t.Fatalf("AddEntity upsert: %v", err)
	}
	updated, _ := g.GetEntity(ctx, entity.ID)
	if updated.Attributes["team"] != "platform" {
		t.Errorf("AddEntity upsert: want team=platform, got %v", updated.Attributes)
	}

	missing, err := g.GetEntity(ctx, "does-not-exist")
	if err != nil {
		t.Fatalf("GetEntity missing: unexpected error: %v", err)
	}
	if missing != nil {
		t.Errorf("GetEntity missing: want nil, got %+v", missing)
	}

	if err := g.DeleteEntity(ctx, entity.ID); err != nil {
		t.Fatalf("DeleteEntity: %v", err)
	}
	afterDelete, _ := g.GetEntity(ctx, entity.ID)
	if afterDelete != nil {
		t.Error("DeleteEntity: entity still present after delete")
	}
	if err := g.DeleteEntity(ctx, "never-existed"); err != nil {
		t.Errorf("DeleteEntity non-existent: unexpected error: %v", err)
	}
}

func TestGraphStore_FindEntities(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	g := store.Graph()

	for _, e := range []memory.Entity{
		{ID: "loc-hq", Type: "location", Name: "hq office"},
		{ID: "per-elara", Type: "person", Name: "elara", DisplayName: "Elara", Aliases: []string{"el"}},
		{ID: "per-thorin", Type: "person", Name: "thorin"},
		{ID: "proj-atlas", Type: "project", Name: "atlas"},
	} {
		mustAddEntity(t, ctx, g, e)
	}

	tests := []struct {
		name      string
		filter    memory.EntityFilter
		wantID    string
		wantCount int
	}{
		{"by type person", memory.EntityFilter{Type: "person"}, "", 2},
		{"by name substring", memory.EntityFilter{Name: "Elara"}, "per-elara", 1},
		{"by alias substring", memory.EntityFilter{Name: "el"}, "per-elara", 1},
		{"no match", memory.EntityFilter{Type: "faction"}, "", 0},
		{"empty filter", memory.EntityFilter{}, "", 4},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			results, err := g.FindEntities(ctx, tc.filter)
			if err != nil {
				t.Fatalf("FindEntities: %v", err)
			}
			if len(results) != tc.wantCount {
				t.Errorf("want %d, got %d", tc.wantCount, len(results))
			}
			if tc.wantID != "" && !containsEntity(results, tc.wantID) {
				t.Errorf("expected entity %q not found in %v", tc.wantID, entityIDs(results))
			}
		})
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Graph store — relationships
// ─────────────────────────────────────────────────────────────────────────────

func TestGraphStore_RelationshipCRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	g := store.Graph()

	alice := memory.Entity{ID: "rel-alice", Type: "person", Name: "alice"}
	platform := memory.Entity{ID: "rel-platform", Type: "team", Name: "platform"}
	atlas := memory.Entity{ID: "rel-atlas", Type: "project", Name: "atlas"}
	for _, e := range []memory.Entity{alice, platform, atlas} {
		mustAddEntity(t, ctx, g, e)
	}

	rels := []memory.Relationship{
		{SourceID: alice.ID, TargetID: platform.ID, RelType: "member_of", Weight: 0.9},
		{SourceID: alice.ID, TargetID: atlas.ID, RelType: "owns", Weight: 0.8},
	}
	for _, r := range rels {
		if err := g.AddRelationship(ctx, r); err != nil {
			t.Fatalf("AddRelationship: %v", err)
		}
	}

	out, err := g.Relationships(ctx, alice.ID)
	if err != nil {
		t.Fatalf("Relationships: %v", err)
	}
	if len(out) != 2 {
		t.Errorf("outgoing: want 2, got %d", len(out))
	}

	ownsOnly, err := g.Relationships(ctx, alice.ID, memory.WithRelTypes("owns"))
	if err != nil {
		t.Fatalf("WithRelTypes: %v", err)
	}
	if len(ownsOnly) != 1 {
		t.Errorf("WithRelTypes: want 1, got %d", len(ownsOnly))
	}
	if len(ownsOnly) > 0 && ownsOnly[0].Weight != 0.8 {
		t.Errorf("Weight: want 0.8, got %v", ownsOnly[0].Weight)
	}

	inc, err := g.Relationships(ctx, platform.ID, memory.WithIncoming())
	if err != nil {
		t.Fatalf("incoming: %v", err)
	}
	if len(inc) != 1 {
		t.Errorf("incoming: want 1, got %d", len(inc))
	}

	// Upsert: replace weight on the same edge.
	updated := rels[0]
	updated.Weight = 0.5
	if err := g.AddRelationship(ctx, updated); err != nil {
		t.Fatalf("AddRelationship upsert: %v", err)
	}
	got, _ := g.Relationships(ctx, alice.ID, memory.WithRelTypes("member_of"))
	if len(got) > 0 && got[0].Weight != 0.5 {
		t.Errorf("upsert: want weight 0.5, got %v", got[0].Weight)
	}

	limited, err := g.Relationships(ctx, alice.ID, memory.WithRelLimit(1))
	if err != nil {
		t.Fatalf("WithRelLimit: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("WithRelLimit(1): want 1, got %d", len(limited))
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Graph store — memory links and traversal
// ─────────────────────────────────────────────────────────────────────────────

func TestGraphStore_MemoryLinks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	g := store.Graph()
	v := store.Vector()

	now := time.Now()
	entries := []memory.MemoryEntry{
		{ID: "link-mem-1", Content: "Alice prefers async standups.", CreatedAt: now, UpdatedAt: now},
		{ID: "link-mem-2", Content: "Alice owns the atlas migration.", CreatedAt: now, UpdatedAt: now},
	}
	for _, e := range entries {
		if err := v.Upsert(ctx, e); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	alice := memory.Entity{ID: "link-alice", Type: "person", Name: "alice"}
	mustAddEntity(t, ctx, g, alice)

	if err := g.LinkMemory(ctx, memory.MemoryEntityLink{MemoryID: "link-mem-1", EntityID: alice.ID, Confidence: 0.95}); err != nil {
		t.Fatalf("LinkMemory: %v", err)
	}
	if err := g.LinkMemory(ctx, memory.MemoryEntityLink{MemoryID: "link-mem-2", EntityID: alice.ID, Confidence: 0.8}); err != nil {
		t.Fatalf("LinkMemory: %v", err)
	}

	ids, err := g.MemoriesForEntities(ctx, []string{alice.ID})
	if err != nil {
		t.Fatalf("MemoriesForEntities: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("MemoriesForEntities: want 2, got %d", len(ids))
	}

	links, err := g.LinksForMemories(ctx, []string{"link-mem-1"})
	if err != nil {
		t.Fatalf("LinksForMemories: %v", err)
	}
	if len(links) != 1 || links[0].Confidence != 0.95 {
		t.Errorf("LinksForMemories: want 1 link with confidence 0.95, got %+v", links)
	}

	empty, err := g.MemoriesForEntities(ctx, nil)
	if err != nil {
		t.Fatalf("MemoriesForEntities empty: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("MemoriesForEntities empty: want 0, got %d", len(empty))
	}
}

// buildTestGraph creates a 5-node directed graph:
//
//	alice → (knows)         → bob
//	alice → (member_of)     → platform
//	bob   → (owns)          → atlas
//	platform → (allied_with) → infra
func buildTestGraph(t *testing.T, ctx context.Context, g *postgres.GraphStoreImpl) (alice, bob, platform, atlas, infra memory.Entity) {
	t.Helper()
	alice = memory.Entity{ID: "g-alice", Type: "person", Name: "alice"}
	bob = memory.Entity{ID: "g-bob", Type: "person", Name: "bob"}
	platform = memory.Entity{ID: "g-platform", Type: "team", Name: "platform"}
	atlas = memory.Entity{ID: "g-atlas", Type: "project", Name: "atlas"}
	infra = memory.Entity{ID: "g-infra", Type: "team", Name: "infra"}
	for _, e := range []memory.Entity{alice, bob, platform, atlas, infra} {
		mustAddEntity(t, ctx, g, e)
	}
	for _, r := range []memory.Relationship{
		{SourceID: alice.ID, TargetID: bob.ID, RelType: "knows", Weight: 1},
		{SourceID: alice.ID, TargetID: platform.ID, RelType: "member_of", Weight: 1},
		{SourceID: bob.ID, TargetID: atlas.ID, RelType: "owns", Weight: 1},
		{SourceID: platform.ID, TargetID: infra.ID, RelType: "allied_with", Weight: 1},
	} {
		if err := g.AddRelationship(ctx, r); err != nil {
			t.Fatalf("AddRelationship: %v", err)
		}
	}
	return
}

func TestGraphStore_FindConnected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	g := store.Graph()
	alice, _, _, _, _ := buildTestGraph(t, ctx, g)

	depth1, err := g.FindConnected(ctx, alice.ID, 1)
	if err != nil {
		t.Fatalf("FindConnected(1): %v", err)
	}
	if len(depth1) != 2 {
		t.Errorf("FindConnected(1): want 2, got %d %v", len(depth1), scoredEntityIDs(depth1))
	}

	depth2, err := g.FindConnected(ctx, alice.ID, 2)
	if err != nil {
		t.Fatalf("FindConnected(2): %v", err)
	}
	if len(depth2) != 4 {
		t.Errorf("FindConnected(2): want 4, got %d %v", len(depth2), scoredEntityIDs(depth2))
	}

	depth3, err := g.FindConnected(ctx, alice.ID, 3)
	if err != nil {
		t.Fatalf("FindConnected(3): %v", err)
	}
	if len(depth3) != 4 {
		t.Errorf("FindConnected(3): want 4 (no further reachable nodes), got %d", len(depth3))
	}

	knowsOnly, err := g.FindConnected(ctx, alice.ID, 2, memory.TraverseRelTypes("knows", "owns"))
	if err != nil {
		t.Fatalf("FindConnected knows: %v", err)
	}
	ids := scoredEntityIDs(knowsOnly)
	if !containsStr(ids, "g-bob") {
		t.Errorf("knows filter: expected g-bob in %v", ids)
	}
	if containsStr(ids, "g-platform") {
		t.Errorf("knows filter: g-platform should not be in %v", ids)
	}

	teamsOnly, err := g.FindConnected(ctx, alice.ID, 3, memory.TraverseNodeTypes("team"))
	if err != nil {
		t.Fatalf("FindConnected teams: %v", err)
	}
	if len(teamsOnly) == 0 {
		t.Error("node type filter: expected at least 1 result")
	}
	for _, se := range teamsOnly {
		if se.Entity.Type != "team" {
			t.Errorf("node type filter: got entity with type %q", se.Entity.Type)
		}
	}

	capped, err := g.FindConnected(ctx, alice.ID, 3, memory.TraverseMaxNodes(2))
	if err != nil {
		t.Fatalf("FindConnected max nodes: %v", err)
	}
	if len(capped) > 2 {
		t.Errorf("MaxNodes(2): want ≤2, got %d", len(capped))
	}

	// Hop-decayed score: directly connected entities score higher than
	// two-hop entities.
	var aliceDirect, aliceTwoHop float64
	for _, se := range depth2 {
		if se.Entity.ID == "g-bob" {
			aliceDirect = se.Score
		}
		if se.Entity.ID == "g-atlas" {
			aliceTwoHop = se.Score
		}
	}
	if aliceDirect <= aliceTwoHop {
		t.Errorf("score decay: want direct (%v) > two-hop (%v)", aliceDirect, aliceTwoHop)
	}

	// Ordering contract: smallest depth first, ties broken by lexicographic
	// name. depth1 has {bob, platform}, depth2 adds {atlas, infra}.
	wantOrder := []string{"bob", "platform", "atlas", "infra"}
	gotOrder := make([]string, len(depth2))
	for i, se := range depth2 {
		gotOrder[i] = se.Entity.Name
	}
	if len(gotOrder) != len(wantOrder) {
		t.Fatalf("FindConnected(2) order: want %v, got %v", wantOrder, gotOrder)
	}
	for i := range wantOrder {
		if gotOrder[i] != wantOrder[i] {
			t.Errorf("FindConnected(2) order: want %v, got %v", wantOrder, gotOrder)
			break
		}
	}
}

func TestGraphStore_Cleanup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	g := store.Graph()

	// entity is linked to both "gone-mem" and "live-mem"; Cleanup("gone-mem")
	// must drop only the "gone-mem" link and leave the entity in place since
	// it's still referenced by "live-mem".
	entity := memory.Entity{ID: "cleanup-ent", Type: "person", Name: "cleanup target"}
	mustAddEntity(t, ctx, g, entity)
	if err := g.LinkMemory(ctx, memory.MemoryEntityLink{MemoryID: "gone-mem", EntityID: entity.ID, Confidence: 1}); err != nil {
		t.Fatalf("LinkMemory: %v", err)
	}
	if err := g.LinkMemory(ctx, memory.MemoryEntityLink{MemoryID: "live-mem", EntityID: entity.ID, Confidence: 1}); err != nil {
		t.Fatalf("LinkMemory: %v", err)
	}

	// orphan is linked only to "gone-mem" and has no relationships, so
	// Cleanup("gone-mem") must delete it outright.
	orphan := memory.Entity{ID: "cleanup-orphan", Type: "tech", Name: "orphan target"}
	mustAddEntity(t, ctx, g, orphan)
	if err := g.LinkMemory(ctx, memory.MemoryEntityLink{MemoryID: "gone-mem", EntityID: orphan.ID, Confidence: 1}); err != nil {
		t.Fatalf("LinkMemory: %v", err)
	}

	// related is linked only to "gone-mem" too, but has a relationship to
	// entity, so it must survive Cleanup despite having no remaining links.
	related := memory.Entity{ID: "cleanup-related", Type: "tech", Name: "related target"}
	mustAddEntity(t, ctx, g, related)
	if err := g.LinkMemory(ctx, memory.MemoryEntityLink{MemoryID: "gone-mem", EntityID: related.ID, Confidence: 1}); err != nil {
		t.Fatalf("LinkMemory: %v", err)
	}
	if err := g.AddRelationship(ctx, memory.Relationship{SourceID: entity.ID, TargetID: related.ID, RelType: "knows", Weight: 1}); err != nil {
		t.Fatalf("AddRelationship: %v", err)
	}

	if err := g.Cleanup(ctx, "gone-mem"); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	links, err := g.LinksForMemories(ctx, []string{"gone-mem", "live-mem"})
	if err != nil {
		t.Fatalf("LinksForMemories: %v", err)
	}
	if len(links) != 1 || links[0].MemoryID != "live-mem" {
		t.Errorf("Cleanup: want only live-mem link remaining, got %+v", links)
	}

	if got, err := g.GetEntity(ctx, entity.ID); err != nil {
		t.Fatalf("GetEntity(entity): %v", err)
	} else if got == nil {
		t.Error("Cleanup: entity still linked via live-mem should survive")
	}
	if got, err := g.GetEntity(ctx, orphan.ID); err != nil {
		t.Fatalf("GetEntity(orphan): %v", err)
	} else if got != nil {
		t.Error("Cleanup: fully orphaned entity should have been deleted")
	}
	if got, err := g.GetEntity(ctx, related.ID); err != nil {
		t.Fatalf("GetEntity(related): %v", err)
	} else if got == nil {
		t.Error("Cleanup: entity with a surviving relationship should not be deleted")
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Session index
// ─────────────────────────────────────────────────────────────────────────────

func TestSessionIndex_AppendRecentTurnCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	s := store.Sessions()

	sessionID := "session-1"
	now := time.Now()
	chunks := []memory.SessionChunk{
		{SessionID: sessionID, Role: "user", Content: "What's the deploy status?", Timestamp: now.Add(-10 * time.Minute)},
		{SessionID: sessionID, Role: "assistant", Content: "The canary is healthy.", Timestamp: now.Add(-9 * time.Minute)},
		{SessionID: sessionID, Role: "user", Content: "Great, ship it.", Timestamp: now.Add(-1 * time.Minute)},
	}
	for _, c := range chunks {
		if err := s.Append(ctx, c); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	recent, err := s.Recent(ctx, sessionID, 30*time.Minute)
	if err != nil {
		t.Fatalf("Recent(30m): %v", err)
	}
	if len(recent) != 3 {
		t.Errorf("Recent(30m): want 3, got %d", len(recent))
	}

	narrow, err := s.Recent(ctx, sessionID, 5*time.Minute)
	if err != nil {
		t.Fatalf("Recent(5m): %v", err)
	}
	if len(narrow) != 1 || narrow[0].Content != chunks[2].Content {
		t.Errorf("Recent(5m): want [%q], got %v", chunks[2].Content, narrow)
	}

	other, err := s.Recent(ctx, "other-session", 30*time.Minute)
	if err != nil {
		t.Fatalf("Recent other: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("Recent other: want 0, got %d", len(other))
	}

	count, err := s.TurnCount(ctx, sessionID)
	if err != nil {
		t.Fatalf("TurnCount: %v", err)
	}
	if count != 3 {
		t.Errorf("TurnCount: want 3, got %d", count)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func mustAddEntity(t *testing.T, ctx context.Context, g *postgres.GraphStoreImpl, e memory.Entity) {
	t.Helper()
	if e.Attributes == nil {
		e.Attributes = map[string]any{}
	}
	if err := g.AddEntity(ctx, e); err != nil {
		t.Fatalf("mustAddEntity %s: %v", e.ID, err)
	}
}

func entryIDs(results []memory.ScoredEntry) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.Entry.ID
	}
	return ids
}

func entityIDs(entities []memory.Entity) []string {
	ids := make([]string, len(entities))
	for i, e := range entities {
		ids[i] = e.ID
	}
	return ids
}

func scoredEntityIDs(entities []memory.ScoredEntity) []string {
	ids := make([]string, len(entities))
	for i, e := range entities {
		ids[i] = e.Entity.ID
	}
	return ids
}

func containsEntity(entities []memory.Entity, id string) bool {
	for _, e := range entities {
		if e.ID == id {
			return true
		}
	}
	return false
}

func containsStr(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
