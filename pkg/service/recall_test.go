package service

import (
	"context"
	"testing"
	"time"

	"github.com/agentmemory/memsvc/pkg/memory"
)

func TestRecallMergesVectorAndKeywordHits(t *testing.T) {
	h := newHarness()
	h.embedder.EmbedResult = []float32{0.1, 0.2, 0.3}

	now := time.Now()
	h.vector.SearchResult = []memory.ScoredEntry{
		{Entry: memory.MemoryEntry{ID: "m1", Content: "Auth service uses JWT", CreatedAt: now}, Score: 0.9},
	}
	h.fulltext.SearchResult = []memory.ScoredEntry{
		{Entry: memory.MemoryEntry{ID: "m1", Content: "Auth service uses JWT", CreatedAt: now}, Score: 0.8},
	}

	results, err := h.svc.Recall(context.Background(), RecallInput{Query: "How does authentication work?"})
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 merged result, got %d", len(results))
	}
	if results[0].RetrievalMethod != "hybrid" {
		t.Fatalf("expected retrieval_method hybrid for a vector+keyword hit, got %q", results[0].RetrievalMethod)
	}
}

func TestRecallWithExplicitZeroLimitReturnsEmptyWithoutTouchingStores(t *testing.T) {
	h := newHarness()
	h.embedder.EmbedResult = []float32{0.1, 0.2, 0.3}
	h.vector.SearchResult = []memory.ScoredEntry{
		{Entry: memory.MemoryEntry{ID: "m1", Content: "should not surface", CreatedAt: time.Now()}, Score: 0.9},
	}

	results, err := h.svc.Recall(context.Background(), RecallInput{Query: "anything", Limit: IntLimit(0)})
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected limit=0 to return no results, got %d", len(results))
	}
	if len(h.embedder.EmbedCalls) != 0 {
		t.Fatalf("expected no embed call for limit=0, got %d", len(h.embedder.EmbedCalls))
	}
	if h.vector.CallCount("Search") != 0 {
		t.Fatalf("expected no vector search for limit=0, got %d", h.vector.CallCount("Search"))
	}
	if h.fulltext.CallCount("Search") != 0 {
		t.Fatalf("expected no fulltext search for limit=0, got %d", h.fulltext.CallCount("Search"))
	}
}

func TestRecallWithUnsetLimitUsesDefault(t *testing.T) {
	h := newHarness()
	h.embedder.EmbedResult = []float32{0.1, 0.2, 0.3}
	h.vector.SearchResult = []memory.ScoredEntry{
		{Entry: memory.MemoryEntry{ID: "m1", Content: "default limit hit", CreatedAt: time.Now()}, Score: 0.9},
	}

	results, err := h.svc.Recall(context.Background(), RecallInput{Query: "anything"})
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected an unset limit to fall back to the configured default, got %d", len(results))
	}
}

func TestRecallDegradesToKeywordOnEmbedFailure(t *testing.T) {
	h := newHarness()
	h.embedder.EmbedErr = errBoom

	h.fulltext.SearchResult = []memory.ScoredEntry{
		{Entry: memory.MemoryEntry{ID: "m1", Content: "fallback hit", CreatedAt: time.Now()}, Score: 0.5},
	}

	results, err := h.svc.Recall(context.Background(), RecallInput{Query: "anything"})
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected the keyword branch to still produce a result, got %d", len(results))
	}
	if h.vector.CallCount("Search") != 0 {
		t.Fatalf("expected no vector search when embedding fails, got %d", h.vector.CallCount("Search"))
	}
}

func TestRecallResolvesCorrectionChainToLeaf(t *testing.T) {
	h := newHarness()
	h.embedder.EmbedResult = []float32{0.1, 0.2, 0.3}

	original := memory.MemoryEntry{ID: "a", Content: "Joe's timezone is Eastern", SupersededBy: "b", CreatedAt: time.Now()}
	leaf := memory.MemoryEntry{ID: "b", Content: "Joe's timezone is Mountain", CreatedAt: time.Now()}

	h.vector.SearchResult = []memory.ScoredEntry{{Entry: original, Score: 0.9}}
	h.vector.GetResult = &leaf

	results, err := h.svc.Recall(context.Background(), RecallInput{Query: "What is Joe's timezone?"})
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Entry.ID != "b" {
		t.Fatalf("expected recall to surface the leaf entry b, got %q", results[0].Entry.ID)
	}
}

func TestRecallFiltersByMinRelevance(t *testing.T) {
	h := newHarness()
	h.embedder.EmbedResult = []float32{0.1, 0.2, 0.3}

	h.vector.SearchResult = []memory.ScoredEntry{
		{Entry: memory.MemoryEntry{ID: "m1", Content: "low relevance", CreatedAt: time.Now()}, Score: 0.9},
	}

	results, err := h.svc.Recall(context.Background(), RecallInput{Query: "q", MinRelevance: 2.0})
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected min_relevance=2.0 to filter out every result, got %d", len(results))
	}
}

func TestRecallEntityReturnsConnectedMemories(t *testing.T) {
	h := newHarness()
	h.graph.FindEntitiesResult = []memory.Entity{{ID: "e1", Name: "auth-service"}}
	h.graph.FindConnectedResult = []memory.ScoredEntity{
		{Entity: memory.Entity{ID: "e2", Name: "postgresql"}, Hops: 1},
	}
	h.graph.MemoriesForEntitiesResult = []string{"m1", "m2"}
	h.vector.GetResult = &memory.MemoryEntry{ID: "m1", Content: "auth-service uses PostgreSQL"}

	results, err := h.svc.RecallEntity(context.Background(), "auth-service", 2, 10)
	if err != nil {
		t.Fatalf("RecallEntity: %v", err)
	}
	if len(results) == 0 {
		t.Fatalf("expected at least 1 result")
	}
	for _, r := range results {
		if r.RetrievalMethod != "entity" {
			t.Fatalf("expected retrieval_method entity, got %q", r.RetrievalMethod)
		}
	}
}
