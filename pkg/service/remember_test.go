package service

import (
	"context"
	"testing"

	"github.com/agentmemory/memsvc/pkg/memory"
)

func TestRememberRejectsEmptyContent(t *testing.T) {
	h := newHarness()
	result := h.svc.Remember(context.Background(), RememberInput{Content: "   "})
	if result.Err == nil {
		t.Fatalf("expected a validation error for blank content")
	}
	if _, ok := result.Err.(*ValidationError); !ok {
		t.Fatalf("expected *ValidationError, got %T", result.Err)
	}
}

func TestRememberWritesToVectorAndFullText(t *testing.T) {
	h := newHarness()
	h.embedder.EmbedResult = []float32{0.1, 0.2, 0.3}

	result := h.svc.Remember(context.Background(), RememberInput{Content: "Auth service uses JWT with RS256"})
	if result.Err != nil {
		t.Fatalf("Remember: %v", result.Err)
	}
	if !result.Success || result.MemoryID == "" {
		t.Fatalf("expected a successful write with a memory ID, got %+v", result)
	}
	if h.vector.CallCount("Upsert") != 1 {
		t.Fatalf("expected exactly 1 vector upsert, got %d", h.vector.CallCount("Upsert"))
	}
	if h.fulltext.CallCount("Index") != 1 {
		t.Fatalf("expected exactly 1 fulltext index, got %d", h.fulltext.CallCount("Index"))
	}
}

func TestRememberRollsBackVectorOnFullTextFailure(t *testing.T) {
	h := newHarness()
	h.fulltext.IndexErr = errBoom

	result := h.svc.Remember(context.Background(), RememberInput{Content: "some content"})
	if result.Err == nil {
		t.Fatalf("expected an error when fulltext indexing fails")
	}
	if h.vector.CallCount("Delete") != 1 {
		t.Fatalf("expected the vector-side write to be rolled back, got %d deletes", h.vector.CallCount("Delete"))
	}
}

func TestRememberDuplicateContentIsRejected(t *testing.T) {
	h := newHarness()
	h.vector.SearchResult = []memory.ScoredEntry{
		{Entry: memory.MemoryEntry{ID: "existing", Content: "duplicate content"}, Score: 0.99},
	}
	h.embedder.EmbedResult = []float32{0.1, 0.2, 0.3}

	result := h.svc.Remember(context.Background(), RememberInput{Content: "duplicate content"})
	if result.Success {
		t.Fatalf("expected dedup rejection, got success")
	}
	if h.vector.CallCount("Upsert") != 0 {
		t.Fatalf("expected no write for a duplicate, got %d upserts", h.vector.CallCount("Upsert"))
	}
}

func TestRememberBatchPreservesInputOrder(t *testing.T) {
	h := newHarness()
	h.svc.cfg.ChunkSize = 2

	inputs := []RememberInput{
		{Content: "first"},
		{Content: "second"},
		{Content: "third"},
		{Content: "fourth"},
		{Content: "fifth"},
	}

	results := h.svc.RememberBatch(context.Background(), inputs)
	if len(results) != len(inputs) {
		t.Fatalf("expected %d results, got %d", len(inputs), len(results))
	}
	for i, r := range results {
		if r.Err != nil || !r.Success {
			t.Fatalf("result %d: expected success, got %+v", i, r)
		}
	}
}

// errBoom is a sentinel error for failure-injection tests.
var errBoom = &boomError{}

type boomError struct{}

func (*boomError) Error() string { return "boom" }
