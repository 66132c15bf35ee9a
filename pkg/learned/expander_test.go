package learned

import (
	"context"
	"testing"

	"github.com/agentmemory/memsvc/pkg/memory/postgres"
)

type fakeExpansionStore struct {
	byTerm map[string][]postgres.LearnedExpansionRow
}

func (f *fakeExpansionStore) ExpansionsFor(ctx context.Context, term string) ([]postgres.LearnedExpansionRow, error) {
	return f.byTerm[term], nil
}

func TestExpanderAlwaysReturnsOriginalFirst(t *testing.T) {
	x := NewExpander(nil)
	variants := x.Expand(context.Background(), "What is my favorite food?")
	if len(variants) == 0 || variants[0] != "What is my favorite food?" {
		t.Fatalf("expected original query first, got %v", variants)
	}
}

func TestExpanderNeverExceedsMaxVariants(t *testing.T) {
	x := NewExpander(nil)
	variants := x.Expand(context.Background(), "What is my medical care life partner code editor?")
	if len(variants) > MaxVariants {
		t.Fatalf("expected at most %d variants, got %d: %v", MaxVariants, len(variants), variants)
	}
}

func TestExpanderWhatIsMyXRule(t *testing.T) {
	x := NewExpander(nil)
	variants := x.Expand(context.Background(), "What is my favorite color?")

	want := map[string]bool{
		"favorite color":            true,
		"my favorite color":         true,
		"favorite color preference": true,
		"favorite favorite color":   true,
	}
	found := 0
	for _, v := range variants {
		if want[v] {
			found++
		}
	}
	if found == 0 {
		t.Fatalf("expected wh-rule expansions among variants, got %v", variants)
	}
}

func TestExpanderSynonymExpansion(t *testing.T) {
	x := NewExpander(nil)
	variants := x.Expand(context.Background(), "where is my medical care")

	hasSynonym := false
	for _, v := range variants {
		if v == "doctor" || v == "clinic" || v == "health" {
			hasSynonym = true
		}
	}
	if !hasSynonym {
		t.Fatalf("expected a synonym variant, got %v", variants)
	}
}

func TestExpanderLearnedExpansions(t *testing.T) {
	store := &fakeExpansionStore{byTerm: map[string][]postgres.LearnedExpansionRow{
		"gizmo": {{Term: "gizmo", Expansion: "widget", Score: 0.9}},
	}}
	x := NewExpander(store)
	variants := x.Expand(context.Background(), "gizmo")

	found := false
	for _, v := range variants {
		if v == "widget" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected learned expansion %q among variants, got %v", "widget", variants)
	}
}

func TestExpanderKeywordFallback(t *testing.T) {
	x := NewExpander(nil)
	variants := x.Expand(context.Background(), "the zyzzyva and quokka")
	if len(variants) < 2 {
		t.Fatalf("expected keyword fallback to add a variant, got %v", variants)
	}
}

func TestExpanderNoDuplicates(t *testing.T) {
	x := NewExpander(nil)
	variants := x.Expand(context.Background(), "What is my dog?")
	seen := map[string]bool{}
	for _, v := range variants {
		key := v
		if seen[key] {
			t.Fatalf("duplicate variant %q in %v", v, variants)
		}
		seen[key] = true
	}
}
