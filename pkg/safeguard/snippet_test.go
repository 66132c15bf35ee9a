package safeguard

import "testing"

func TestEstimateTokens(t *testing.T) {
	got := EstimateTokens("one two three four")
	if got != 3 {
		t.Fatalf("expected ceil(4*0.75)=3, got %d", got)
	}
}

func TestSnippetTruncatorNoopWhenUnderCap(t *testing.T) {
	tr := NewSnippetTruncator(100)
	text := "a short snippet"
	if got := tr.Truncate(text); got != text {
		t.Fatalf("expected no truncation, got %q", got)
	}
}

func TestSnippetTruncatorTruncatesAtWordBoundary(t *testing.T) {
	tr := NewSnippetTruncator(3) // ~4 words
	text := "one two three four five six seven eight nine ten"
	got := tr.Truncate(text)
	if got == text {
		t.Fatalf("expected truncation to occur")
	}
	if got[len(got)-3:] != "..." {
		t.Fatalf("expected truncation suffix, got %q", got)
	}
}
