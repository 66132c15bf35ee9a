package safeguard

import (
	"testing"
	"time"
)

func TestSessionDedupSuppressesRepeat(t *testing.T) {
	d, err := NewSessionDedup(time.Minute, 100)
	if err != nil {
		t.Fatalf("NewSessionDedup: %v", err)
	}

	results := []ResultIdentity{{Path: "a.go", StartLine: 1, EndLine: 10}}
	first := d.Filter("s1", results)
	if len(first) != 1 {
		t.Fatalf("expected first call to keep the result, got %d", len(first))
	}
	second := d.Filter("s1", results)
	if len(second) != 0 {
		t.Fatalf("expected repeat within cooldown to be suppressed, got %d", len(second))
	}
}

func TestSessionDedupAllowsAfterCooldown(t *testing.T) {
	d, err := NewSessionDedup(10*time.Millisecond, 100)
	if err != nil {
		t.Fatalf("NewSessionDedup: %v", err)
	}

	results := []ResultIdentity{{Path: "a.go", StartLine: 1, EndLine: 10}}
	d.Filter("s1", results)
	time.Sleep(20 * time.Millisecond)
	again := d.Filter("s1", results)
	if len(again) != 1 {
		t.Fatalf("expected result to resurface after cooldown elapses, got %d", len(again))
	}
}

func TestSessionDedupFallbackIdentityBySnippetHash(t *testing.T) {
	d, err := NewSessionDedup(time.Minute, 100)
	if err != nil {
		t.Fatalf("NewSessionDedup: %v", err)
	}

	results := []ResultIdentity{{Path: "a.go", Snippet: "some content"}}
	d.Filter("s1", results)
	again := d.Filter("s1", results)
	if len(again) != 0 {
		t.Fatalf("expected snippet-hash fallback identity to suppress repeat, got %d", len(again))
	}
}

func TestSessionDedupIndependentSessions(t *testing.T) {
	d, err := NewSessionDedup(time.Minute, 100)
	if err != nil {
		t.Fatalf("NewSessionDedup: %v", err)
	}

	results := []ResultIdentity{{Path: "a.go", StartLine: 1, EndLine: 10}}
	d.Filter("s1", results)
	got := d.Filter("s2", results)
	if len(got) != 1 {
		t.Fatalf("expected a different session to see the result fresh, got %d", len(got))
	}
}
