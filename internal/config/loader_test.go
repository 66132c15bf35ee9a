package config_test

import (
	"strings"
	"testing"

	"github.com/agentmemory/memsvc/internal/config"
)

func TestValidate_CandidateMultiplierMustBeAtLeastOne(t *testing.T) {
	t.Parallel()
	yaml := `
search:
  candidate_multiplier: -1
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for candidate_multiplier < 1, got nil")
	}
	if !strings.Contains(err.Error(), "candidate_multiplier") {
		t.Errorf("error should mention candidate_multiplier, got: %v", err)
	}
}

func TestValidate_PerTurnExceedsPerSession(t *testing.T) {
	t.Parallel()
	yaml := `
safeguards:
  per_turn_cap: 5000
  per_session_cap: 4000
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for per_turn_cap exceeding per_session_cap, got nil")
	}
	if !strings.Contains(err.Error(), "per_turn_cap") {
		t.Errorf("error should mention per_turn_cap, got: %v", err)
	}
}

func TestValidate_MultipleErrorsAreJoined(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: verbose
dedup:
  threshold: 2.0
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
	if !strings.Contains(errStr, "dedup.threshold") {
		t.Errorf("error should mention dedup.threshold, got: %v", err)
	}
}

func TestValidate_DefaultsDoNotTriggerCapOrderingErrors(t *testing.T) {
	t.Parallel()
	// The zero-value config, once defaulted, must itself be internally
	// consistent — otherwise every unconfigured deployment fails to start.
	cfg, err := config.LoadFromReader(strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("unexpected error loading defaulted config: %v", err)
	}
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("defaulted config should validate cleanly: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := config.Load("/nonexistent/path/to/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}
