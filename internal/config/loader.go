package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidEmbeddingProviders lists known embedding provider names.
// Used by [Validate] to warn about unrecognised provider names.
var ValidEmbeddingProviders = []string{"openai", "ollama"}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills zero-valued tunables with the service's documented
// defaults, leaving anything the caller set explicitly untouched.
func applyDefaults(cfg *Config) {
	if cfg.Search.VectorWeight == 0 && cfg.Search.TextWeight == 0 {
		cfg.Search.VectorWeight = 0.6
		cfg.Search.TextWeight = 0.4
	}
	if cfg.Search.CandidateMultiplier == 0 {
		cfg.Search.CandidateMultiplier = 4
	}
	if cfg.Search.RerankPoolMultiplier == 0 {
		cfg.Search.RerankPoolMultiplier = 2
	}
	if cfg.Graph.OneHopScore == 0 {
		cfg.Graph.OneHopScore = 0.85
	}
	if cfg.Graph.TwoHopScore == 0 {
		cfg.Graph.TwoHopScore = 0.70
	}
	if cfg.Graph.Buffer == 0 {
		cfg.Graph.Buffer = 6
	}
	if cfg.Dedup.Threshold == 0 {
		cfg.Dedup.Threshold = 0.92
	}
	if cfg.Safeguards.PerRecallCap == 0 {
		cfg.Safeguards.PerRecallCap = 500
	}
	if cfg.Safeguards.PerTurnCap == 0 {
		cfg.Safeguards.PerTurnCap = 750
	}
	if cfg.Safeguards.PerSessionCap == 0 {
		cfg.Safeguards.PerSessionCap = 5000
	}
	if cfg.Safeguards.MaxTokensPerSnippet == 0 {
		cfg.Safeguards.MaxTokensPerSnippet = 100
	}
	if cfg.Safeguards.CircuitBreakerMaxEmpty == 0 {
		cfg.Safeguards.CircuitBreakerMaxEmpty = 5
	}
	if cfg.Safeguards.SmartTriggerMinQueryLength == 0 {
		cfg.Safeguards.SmartTriggerMinQueryLength = 2
	}
	if cfg.Safeguards.SessionDedupMaxSessions == 0 {
		cfg.Safeguards.SessionDedupMaxSessions = 10000
	}
	if cfg.Learned.QueryCacheMinSuccesses == 0 {
		cfg.Learned.QueryCacheMinSuccesses = 3
	}
	if cfg.Learned.ExpanderMaxVariants == 0 {
		cfg.Learned.ExpanderMaxVariants = 8
	}
	if cfg.Learned.FeedbackReinforce == 0 {
		cfg.Learned.FeedbackReinforce = 1.0
	}
	if cfg.Learned.FeedbackPenalize == 0 {
		cfg.Learned.FeedbackPenalize = -0.25
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	validateEmbeddingProviderName(cfg.Embedding.Provider)

	if cfg.Storage.PostgresDSN == "" {
		slog.Warn("storage.postgres_dsn is empty; the service cannot persist memories")
	}

	if cfg.Embedding.Provider != "" && cfg.Embedding.Dimensions <= 0 {
		slog.Warn("embedding.provider is configured but embedding.dimensions is not set; the provider's default for the model will be used")
	}

	if cfg.Embedding.Provider == "openai" && cfg.Embedding.APIKey == "" {
		errs = append(errs, fmt.Errorf("embedding.api_key is required when embedding.provider is \"openai\""))
	}

	if cfg.Search.VectorWeight < 0 || cfg.Search.TextWeight < 0 {
		errs = append(errs, fmt.Errorf("search.vector_weight and search.text_weight must be non-negative"))
	}
	if cfg.Search.CandidateMultiplier < 1 {
		errs = append(errs, fmt.Errorf("search.candidate_multiplier must be at least 1, got %d", cfg.Search.CandidateMultiplier))
	}

	if cfg.Dedup.Threshold < 0 || cfg.Dedup.Threshold > 1 {
		errs = append(errs, fmt.Errorf("dedup.threshold %.2f is out of range [0, 1]", cfg.Dedup.Threshold))
	}

	if cfg.Safeguards.PerRecallCap > cfg.Safeguards.PerTurnCap && cfg.Safeguards.PerTurnCap > 0 {
		errs = append(errs, fmt.Errorf("safeguards.per_recall_cap (%d) must not exceed safeguards.per_turn_cap (%d)",
			cfg.Safeguards.PerRecallCap, cfg.Safeguards.PerTurnCap))
	}
	if cfg.Safeguards.PerTurnCap > cfg.Safeguards.PerSessionCap && cfg.Safeguards.PerSessionCap > 0 {
		errs = append(errs, fmt.Errorf("safeguards.per_turn_cap (%d) must not exceed safeguards.per_session_cap (%d)",
			cfg.Safeguards.PerTurnCap, cfg.Safeguards.PerSessionCap))
	}

	return errors.Join(errs...)
}

// validateEmbeddingProviderName logs a warning if name is non-empty and not
// a recognised embedding provider.
func validateEmbeddingProviderName(name string) {
	if name == "" {
		return
	}
	if slices.Contains(ValidEmbeddingProviders, name) {
		return
	}
	slog.Warn("unknown embedding provider name — may be a typo or third-party provider",
		"name", name,
		"known", ValidEmbeddingProviders,
	)
}
