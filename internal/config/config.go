// Package config provides the configuration schema, loader, and provider
// registry for the shared long-term memory service.
package config

import "time"

// LogLevel controls logging verbosity.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// IsValid reports whether l is one of the recognised log levels.
func (l LogLevel) IsValid() bool {
	switch l {
	case "", LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	default:
		return false
	}
}

// Strategy mirrors pkg/bundle.Strategy for the config layer, avoiding a
// dependency from internal/config onto pkg/bundle for a single enum.
type Strategy string

const (
	StrategyKeep Strategy = "keep"
	StrategyDrop Strategy = "drop"
	StrategyAuto Strategy = "auto"
)

// IsValid reports whether s is one of the recognised import strategies.
func (s Strategy) IsValid() bool {
	switch s {
	case "", StrategyKeep, StrategyDrop, StrategyAuto:
		return true
	default:
		return false
	}
}

// Config is the root configuration structure for the memory service.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Search     SearchConfig     `yaml:"search"`
	Graph      GraphConfig      `yaml:"graph"`
	Dedup      DedupConfig      `yaml:"dedup"`
	Safeguards SafeguardsConfig `yaml:"safeguards"`
	Learned    LearnedConfig    `yaml:"learned"`
}

// ServerConfig holds process-level identity and logging settings.
type ServerConfig struct {
	// InstanceID identifies this process as a SourceInstance on written
	// memory entries.
	InstanceID string `yaml:"instance_id"`

	// LogLevel controls verbosity. Valid values: "debug", "info", "warn", "error".
	LogLevel LogLevel `yaml:"log_level"`
}

// StorageConfig holds the persistence backend's connection settings.
type StorageConfig struct {
	// PostgresDSN is the connection string for the pgvector-backed store.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	// Provider selects the embedding backend: "openai" or "ollama".
	Provider string `yaml:"provider"`

	// ModelName is the provider-specific model identifier.
	ModelName string `yaml:"model_name"`

	// Dimensions must match the vector width the store was created with.
	// Zero means "use the provider's default for ModelName".
	Dimensions int `yaml:"dimensions"`

	// APIKey authenticates against the provider, where applicable (openai).
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint (ollama, or an
	// OpenAI-compatible gateway).
	BaseURL string `yaml:"base_url"`

	// Timeout bounds a single embedding request.
	Timeout time.Duration `yaml:"timeout"`
}

// SearchConfig tunes the hybrid vector/keyword recall pipeline.
type SearchConfig struct {
	// VectorWeight and TextWeight scale each branch's normalized score
	// before the hybrid merge.
	VectorWeight float64 `yaml:"vector_weight"`
	TextWeight   float64 `yaml:"text_weight"`

	// CandidateMultiplier sizes the per-branch candidate pool as a multiple
	// of the requested limit, before rerank/truncation.
	CandidateMultiplier int `yaml:"candidate_multiplier"`

	// RerankPoolMultiplier is loaded and defaulted but no component reads
	// it; it has no effect on the size of the rerank pool.
	RerankPoolMultiplier int `yaml:"rerank_pool_multiplier"`

	// LazyEntityExtraction is loaded but no component reads it; entity and
	// relationship extraction always runs synchronously on remember.
	LazyEntityExtraction bool `yaml:"lazy_entity_extraction"`
}

// GraphConfig tunes knowledge-graph expansion during recall.
type GraphConfig struct {
	ExpansionEnabled bool    `yaml:"expansion_enabled"`
	OneHopScore      float64 `yaml:"one_hop_score"`
	TwoHopScore      float64 `yaml:"two_hop_score"`
	Buffer           int     `yaml:"buffer"`
}

// DedupConfig tunes duplicate-detection on remember.
type DedupConfig struct {
	// Threshold is the minimum combined similarity score for a near-duplicate
	// match, in [0, 1].
	Threshold float64 `yaml:"threshold"`

	// RecentWindow bounds how many recently remembered entries the
	// exact-hash cache keeps for the fast-path check. Zero defaults to
	// [dedup.DefaultRecentWindow].
	RecentWindow int `yaml:"recent_window"`
}

// SafeguardsConfig configures the client-side safeguard stack (pkg/safeguard).
type SafeguardsConfig struct {
	PerRecallCap        int `yaml:"per_recall_cap"`
	PerTurnCap          int `yaml:"per_turn_cap"`
	PerSessionCap       int `yaml:"per_session_cap"`
	MaxTokensPerSnippet int `yaml:"max_tokens_per_snippet"`

	CircuitBreakerMaxEmpty int           `yaml:"circuit_breaker_max_empty"`
	CircuitBreakerCooldown time.Duration `yaml:"circuit_breaker_cooldown"`

	SmartTriggerMinQueryLength int  `yaml:"smart_trigger_min_query_length"`
	SmartTriggerSkipEmojiOnly  bool `yaml:"smart_trigger_skip_emoji_only"`

	SessionDedupCooldown    time.Duration `yaml:"session_dedup_cooldown"`
	SessionDedupMaxSessions int           `yaml:"session_dedup_max_sessions"`
}

// LearnedConfig configures the learned-retrieval layer (pkg/learned).
type LearnedConfig struct {
	QueryCacheMinSuccesses int     `yaml:"query_cache_min_successes"`
	ExpanderMaxVariants    int     `yaml:"expander_max_variants"`
	FeedbackReinforce      float64 `yaml:"feedback_reinforce"`
	FeedbackPenalize       float64 `yaml:"feedback_penalize"`
}
