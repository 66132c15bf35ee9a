// Package service implements the memory service: the orchestration layer
// that composes the embedding adapter, vector/full-text/graph stores, the
// entity extractor, and the dedup engine into the public remember/correct/
// forget/recall operations.
package service

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/agentmemory/memsvc/internal/observe"
	"github.com/agentmemory/memsvc/pkg/dedup"
	"github.com/agentmemory/memsvc/pkg/embedding"
	"github.com/agentmemory/memsvc/pkg/extractor"
	"github.com/agentmemory/memsvc/pkg/memory"
)

// MaxContentLength is the maximum accepted length, in bytes, of a memory's
// content. Longer content is rejected as a validation error.
const MaxContentLength = 32 * 1024

// Default recall-pipeline tuning.
const (
	DefaultLimit               = 5
	DefaultMinRelevance        = 0.3
	DefaultCandidateMultiplier = 4
	DefaultVectorWeight        = 0.6
	DefaultTextWeight          = 0.4
	DefaultGraphExpansionBuf   = 6
	DefaultOneHopScore         = 0.85
	DefaultTwoHopScore         = 0.70
	DefaultChunkSize           = 50
)

// ValidationError reports a caller-supplied value that fails a precondition
// (empty content, oversize content, unknown scope, ...). It is never stored
// and must be reported directly to the caller.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// CycleError is returned by [Service.Correct] when applying the correction
// would create a cycle in the supersedes DAG.
type CycleError struct {
	MemoryID string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("correction chain: %s would introduce a cycle", e.MemoryID)
}

// StoreResult is the outcome of a capture operation (remember/correct).
type StoreResult struct {
	Success     bool
	MemoryID    string
	DuplicateOf string
	Err         error
}

// Config tunes the recall pipeline and the components the [Service] wires
// together. Zero-valued fields fall back to the package defaults.
type Config struct {
	Limit                int
	MinRelevance         float64
	CandidateMultiplier  int
	VectorWeight         float64
	TextWeight           float64
	GraphExpansionBuffer int
	OneHopScore          float64
	TwoHopScore          float64
	ChunkSize            int

	// GraphExpansionEnabled is the default for recall's graph_expansion
	// option when the caller does not specify one.
	GraphExpansionEnabled bool

	// EmbeddingProviderName is recorded in [Stats] alongside the embedder's
	// ModelID/Dimensions, since [embedding.Provider] does not itself expose
	// a provider label.
	EmbeddingProviderName string

	// InstanceID identifies this service process for [Health] and for
	// MemoryEntry.SourceInstance on writes.
	InstanceID string

	// Metrics records per-operation latency and outcome counts. Nil
	// disables instrumentation entirely.
	Metrics *observe.Metrics

	Logger *slog.Logger
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Limit <= 0 {
		out.Limit = DefaultLimit
	}
	if out.MinRelevance <= 0 {
		out.MinRelevance = DefaultMinRelevance
	}
	if out.CandidateMultiplier <= 0 {
		out.CandidateMultiplier = DefaultCandidateMultiplier
	}
	if out.VectorWeight <= 0 {
		out.VectorWeight = DefaultVectorWeight
	}
	if out.TextWeight <= 0 {
		out.TextWeight = DefaultTextWeight
	}
	if out.GraphExpansionBuffer <= 0 {
		out.GraphExpansionBuffer = DefaultGraphExpansionBuf
	}
	if out.OneHopScore <= 0 {
		out.OneHopScore = DefaultOneHopScore
	}
	if out.TwoHopScore <= 0 {
		out.TwoHopScore = DefaultTwoHopScore
	}
	if out.ChunkSize <= 0 {
		out.ChunkSize = DefaultChunkSize
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	if out.InstanceID == "" {
		out.InstanceID = "memsvc"
	}
	return out
}

// Service orchestrates the embedding adapter (A), vector store (B),
// full-text store (C), graph store (D), entity extractor (E), and dedup
// engine (F) behind the public remember/correct/forget/recall operations
// of spec §4.7/§6.1. The learned-retrieval layer (I) and safeguard stack
// (J) are a separate client layer, in pkg/client, that wraps a [Service]
// rather than being wired into it — the core recall contract of spec
// §6.1 takes no session argument, which both of those layers require.
type Service struct {
	vector   memory.VectorStore
	fulltext memory.FullTextStore
	graph    memory.GraphStore
	sessions memory.SessionIndex
	embedder embedding.Provider
	dedup    *dedup.Engine
	extract  *extractor.Extractor
	metrics  *observe.Metrics

	cfg Config
	log *slog.Logger

	now func() time.Time
}

// Stores bundles the required storage-layer dependencies for [New].
type Stores struct {
	Vector   memory.VectorStore
	FullText memory.FullTextStore
	Graph    memory.GraphStore
	Sessions memory.SessionIndex
}

// New constructs a [Service]. stores and embedder are required; dedupEngine
// and extract may be nil to disable dedup checking and entity extraction
// respectively.
func New(stores Stores, embedder embedding.Provider, dedupEngine *dedup.Engine, extract *extractor.Extractor, cfg Config) *Service {
	cfg = cfg.withDefaults()

	return &Service{
		vector:   stores.Vector,
		fulltext: stores.FullText,
		graph:    stores.Graph,
		sessions: stores.Sessions,
		embedder: embedder,
		dedup:    dedupEngine,
		extract:  extract,
		metrics:  cfg.Metrics,
		cfg:      cfg,
		log:      cfg.Logger,
		now:      time.Now,
	}
}

// validateContent applies spec §7's validation rules to capture content.
func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return &ValidationError{Field: "content", Reason: "must not be empty or whitespace-only"}
	}
	if len(content) > MaxContentLength {
		return &ValidationError{Field: "content", Reason: fmt.Sprintf("exceeds maximum length of %d bytes", MaxContentLength)}
	}
	return nil
}
