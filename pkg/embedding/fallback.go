package embedding

import (
	"context"

	"github.com/agentmemory/memsvc/internal/resilience"
)

// Fallback implements [Provider] with automatic failover across multiple
// embedding backends (e.g., a local Ollama model backing up a hosted OpenAI
// deployment). Each backend has its own circuit breaker; when the primary
// fails or its breaker is open, the next healthy fallback is tried.
//
// Dimensions and ModelID return the values given to [NewFallback] and do not
// participate in failover — callers must ensure every backend in the group shares the
// same embedding space, since the memory store's vector column is fixed at
// a single dimensionality (see [Provider]).
type Fallback struct {
	group *resilience.FallbackGroup[Provider]
	dims  int
	model string
}

// NewFallback creates a [Fallback] with primary as the preferred backend.
func NewFallback(primary Provider, primaryName string, dims int, modelID string, cfg resilience.FallbackConfig) *Fallback {
	return &Fallback{
		group: resilience.NewFallbackGroup(primary, primaryName, cfg),
		dims:  dims,
		model: modelID,
	}
}

// AddFallback registers an additional embedding provider as a fallback,
// tried in registration order after the primary and any earlier fallbacks.
func (f *Fallback) AddFallback(name string, provider Provider) {
	f.group.AddFallback(name, provider)
}

// Embed implements [Provider] by trying each backend in order until one
// succeeds.
func (f *Fallback) Embed(ctx context.Context, text string) ([]float32, error) {
	return resilience.ExecuteWithResult(f.group, func(p Provider) ([]float32, error) {
		return p.Embed(ctx, text)
	})
}

// EmbedBatch implements [Provider] by trying each backend in order until one
// succeeds.
func (f *Fallback) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return resilience.ExecuteWithResult(f.group, func(p Provider) ([][]float32, error) {
		return p.EmbedBatch(ctx, texts)
	})
}

// Dimensions returns the fixed embedding dimension shared by every backend in
// the group.
func (f *Fallback) Dimensions() int { return f.dims }

// ModelID returns the configured model identifier for the group (typically
// the primary backend's model name).
func (f *Fallback) ModelID() string { return f.model }

var _ Provider = (*Fallback)(nil)
