package service

import (
	"context"
	"fmt"

	"github.com/agentmemory/memsvc/pkg/memory"
)

// EmbeddingStats describes the active embedding configuration returned by
// stats(): model name, dimensions, and provider.
type EmbeddingStats struct {
	ModelName  string
	Dimensions int
	Provider   string
}

// Stats summarizes the store's contents.
type Stats struct {
	TotalMemories int
	BySourceType  map[string]int
	ByTag         map[string]int
	Embedding     EmbeddingStats
}

// Stats scans all entries via the vector store, superseded ones included,
// and tallies them by source type and tag.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	entries, err := s.vector.List(ctx, memory.EntryFilter{IncludeSuperseded: true})
	if err != nil {
		return Stats{}, fmt.Errorf("service: stats: %w", err)
	}

	out := Stats{
		BySourceType: map[string]int{},
		ByTag:        map[string]int{},
	}
	if s.embedder != nil {
		out.Embedding = EmbeddingStats{
			ModelName:  s.embedder.ModelID(),
			Dimensions: s.embedder.Dimensions(),
			Provider:   s.cfg.EmbeddingProviderName,
		}
	}

	for _, entry := range entries {
		out.TotalMemories++
		out.BySourceType[entry.SourceType]++
		for _, tag := range entry.Tags {
			out.ByTag[tag]++
		}
	}
	return out, nil
}

// Health status values for [HealthStatus].
const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"
)

// HealthStatus is the result of [Service.Health]: status, instance ID, and
// memory count.
type HealthStatus struct {
	Status      string
	InstanceID  string
	MemoryCount int
}

// Health reports whether the store's dependencies are reachable.
func (s *Service) Health(ctx context.Context) HealthStatus {
	entries, err := s.vector.List(ctx, memory.EntryFilter{IncludeSuperseded: true})
	if err != nil {
		return HealthStatus{Status: HealthDegraded, InstanceID: s.cfg.InstanceID}
	}
	return HealthStatus{Status: HealthOK, InstanceID: s.cfg.InstanceID, MemoryCount: len(entries)}
}
