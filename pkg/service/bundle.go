package service

import (
	"context"
	"fmt"

	"github.com/agentmemory/memsvc/pkg/bundle"
	"github.com/agentmemory/memsvc/pkg/memory"
)

// embeddingInfo describes the service's active embedding configuration in
// the shape pkg/bundle needs to decide whether an import's vectors are
// compatible with this store.
func (s *Service) embeddingInfo() bundle.EmbeddingInfo {
	if s.embedder == nil {
		return bundle.EmbeddingInfo{}
	}
	return bundle.EmbeddingInfo{
		ModelName:  s.embedder.ModelID(),
		Dimensions: s.embedder.Dimensions(),
		Provider:   s.cfg.EmbeddingProviderName,
	}
}

// Export builds a [bundle.Bundle] of every entry matching filter, plus the
// entity graph data reachable from those entries, per spec §6.1's
// export(filter?) → bundle operation.
func (s *Service) Export(ctx context.Context, filter memory.EntryFilter) (*bundle.Bundle, error) {
	b, err := bundle.Export(ctx, s.vector, s.graph, s.embeddingInfo(), filter)
	if err != nil {
		return nil, fmt.Errorf("service: export: %w", err)
	}
	return b, nil
}

// Import writes every entry, entity, relationship, and link in b into this
// service's stores, applying strategy to decide whether b's vectors are
// kept or re-embedded, per spec §6.1's import(bundle, reembedding_strategy)
// operation.
func (s *Service) Import(ctx context.Context, b *bundle.Bundle, strategy bundle.Strategy) (bundle.Result, error) {
	result, err := bundle.Import(ctx, s.vector, s.fulltext, s.graph, s.embedder, s.embeddingInfo(), b, strategy)
	if err != nil {
		return bundle.Result{}, fmt.Errorf("service: import: %w", err)
	}
	return result, nil
}
