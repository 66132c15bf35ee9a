package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/agentmemory/memsvc/pkg/memory"
)

// RememberInput is a single capture request for [Service.Remember] /
// [Service.RememberBatch].
type RememberInput struct {
	Content    string
	SourceType string
	Tags       []string
	Context    string
	Scope      string
	Workspace  string
	Importance float64
	SkipDedup  bool
}

// Remember validates, dedups, embeds, and writes content to the vector and
// full-text stores, then extracts entities/relationships into the graph
// store.
func (s *Service) Remember(ctx context.Context, in RememberInput) StoreResult {
	start := s.now()
	result := s.remember(ctx, in)
	s.recordRememberDuration(ctx, s.now().Sub(start).Seconds())

	status := "ok"
	switch {
	case result.Err != nil:
		status = "error"
	case !result.Success:
		status = "duplicate"
	}
	s.recordRememberRequest(ctx, status)

	return result
}

func (s *Service) remember(ctx context.Context, in RememberInput) StoreResult {
	if err := validateContent(in.Content); err != nil {
		return StoreResult{Err: err}
	}

	var vec []float32
	if s.embedder != nil {
		embedStart := s.now()
		v, err := s.embedder.Embed(ctx, in.Content)
		s.recordEmbeddingDuration(ctx, s.now().Sub(embedStart).Seconds())
		if err != nil {
			s.recordEmbeddingError(ctx, s.cfg.EmbeddingProviderName)
			return StoreResult{Err: fmt.Errorf("service: remember: embed: %w", err)}
		}
		vec = v
	}

	if s.dedup != nil {
		dedupStart := s.now()
		result, err := s.dedup.Check(ctx, in.Content, vec, in.SkipDedup)
		s.recordDedupDuration(ctx, s.now().Sub(dedupStart).Seconds())
		if err != nil {
			return StoreResult{Err: fmt.Errorf("service: remember: dedup check: %w", err)}
		}
		if result.Duplicate {
			s.recordDedupRejection(ctx, "duplicate")
			return StoreResult{Success: false, DuplicateOf: result.DuplicateOf}
		}
	}

	id := uuid.NewString()
	now := s.now()
	entry := memory.MemoryEntry{
		ID:             id,
		Content:        in.Content,
		Embedding:      vec,
		SourceType:     in.SourceType,
		SourceInstance: s.cfg.InstanceID,
		Context:        in.Context,
		Tags:           in.Tags,
		Scope:          in.Scope,
		WorkspaceID:    in.Workspace,
		Importance:     in.Importance,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.vector.Upsert(ctx, entry); err != nil {
		s.recordStoreError(ctx, "vector", "upsert")
		return StoreResult{Err: fmt.Errorf("service: remember: vector upsert: %w", err)}
	}
	if err := s.fulltext.Index(ctx, entry); err != nil {
		s.recordStoreError(ctx, "fulltext", "index")
		// Best-effort rollback of the vector-side write to avoid leaving the
		// vector and full-text stores inconsistent.
		_ = s.vector.Delete(ctx, id)
		return StoreResult{Err: fmt.Errorf("service: remember: fulltext index: %w", err)}
	}

	if s.dedup != nil {
		s.dedup.Remember(in.Content, id)
	}

	s.linkEntities(ctx, entry)

	return StoreResult{Success: true, MemoryID: id}
}

// linkEntities runs the entity extractor over entry and writes the resulting
// entities, relationships, and memory links into the graph store. Extractor
// and graph-store failures are logged but do not fail the capture — the
// extractor is a best-effort enrichment layer, not a durability guarantee.
func (s *Service) linkEntities(ctx context.Context, entry memory.MemoryEntry) {
	if s.extract == nil || s.graph == nil {
		return
	}
	result := s.extract.Extract(entry.Content, entry.ID)
	for _, e := range result.Entities {
		e.CreatedAt = s.now()
		e.UpdatedAt = e.CreatedAt
		if err := s.graph.AddEntity(ctx, e); err != nil {
			s.log.Warn("service: remember: add entity failed", "memory_id", entry.ID, "error", err)
		}
	}
	for _, r := range result.Relationships {
		r.CreatedAt = s.now()
		if err := s.graph.AddRelationship(ctx, r); err != nil {
			s.log.Warn("service: remember: add relationship failed", "memory_id", entry.ID, "error", err)
		}
	}
	for _, l := range result.Links {
		if err := s.graph.LinkMemory(ctx, l); err != nil {
			s.log.Warn("service: remember: link memory failed", "memory_id", entry.ID, "error", err)
		}
	}
}

// RememberBatch fans out up to chunk_size concurrent Remember calls via
// errgroup, writing each result into a pre-sized indexed slot so the
// returned slice preserves input order regardless of completion order, per
// spec §4.7 and §5 ("Concurrent batch capture"). A per-item failure does
// not cancel the rest of the batch.
func (s *Service) RememberBatch(ctx context.Context, inputs []RememberInput) []StoreResult {
	results := make([]StoreResult, len(inputs))
	chunkSize := s.cfg.ChunkSize

	for start := 0; start < len(inputs); start += chunkSize {
		end := start + chunkSize
		if end > len(inputs) {
			end = len(inputs)
		}

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				results[i] = s.Remember(gctx, inputs[i])
				return nil
			})
		}
		// Errors from individual items are carried in results[i].Err, not
		// propagated through the group — g.Wait() only reports goroutine
		// panics/ctx cancellation, never a capture failure, so a partial
		// failure never aborts sibling items in the same chunk.
		_ = g.Wait()
	}

	return results
}
