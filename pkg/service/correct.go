package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/agentmemory/memsvc/pkg/memory"
)

// Correct creates a new memory entry superseding originalID.
// The original entry is not deleted; its SupersededBy is set to the new
// entry's ID so recall walks to the leaf of the correction chain.
func (s *Service) Correct(ctx context.Context, originalID, correctedContent, context_ string) StoreResult {
	if err := validateContent(correctedContent); err != nil {
		return StoreResult{Err: err}
	}

	original, err := s.vector.Get(ctx, originalID)
	if err != nil {
		return StoreResult{Err: fmt.Errorf("service: correct: get original: %w", err)}
	}
	if original == nil {
		return StoreResult{Err: &ValidationError{Field: "original_id", Reason: "no such memory"}}
	}
	if err := s.rejectCycle(ctx, originalID); err != nil {
		return StoreResult{Err: err}
	}

	var vec []float32
	if s.embedder != nil {
		v, embedErr := s.embedder.Embed(ctx, correctedContent)
		if embedErr != nil {
			return StoreResult{Err: fmt.Errorf("service: correct: embed: %w", embedErr)}
		}
		vec = v
	}

	id := uuid.NewString()
	now := s.now()
	entry := memory.MemoryEntry{
		ID:             id,
		Content:        correctedContent,
		Embedding:      vec,
		SourceType:     "correction",
		SourceInstance: s.cfg.InstanceID,
		Context:        context_,
		Tags:           original.Tags,
		Scope:          original.Scope,
		WorkspaceID:    original.WorkspaceID,
		Importance:     original.Importance,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.vector.Upsert(ctx, entry); err != nil {
		return StoreResult{Err: fmt.Errorf("service: correct: vector upsert: %w", err)}
	}
	if err := s.fulltext.Index(ctx, entry); err != nil {
		_ = s.vector.Delete(ctx, id)
		return StoreResult{Err: fmt.Errorf("service: correct: fulltext index: %w", err)}
	}

	original.SupersededBy = id
	original.UpdatedAt = now
	if err := s.vector.Upsert(ctx, *original); err != nil {
		return StoreResult{Err: fmt.Errorf("service: correct: mark superseded: %w", err)}
	}

	s.linkEntities(ctx, entry)

	return StoreResult{Success: true, MemoryID: id}
}

// rejectCycle walks the supersedes chain starting at id and returns a
// [CycleError] if id is reachable from itself — cycles are rejected at
// write time.
func (s *Service) rejectCycle(ctx context.Context, id string) error {
	seen := map[string]bool{id: true}
	current := id
	for {
		entry, err := s.vector.Get(ctx, current)
		if err != nil {
			return fmt.Errorf("service: correct: walk chain: %w", err)
		}
		if entry == nil || entry.SupersededBy == "" {
			return nil
		}
		if seen[entry.SupersededBy] {
			return &CycleError{MemoryID: id}
		}
		seen[entry.SupersededBy] = true
		current = entry.SupersededBy
	}
}

// Forget deletes id from the vector store, full-text store, and the graph
// store's links (and prunes any entity left with no remaining memory links
// or relationships). The correction chain is preserved for any children (an
// entry superseding id keeps its Supersedes relationship intact even though
// id itself is gone).
func (s *Service) Forget(ctx context.Context, id string) (bool, error) {
	existing, err := s.vector.Get(ctx, id)
	if err != nil {
		return false, fmt.Errorf("service: forget: get: %w", err)
	}
	if existing == nil {
		return false, nil
	}

	if err := s.vector.Delete(ctx, id); err != nil {
		return false, fmt.Errorf("service: forget: vector delete: %w", err)
	}
	if err := s.fulltext.Delete(ctx, id); err != nil {
		return false, fmt.Errorf("service: forget: fulltext delete: %w", err)
	}
	if s.graph != nil {
		if err := s.graph.Cleanup(ctx, id); err != nil {
			return false, fmt.Errorf("service: forget: graph cleanup: %w", err)
		}
	}
	if s.dedup != nil {
		s.dedup.Forget(existing.Content)
	}

	return true, nil
}

// Get retrieves a single memory entry by ID. Returns (nil, nil) when absent.
func (s *Service) Get(ctx context.Context, id string) (*memory.MemoryEntry, error) {
	entry, err := s.vector.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service: get: %w", err)
	}
	return entry, nil
}
