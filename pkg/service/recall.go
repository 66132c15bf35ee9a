package service

import (
	"context"
	"fmt"
	"time"

	"github.com/agentmemory/memsvc/pkg/memory"
)

// RecallInput parameterizes [Service.Recall].
type RecallInput struct {
	Query string

	// Limit caps the number of results returned. Nil means "unset": the
	// service default ([Config.Limit], normally [DefaultLimit]) applies. A
	// non-nil value of 0 is the caller explicitly asking for zero results —
	// per spec §8, Recall then returns an empty slice without touching any
	// store.
	Limit *int

	MinRelevance   float64
	Tags           []string
	After          time.Time
	Before         time.Time
	Sources        []string
	Scope          string
	WorkspaceID    string
	GraphExpansion bool
}

// IntLimit returns a pointer to n, for populating [RecallInput.Limit]
// (including the explicit-zero case the zero value of int can't represent).
func IntLimit(n int) *int { return &n }

// RecalledEntry is a single result of [Service.Recall] / [Service.RecallEntity].
type RecalledEntry struct {
	Entry           memory.MemoryEntry
	SimilarityScore float64
	RetrievalTimeMS int64
	RetrievalMethod string
}

// recallCandidate tracks a candidate entry through the merge/expand/rerank
// stages of the recall pipeline before being projected to [RecalledEntry].
type recallCandidate struct {
	Entry      memory.MemoryEntry
	Score      float64
	FinalScore float64
	Method     string
	fromVector bool
	fromText   bool
}

// Recall runs the ten-stage hybrid retrieval pipeline of spec §4.7.1.
func (s *Service) Recall(ctx context.Context, in RecallInput) ([]RecalledEntry, error) {
	metricsStart := s.now()
	out, err := s.recall(ctx, in)
	s.recordRecallDuration(ctx, s.now().Sub(metricsStart).Seconds())

	status := "ok"
	if err != nil {
		status = "error"
	} else if len(out) == 0 {
		status = "empty"
	}
	s.recordRecallRequest(ctx, status)

	return out, err
}

func (s *Service) recall(ctx context.Context, in RecallInput) ([]RecalledEntry, error) {
	if in.Limit != nil && *in.Limit == 0 {
		// spec §8: limit = 0 => recall returns empty, no side effects. Short
		// circuit before embedding or any store call.
		return []RecalledEntry{}, nil
	}

	start := s.now()
	limit := s.cfg.Limit
	if in.Limit != nil && *in.Limit > 0 {
		limit = *in.Limit
	}
	minRelevance := in.MinRelevance
	if minRelevance <= 0 {
		minRelevance = s.cfg.MinRelevance
	}

	filter := memory.EntryFilter{
		Tags:        in.Tags,
		Scope:       in.Scope,
		WorkspaceID: in.WorkspaceID,
		Sources:     in.Sources,
		After:       in.After,
		Before:      in.Before,
	}

	// Stage 1: temporal extraction, only when the caller didn't already pin a
	// window explicitly.
	if filter.After.IsZero() && filter.Before.IsZero() {
		if after, before, ok := s.resolveTemporal(in.Query); ok {
			filter.After = after
			filter.Before = before
		}
	}

	candidatePool := limit * s.cfg.CandidateMultiplier

	// Stage 2: embed the query. Failure degrades to keyword+graph only.
	var queryVec []float32
	if s.embedder != nil {
		embedStart := s.now()
		v, err := s.embedder.Embed(ctx, in.Query)
		s.recordEmbeddingDuration(ctx, s.now().Sub(embedStart).Seconds())
		if err != nil {
			s.recordEmbeddingError(ctx, s.cfg.EmbeddingProviderName)
			s.log.Warn("service: recall: embed failed, degrading to keyword+graph", "error", err)
		} else {
			queryVec = v
		}
	}

	merged := map[string]*recallCandidate{}

	// Stage 3: vector candidates.
	var vectorScored []memory.ScoredEntry
	if queryVec != nil {
		var err error
		vectorScored, err = s.vector.Search(ctx, queryVec, candidatePool, filter)
		if err != nil {
			s.recordStoreError(ctx, "vector", "search")
			return nil, fmt.Errorf("service: recall: vector search: %w", err)
		}
	}

	// Stage 4: keyword candidates.
	textScored, err := s.fulltext.Search(ctx, in.Query, candidatePool, filter)
	if err != nil {
		s.recordStoreError(ctx, "fulltext", "search")
		return nil, fmt.Errorf("service: recall: fulltext search: %w", err)
	}

	// Stage 5: hybrid merge, min-max normalized per source, union-by-id
	// keeping the max score per source.
	vectorNorm := minMaxNormalizeEntries(vectorScored)
	textNorm := minMaxNormalizeEntries(textScored)

	for id, v := range vectorNorm {
		c := merged[id]
		if c == nil {
			c = &recallCandidate{Entry: v.entry}
			merged[id] = c
		}
		c.fromVector = true
		c.Score += s.cfg.VectorWeight * v.score
	}
	for id, v := range textNorm {
		c := merged[id]
		if c == nil {
			c = &recallCandidate{Entry: v.entry}
			merged[id] = c
		}
		c.fromText = true
		c.Score += s.cfg.TextWeight * v.score
	}
	for _, c := range merged {
		switch {
		case c.fromVector && c.fromText:
			c.Method = "hybrid"
		case c.fromVector:
			c.Method = "vector"
		default:
			// Keyword-only hits still flow through the hybrid-merge stage;
			// "vector" is reserved for vector-exclusive hits (see DESIGN.md).
			c.Method = "hybrid"
		}
	}

	// Stage 6: graph expansion.
	if (in.GraphExpansion || s.cfg.GraphExpansionEnabled) && s.extract != nil && s.graph != nil {
		expandStart := s.now()
		s.expandViaGraph(ctx, in.Query, merged, limit*s.cfg.GraphExpansionBuffer)
		s.recordGraphExpansionDuration(ctx, s.now().Sub(expandStart).Seconds())
	}

	candidates := make([]recallCandidate, 0, len(merged))
	for _, c := range merged {
		candidates = append(candidates, *c)
	}

	// Stage 7: correction resolution.
	candidates = s.resolveCorrections(ctx, candidates)

	// Stage 8: rerank.
	candidates = s.heuristicRerank(candidates, in.Tags)

	elapsed := s.now().Sub(start).Milliseconds()

	// Stage 9 + 10: filter by min_relevance, then truncate to limit.
	out := make([]RecalledEntry, 0, limit)
	for _, c := range candidates {
		if c.FinalScore < minRelevance {
			continue
		}
		out = append(out, RecalledEntry{
			Entry:           c.Entry,
			SimilarityScore: c.FinalScore,
			RetrievalTimeMS: elapsed,
			RetrievalMethod: c.Method,
		})
		if len(out) >= limit {
			break
		}
	}

	return out, nil
}

// RecallEntity returns memories linked to the named entity and, via
// find_connected, to entities up to hops away.
func (s *Service) RecallEntity(ctx context.Context, name string, hops, limit int) ([]RecalledEntry, error) {
	if limit <= 0 {
		limit = s.cfg.Limit
	}
	if hops <= 0 {
		hops = 2
	}

	entities, err := s.graph.FindEntities(ctx, memory.EntityFilter{Name: name})
	if err != nil {
		return nil, fmt.Errorf("service: recall_entity: find entities: %w", err)
	}
	if len(entities) == 0 {
		return nil, nil
	}

	seen := map[string]bool{}
	var ids []string
	for _, e := range entities {
		if !seen[e.ID] {
			seen[e.ID] = true
			ids = append(ids, e.ID)
		}
		connected, err := s.graph.FindConnected(ctx, e.ID, hops)
		if err != nil {
			return nil, fmt.Errorf("service: recall_entity: find connected: %w", err)
		}
		for _, ce := range connected {
			if !seen[ce.Entity.ID] {
				seen[ce.Entity.ID] = true
				ids = append(ids, ce.Entity.ID)
			}
		}
	}

	memIDs, err := s.graph.MemoriesForEntities(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("service: recall_entity: memories for entities: %w", err)
	}

	out := make([]RecalledEntry, 0, len(memIDs))
	for _, id := range memIDs {
		entry, err := s.vector.Get(ctx, id)
		if err != nil || entry == nil {
			continue
		}
		out = append(out, RecalledEntry{Entry: *entry, SimilarityScore: 1, RetrievalMethod: "entity"})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

type normalizedEntry struct {
	entry memory.MemoryEntry
	score float64
}

// minMaxNormalizeEntries rescales scored's Score to [0, 1] and returns the
// result keyed by entry ID, as required by the "min-max normalized" hybrid
// merge of spec §4.7.1 stage 5.
func minMaxNormalizeEntries(scored []memory.ScoredEntry) map[string]normalizedEntry {
	out := make(map[string]normalizedEntry, len(scored))
	if len(scored) == 0 {
		return out
	}

	lo, hi := scored[0].Score, scored[0].Score
	for _, s := range scored {
		if s.Score < lo {
			lo = s.Score
		}
		if s.Score > hi {
			hi = s.Score
		}
	}

	spread := hi - lo
	for _, s := range scored {
		norm := 1.0
		if spread > 0 {
			norm = (s.Score - lo) / spread
		}
		out[s.Entry.ID] = normalizedEntry{entry: s.Entry, score: norm}
	}
	return out
}
