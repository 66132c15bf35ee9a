package service

import (
	"context"

	"github.com/agentmemory/memsvc/pkg/memory"
)

// expandViaGraph implements spec §4.7.1 stage 6: extract entities mentioned
// in query, find entities connected to them up to 2 hops, fetch memories for
// those connected entities, and fold them into merged with a hop-decayed
// score. New entries stop being added once merged holds poolCap entries.
func (s *Service) expandViaGraph(ctx context.Context, query string, merged map[string]*recallCandidate, poolCap int) {
	result := s.extract.Extract(query, "")
	if len(result.Entities) == 0 {
		return
	}

	type addition struct {
		memID string
		entry memory.MemoryEntry
		score float64
	}
	var additions []addition

	for _, qe := range result.Entities {
		matches, err := s.graph.FindEntities(ctx, memory.EntityFilter{Name: qe.Name})
		if err != nil || len(matches) == 0 {
			continue
		}
		for _, m := range matches {
			connected, err := s.graph.FindConnected(ctx, m.ID, 2)
			if err != nil {
				continue
			}
			for _, ce := range connected {
				score := s.cfg.TwoHopScore
				if ce.Hops <= 1 {
					score = s.cfg.OneHopScore
				}
				memIDs, err := s.graph.MemoriesForEntities(ctx, []string{ce.Entity.ID})
				if err != nil {
					continue
				}
				for _, memID := range memIDs {
					if _, already := merged[memID]; already {
						continue
					}
					entry, err := s.vector.Get(ctx, memID)
					if err != nil || entry == nil {
						continue
					}
					additions = append(additions, addition{memID: memID, entry: *entry, score: score})
				}
			}
		}
	}

	for _, a := range additions {
		if poolCap > 0 && len(merged) >= poolCap {
			break
		}
		existing := merged[a.memID]
		if existing != nil {
			if a.score > existing.Score {
				existing.Score = a.score
			}
			continue
		}
		merged[a.memID] = &recallCandidate{Entry: a.entry, Score: a.score, Method: "graph"}
	}
}

// resolveCorrections implements spec §4.7.1 stage 7: replace each candidate
// with the leaf of its supersedes chain, and drop candidates whose leaf has
// already been surfaced by another candidate in this same pass.
func (s *Service) resolveCorrections(ctx context.Context, candidates []recallCandidate) []recallCandidate {
	seenLeaves := map[string]bool{}
	out := make([]recallCandidate, 0, len(candidates))

	for _, c := range candidates {
		leaf, err := s.resolveLeaf(ctx, c.Entry)
		if err != nil {
			s.log.Warn("service: recall: resolve correction chain failed, using candidate as-is", "memory_id", c.Entry.ID, "error", err)
			leaf = c.Entry
		}
		if seenLeaves[leaf.ID] {
			continue
		}
		seenLeaves[leaf.ID] = true
		c.Entry = leaf
		out = append(out, c)
	}
	return out
}

// resolveLeaf walks entry's supersedes chain forward to the unique
// descendant with no outgoing supersedes edge.
func (s *Service) resolveLeaf(ctx context.Context, entry memory.MemoryEntry) (memory.MemoryEntry, error) {
	current := entry
	visited := map[string]bool{current.ID: true}
	for current.SupersededBy != "" {
		next, err := s.vector.Get(ctx, current.SupersededBy)
		if err != nil {
			return current, err
		}
		if next == nil || visited[next.ID] {
			break
		}
		visited[next.ID] = true
		current = *next
	}
	return current, nil
}
