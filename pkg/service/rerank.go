package service

import (
	"math"
	"sort"
)

// Default heuristic reranker tuning: recency-decay + tag-boost.
const (
	RecencyHalfLifeDays = 30.0
	TagBoostPerMatch    = 0.05
	MaxTagBoost         = 0.2
)

// heuristicRerank applies a recency-decay multiplier and a tag-match boost to
// each candidate's merged score, then stable-sorts descending by the result,
// with ascending ID as the tiebreak.
func (s *Service) heuristicRerank(candidates []recallCandidate, queryTags []string) []recallCandidate {
	now := s.now()
	wanted := make(map[string]bool, len(queryTags))
	for _, t := range queryTags {
		wanted[t] = true
	}

	for i := range candidates {
		c := &candidates[i]
		ageDays := now.Sub(c.Entry.CreatedAt).Hours() / 24
		if ageDays < 0 {
			ageDays = 0
		}
		decay := math.Pow(0.5, ageDays/RecencyHalfLifeDays)

		var boost float64
		for _, tag := range c.Entry.Tags {
			if wanted[tag] {
				boost += TagBoostPerMatch
			}
		}
		if boost > MaxTagBoost {
			boost = MaxTagBoost
		}

		c.FinalScore = c.Score*decay + boost
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].FinalScore != candidates[j].FinalScore {
			return candidates[i].FinalScore > candidates[j].FinalScore
		}
		return candidates[i].Entry.ID < candidates[j].Entry.ID
	})

	return candidates
}
