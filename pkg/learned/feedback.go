package learned

import (
	"context"
	"math"
	"sort"
	"sync"
)

// Default feedback deltas.
const (
	DefaultReinforceDelta = 1.0
	DefaultPenalizeDelta  = -0.25
	rerankLambda          = 0.1
)

// retrieval is the last recall event recorded for a session.
type retrieval struct {
	query   string
	factIDs []string
}

// FeedbackStore is the persistence backing a [FeedbackTracker].
// [postgres.LearnedStateStore] satisfies it.
type FeedbackStore interface {
	RecordRetrieval(ctx context.Context, ids []string) error
	RecordUsage(ctx context.Context, memoryID string) error
	AdjustWeight(ctx context.Context, memoryID string, delta float64) error
	Weights(ctx context.Context, ids []string) (map[string]float64, error)
}

// FeedbackTracker records which retrieved results were actually used and
// biases future reranking toward memories with a history of being useful.
//
// FeedbackTracker is safe for concurrent use.
type FeedbackTracker struct {
	store          FeedbackStore
	reinforceDelta float64
	penalizeDelta  float64
	mu             sync.Mutex
	lastRetrieval  map[string]retrieval // sessionID -> last retrieval
}

// NewFeedbackTracker creates a [FeedbackTracker] backed by store. Zero
// reinforceDelta/penalizeDelta fall back to the package defaults.
func NewFeedbackTracker(store FeedbackStore, reinforceDelta, penalizeDelta float64) *FeedbackTracker {
	if reinforceDelta == 0 {
		reinforceDelta = DefaultReinforceDelta
	}
	if penalizeDelta == 0 {
		penalizeDelta = DefaultPenalizeDelta
	}
	return &FeedbackTracker{
		store:          store,
		reinforceDelta: reinforceDelta,
		penalizeDelta:  penalizeDelta,
		lastRetrieval:  map[string]retrieval{},
	}
}

// RecordRetrieval stores the most recent retrieval event for session,
// superseding any earlier one. It also increments each result's shown_count
// for global feedback accounting.
func (f *FeedbackTracker) RecordRetrieval(ctx context.Context, session, query string, factIDs []string) error {
	f.mu.Lock()
	f.lastRetrieval[session] = retrieval{query: query, factIDs: factIDs}
	f.mu.Unlock()

	if len(factIDs) == 0 {
		return nil
	}
	return f.store.RecordRetrieval(ctx, factIDs)
}

// RecordUsage applies reinforcement to every fact ID in the most recent
// retrieval for session that appears in usedFactIDs, and penalizes every
// other fact ID from that retrieval. A session with no prior retrieval is a
// no-op.
func (f *FeedbackTracker) RecordUsage(ctx context.Context, session string, usedFactIDs []string) error {
	f.mu.Lock()
	last, ok := f.lastRetrieval[session]
	f.mu.Unlock()
	if !ok {
		return nil
	}

	used := make(map[string]bool, len(usedFactIDs))
	for _, id := range usedFactIDs {
		used[id] = true
	}

	for _, id := range last.factIDs {
		delta := f.penalizeDelta
		if used[id] {
			delta = f.reinforceDelta
			if err := f.store.RecordUsage(ctx, id); err != nil {
				return err
			}
		}
		if err := f.store.AdjustWeight(ctx, id, delta); err != nil {
			return err
		}
	}
	return nil
}

// Scored is a candidate result carrying a base relevance score, reranked by
// [FeedbackTracker.Rerank].
type Scored struct {
	ID        string
	BaseScore float64
}

// Rerank stable-sorts results by base_score + lambda*tanh(weight). Results
// with no recorded weight are left in their relative order (tanh(0) == 0, so
// the sort key degenerates to BaseScore alone).
func (f *FeedbackTracker) Rerank(ctx context.Context, results []Scored) ([]Scored, error) {
	if len(results) == 0 {
		return results, nil
	}

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	weights, err := f.store.Weights(ctx, ids)
	if err != nil {
		return nil, err
	}

	type keyed struct {
		scored Scored
		key    float64
		idx    int
	}
	keys := make([]keyed, len(results))
	for i, r := range results {
		w := weights[r.ID]
		keys[i] = keyed{scored: r, key: r.BaseScore + rerankLambda*math.Tanh(w), idx: i}
	}

	sort.SliceStable(keys, func(i, j int) bool {
		if keys[i].key != keys[j].key {
			return keys[i].key > keys[j].key
		}
		return keys[i].scored.ID < keys[j].scored.ID
	})

	out := make([]Scored, len(keys))
	for i, k := range keys {
		out[i] = k.scored
	}
	return out, nil
}
