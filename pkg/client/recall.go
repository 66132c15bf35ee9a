package client

import (
	"context"
	"sort"

	"github.com/agentmemory/memsvc/pkg/learned"
	"github.com/agentmemory/memsvc/pkg/safeguard"
	"github.com/agentmemory/memsvc/pkg/service"
)

// RecallOutcome is the result of a session-scoped [Client.Recall] call.
type RecallOutcome struct {
	// Skipped is true when the safeguard stack's smart trigger or circuit
	// breaker blocked the recall outright.
	Skipped bool

	// SkipReason explains why Skipped is true.
	SkipReason string

	// Entries are the surviving results, in relevance order, with any
	// safeguard-side snippet truncation already applied.
	Entries []service.RecalledEntry
}

// Recall runs the learned-retrieval + safeguard client layer in front of
// svc.Recall: safeguard pre-check, query-cache lookup (or query expansion +
// multi-variant recall + feedback rerank on a cache miss), then safeguard
// post-processing (truncation, budgeting, session dedup, metrics/alerts).
func (c *Client) Recall(ctx context.Context, session, turn string, in service.RecallInput) (RecallOutcome, error) {
	if c.guards != nil {
		pre := c.guards.PreCheck(ctx, session, in.Query)
		if pre.Skipped {
			return RecallOutcome{Skipped: true, SkipReason: pre.SkipReason}, nil
		}
	}

	entries, err := c.recallWithLearnedLayer(ctx, session, in)
	if err != nil {
		return RecallOutcome{}, err
	}

	if c.feedback != nil {
		entries = c.rerankWithFeedback(ctx, entries)
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.Entry.ID
	}
	if c.feedback != nil {
		if err := c.feedback.RecordRetrieval(ctx, session, in.Query, ids); err != nil {
			c.log.Warn("client: recall: feedback persistence failed, continuing in-memory-only", "session", session, "error", err)
		}
	}
	if c.queryCache != nil && len(ids) > 0 {
		if err := c.queryCache.RecordSuccess(ctx, in.Query, ids); err != nil {
			c.log.Warn("client: recall: query cache persistence failed, continuing in-memory-only", "session", session, "error", err)
		}
	}

	if c.guards == nil {
		return RecallOutcome{Entries: entries}, nil
	}

	raw := make([]safeguard.RawResult, len(entries))
	for i, e := range entries {
		raw[i] = safeguard.RawResult{
			ID: e.Entry.ID,
			ResultIdentity: safeguard.ResultIdentity{
				Path:    e.Entry.ID,
				Snippet: e.Entry.Content,
			},
		}
	}
	post := c.guards.PostProcess(ctx, session, turn, raw)

	byID := make(map[string]service.RecalledEntry, len(entries))
	for _, e := range entries {
		byID[e.Entry.ID] = e
	}
	out := make([]service.RecalledEntry, 0, len(post.Results))
	for _, r := range post.Results {
		entry, ok := byID[r.ID]
		if !ok {
			continue
		}
		entry.Entry.Content = r.Snippet
		out = append(out, entry)
	}

	return RecallOutcome{Entries: out}, nil
}

// recallWithLearnedLayer serves a query-cache hit directly via svc.Get, or
// on a miss, expands the query into variants and merges each variant's
// recall, keeping the max score per memory ID.
func (c *Client) recallWithLearnedLayer(ctx context.Context, session string, in service.RecallInput) ([]service.RecalledEntry, error) {
	if c.queryCache != nil {
		if ids, ok, err := c.queryCache.Lookup(ctx, in.Query); err != nil {
			c.log.Warn("client: recall: query cache lookup failed, falling back to live recall", "session", session, "error", err)
		} else if ok {
			return c.fetchByIDs(ctx, ids)
		}
	}

	queries := []string{in.Query}
	if c.expander != nil {
		queries = c.expander.Expand(ctx, in.Query)
	}

	merged := map[string]service.RecalledEntry{}
	for _, q := range queries {
		variantInput := in
		variantInput.Query = q
		results, err := c.svc.Recall(ctx, variantInput)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			existing, ok := merged[r.Entry.ID]
			if !ok || r.SimilarityScore > existing.SimilarityScore {
				merged[r.Entry.ID] = r
			}
		}
	}

	out := make([]service.RecalledEntry, 0, len(merged))
	for _, e := range merged {
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SimilarityScore != out[j].SimilarityScore {
			return out[i].SimilarityScore > out[j].SimilarityScore
		}
		return out[i].Entry.ID < out[j].Entry.ID
	})
	return out, nil
}

func (c *Client) fetchByIDs(ctx context.Context, ids []string) ([]service.RecalledEntry, error) {
	out := make([]service.RecalledEntry, 0, len(ids))
	for _, id := range ids {
		entry, err := c.svc.Get(ctx, id)
		if err != nil || entry == nil {
			continue
		}
		out = append(out, service.RecalledEntry{Entry: *entry, SimilarityScore: 1, RetrievalMethod: "vector"})
	}
	return out, nil
}

// rerankWithFeedback reorders entries using [learned.FeedbackTracker.Rerank]
// and maps the reranked order back onto the original entries.
func (c *Client) rerankWithFeedback(ctx context.Context, entries []service.RecalledEntry) []service.RecalledEntry {
	scored := make([]learned.Scored, len(entries))
	byID := make(map[string]service.RecalledEntry, len(entries))
	for i, e := range entries {
		scored[i] = learned.Scored{ID: e.Entry.ID, BaseScore: e.SimilarityScore}
		byID[e.Entry.ID] = e
	}

	reranked, err := c.feedback.Rerank(ctx, scored)
	if err != nil {
		c.log.Warn("client: recall: feedback rerank failed, keeping merge order", "error", err)
		return entries
	}

	out := make([]service.RecalledEntry, 0, len(reranked))
	for _, s := range reranked {
		if e, ok := byID[s.ID]; ok {
			out = append(out, e)
		}
	}
	return out
}
