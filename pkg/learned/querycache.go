// Package learned implements the learned-retrieval layer: a query-result
// cache gated on observed success, a rule-based query expander enriched by
// persisted learned expansions, and a feedback-weighted reranker.
package learned

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/dgraph-io/ristretto"

	"github.com/agentmemory/memsvc/pkg/memory/postgres"
)

// DefaultMinCacheSuccesses is the minimum success_count before a cached
// query's results are trusted.
const DefaultMinCacheSuccesses = 3

const maxCachedIDs = 10

var queryCacheNormRe = regexp.MustCompile(`[^a-z0-9\s]`)

// NormalizeQuery lowercases q, strips everything but alphanumerics and
// whitespace, and collapses whitespace.
func NormalizeQuery(q string) string {
	n := strings.ToLower(q)
	n = queryCacheNormRe.ReplaceAllString(n, "")
	n = wsCollapseRe.ReplaceAllString(n, " ")
	return strings.TrimSpace(n)
}

var wsCollapseRe = regexp.MustCompile(`\s+`)

// QueryCacheStore is the persistence backing a [QueryCache].
// [postgres.LearnedStateStore] satisfies it.
type QueryCacheStore interface {
	LookupQueryCache(ctx context.Context, normalized string) (*postgres.QueryCacheRow, error)
	RecordQueryCacheSuccess(ctx context.Context, normalized string, resultIDs []string) error
	InvalidateQueryCachePath(ctx context.Context, memoryID string) error
}

// QueryCache is a success-gated cache of recall result IDs keyed by
// normalized query text. It is backed by a [QueryCacheStore] for durability
// and fronted by an in-process ristretto read cache so repeat lookups in a
// hot loop skip the round-trip.
//
// QueryCache is safe for concurrent use.
type QueryCache struct {
	store        QueryCacheStore
	minSuccesses int
	reads        *ristretto.Cache
	frequency    *ristretto.Cache // normalized query -> map[string]int occurrence counts
}

// NewQueryCache creates a [QueryCache] backed by store. minSuccesses, if
// zero, defaults to [DefaultMinCacheSuccesses].
func NewQueryCache(store QueryCacheStore, minSuccesses int) (*QueryCache, error) {
	if minSuccesses <= 0 {
		minSuccesses = DefaultMinCacheSuccesses
	}
	reads, err := ristretto.NewCache(&ristretto.Config{NumCounters: 1e5, MaxCost: 1 << 20, BufferItems: 64})
	if err != nil {
		return nil, err
	}
	freq, err := ristretto.NewCache(&ristretto.Config{NumCounters: 1e5, MaxCost: 1 << 20, BufferItems: 64})
	if err != nil {
		return nil, err
	}
	return &QueryCache{store: store, minSuccesses: minSuccesses, reads: reads, frequency: freq}, nil
}

// Lookup returns the cached result IDs for q, and whether the cache entry is
// trusted (exists and has reached minSuccesses). A miss or an
// under-threshold hit both return (nil, false, nil).
func (c *QueryCache) Lookup(ctx context.Context, q string) ([]string, bool, error) {
	normalized := NormalizeQuery(q)

	if v, ok := c.reads.Get(normalized); ok {
		ids := v.([]string)
		return ids, true, nil
	}

	row, err := c.store.LookupQueryCache(ctx, normalized)
	if err != nil {
		return nil, false, err
	}
	if row == nil || row.HitCount < c.minSuccesses {
		return nil, false, nil
	}
	c.reads.Set(normalized, row.ResultIDs, int64(len(row.ResultIDs)+1))
	return row.ResultIDs, true, nil
}

// RecordSuccess merges factIDs into the cache entry for q: per-ID occurrence
// counts accumulate across calls, the entry is re-ranked by cumulative
// frequency, and only the top 10 IDs are retained.
func (c *QueryCache) RecordSuccess(ctx context.Context, q string, factIDs []string) error {
	normalized := NormalizeQuery(q)

	counts := map[string]int{}
	if v, ok := c.frequency.Get(normalized); ok {
		for k, n := range v.(map[string]int) {
			counts[k] = n
		}
	}
	for _, id := range factIDs {
		counts[id]++
	}
	c.frequency.Set(normalized, counts, int64(len(counts)+1))
	c.frequency.Wait()

	ranked := make([]string, 0, len(counts))
	for id := range counts {
		ranked = append(ranked, id)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if counts[ranked[i]] != counts[ranked[j]] {
			return counts[ranked[i]] > counts[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})
	if len(ranked) > maxCachedIDs {
		ranked = ranked[:maxCachedIDs]
	}

	if err := c.store.RecordQueryCacheSuccess(ctx, normalized, ranked); err != nil {
		return err
	}
	c.reads.Del(normalized)
	return nil
}

// InvalidatePath drops every cache entry whose result list contains
// memoryID, e.g. after it is corrected or forgotten.
func (c *QueryCache) InvalidatePath(ctx context.Context, memoryID string) error {
	if err := c.store.InvalidateQueryCachePath(ctx, memoryID); err != nil {
		return err
	}
	c.reads.Clear()
	c.frequency.Clear()
	return nil
}
