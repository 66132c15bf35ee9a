// Package dedup detects near-duplicate memory content before it is written,
// combining an exact-hash cache of recently seen entries with a
// vector-similarity + token-overlap check for near-duplicates.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"
	"github.com/dgraph-io/ristretto"

	"github.com/agentmemory/memsvc/pkg/memory"
)

// Default tuning values.
const (
	DefaultThreshold    = 0.92
	DefaultRecentWindow = 10_000
	jaccardThreshold    = 0.8
)

// Checker is an optional vector-similarity lookup used for near-duplicate
// detection. [pkg/memory.VectorStore] satisfies it.
type Checker interface {
	Search(ctx context.Context, embedding []float32, topK int, filter memory.EntryFilter) ([]memory.ScoredEntry, error)
}

// Engine implements the dedup check described in spec §4.6: an exact-match
// cache of recently written content hashes, followed by a vector-similarity
// + Jaccard near-duplicate check.
//
// Engine is safe for concurrent use.
type Engine struct {
	threshold float64
	vectors   Checker
	recent    *ristretto.Cache // normalized-content-hash -> memory ID
}

// Config holds tuning knobs for a new [Engine].
type Config struct {
	// Threshold is the minimum cosine similarity for a candidate to be
	// considered a near-duplicate (combined with the Jaccard check). Zero
	// defaults to [DefaultThreshold].
	Threshold float64

	// RecentWindow bounds how many recent exact-hash entries are tracked.
	// Zero defaults to [DefaultRecentWindow].
	RecentWindow int
}

// New creates an [Engine] backed by vectors for near-duplicate lookups.
func New(vectors Checker, cfg Config) (*Engine, error) {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	window := cfg.RecentWindow
	if window <= 0 {
		window = DefaultRecentWindow
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: int64(window) * 10,
		MaxCost:     int64(window),
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}

	return &Engine{threshold: cfg.Threshold, vectors: vectors, recent: cache}, nil
}

// Result is the outcome of a dedup check.
type Result struct {
	// Duplicate is true when content was classified as an exact or
	// near-duplicate of an existing memory.
	Duplicate bool

	// DuplicateOf is the ID of the existing memory content duplicates, set
	// only when Duplicate is true.
	DuplicateOf string
}

var wsRe = regexp.MustCompile(`\s+`)
var punctRe = regexp.MustCompile(`[^\w\s]`)

// Normalize lowercases content, strips punctuation, and collapses
// whitespace.
func Normalize(content string) string {
	n := strings.ToLower(content)
	n = punctRe.ReplaceAllString(n, "")
	n = wsRe.ReplaceAllString(n, " ")
	return strings.TrimSpace(n)
}

func contentHash(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Check runs the dedup pipeline against content and its embedding. When
// skipDedup is true, steps 2-3 are bypassed entirely and Check always
// reports no duplicate.
//
// On a non-duplicate verdict, the caller is expected to subsequently call
// [Engine.Remember] once the new memory's ID is known, so later checks in
// the same process can hash-match against it.
func (e *Engine) Check(ctx context.Context, content string, embedding []float32, skipDedup bool) (Result, error) {
	if skipDedup {
		return Result{}, nil
	}

	normalized := Normalize(content)
	hash := contentHash(normalized)

	if v, ok := e.recent.Get(hash); ok {
		return Result{Duplicate: true, DuplicateOf: v.(string)}, nil
	}

	if e.vectors == nil || embedding == nil {
		return Result{}, nil
	}

	candidates, err := e.vectors.Search(ctx, embedding, 5, memory.EntryFilter{IncludeSuperseded: true})
	if err != nil {
		return Result{}, err
	}

	normTokens := tokenSet(normalized)
	for _, c := range candidates {
		if c.Score < e.threshold {
			continue
		}
		candNorm := Normalize(c.Entry.Content)
		if jaccard(normTokens, tokenSet(candNorm)) < jaccardThreshold {
			continue
		}
		// Cross-check with a fuzzy string similarity on the raw normalized
		// forms — guards against vector/token agreement on genuinely
		// different short strings with few distinguishing tokens.
		if matchr.JaroWinkler(normalized, candNorm, true) < e.threshold {
			continue
		}
		return Result{Duplicate: true, DuplicateOf: c.Entry.ID}, nil
	}

	return Result{}, nil
}

// Remember records that memoryID holds content, so future exact-duplicate
// checks against the same normalized text are served from the hash cache
// without a vector round-trip.
func (e *Engine) Remember(content, memoryID string) {
	hash := contentHash(Normalize(content))
	e.recent.Set(hash, memoryID, 1)
}

// Forget removes content's hash from the recent-entries cache, e.g. after a
// [memory.MemoryEntry] referencing it is deleted.
func (e *Engine) Forget(content string) {
	hash := contentHash(Normalize(content))
	e.recent.Del(hash)
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
