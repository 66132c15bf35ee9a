package safeguard

import (
	"context"
	"time"
)

// RawResult is a single candidate result entering the safeguard stack,
// before truncation/budgeting/dedup are applied. Its embedded
// [ResultIdentity] carries both the dedup identity key and the snippet text
// (ResultIdentity.Snippet) that truncation mutates in place.
type RawResult struct {
	ID string
	ResultIdentity
}

// Outcome is the result of running [Stack.PreCheck] or [Stack.PostProcess].
type Outcome struct {
	// Skipped is true when the smart trigger or circuit breaker blocked
	// recall outright; Results is empty in that case.
	Skipped bool

	// SkipReason explains why Skipped is true ("too_short", "emoji_only",
	// "skip_phrase", or "circuit_open").
	SkipReason string

	// Results are the surviving results after truncation, budgeting, and
	// dedup, in input order.
	Results []RawResult
}

// Config holds tuning knobs for a new [Stack].
type Config struct {
	MinQueryLength int
	SkipEmojiOnly  bool

	MaxConsecutiveEmpty int
	BreakerCooldown     time.Duration

	MaxTokensPerSnippet int

	PerRecallCap  int
	PerTurnCap    int
	PerSessionCap int

	DedupCooldown time.Duration
	MaxSessions   int

	SessionBudgetHighThreshold float64
	TurnBudgetHighThreshold    float64
}

// Stack composes the six safeguard sub-components and applies them in the
// fixed order specified by spec §4.9: smart trigger, circuit breaker,
// snippet truncation, token budget, session dedup, metrics+alerts.
type Stack struct {
	trigger *SmartTrigger
	breaker *CircuitBreaker
	snippet *SnippetTruncator
	budget  *TokenBudget
	dedup   *SessionDedup
	metrics *Metrics
	alerts  *AlertDispatcher

	sessionThreshold float64
	turnThreshold    float64
}

// NewStack creates a [Stack]. cfg's zero fields fall back to each
// component's own defaults. metrics may be nil to disable instrumentation.
func NewStack(cfg Config, metrics *Metrics) (*Stack, error) {
	dedup, err := NewSessionDedup(cfg.DedupCooldown, cfg.MaxSessions)
	if err != nil {
		return nil, err
	}

	sessionThreshold := cfg.SessionBudgetHighThreshold
	if sessionThreshold <= 0 {
		sessionThreshold = DefaultSessionBudgetHighThreshold
	}
	turnThreshold := cfg.TurnBudgetHighThreshold
	if turnThreshold <= 0 {
		turnThreshold = DefaultTurnBudgetHighThreshold
	}

	return &Stack{
		trigger:          NewSmartTrigger(cfg.MinQueryLength, cfg.SkipEmojiOnly),
		breaker:          NewCircuitBreaker(cfg.MaxConsecutiveEmpty, cfg.BreakerCooldown),
		snippet:          NewSnippetTruncator(cfg.MaxTokensPerSnippet),
		budget:           NewTokenBudget(cfg.PerRecallCap, cfg.PerTurnCap, cfg.PerSessionCap),
		dedup:            dedup,
		metrics:          metrics,
		alerts:           NewAlertDispatcher(metrics),
		sessionThreshold: sessionThreshold,
		turnThreshold:    turnThreshold,
	}, nil
}

// Alerts returns the stack's [AlertDispatcher] so callers can [Subscribe]
// before running recalls.
func (s *Stack) Alerts() *AlertDispatcher { return s.alerts }

// PreCheck runs the smart trigger and circuit breaker — the two safeguards
// that can skip a recall before any store is touched. Callers should invoke
// this before running the recall pipeline and skip it entirely when Skipped
// is true.
func (s *Stack) PreCheck(ctx context.Context, session, query string) Outcome {
	if skip, reason := s.trigger.ShouldSkip(query); skip {
		if s.metrics != nil {
			s.metrics.RecordSkip(ctx, reason)
		}
		return Outcome{Skipped: true, SkipReason: reason}
	}

	if !s.breaker.Allow(session) {
		if s.metrics != nil {
			s.metrics.RecordBlocked(ctx)
		}
		s.alerts.Evaluate(ctx, ConditionCircuitBreakerTripped, session, true, 1)
		return Outcome{Skipped: true, SkipReason: "circuit_open"}
	}
	s.alerts.Evaluate(ctx, ConditionCircuitBreakerTripped, session, false, 0)

	return Outcome{}
}

// PostProcess applies truncation, token budgeting, and session dedup to raw
// recall results (already ranked and filtered by the recall pipeline), and
// records the recall's outcome against the circuit breaker. Results are
// expected in descending relevance order; PostProcess preserves that order.
func (s *Stack) PostProcess(ctx context.Context, session, turn string, raw []RawResult) Outcome {
	for i := range raw {
		truncated := s.snippet.Truncate(raw[i].Snippet)
		if truncated != raw[i].Snippet {
			raw[i].Snippet = truncated
			if s.metrics != nil {
				s.metrics.RecordTruncated(ctx)
			}
		}
	}

	tokenCounts := make([]int, len(raw))
	for i, r := range raw {
		tokenCounts[i] = EstimateTokens(r.Snippet)
	}
	kept := s.budget.Apply(session, turn, tokenCounts)
	if kept < len(raw) && s.metrics != nil {
		s.metrics.RecordBudgetExceeded(ctx, "recall")
	}
	raw = raw[:kept]

	identities := make([]ResultIdentity, len(raw))
	for i, r := range raw {
		identities[i] = r.ResultIdentity
	}
	beforeDedup := len(raw)
	survivingIdentities := s.dedup.Filter(session, identities)
	raw = filterRawByIdentity(raw, survivingIdentities)
	if deduped := beforeDedup - len(raw); deduped > 0 && s.metrics != nil {
		s.metrics.RecordDeduped(ctx, deduped)
	}

	s.breaker.RecordResult(session, len(raw) == 0)

	s.alerts.Evaluate(ctx, ConditionSessionBudgetHigh, session,
		s.budget.SessionUtilization(session) >= s.sessionThreshold,
		s.budget.SessionUtilization(session))
	s.alerts.Evaluate(ctx, ConditionTurnBudgetHigh, session,
		s.budget.TurnUtilization(session, turn) >= s.turnThreshold,
		s.budget.TurnUtilization(session, turn))

	return Outcome{Results: raw}
}

// filterRawByIdentity returns the subset of raw whose ResultIdentity key
// appears in kept, preserving raw's order.
func filterRawByIdentity(raw []RawResult, kept []ResultIdentity) []RawResult {
	keptKeys := make(map[string]bool, len(kept))
	for _, k := range kept {
		keptKeys[k.key()] = true
	}
	out := make([]RawResult, 0, len(raw))
	for _, r := range raw {
		if keptKeys[r.ResultIdentity.key()] {
			out = append(out, r)
		}
	}
	return out
}
