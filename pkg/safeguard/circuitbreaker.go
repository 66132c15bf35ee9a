package safeguard

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultMaxConsecutiveEmpty and DefaultCooldown are the recall circuit
// breaker's default tuning.
const (
	DefaultMaxConsecutiveEmpty = 5
	DefaultCooldown            = 5 * time.Minute
)

// BreakerState is the operating mode of a [CircuitBreaker]. It has only two
// states — there is no probe/half-open recovery, only a cooldown-based
// auto-reset.
type BreakerState int

const (
	// BreakerClosed is the normal operating state — recall is allowed.
	BreakerClosed BreakerState = iota

	// BreakerOpen blocks recall until the cooldown elapses.
	BreakerOpen
)

// String returns the human-readable name of the state.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	default:
		return "unknown"
	}
}

// sessionBreaker is the per-session counters backing [CircuitBreaker].
type sessionBreaker struct {
	state            BreakerState
	consecutiveEmpty int
	trippedAt        time.Time
}

// CircuitBreaker trips per session after too many consecutive empty
// recalls, and blocks further recall until a cooldown elapses.
//
// CircuitBreaker is safe for concurrent use.
type CircuitBreaker struct {
	maxConsecutiveEmpty int
	cooldown            time.Duration

	mu       sync.Mutex
	sessions map[string]*sessionBreaker
}

// NewCircuitBreaker creates a [CircuitBreaker]. Zero maxConsecutiveEmpty /
// cooldown fall back to [DefaultMaxConsecutiveEmpty] / [DefaultCooldown].
func NewCircuitBreaker(maxConsecutiveEmpty int, cooldown time.Duration) *CircuitBreaker {
	if maxConsecutiveEmpty <= 0 {
		maxConsecutiveEmpty = DefaultMaxConsecutiveEmpty
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &CircuitBreaker{
		maxConsecutiveEmpty: maxConsecutiveEmpty,
		cooldown:            cooldown,
		sessions:            map[string]*sessionBreaker{},
	}
}

// Allow reports whether recall may proceed for session, auto-resetting the
// breaker to closed if it was open and the cooldown has elapsed.
func (cb *CircuitBreaker) Allow(session string) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	sb := cb.sessionFor(session)
	if sb.state == BreakerOpen {
		if time.Since(sb.trippedAt) >= cb.cooldown {
			sb.state = BreakerClosed
			sb.consecutiveEmpty = 0
			slog.Info("safeguard circuit breaker reset after cooldown", "session", session)
			return true
		}
		return false
	}
	return true
}

// RecordResult updates session's consecutive-empty counter. A non-empty
// result resets the counter and closes the breaker; an empty result
// increments it and trips the breaker at the configured threshold.
func (cb *CircuitBreaker) RecordResult(session string, empty bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	sb := cb.sessionFor(session)
	if !empty {
		sb.consecutiveEmpty = 0
		if sb.state == BreakerOpen {
			sb.state = BreakerClosed
			slog.Info("safeguard circuit breaker closed by non-empty recall", "session", session)
		}
		return
	}

	sb.consecutiveEmpty++
	if sb.consecutiveEmpty >= cb.maxConsecutiveEmpty && sb.state == BreakerClosed {
		sb.state = BreakerOpen
		sb.trippedAt = time.Now()
		slog.Warn("safeguard circuit breaker opened",
			"session", session,
			"consecutive_empty", sb.consecutiveEmpty,
		)
	}
}

// State returns the current [BreakerState] for session.
func (cb *CircuitBreaker) State(session string) BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.sessionFor(session).state
}

// sessionFor returns session's tracking struct, creating it on first use.
// Must be called with cb.mu held.
func (cb *CircuitBreaker) sessionFor(session string) *sessionBreaker {
	sb, ok := cb.sessions[session]
	if !ok {
		sb = &sessionBreaker{state: BreakerClosed}
		cb.sessions[session] = sb
	}
	return sb
}

// Prune removes tracked sessions whose breaker last tripped more than maxAge
// ago. Sessions with a closed breaker and a zero empty count, and sessions
// that never tripped, are kept however long they have been idle; the time
// of a session's last recall is not tracked.
func (cb *CircuitBreaker) Prune(maxAge time.Duration) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	now := time.Now()
	for id, sb := range cb.sessions {
		if sb.state == BreakerClosed && sb.consecutiveEmpty == 0 {
			continue
		}
		if !sb.trippedAt.IsZero() && now.Sub(sb.trippedAt) > maxAge {
			delete(cb.sessions, id)
		}
	}
}
