package safeguard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name for safeguard metrics.
const meterName = "github.com/agentmemory/memsvc/pkg/safeguard"

// Default alert thresholds.
const (
	DefaultSessionBudgetHighThreshold = 0.8
	DefaultTurnBudgetHighThreshold    = 0.8

	maxAlertHistory = 100
)

// Condition names for [Alert.Condition].
const (
	ConditionSessionBudgetHigh     = "session_budget_high"
	ConditionTurnBudgetHigh        = "turn_budget_high"
	ConditionCircuitBreakerTripped = "circuit_breaker_tripped"
)

// Metrics holds the OpenTelemetry instruments for the safeguard stack,
// built the same way as [observe.Metrics]: one counter/histogram per
// concern, created up front via [NewMetrics].
type Metrics struct {
	RecallsSkipped      metric.Int64Counter
	RecallsBlocked      metric.Int64Counter
	SnippetsTruncated   metric.Int64Counter
	ResultsDeduped      metric.Int64Counter
	TokenBudgetExceeded metric.Int64Counter
	AlertsFired         metric.Int64Counter
}

// NewMetrics creates a [Metrics] using the given [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	met := &Metrics{}
	var err error

	if met.RecallsSkipped, err = m.Int64Counter("memsvc.safeguard.recalls_skipped",
		metric.WithDescription("Recalls skipped by the smart trigger, by reason."),
	); err != nil {
		return nil, err
	}
	if met.RecallsBlocked, err = m.Int64Counter("memsvc.safeguard.recalls_blocked",
		metric.WithDescription("Recalls blocked by an open circuit breaker."),
	); err != nil {
		return nil, err
	}
	if met.SnippetsTruncated, err = m.Int64Counter("memsvc.safeguard.snippets_truncated",
		metric.WithDescription("Result snippets truncated to the token cap."),
	); err != nil {
		return nil, err
	}
	if met.ResultsDeduped, err = m.Int64Counter("memsvc.safeguard.results_deduped",
		metric.WithDescription("Results suppressed by session dedup."),
	); err != nil {
		return nil, err
	}
	if met.TokenBudgetExceeded, err = m.Int64Counter("memsvc.safeguard.token_budget_exceeded",
		metric.WithDescription("Recalls truncated by a token budget cap, by cap kind."),
	); err != nil {
		return nil, err
	}
	if met.AlertsFired, err = m.Int64Counter("memsvc.safeguard.alerts_fired",
		metric.WithDescription("Alert condition transitions fired, by condition."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// RecordSkip increments RecallsSkipped with reason as an attribute.
func (m *Metrics) RecordSkip(ctx context.Context, reason string) {
	m.RecallsSkipped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordBlocked increments RecallsBlocked.
func (m *Metrics) RecordBlocked(ctx context.Context) {
	m.RecallsBlocked.Add(ctx, 1)
}

// RecordTruncated increments SnippetsTruncated.
func (m *Metrics) RecordTruncated(ctx context.Context) {
	m.SnippetsTruncated.Add(ctx, 1)
}

// RecordDeduped increments ResultsDeduped by n.
func (m *Metrics) RecordDeduped(ctx context.Context, n int) {
	if n <= 0 {
		return
	}
	m.ResultsDeduped.Add(ctx, int64(n))
}

// RecordBudgetExceeded increments TokenBudgetExceeded with capKind
// ("recall", "turn", or "session") as an attribute.
func (m *Metrics) RecordBudgetExceeded(ctx context.Context, capKind string) {
	m.TokenBudgetExceeded.Add(ctx, 1, metric.WithAttributes(attribute.String("cap", capKind)))
}

// Alert is a single fired alert-condition transition.
type Alert struct {
	Condition string
	Session   string
	FiredAt   time.Time
	Value     float64
}

// AlertListener receives fired alerts. A listener that panics is recovered
// and does not prevent other listeners from being notified.
type AlertListener func(Alert)

// AlertDispatcher evaluates alert conditions each time a recall completes
// and fires listeners only on the inactive→active transition. History is
// capped at 100 entries.
//
// AlertDispatcher is safe for concurrent use.
type AlertDispatcher struct {
	metrics *Metrics

	mu        sync.Mutex
	active    map[string]bool // "condition:session" -> currently active
	history   []Alert
	listeners []AlertListener
}

// NewAlertDispatcher creates an [AlertDispatcher] that records transitions
// through metrics.
func NewAlertDispatcher(metrics *Metrics) *AlertDispatcher {
	return &AlertDispatcher{metrics: metrics, active: map[string]bool{}}
}

// Subscribe registers l to be called whenever an alert condition fires.
func (d *AlertDispatcher) Subscribe(l AlertListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, l)
}

// Evaluate checks the given condition's current truth value for session and
// fires on the inactive→active edge, re-arming on clear.
func (d *AlertDispatcher) Evaluate(ctx context.Context, condition, session string, isActive bool, value float64) {
	key := condition + ":" + session

	d.mu.Lock()
	wasActive := d.active[key]
	d.active[key] = isActive
	shouldFire := isActive && !wasActive
	var listeners []AlertListener
	if shouldFire {
		listeners = append(listeners, d.listeners...)
	}
	d.mu.Unlock()

	if !shouldFire {
		return
	}

	alert := Alert{Condition: condition, Session: session, FiredAt: time.Now(), Value: value}

	d.mu.Lock()
	d.history = append(d.history, alert)
	if len(d.history) > maxAlertHistory {
		d.history = d.history[len(d.history)-maxAlertHistory:]
	}
	d.mu.Unlock()

	if d.metrics != nil {
		d.metrics.AlertsFired.Add(ctx, 1, metric.WithAttributes(attribute.String("condition", condition)))
	}

	for _, l := range listeners {
		invokeListener(l, alert)
	}
}

// invokeListener calls l with alert, recovering any panic so one faulty
// listener cannot prevent others from running.
func invokeListener(l AlertListener, alert Alert) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("safeguard alert listener panicked", "recovered", r, "condition", alert.Condition)
		}
	}()
	l(alert)
}

// History returns a copy of the most recent fired alerts (oldest first),
// capped at 100 entries.
func (d *AlertDispatcher) History() []Alert {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Alert, len(d.history))
	copy(out, d.history)
	return out
}
