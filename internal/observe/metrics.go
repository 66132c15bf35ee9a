// Package observe provides application-wide observability primitives for the
// memory service: OpenTelemetry metrics, distributed tracing, structured
// logging, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all memory-service metrics.
const meterName = "github.com/agentmemory/memsvc"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// RecallDuration tracks end-to-end recall() latency, from query through
	// hybrid merge, graph expansion, and rerank.
	RecallDuration metric.Float64Histogram

	// RememberDuration tracks end-to-end remember() latency, including
	// dedup, embedding, and extraction.
	RememberDuration metric.Float64Histogram

	// EmbeddingDuration tracks a single embedding provider call's latency.
	EmbeddingDuration metric.Float64Histogram

	// GraphExpansionDuration tracks the one/two-hop entity expansion step of
	// a recall.
	GraphExpansionDuration metric.Float64Histogram

	// DedupDuration tracks the near-duplicate check performed on remember.
	DedupDuration metric.Float64Histogram

	// --- Counters ---

	// RecallRequests counts recall() invocations. Use with attribute:
	//   attribute.String("status", ...)
	RecallRequests metric.Int64Counter

	// RememberRequests counts remember() invocations. Use with attribute:
	//   attribute.String("status", ...)
	RememberRequests metric.Int64Counter

	// DedupRejections counts entries rejected or merged by the dedup layer.
	// Use with attribute: attribute.String("reason", ...) ("exact_hash" or
	// "near_duplicate").
	DedupRejections metric.Int64Counter

	// SafeguardTrips counts client-side safeguard activations. Use with
	// attribute: attribute.String("guard", ...) (e.g. "per_turn_cap",
	// "circuit_breaker", "smart_trigger", "session_dedup").
	SafeguardTrips metric.Int64Counter

	// QueryCacheResults counts learned query-cache lookups. Use with
	// attribute: attribute.String("result", ...) ("hit" or "miss").
	QueryCacheResults metric.Int64Counter

	// --- Error counters ---

	// EmbeddingErrors counts embedding provider failures. Use with
	// attribute: attribute.String("provider", ...)
	EmbeddingErrors metric.Int64Counter

	// StoreErrors counts storage-backend failures. Use with attributes:
	//   attribute.String("store", ...) ("vector", "fulltext", "graph")
	//   attribute.String("op", ...)
	StoreErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live client sessions currently
	// tracked by the learned-retrieval layer.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) spanning
// fast in-process lookups through slow embedding-provider round trips.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.RecallDuration, err = m.Float64Histogram("memsvc.recall.duration",
		metric.WithDescription("Latency of the recall operation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RememberDuration, err = m.Float64Histogram("memsvc.remember.duration",
		metric.WithDescription("Latency of the remember operation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EmbeddingDuration, err = m.Float64Histogram("memsvc.embedding.duration",
		metric.WithDescription("Latency of a single embedding provider call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.GraphExpansionDuration, err = m.Float64Histogram("memsvc.graph_expansion.duration",
		metric.WithDescription("Latency of knowledge-graph expansion during recall."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DedupDuration, err = m.Float64Histogram("memsvc.dedup.duration",
		metric.WithDescription("Latency of the near-duplicate check on remember."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.RecallRequests, err = m.Int64Counter("memsvc.recall.requests",
		metric.WithDescription("Total recall() invocations by status."),
	); err != nil {
		return nil, err
	}
	if met.RememberRequests, err = m.Int64Counter("memsvc.remember.requests",
		metric.WithDescription("Total remember() invocations by status."),
	); err != nil {
		return nil, err
	}
	if met.DedupRejections, err = m.Int64Counter("memsvc.dedup.rejections",
		metric.WithDescription("Total entries rejected or merged by the dedup layer, by reason."),
	); err != nil {
		return nil, err
	}
	if met.SafeguardTrips, err = m.Int64Counter("memsvc.safeguard.trips",
		metric.WithDescription("Total safeguard activations by guard name."),
	); err != nil {
		return nil, err
	}
	if met.QueryCacheResults, err = m.Int64Counter("memsvc.learned.query_cache_results",
		metric.WithDescription("Total query-cache lookups by result (hit/miss)."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.EmbeddingErrors, err = m.Int64Counter("memsvc.embedding.errors",
		metric.WithDescription("Total embedding provider errors by provider."),
	); err != nil {
		return nil, err
	}
	if met.StoreErrors, err = m.Int64Counter("memsvc.store.errors",
		metric.WithDescription("Total storage backend errors by store and operation."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("memsvc.active_sessions",
		metric.WithDescription("Number of live client sessions tracked by the learned-retrieval layer."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("memsvc.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordRecallRequest records a recall() invocation with the given outcome
// status (e.g. "ok", "degraded", "error").
func (m *Metrics) RecordRecallRequest(ctx context.Context, status string) {
	m.RecallRequests.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordRememberRequest records a remember() invocation with the given
// outcome status.
func (m *Metrics) RecordRememberRequest(ctx context.Context, status string) {
	m.RememberRequests.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordDedupRejection records a dedup-layer rejection or merge for the given reason.
func (m *Metrics) RecordDedupRejection(ctx context.Context, reason string) {
	m.DedupRejections.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordSafeguardTrip records an activation of the named client-side safeguard.
func (m *Metrics) RecordSafeguardTrip(ctx context.Context, guard string) {
	m.SafeguardTrips.Add(ctx, 1, metric.WithAttributes(attribute.String("guard", guard)))
}

// RecordQueryCacheResult records a learned query-cache lookup as a hit or miss.
func (m *Metrics) RecordQueryCacheResult(ctx context.Context, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.QueryCacheResults.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordEmbeddingError records an embedding provider failure.
func (m *Metrics) RecordEmbeddingError(ctx context.Context, provider string) {
	m.EmbeddingErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", provider)))
}

// RecordStoreError records a storage-backend failure for the given store kind and operation.
func (m *Metrics) RecordStoreError(ctx context.Context, store, op string) {
	m.StoreErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("store", store),
			attribute.String("op", op),
		),
	)
}

// RecordRecallDuration records one recall() invocation's end-to-end latency,
// in seconds.
func (m *Metrics) RecordRecallDuration(ctx context.Context, seconds float64) {
	m.RecallDuration.Record(ctx, seconds)
}

// RecordRememberDuration records one remember() invocation's end-to-end
// latency, in seconds.
func (m *Metrics) RecordRememberDuration(ctx context.Context, seconds float64) {
	m.RememberDuration.Record(ctx, seconds)
}

// RecordEmbeddingDuration records a single embedding provider call's
// latency, in seconds.
func (m *Metrics) RecordEmbeddingDuration(ctx context.Context, seconds float64) {
	m.EmbeddingDuration.Record(ctx, seconds)
}

// RecordGraphExpansionDuration records the one/two-hop entity expansion
// step's latency during a recall, in seconds.
func (m *Metrics) RecordGraphExpansionDuration(ctx context.Context, seconds float64) {
	m.GraphExpansionDuration.Record(ctx, seconds)
}

// RecordDedupDuration records the near-duplicate check's latency on
// remember, in seconds.
func (m *Metrics) RecordDedupDuration(ctx context.Context, seconds float64) {
	m.DedupDuration.Record(ctx, seconds)
}
