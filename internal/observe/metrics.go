// Package observe provides application-wide observability primitives for
// hanalign: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still
// be scraped via the standard /metrics endpoint. A package-level default
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

// meterName is the instrumentation scope name used for all hanalign metrics.
const meterName = "github.com/sorilab/hanalign"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// AlignDuration tracks end-to-end alignment request latency.
	AlignDuration metric.Float64Histogram

	// ProviderDuration tracks acoustic inference call latency. Use with
	// attribute: attribute.String("provider", ...)
	ProviderDuration metric.Float64Histogram

	// TranscribeDuration tracks cross-check transcription latency.
	TranscribeDuration metric.Float64Histogram

	// --- Counters ---

	// AlignRequests counts alignment requests. Use with attribute:
	//   attribute.String("status", ...)
	AlignRequests metric.Int64Counter

	// ChunksAligned counts aligned chunks of long clips. Use with attribute:
	//   attribute.String("status", ...)
	ChunksAligned metric.Int64Counter

	// ProviderErrors counts acoustic provider failures. Use with attribute:
	//   attribute.String("provider", ...)
	ProviderErrors metric.Int64Counter

	// StoreFailures counts best-effort persistence failures. Use with
	// attribute: attribute.String("op", ...)
	StoreFailures metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes. Use with
	// attributes: attribute.String("name", ...), attribute.String("from", ...),
	// attribute.String("to", ...)
	BreakerTransitions metric.Int64Counter

	// --- Distributions ---

	// Agreement tracks the cross-check agreement ratio per request, in [0, 1].
	Agreement metric.Float64Histogram

	// --- Gauges ---

	// InflightAlignments tracks the number of alignment requests currently
	// being processed.
	InflightAlignments metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// inference-bound alignment latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// ratioBuckets defines histogram bucket boundaries for values in [0, 1].
var ratioBuckets = []float64{
	0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.AlignDuration, err = m.Float64Histogram("hanalign.align.duration",
		metric.WithDescription("End-to-end latency of alignment requests."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ProviderDuration, err = m.Float64Histogram("hanalign.provider.duration",
		metric.WithDescription("Latency of acoustic inference calls by provider."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscribeDuration, err = m.Float64Histogram("hanalign.transcribe.duration",
		metric.WithDescription("Latency of cross-check transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.AlignRequests, err = m.Int64Counter("hanalign.align.requests",
		metric.WithDescription("Total alignment requests by status."),
	); err != nil {
		return nil, err
	}
	if met.ChunksAligned, err = m.Int64Counter("hanalign.align.chunks",
		metric.WithDescription("Total aligned chunks of long clips by status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("hanalign.provider.errors",
		metric.WithDescription("Total acoustic provider failures by provider."),
	); err != nil {
		return nil, err
	}
	if met.StoreFailures, err = m.Int64Counter("hanalign.store.failures",
		metric.WithDescription("Total best-effort persistence failures by operation."),
	); err != nil {
		return nil, err
	}
	if met.BreakerTransitions, err = m.Int64Counter("hanalign.breaker.transitions",
		metric.WithDescription("Total circuit breaker state changes by breaker and states."),
	); err != nil {
		return nil, err
	}

	// Distributions.
	if met.Agreement, err = m.Float64Histogram("hanalign.crosscheck.agreement",
		metric.WithDescription("Agreement ratio between forced text and transcription."),
		metric.WithExplicitBucketBoundaries(ratioBuckets...),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.InflightAlignments, err = m.Int64UpDownCounter("hanalign.align.inflight",
		metric.WithDescription("Number of alignment requests currently being processed."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("hanalign.http.request.duration",
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

// RecordAlignRequest records an alignment request counter increment with its
// outcome status.
func (m *Metrics) RecordAlignRequest(ctx context.Context, status string) {
	m.AlignRequests.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordProviderError records an acoustic provider failure.
func (m *Metrics) RecordProviderError(ctx context.Context, provider string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("provider", provider)),
	)
}

// RecordStoreFailure records a failed best-effort persistence operation.
func (m *Metrics) RecordStoreFailure(ctx context.Context, op string) {
	m.StoreFailures.Add(ctx, 1,
		metric.WithAttributes(attribute.String("op", op)),
	)
}

// RecordBreakerTransition records a circuit breaker state change.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, name, from, to string) {
	m.BreakerTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("name", name),
			attribute.String("from", from),
			attribute.String("to", to),
		),
	)
}

// RecordAgreement records a cross-check agreement ratio.
func (m *Metrics) RecordAgreement(ctx context.Context, ratio float64) {
	m.Agreement.Record(ctx, ratio)
}
