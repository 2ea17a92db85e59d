// Package observe provides application-wide observability primitives for
// quillfix: OpenTelemetry metrics, tracing helpers, and HTTP middleware that
// ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
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

// meterName is the instrumentation scope name used for all quillfix metrics.
const meterName = "github.com/MrWong99/quillfix"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	meter metric.Meter

	// --- Latency histograms ---

	// LearnDuration tracks how long one learn-from-edit call takes,
	// including persistence.
	LearnDuration metric.Float64Histogram

	// ApplyDuration tracks how long applying cached corrections to one text
	// takes.
	ApplyDuration metric.Float64Histogram

	// --- Counters ---

	// CorrectionsLearned counts accepted correction observations. Use with
	// attribute:
	//   attribute.String("source", ...)
	CorrectionsLearned metric.Int64Counter

	// CorrectionsApplied counts tokens replaced in transcribed text.
	CorrectionsApplied metric.Int64Counter

	// StorageErrors counts failed persistence operations. Use with attribute:
	//   attribute.String("op", ...)
	StorageErrors metric.Int64Counter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Applying
// corrections is an in-memory pass; learning includes a storage round trip.
var latencyBuckets = []float64{
	0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{meter: m}

	// Histograms.
	if met.LearnDuration, err = m.Float64Histogram("quillfix.learn.duration",
		metric.WithDescription("Latency of learning corrections from one user edit."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ApplyDuration, err = m.Float64Histogram("quillfix.apply.duration",
		metric.WithDescription("Latency of applying learned corrections to one text."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.CorrectionsLearned, err = m.Int64Counter("quillfix.corrections.learned",
		metric.WithDescription("Total correction observations persisted, by source."),
	); err != nil {
		return nil, err
	}
	if met.CorrectionsApplied, err = m.Int64Counter("quillfix.corrections.applied",
		metric.WithDescription("Total tokens replaced by learned corrections."),
	); err != nil {
		return nil, err
	}
	if met.StorageErrors, err = m.Int64Counter("quillfix.storage.errors",
		metric.WithDescription("Total failed correction store operations, by operation."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("quillfix.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// ObserveCacheEntries registers an asynchronous gauge, quillfix.cache.entries,
// whose value is read from size at every collection. The returned function
// unregisters the callback.
func (m *Metrics) ObserveCacheEntries(size func() int) (unregister func() error, err error) {
	gauge, err := m.meter.Int64ObservableGauge("quillfix.cache.entries",
		metric.WithDescription("Number of corrections currently held in the in-memory cache."),
	)
	if err != nil {
		return nil, err
	}
	reg, err := m.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(gauge, int64(size()))
		return nil
	}, gauge)
	if err != nil {
		return nil, err
	}
	return reg.Unregister, nil
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

// RecordLearned records n accepted correction observations from source.
func (m *Metrics) RecordLearned(ctx context.Context, source string, n int) {
	if n <= 0 {
		return
	}
	m.CorrectionsLearned.Add(ctx, int64(n),
		metric.WithAttributes(attribute.String("source", source)),
	)
}

// RecordApplied records n tokens replaced during one apply call.
func (m *Metrics) RecordApplied(ctx context.Context, n int) {
	if n <= 0 {
		return
	}
	m.CorrectionsApplied.Add(ctx, int64(n))
}

// RecordStorageError is a convenience method that records a storage error
// counter increment for op.
func (m *Metrics) RecordStorageError(ctx context.Context, op string) {
	m.StorageErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("op", op)),
	)
}
