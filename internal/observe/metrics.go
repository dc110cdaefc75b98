// Package observe provides application-wide observability primitives for
// Chronicler: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
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

// meterName is the instrumentation scope name used for all Chronicler metrics.
const meterName = "github.com/MrWong99/chronicler"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// GenerationDuration tracks LLM generation latency per run, including
	// retries. Use with attributes:
	//   attribute.String("kind", "summary"|"story"), attribute.String("status", ...)
	GenerationDuration metric.Float64Histogram

	// TurnsAppended counts turns appended to session logs. Use with attribute:
	//   attribute.String("role", ...)
	TurnsAppended metric.Int64Counter

	// SummariesCreated counts committed summaries. Use with attribute:
	//   attribute.String("mode", "auto"|"manual")
	SummariesCreated metric.Int64Counter

	// ArchivesAssembled counts assembled story archives. Use with attribute:
	//   attribute.String("style", ...)
	ArchivesAssembled metric.Int64Counter

	// GenerationRetries counts failed generation attempts that were retried.
	// Use with attribute: attribute.String("kind", ...)
	GenerationRetries metric.Int64Counter

	// ProviderErrors counts LLM provider errors after retry exhaustion. Use
	// with attribute: attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// ActiveSummarizations tracks summarization runs currently in flight.
	ActiveSummarizations metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// generationBuckets defines histogram bucket boundaries (in seconds) sized
// for LLM completion latencies.
var generationBuckets = []float64{
	0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60, 120,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.GenerationDuration, err = m.Float64Histogram("chronicler.generation.duration",
		metric.WithDescription("Latency of LLM generation runs by kind and status."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(generationBuckets...),
	); err != nil {
		return nil, err
	}

	if met.TurnsAppended, err = m.Int64Counter("chronicler.turns.appended",
		metric.WithDescription("Total turns appended to session logs by role."),
	); err != nil {
		return nil, err
	}
	if met.SummariesCreated, err = m.Int64Counter("chronicler.summaries.created",
		metric.WithDescription("Total summaries committed by trigger mode."),
	); err != nil {
		return nil, err
	}
	if met.ArchivesAssembled, err = m.Int64Counter("chronicler.archives.assembled",
		metric.WithDescription("Total story archives assembled by style."),
	); err != nil {
		return nil, err
	}
	if met.GenerationRetries, err = m.Int64Counter("chronicler.generation.retries",
		metric.WithDescription("Total retried generation attempts by kind."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("chronicler.provider.errors",
		metric.WithDescription("Total provider errors after retry exhaustion by kind."),
	); err != nil {
		return nil, err
	}

	if met.ActiveSummarizations, err = m.Int64UpDownCounter("chronicler.active_summarizations",
		metric.WithDescription("Number of summarization runs currently in flight."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("chronicler.http.request.duration",
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
			panic("observe: creating default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordGeneration records one finished generation run.
func (m *Metrics) RecordGeneration(ctx context.Context, kind, status string, seconds float64) {
	m.GenerationDuration.Record(ctx, seconds,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}
