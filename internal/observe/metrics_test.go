package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestGenerationDuration_Records(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordGeneration(ctx, "summary", "ok", 2.5)
	m.RecordGeneration(ctx, "story", "error", 0.8)

	rm := collect(t, reader)
	md := findMetric(rm, "chronicler.generation.duration")
	if md == nil {
		t.Fatal("chronicler.generation.duration not found")
	}
	hist, ok := md.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("data type = %T, want Histogram[float64]", md.Data)
	}
	if len(hist.DataPoints) != 2 {
		t.Fatalf("data points = %d, want 2 (one per attribute set)", len(hist.DataPoints))
	}
}

func TestCounters_Accumulate(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	counters := []struct {
		name string
		c    metric.Int64Counter
	}{
		{"chronicler.turns.appended", m.TurnsAppended},
		{"chronicler.summaries.created", m.SummariesCreated},
		{"chronicler.archives.assembled", m.ArchivesAssembled},
		{"chronicler.generation.retries", m.GenerationRetries},
		{"chronicler.provider.errors", m.ProviderErrors},
	}
	for _, c := range counters {
		c.c.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "summary")))
		c.c.Add(ctx, 2, metric.WithAttributes(attribute.String("kind", "summary")))
	}

	rm := collect(t, reader)
	for _, c := range counters {
		md := findMetric(rm, c.name)
		if md == nil {
			t.Errorf("%s not found", c.name)
			continue
		}
		sum, ok := md.Data.(metricdata.Sum[int64])
		if !ok {
			t.Errorf("%s data type = %T, want Sum[int64]", c.name, md.Data)
			continue
		}
		if got := sum.DataPoints[0].Value; got != 3 {
			t.Errorf("%s = %d, want 3", c.name, got)
		}
	}
}

func TestActiveSummarizations_UpAndDown(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveSummarizations.Add(ctx, 1)
	m.ActiveSummarizations.Add(ctx, 1)
	m.ActiveSummarizations.Add(ctx, -1)

	rm := collect(t, reader)
	md := findMetric(rm, "chronicler.active_summarizations")
	if md == nil {
		t.Fatal("chronicler.active_summarizations not found")
	}
	sum, ok := md.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("data type = %T, want Sum[int64]", md.Data)
	}
	if got := sum.DataPoints[0].Value; got != 1 {
		t.Errorf("active summarizations = %d, want 1", got)
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different instances")
	}
}
