package otel

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNewMetrics_AllInstrumentsCreated(t *testing.T) {
	p, err := Init(context.Background(), Config{
		Enabled:  true,
		Exporter: "none",
	})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer p.Shutdown(context.Background())

	m, err := NewMetrics(p.Meter)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	if m.MutationDuration == nil {
		t.Error("MutationDuration is nil")
	}
	if m.MutationErrors == nil {
		t.Error("MutationErrors is nil")
	}
	if m.QueryRuns == nil {
		t.Error("QueryRuns is nil")
	}
	if m.ViewEmissions == nil {
		t.Error("ViewEmissions is nil")
	}
	if m.StaleSearchDiscarded == nil {
		t.Error("StaleSearchDiscarded is nil")
	}
}

func TestNewMetrics_NoopMeter(t *testing.T) {
	// Disabled OTel returns noop meter; instruments still create without error.
	p, err := Init(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer p.Shutdown(context.Background())

	m, err := NewMetrics(p.Meter)
	if err != nil {
		t.Fatalf("NewMetrics with noop: %v", err)
	}
	if m == nil {
		t.Fatal("expected non-nil Metrics")
	}
	m.RecordMutation(context.Background(), "insert", time.Millisecond, nil)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordMutation(context.Background(), "insert", time.Millisecond, errors.New("boom"))
	m.RecordQueryRun(context.Background(), "all")
	m.RecordEmission(context.Background(), "filter")
	m.RecordStaleSearch(context.Background())
}

func sumCounter(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if md.Name != name {
				continue
			}
			sum, ok := md.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s data = %T, want Sum[int64]", name, md.Data)
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestMetrics_RecordMutationCountsErrors(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	p, err := Init(context.Background(), Config{Enabled: true, Exporter: "none"}, reader)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer p.Shutdown(context.Background())

	m, err := NewMetrics(p.Meter)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	ctx := context.Background()
	m.RecordMutation(ctx, "insert", time.Millisecond, nil)
	m.RecordMutation(ctx, "update", time.Millisecond, errors.New("disk full"))
	m.RecordStaleSearch(ctx)
	m.RecordStaleSearch(ctx)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	if got := sumCounter(t, rm, "tasktrack.mutation.errors"); got != 1 {
		t.Fatalf("mutation.errors = %d, want 1", got)
	}
	if got := sumCounter(t, rm, "tasktrack.search.stale_discarded"); got != 2 {
		t.Fatalf("search.stale_discarded = %d, want 2", got)
	}
}
