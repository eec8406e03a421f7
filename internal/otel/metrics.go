package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the tasktrack instruments. A nil *Metrics records nothing.
type Metrics struct {
	MutationDuration     metric.Float64Histogram
	MutationErrors       metric.Int64Counter
	QueryRuns            metric.Int64Counter
	ViewEmissions        metric.Int64Counter
	StaleSearchDiscarded metric.Int64Counter
}

// NewMetrics creates all metric instruments from the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.MutationDuration, err = meter.Float64Histogram("tasktrack.mutation.duration",
		metric.WithDescription("Store mutation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.MutationErrors, err = meter.Int64Counter("tasktrack.mutation.errors",
		metric.WithDescription("Store mutations that failed"),
	)
	if err != nil {
		return nil, err
	}

	m.QueryRuns, err = meter.Int64Counter("tasktrack.query.runs",
		metric.WithDescription("Live query evaluations"),
	)
	if err != nil {
		return nil, err
	}

	m.ViewEmissions, err = meter.Int64Counter("tasktrack.view.emissions",
		metric.WithDescription("Visible list updates published"),
	)
	if err != nil {
		return nil, err
	}

	m.StaleSearchDiscarded, err = meter.Int64Counter("tasktrack.search.stale_discarded",
		metric.WithDescription("Search results dropped because a newer search was issued"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordMutation records the duration of one store mutation and counts it as
// an error when err is non-nil.
func (m *Metrics) RecordMutation(ctx context.Context, op string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(AttrOp.String(op))
	m.MutationDuration.Record(ctx, elapsed.Seconds(), attrs)
	if err != nil {
		m.MutationErrors.Add(ctx, 1, attrs)
	}
}

func (m *Metrics) RecordQueryRun(ctx context.Context, name string) {
	if m == nil {
		return
	}
	m.QueryRuns.Add(ctx, 1, metric.WithAttributes(AttrQuery.String(name)))
}

func (m *Metrics) RecordEmission(ctx context.Context, mode string) {
	if m == nil {
		return
	}
	m.ViewEmissions.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
}

func (m *Metrics) RecordStaleSearch(ctx context.Context) {
	if m == nil {
		return
	}
	m.StaleSearchDiscarded.Add(ctx, 1)
}
