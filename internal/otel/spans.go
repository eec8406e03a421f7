package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

// Standard attribute keys for tasktrack spans.
var (
	AttrTaskID = attribute.Key("tasktrack.task.id")
	AttrOp     = attribute.Key("tasktrack.op")
	AttrOpID   = attribute.Key("tasktrack.op.id")
	AttrRows   = attribute.Key("tasktrack.rows")
	AttrQuery  = attribute.Key("tasktrack.query")
)

// StartSpan is a convenience wrapper that starts an internal span with common attributes.
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// NoopTracer returns a tracer that records nothing.
func NoopTracer() trace.Tracer {
	return nooptrace.NewTracerProvider().Tracer(TracerName)
}
