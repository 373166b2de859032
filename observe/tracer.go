package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// ProbeMeta describes a probe for telemetry purposes.
type ProbeMeta struct {
	Name     string        // Probe name (required)
	Interval time.Duration // Scheduling interval (optional)
	Timeout  time.Duration // Execution timeout, zero when unbounded (optional)
}

// SpanName returns the deterministic span name for this probe.
// Format: probe.check.<name>
func (m ProbeMeta) SpanName() string {
	return "probe.check." + m.Name
}

// Tracer wraps OpenTelemetry tracing with probe-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a probe execution.
	StartSpan(ctx context.Context, meta ProbeMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording the resulting status and any error.
	EndSpan(span trace.Span, status string, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a new span with probe metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta ProbeMeta) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("probe.name", meta.Name),
		attribute.Bool("probe.error", false),
	}
	if meta.Interval > 0 {
		attrs = append(attrs, attribute.Int64("probe.interval_ms", meta.Interval.Milliseconds()))
	}
	if meta.Timeout > 0 {
		attrs = append(attrs, attribute.Int64("probe.timeout_ms", meta.Timeout.Milliseconds()))
	}

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpan ends the span and records status and error.
func (t *tracerImpl) EndSpan(span trace.Span, status string, err error) {
	if status != "" {
		span.SetAttributes(attribute.String("probe.status", status))
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("probe.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type noopTracer struct {
	noop trace.Tracer
}

// NopTracer returns a tracer that records nothing.
func NopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta ProbeMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, status string, err error) {
	span.End()
}
