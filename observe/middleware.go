package observe

import (
	"context"
	"time"
)

// ExecuteFunc runs one probe execution and reports the resulting status label.
type ExecuteFunc func(ctx context.Context, probe ProbeMeta) (status string, err error)

// Middleware wraps probe execution with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe ExecuteFunc.
//   - Context: Propagates context through tracing spans.
//   - Errors: Errors from the wrapped function are recorded and returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware. Nil components are replaced with
// no-op implementations.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NopTracer()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// Wrap wraps an ExecuteFunc with tracing, metrics and logging.
func (m *Middleware) Wrap(fn ExecuteFunc) ExecuteFunc {
	return func(ctx context.Context, probe ProbeMeta) (string, error) {
		ctx, span := m.tracer.StartSpan(ctx, probe)
		start := time.Now()

		status, err := fn(ctx, probe)

		duration := time.Since(start)
		m.tracer.EndSpan(span, status, err)
		m.metrics.RecordProbe(ctx, probe, status, duration, err)

		log := m.logger.WithProbe(probe)
		fields := []Field{
			{Key: "duration_ms", Value: float64(duration.Microseconds()) / 1000},
			{Key: "status", Value: status},
		}
		if err != nil {
			fields = append(fields, Field{Key: "error", Value: err.Error()})
			log.Warn(ctx, "probe execution failed", fields...)
		} else {
			log.Debug(ctx, "probe execution completed", fields...)
		}

		return status, err
	}
}
