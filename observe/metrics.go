package observe

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records probe and request metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordProbe records one probe execution.
	RecordProbe(ctx context.Context, meta ProbeMeta, status string, duration time.Duration, err error)

	// RecordRequest records one served HTTP request.
	RecordRequest(ctx context.Context, method string, statusCode int, duration time.Duration)
}

type metricsImpl struct {
	probeTotal    metric.Int64Counter
	probeFailures metric.Int64Counter
	probeDuration metric.Float64Histogram

	requestTotal    metric.Int64Counter
	requestErrors   metric.Int64Counter
	requestDuration metric.Float64Histogram
}

// NewMetrics creates the probe and request instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	m := &metricsImpl{}
	var err error

	if m.probeTotal, err = meter.Int64Counter(
		"probe.exec.total",
		metric.WithDescription("Total number of probe executions"),
		metric.WithUnit("{run}"),
	); err != nil {
		return nil, err
	}

	if m.probeFailures, err = meter.Int64Counter(
		"probe.exec.failures",
		metric.WithDescription("Probe executions that failed, panicked or timed out"),
		metric.WithUnit("{run}"),
	); err != nil {
		return nil, err
	}

	if m.probeDuration, err = meter.Float64Histogram(
		"probe.exec.duration_ms",
		metric.WithDescription("Probe execution duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	if m.requestTotal, err = meter.Int64Counter(
		"http.server.requests",
		metric.WithDescription("Total number of tracked requests"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}

	if m.requestErrors, err = meter.Int64Counter(
		"http.server.errors",
		metric.WithDescription("Tracked requests that finished with status >= 400"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}

	if m.requestDuration, err = meter.Float64Histogram(
		"http.server.duration_ms",
		metric.WithDescription("Tracked request duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *metricsImpl) RecordProbe(ctx context.Context, meta ProbeMeta, status string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("probe.name", meta.Name),
	}
	if status != "" {
		attrs = append(attrs, attribute.String("probe.status", status))
	}
	opt := metric.WithAttributes(attrs...)

	m.probeTotal.Add(ctx, 1, opt)
	if err != nil {
		m.probeFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("probe.name", meta.Name)))
	}
	m.probeDuration.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

func (m *metricsImpl) RecordRequest(ctx context.Context, method string, statusCode int, duration time.Duration) {
	opt := metric.WithAttributes(
		attribute.String("http.request.method", method),
		attribute.String("http.response.status_code", strconv.Itoa(statusCode)),
	)

	m.requestTotal.Add(ctx, 1, opt)
	if statusCode >= 400 {
		m.requestErrors.Add(ctx, 1, opt)
	}
	m.requestDuration.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

type noopMetrics struct{}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics {
	return noopMetrics{}
}

func (noopMetrics) RecordProbe(ctx context.Context, meta ProbeMeta, status string, duration time.Duration, err error) {
}

func (noopMetrics) RecordRequest(ctx context.Context, method string, statusCode int, duration time.Duration) {
}

// GaugeReadings is the latest resource state exported as observable gauges.
type GaugeReadings struct {
	MemoryPercent  float64
	HeapPercent    float64
	CPUPercent     float64
	ActiveRequests int64
}

// RegisterGauges registers observable gauges that call read on every
// collection. The returned registration unregisters the callback.
func RegisterGauges(meter metric.Meter, read func(ctx context.Context) GaugeReadings) (metric.Registration, error) {
	memory, err := meter.Float64ObservableGauge(
		"process.memory.percent",
		metric.WithDescription("System memory in use, percent"),
		metric.WithUnit("%"),
	)
	if err != nil {
		return nil, err
	}

	heap, err := meter.Float64ObservableGauge(
		"process.heap.percent",
		metric.WithDescription("Go heap in use relative to heap reserved, percent"),
		metric.WithUnit("%"),
	)
	if err != nil {
		return nil, err
	}

	cpu, err := meter.Float64ObservableGauge(
		"process.cpu.percent",
		metric.WithDescription("Smoothed process CPU usage, percent"),
		metric.WithUnit("%"),
	)
	if err != nil {
		return nil, err
	}

	active, err := meter.Int64ObservableGauge(
		"http.server.active_requests",
		metric.WithDescription("Requests currently in flight"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		r := read(ctx)
		o.ObserveFloat64(memory, r.MemoryPercent)
		o.ObserveFloat64(heap, r.HeapPercent)
		o.ObserveFloat64(cpu, r.CPUPercent)
		o.ObserveInt64(active, r.ActiveRequests)
		return nil
	}, memory, heap, cpu, active)
}
