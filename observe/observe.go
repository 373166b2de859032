package observe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/jonwraymond/pulse/observe/exporters"
)

// Config selects what an Observer exports and where it logs.
type Config struct {
	ServiceName string
	Version     string

	// InstanceID becomes service.instance.id. Empty leaves it unset; host
	// and PID attributes are always attached.
	InstanceID string

	// SetGlobal installs the providers as the otel globals. Off by default
	// so that two agents in one process do not overwrite each other.
	SetGlobal bool

	Tracing TracingConfig
	Metrics MetricsConfig
	Logging LoggingConfig
}

// TracingConfig configures probe spans.
type TracingConfig struct {
	Enabled   bool
	Exporter  string  // see exporters.TracingExporters
	SamplePct float64 // 0.0-1.0
}

// MetricsConfig configures the OTel meter.
type MetricsConfig struct {
	Enabled  bool
	Exporter string // see exporters.MetricsExporters
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Enabled bool
	Level   string    // debug|info|warn|error
	Output  io.Writer // default os.Stderr
}

// Validate reports every problem in c, not just the first.
func (c *Config) Validate() error {
	var errs []error
	if c.ServiceName == "" {
		errs = append(errs, ErrMissingServiceName)
	}
	if t := c.Tracing; t.Enabled {
		if !exporters.IsTracingExporter(t.Exporter) {
			errs = append(errs, fmt.Errorf("%w %q, want one of %v", ErrInvalidTracingExporter, t.Exporter, exporters.TracingExporters()))
		}
		if t.SamplePct < 0 || t.SamplePct > 1 {
			errs = append(errs, fmt.Errorf("%w, got %g", ErrInvalidSamplePct, t.SamplePct))
		}
	}
	if m := c.Metrics; m.Enabled && !exporters.IsMetricsExporter(m.Exporter) {
		errs = append(errs, fmt.Errorf("%w %q, want one of %v", ErrInvalidMetricsExporter, m.Exporter, exporters.MetricsExporters()))
	}
	if l := c.Logging; l.Enabled && !validLevel(l.Level) {
		errs = append(errs, fmt.Errorf("%w %q", ErrInvalidLogLevel, l.Level))
	}
	return errors.Join(errs...)
}

// Observer hands out the tracer, meter and logger an agent reports through.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Shutdown must honor cancellation/deadlines.
// - Errors: Shutdown is idempotent; later calls return the first result.
type Observer interface {
	Tracer() trace.Tracer
	Meter() metric.Meter
	Logger() Logger

	// Gatherer serves this observer's metrics to a Prometheus scrape. Nil
	// unless the prometheus exporter is selected. Each observer has its own
	// registry, so several can live in one process.
	Gatherer() prometheus.Gatherer

	// Shutdown flushes pending spans and metrics and syncs the logger.
	Shutdown(ctx context.Context) error
}

// Field represents a structured log field.
type Field struct {
	Key   string
	Value any
}

// F is shorthand for constructing a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

type observer struct {
	tracer trace.Tracer
	meter  metric.Meter
	logger Logger

	tp  *sdktrace.TracerProvider
	mp  *sdkmetric.MeterProvider
	reg *prometheus.Registry

	once        sync.Once
	shutdownErr error
}

// NewObserver validates cfg and builds the providers it enables. Disabled
// subsystems get no-op implementations.
func NewObserver(ctx context.Context, cfg Config) (Observer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	o := &observer{
		tracer: tracenoop.NewTracerProvider().Tracer(cfg.ServiceName),
		meter:  metricnoop.NewMeterProvider().Meter(cfg.ServiceName),
		logger: NopLogger(),
	}

	if cfg.Tracing.Enabled {
		exp, err := exporters.NewTracingExporter(ctx, cfg.Tracing.Exporter)
		if err != nil {
			return nil, fmt.Errorf("observe: tracing: %w", err)
		}
		o.tp = sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithSampler(samplerFor(cfg.Tracing.SamplePct)),
			sdktrace.WithBatcher(exp),
		)
		o.tracer = o.tp.Tracer(cfg.ServiceName)
	}

	if cfg.Metrics.Enabled {
		var ropts exporters.ReaderOptions
		if exporters.IsPrometheus(cfg.Metrics.Exporter) {
			o.reg = prometheus.NewRegistry()
			o.reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			ropts.Registerer = o.reg
		}
		reader, err := exporters.NewMetricsReader(ctx, cfg.Metrics.Exporter, ropts)
		if err != nil {
			_ = o.Shutdown(ctx)
			return nil, fmt.Errorf("observe: metrics: %w", err)
		}
		o.mp = sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(reader))
		o.meter = o.mp.Meter(cfg.ServiceName)
	}

	if cfg.SetGlobal {
		if o.tp != nil {
			otel.SetTracerProvider(o.tp)
		}
		if o.mp != nil {
			otel.SetMeterProvider(o.mp)
		}
	}

	if cfg.Logging.Enabled {
		var base Logger
		if cfg.Logging.Output != nil {
			base = NewLoggerWithWriter(cfg.Logging.Level, cfg.Logging.Output)
		} else {
			base = NewLogger(cfg.Logging.Level)
		}
		fields := []Field{F("service", cfg.ServiceName)}
		if cfg.InstanceID != "" {
			fields = append(fields, F("instance", cfg.InstanceID))
		}
		o.logger = base.With(fields...)
	}

	return o, nil
}

func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	attrs := resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.Version),
	)
	opts := []resource.Option{attrs, resource.WithHost(), resource.WithProcessPID(), resource.WithProcessRuntimeVersion()}
	if cfg.InstanceID != "" {
		opts = append(opts, resource.WithAttributes(semconv.ServiceInstanceID(cfg.InstanceID)))
	}

	res, err := resource.New(ctx, opts...)
	// A detector that fails (no hostname in a scratch container) still
	// leaves a usable resource.
	if err != nil && !errors.Is(err, resource.ErrPartialResource) {
		return nil, fmt.Errorf("observe: resource: %w", err)
	}
	return res, nil
}

func samplerFor(pct float64) sdktrace.Sampler {
	switch {
	case pct >= 1:
		return sdktrace.AlwaysSample()
	case pct <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(pct))
	}
}

func (o *observer) Tracer() trace.Tracer { return o.tracer }
func (o *observer) Meter() metric.Meter { return o.meter }
func (o *observer) Logger() Logger { return o.logger }

func (o *observer) Gatherer() prometheus.Gatherer {
	if o.reg == nil {
		return nil
	}
	return o.reg
}

func (o *observer) Shutdown(ctx context.Context) error {
	o.once.Do(func() {
		var errs []error
		if o.tp != nil {
			if err := o.tp.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
			}
		}
		if o.mp != nil {
			if err := o.mp.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("meter shutdown: %w", err))
			}
		}
		if s, ok := o.logger.(interface{ Sync() error }); ok {
			// stderr cannot be synced on some platforms.
			if err := s.Sync(); err != nil && !isSyncUnsupported(err) {
				errs = append(errs, fmt.Errorf("logger sync: %w", err))
			}
		}
		o.shutdownErr = errors.Join(errs...)
	})
	return o.shutdownErr
}
