// Package exporters maps the exporter names accepted in pulse configuration
// to OpenTelemetry span exporters and metric readers.
//
// Endpoints come from the standard OTEL_EXPORTER_* variables. The names
// "none" and "" build sinks that keep instruments working but ship nothing,
// which is what `pulse check` and the tests use.
package exporters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

var (
	// ErrEndpointNotConfigured is returned for a remote exporter whose
	// endpoint variables are all empty.
	ErrEndpointNotConfigured = errors.New("exporters: endpoint not configured")

	// ErrUnknownExporter is returned for a name with no registered builder.
	ErrUnknownExporter = errors.New("exporters: unknown exporter")
)

// Stdout is where the stdout exporters write.
var Stdout io.Writer = os.Stdout

type spanBuilder func(ctx context.Context) (sdktrace.SpanExporter, error)

// ReaderOptions tune NewMetricsReader.
type ReaderOptions struct {
	// Registerer receives the prometheus collector. Default:
	// prometheus.DefaultRegisterer, which allows only one reader per process.
	Registerer promclient.Registerer
}

type readerBuilder func(ctx context.Context, opts ReaderOptions) (sdkmetric.Reader, error)

var spanBuilders = map[string]spanBuilder{
	"stdout": func(context.Context) (sdktrace.SpanExporter, error) {
		return stdouttrace.New(stdouttrace.WithWriter(Stdout), stdouttrace.WithPrettyPrint())
	},
	"otlp": otlpSpans("OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"),
	// Jaeger ingests OTLP natively.
	"jaeger": otlpSpans("OTEL_EXPORTER_JAEGER_ENDPOINT"),
	"none": func(context.Context) (sdktrace.SpanExporter, error) {
		return stdouttrace.New(stdouttrace.WithWriter(io.Discard))
	},
}

var readerBuilders = map[string]readerBuilder{
	"stdout": func(context.Context, ReaderOptions) (sdkmetric.Reader, error) {
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(Stdout))
		if err != nil {
			return nil, err
		}
		return sdkmetric.NewPeriodicReader(exp), nil
	},
	"otlp": func(ctx context.Context, _ ReaderOptions) (sdkmetric.Reader, error) {
		if err := lookupEndpoint("OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"); err != nil {
			return nil, err
		}
		exp, err := otlpmetricgrpc.New(ctx)
		if err != nil {
			return nil, err
		}
		return sdkmetric.NewPeriodicReader(exp), nil
	},
	"prometheus": func(_ context.Context, opts ReaderOptions) (sdkmetric.Reader, error) {
		if opts.Registerer == nil {
			return prometheus.New()
		}
		return prometheus.New(prometheus.WithRegisterer(opts.Registerer))
	},
	// A manual reader is never collected, so instruments cost nothing.
	"none": func(context.Context, ReaderOptions) (sdkmetric.Reader, error) {
		return sdkmetric.NewManualReader(), nil
	},
}

// otlpSpans builds a gRPC OTLP exporter once one of keys is set.
func otlpSpans(keys ...string) spanBuilder {
	return func(ctx context.Context) (sdktrace.SpanExporter, error) {
		if err := lookupEndpoint(keys...); err != nil {
			return nil, err
		}
		return otlptracegrpc.New(ctx)
	}
}

func lookupEndpoint(keys ...string) error {
	for _, k := range keys {
		if os.Getenv(k) != "" {
			return nil
		}
	}
	return fmt.Errorf("%w: set one of %s", ErrEndpointNotConfigured, strings.Join(keys, ", "))
}

func canonical(name string) string {
	if name == "" {
		return "none"
	}
	return strings.ToLower(name)
}

// NewTracingExporter builds the span exporter registered under name.
func NewTracingExporter(ctx context.Context, name string) (sdktrace.SpanExporter, error) {
	build, ok := spanBuilders[canonical(name)]
	if !ok {
		return nil, fmt.Errorf("%w: tracing %q", ErrUnknownExporter, name)
	}
	exp, err := build(ctx)
	if err != nil {
		return nil, fmt.Errorf("tracing exporter %s: %w", canonical(name), err)
	}
	return exp, nil
}

// NewMetricsReader builds the metric reader registered under name.
func NewMetricsReader(ctx context.Context, name string, opts ...ReaderOptions) (sdkmetric.Reader, error) {
	build, ok := readerBuilders[canonical(name)]
	if !ok {
		return nil, fmt.Errorf("%w: metrics %q", ErrUnknownExporter, name)
	}
	var o ReaderOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	r, err := build(ctx, o)
	if err != nil {
		return nil, fmt.Errorf("metrics exporter %s: %w", canonical(name), err)
	}
	return r, nil
}

// TracingExporters lists the accepted tracing exporter names, sorted.
func TracingExporters() []string { return sortedKeys(spanBuilders) }

// MetricsExporters lists the accepted metrics exporter names, sorted.
func MetricsExporters() []string { return sortedKeys(readerBuilders) }

// IsTracingExporter reports whether name has a span exporter.
func IsTracingExporter(name string) bool {
	_, ok := spanBuilders[canonical(name)]
	return ok
}

// IsMetricsExporter reports whether name has a metric reader.
func IsMetricsExporter(name string) bool {
	_, ok := readerBuilders[canonical(name)]
	return ok
}

// IsPrometheus reports whether name selects the pull-based prometheus reader.
func IsPrometheus(name string) bool { return canonical(name) == "prometheus" }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
