package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestConfigValidate_Valid(t *testing.T) {
	cfg := Config{
		ServiceName: "pulse",
		Version:     "1.0.0",
		Tracing:     TracingConfig{Enabled: true, Exporter: "stdout", SamplePct: 1.0},
		Metrics:     MetricsConfig{Enabled: true, Exporter: "none"},
		Logging:     LoggingConfig{Enabled: true, Level: "info"},
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected nil error, got: %v", err)
	}
}

func TestConfigValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{
			name: "missing service name",
			cfg:  Config{},
			want: ErrMissingServiceName,
		},
		{
			name: "unknown tracing exporter",
			cfg:  Config{ServiceName: "s", Tracing: TracingConfig{Enabled: true, Exporter: "zipkin"}},
			want: ErrInvalidTracingExporter,
		},
		{
			name: "sample pct out of range",
			cfg:  Config{ServiceName: "s", Tracing: TracingConfig{Enabled: true, Exporter: "none", SamplePct: 1.5}},
			want: ErrInvalidSamplePct,
		},
		{
			name: "unknown metrics exporter",
			cfg:  Config{ServiceName: "s", Metrics: MetricsConfig{Enabled: true, Exporter: "statsd"}},
			want: ErrInvalidMetricsExporter,
		},
		{
			name: "unknown log level",
			cfg:  Config{ServiceName: "s", Logging: LoggingConfig{Enabled: true, Level: "trace"}},
			want: ErrInvalidLogLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestConfigValidate_DisabledSubsystemsIgnoreValues(t *testing.T) {
	cfg := Config{
		ServiceName: "s",
		Tracing:     TracingConfig{Enabled: false, Exporter: "bogus"},
		Metrics:     MetricsConfig{Enabled: false, Exporter: "bogus"},
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected nil error for disabled subsystems, got: %v", err)
	}
}

func TestNewObserver_Disabled(t *testing.T) {
	obs, err := NewObserver(context.Background(), Config{ServiceName: "pulse"})
	if err != nil {
		t.Fatalf("NewObserver() error = %v", err)
	}
	if obs.Tracer() == nil || obs.Meter() == nil || obs.Logger() == nil {
		t.Fatal("expected non-nil noop components")
	}
	if err := obs.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNewObserver_Enabled(t *testing.T) {
	obs, err := NewObserver(context.Background(), Config{
		ServiceName: "pulse",
		Version:     "test",
		Tracing:     TracingConfig{Enabled: true, Exporter: "none", SamplePct: 0.5},
		Metrics:     MetricsConfig{Enabled: true, Exporter: "none"},
		Logging:     LoggingConfig{Enabled: true, Level: "error"},
	})
	if err != nil {
		t.Fatalf("NewObserver() error = %v", err)
	}

	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger())
	if err := obs.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestConfigValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Config{
		Tracing: TracingConfig{Enabled: true, Exporter: "zipkin", SamplePct: -1},
		Logging: LoggingConfig{Enabled: true, Level: "loud"},
	}
	err := cfg.Validate()
	for _, want := range []error{ErrMissingServiceName, ErrInvalidTracingExporter, ErrInvalidSamplePct, ErrInvalidLogLevel} {
		if !errors.Is(err, want) {
			t.Errorf("Validate() = %v, missing %v", err, want)
		}
	}
}

func TestNewObserver_LogOutputAndInstance(t *testing.T) {
	var buf bytes.Buffer
	obs, err := NewObserver(context.Background(), Config{
		ServiceName: "pulse",
		InstanceID:  "pulse-1",
		Logging:     LoggingConfig{Enabled: true, Level: "info", Output: &buf},
	})
	if err != nil {
		t.Fatalf("NewObserver() error = %v", err)
	}
	obs.Logger().Info(context.Background(), "hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["service"] != "pulse" || entry["instance"] != "pulse-1" {
		t.Errorf("entry = %v, want service=pulse instance=pulse-1", entry)
	}
}

func TestObserver_ShutdownIsIdempotent(t *testing.T) {
	obs, err := NewObserver(context.Background(), Config{
		ServiceName: "pulse",
		Tracing:     TracingConfig{Enabled: true, Exporter: "none", SamplePct: 1},
		Metrics:     MetricsConfig{Enabled: true, Exporter: "none"},
	})
	if err != nil {
		t.Fatalf("NewObserver() error = %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := obs.Shutdown(context.Background()); err != nil {
			t.Errorf("Shutdown() #%d error = %v", i+1, err)
		}
	}
}

func TestSamplerFor(t *testing.T) {
	tests := []struct {
		pct  float64
		want string
	}{
		{1, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
	}
	for _, tt := range tests {
		if got := samplerFor(tt.pct).Description(); got != tt.want {
			t.Errorf("samplerFor(%g) = %q, want %q", tt.pct, got, tt.want)
		}
	}
}

func TestNewObserver_InvalidConfig(t *testing.T) {
	if _, err := NewObserver(context.Background(), Config{}); !errors.Is(err, ErrMissingServiceName) {
		t.Errorf("expected ErrMissingServiceName, got %v", err)
	}
}
