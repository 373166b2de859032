// Package config loads agent configuration from the environment, an
// optional .env file and an optional YAML file.
//
// Environment variables use the PULSE_ prefix and supply the defaults. A
// YAML file, when given, is expanded with ExpandEnvStrict and overlaid on
// top, so values present in the file win. Credential fields may hold
// secretref: references resolved by package secret. Validation runs last and
// fails fast before anything is scheduled.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/pulse/observe"
	"github.com/jonwraymond/pulse/probes"
	"github.com/jonwraymond/pulse/secret"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "PULSE_"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config holds all agent configuration.
type Config struct {
	Health       HealthConfig     `yaml:"health"`
	Metrics      MetricsConfig    `yaml:"metrics"`
	Requests     RequestsConfig   `yaml:"requests"`
	Probes       ProbesConfig     `yaml:"probes"`
	Thresholds   ThresholdsConfig `yaml:"thresholds"`
	Observe      ObserveConfig    `yaml:"observe"`
	Auth         AuthConfig       `yaml:"auth"`
	Server       ServerConfig     `yaml:"server"`
	Dependencies DependencyConfig `yaml:"dependencies"`
}

// HealthConfig controls the health routes.
type HealthConfig struct {
	Enabled bool   `env:"HEALTH_ENABLED" envDefault:"true" yaml:"enabled"`
	Path    string `env:"HEALTH_PATH" envDefault:"/health" yaml:"path"`
}

// MetricsConfig controls snapshot collection.
type MetricsConfig struct {
	Enabled     bool          `env:"METRICS_ENABLED" envDefault:"true" yaml:"enabled"`
	Interval    time.Duration `env:"METRICS_INTERVAL" envDefault:"30s" yaml:"interval"`
	HistorySize int           `env:"METRICS_HISTORY_SIZE" envDefault:"100" yaml:"historySize"`
}

// RequestsConfig controls request tracking.
type RequestsConfig struct {
	Track       bool `env:"TRACK_REQUESTS" envDefault:"true" yaml:"track"`
	TrackErrors bool `env:"TRACK_ERRORS" envDefault:"true" yaml:"trackErrors"`
	WindowSize  int  `env:"REQUEST_WINDOW_SIZE" envDefault:"100" yaml:"windowSize"`
}

// ProbesConfig controls probe scheduling.
type ProbesConfig struct {
	Interval time.Duration `env:"PROBE_INTERVAL" envDefault:"60s" yaml:"interval"`
	Timeout  time.Duration `env:"PROBE_TIMEOUT" envDefault:"0s" yaml:"timeout"`
	Builtins bool          `env:"PROBE_BUILTINS" envDefault:"true" yaml:"builtins"`
	DiskDir  string        `env:"PROBE_DISK_DIR" yaml:"diskDir"`
}

// ThresholdsConfig holds the alert thresholds.
type ThresholdsConfig struct {
	MemoryUsage  float64       `env:"THRESHOLD_MEMORY_USAGE" envDefault:"80" yaml:"memoryUsage"`
	CPUUsage     float64       `env:"THRESHOLD_CPU_USAGE" envDefault:"80" yaml:"cpuUsage"`
	ResponseTime time.Duration `env:"THRESHOLD_RESPONSE_TIME" envDefault:"1s" yaml:"responseTime"`
	ErrorRate    float64       `env:"THRESHOLD_ERROR_RATE" envDefault:"5" yaml:"errorRate"`
}

// ObserveConfig controls logging, tracing and OTel metrics.
type ObserveConfig struct {
	ServiceName     string  `env:"SERVICE_NAME" envDefault:"pulse" yaml:"serviceName"`
	Version         string  `env:"VERSION" envDefault:"dev" yaml:"version"`
	InstanceID      string  `env:"INSTANCE_ID" yaml:"instanceID"`
	LogLevel        string  `env:"LOG_LEVEL" envDefault:"info" yaml:"logLevel"`
	Tracing         bool    `env:"TRACING_ENABLED" envDefault:"false" yaml:"tracing"`
	TracingExporter string  `env:"TRACING_EXPORTER" envDefault:"none" yaml:"tracingExporter"`
	SamplePct       float64 `env:"TRACING_SAMPLE_PCT" envDefault:"1" yaml:"samplePct"`
	OTelMetrics     bool    `env:"OTEL_METRICS_ENABLED" envDefault:"true" yaml:"otelMetrics"`
	MetricsExporter string  `env:"METRICS_EXPORTER" envDefault:"prometheus" yaml:"metricsExporter"`
}

// AuthConfig enables the JWT guard when Secret is set.
type AuthConfig struct {
	Secret   string `env:"AUTH_JWT_SECRET" yaml:"secret"`
	Issuer   string `env:"AUTH_JWT_ISSUER" yaml:"issuer"`
	Audience string `env:"AUTH_JWT_AUDIENCE" yaml:"audience"`
}

// ServerConfig configures the standalone server.
type ServerConfig struct {
	Addr            string        `env:"SERVER_ADDR" envDefault:":8080" yaml:"addr"`
	PrometheusPath  string        `env:"PROMETHEUS_PATH" envDefault:"/metrics" yaml:"prometheusPath"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s" yaml:"shutdownTimeout"`
}

// DependencyConfig names optional external dependencies to probe.
type DependencyConfig struct {
	PostgresDSN    string `env:"POSTGRES_DSN" yaml:"postgresDSN"`
	RedisAddr      string `env:"REDIS_ADDR" yaml:"redisAddr"`
	RedisPassword  string `env:"REDIS_PASSWORD" yaml:"redisPassword"`
	StartupRetries int    `env:"STARTUP_RETRIES" envDefault:"3" yaml:"startupRetries"`
}

// Default returns the configuration produced by an empty environment.
func Default() *Config {
	cfg := &Config{}
	// Only envDefault tags are involved; parsing cannot fail.
	_ = env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix, Environment: map[string]string{}})
	return cfg
}

// Load builds the configuration. envFiles are loaded with godotenv first;
// when none are given an optional ".env" in the working directory is used.
// Variables already set in the process environment are not overwritten.
// path, when non-empty, names a YAML file overlaid on the environment.
func Load(path string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		if _, err := os.Stat(".env"); err == nil {
			envFiles = []string{".env"}
		}
	}
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return nil, fmt.Errorf("failed to load env files: %w", err)
		}
	}

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if path != "" {
		if err := overlayFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := cfg.resolveSecrets(context.Background()); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveSecrets replaces secretref: references in the credential fields,
// for example "secretref:file:/run/secrets/jwt".
func (c *Config) resolveSecrets(ctx context.Context) error {
	err := secret.Default().ResolveAll(ctx, map[string]*string{
		"auth.secret":                &c.Auth.Secret,
		"dependencies.postgresDSN":   &c.Dependencies.PostgresDSN,
		"dependencies.redisPassword": &c.Dependencies.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func overlayFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	expanded, err := ExpandEnvStrict(string(raw))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	return nil
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.Health.Enabled && !strings.HasPrefix(c.Health.Path, "/") {
		fail("health.path must start with '/', got %q", c.Health.Path)
	}
	if c.Health.Enabled && strings.HasSuffix(c.Health.Path, "/") {
		fail("health.path must not end with '/', got %q", c.Health.Path)
	}
	if c.Metrics.Enabled && c.Metrics.Interval <= 0 {
		fail("metrics.interval must be > 0")
	}
	if c.Metrics.HistorySize <= 0 {
		fail("metrics.historySize must be > 0")
	}
	if c.Requests.WindowSize <= 0 {
		fail("requests.windowSize must be > 0")
	}
	if c.Probes.Interval <= 0 {
		fail("probes.interval must be > 0")
	}
	if c.Probes.Timeout < 0 {
		fail("probes.timeout must be >= 0")
	}
	if err := c.ThresholdValues().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidConfig, err))
	}
	oc := c.ObserveConfig()
	if err := oc.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidConfig, err))
	}
	if !strings.HasPrefix(c.Server.PrometheusPath, "/") {
		fail("server.prometheusPath must start with '/', got %q", c.Server.PrometheusPath)
	}
	if c.Server.ShutdownTimeout <= 0 {
		fail("server.shutdownTimeout must be > 0")
	}
	if c.Dependencies.StartupRetries < 0 {
		fail("dependencies.startupRetries must be >= 0")
	}

	return errors.Join(errs...)
}

// ThresholdValues converts the thresholds for the probes package.
func (c *Config) ThresholdValues() probes.Thresholds {
	return probes.Thresholds{
		MemoryUsage:  c.Thresholds.MemoryUsage,
		CPUUsage:     c.Thresholds.CPUUsage,
		ResponseTime: c.Thresholds.ResponseTime,
		ErrorRate:    c.Thresholds.ErrorRate,
	}
}

// ObserveConfig converts the observability settings.
func (c *Config) ObserveConfig() observe.Config {
	return observe.Config{
		ServiceName: c.Observe.ServiceName,
		Version:     c.Observe.Version,
		InstanceID:  c.Observe.InstanceID,
		Tracing: observe.TracingConfig{
			Enabled:   c.Observe.Tracing,
			Exporter:  c.Observe.TracingExporter,
			SamplePct: c.Observe.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  c.Observe.OTelMetrics,
			Exporter: c.Observe.MetricsExporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   c.Observe.LogLevel,
		},
	}
}
