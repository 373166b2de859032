// Package agent owns one instance of every pulse component and wires them
// together from a config.Config.
//
// There is no package-level state: a host builds an Agent, mounts its routes
// and middleware, calls Start and later Shutdown. Two Agents in one process
// are independent.
package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jonwraymond/pulse/auth"
	"github.com/jonwraymond/pulse/config"
	"github.com/jonwraymond/pulse/health"
	"github.com/jonwraymond/pulse/httpapi"
	"github.com/jonwraymond/pulse/monitor"
	"github.com/jonwraymond/pulse/observe"
	"github.com/jonwraymond/pulse/probes"
	"github.com/jonwraymond/pulse/requests"
	"github.com/jonwraymond/pulse/sampler"
)

// ErrAlreadyStarted is returned by Start on a running or shut down Agent.
var ErrAlreadyStarted = errors.New("agent: already started")

// Options overrides components New would otherwise build from the config.
type Options struct {
	// Observer replaces the one built from cfg.Observe. The Agent does not
	// shut down an Observer it did not create.
	Observer observe.Observer

	// Logger replaces the observer's logger.
	Logger observe.Logger

	// Source replaces the gopsutil metrics source.
	Source sampler.Source

	// Probes are registered after the built-in probes on Start.
	Probes []health.Probe

	// Now is the clock for the tracker and the monitor. Default: time.Now.
	Now func() time.Time
}

// Agent is the explicitly constructed owner of the sampler, request
// tracker, probe scheduler and aggregator.
//
// Contract:
//   - Concurrency: all methods are safe for concurrent use.
//   - Lifecycle: Start once, Shutdown once. Shutdown without Start only
//     releases the observer.
type Agent struct {
	cfg    *config.Config
	opts   Options
	obs    observe.Observer
	ownObs bool
	logger observe.Logger

	metrics   observe.Metrics
	sampler   *sampler.Sampler
	tracker   *requests.Tracker
	hooks     requests.Hooks
	scheduler *health.Scheduler
	monitor   *monitor.Monitor
	guard     func(http.Handler) http.Handler

	mu      sync.Mutex
	started bool
	stopped bool
}

// New validates cfg and Options.Probes and builds every component. Nothing
// is scheduled until Start.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Agent, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, p := range opts.Probes {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("agent: %w", err)
		}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	a := &Agent{cfg: cfg, opts: opts, obs: opts.Observer}
	if a.obs == nil {
		obs, err := observe.NewObserver(ctx, cfg.ObserveConfig())
		if err != nil {
			return nil, fmt.Errorf("agent: observer: %w", err)
		}
		a.obs = obs
		a.ownObs = true
	}
	a.logger = opts.Logger
	if a.logger == nil {
		a.logger = a.obs.Logger()
	}

	// The middleware is built directly so that opts.Logger reaches probe logs.
	metrics, err := observe.NewMetrics(a.obs.Meter())
	if err != nil {
		a.closeObserver(ctx)
		return nil, fmt.Errorf("agent: metrics: %w", err)
	}
	a.metrics = metrics
	mw := observe.NewMiddleware(observe.NewTracer(a.obs.Tracer()), metrics, a.logger)

	src := opts.Source
	if src == nil {
		src = sampler.NewSystemSource()
	}
	a.sampler = sampler.New(sampler.Config{Logger: a.logger, Now: opts.Now}, src)

	a.tracker = requests.NewTracker(cfg.Requests.WindowSize, opts.Now)
	a.hooks = requests.NewHooks(a.tracker, requests.Options{
		TrackRequests: cfg.Requests.Track,
		TrackErrors:   cfg.Requests.TrackErrors,
	})

	a.scheduler = health.NewScheduler(
		health.WithLogger(a.logger),
		health.WithMiddleware(mw),
		health.WithDefaultInterval(cfg.Probes.Interval),
		health.WithDefaultTimeout(cfg.Probes.Timeout),
	)

	mcfg := monitor.Config{
		Collect:         cfg.Metrics.Enabled,
		CollectInterval: cfg.Metrics.Interval,
		HistorySize:     cfg.Metrics.HistorySize,
		Version:         cfg.Observe.Version,
		Logger:          a.logger,
		Now:             opts.Now,
	}
	if cfg.Observe.OTelMetrics {
		mcfg.Meter = a.obs.Meter()
	}
	a.monitor = monitor.New(mcfg, a.sampler, a.tracker, a.scheduler)

	a.guard = auth.Guard(nil, nil)
	if cfg.Auth.Secret != "" {
		v, err := auth.NewVerifier(auth.JWTConfig{
			Secret:   []byte(cfg.Auth.Secret),
			Issuer:   cfg.Auth.Issuer,
			Audience: cfg.Auth.Audience,
		})
		if err != nil {
			a.closeObserver(ctx)
			return nil, fmt.Errorf("agent: auth: %w", err)
		}
		a.guard = auth.Guard(v, a.logger)
	}

	return a, nil
}

// Start starts the sampler and collection ticks and registers the built-in
// probes (when enabled) followed by Options.Probes.
func (a *Agent) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started || a.stopped {
		return ErrAlreadyStarted
	}

	if err := a.monitor.Start(ctx); err != nil {
		return fmt.Errorf("agent: monitor: %w", err)
	}
	a.started = true

	var list []health.Probe
	if a.cfg.Probes.Builtins {
		list = probes.Builtins(probes.Options{
			Resources:  a.sampler,
			Thresholds: a.cfg.ThresholdValues(),
			Interval:   a.cfg.Probes.Interval,
			Start:      a.monitor.StartTime(),
			Dir:        a.cfg.Probes.DiskDir,
		})
	}
	list = append(list, a.opts.Probes...)

	var errs []error
	for _, p := range list {
		if err := a.scheduler.Register(p); err != nil {
			errs = append(errs, err)
		}
	}

	th := a.cfg.Thresholds
	a.logger.Info(ctx, "agent started",
		observe.F("probes", len(a.scheduler.Names())),
		observe.F("health_path", a.cfg.Health.Path),
		observe.F("response_time_threshold", th.ResponseTime.String()),
		observe.F("error_rate_threshold", th.ErrorRate))
	return errors.Join(errs...)
}

// Shutdown stops probe scheduling and metric collection and flushes the
// observer. Idempotent.
func (a *Agent) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return nil
	}
	a.stopped = true
	a.mu.Unlock()

	a.scheduler.Stop()
	a.monitor.Stop()
	a.logger.Info(ctx, "agent stopped")

	if !a.ownObs {
		return nil
	}
	return a.obs.Shutdown(ctx)
}

func (a *Agent) closeObserver(ctx context.Context) {
	if a.ownObs {
		_ = a.obs.Shutdown(ctx)
	}
}

// RegisterProbe schedules p. A probe with the same name is replaced.
func (a *Agent) RegisterProbe(p health.Probe) error {
	return a.scheduler.Register(p)
}

// UnregisterProbe removes the named probe.
func (a *Agent) UnregisterProbe(name string) bool {
	return a.scheduler.Unregister(name)
}

// Register mounts the health routes on mux behind the auth guard.
func (a *Agent) Register(mux *http.ServeMux) {
	httpapi.Register(mux, a.monitor, httpapi.Options{
		Enabled: a.cfg.Health.Enabled,
		Path:    a.cfg.Health.Path,
		Guard:   a.guard,
	})
}

// Middleware wraps next with request tracking.
func (a *Agent) Middleware(next http.Handler) http.Handler {
	return httpapi.Middleware(a.hooks, a.metrics)(next)
}

// Report runs every probe now and returns a health report built from the
// fresh results.
func (a *Agent) Report(ctx context.Context) monitor.Report {
	a.scheduler.CheckAll(ctx)
	return a.monitor.HealthReport(ctx)
}

// Config returns the configuration the Agent was built with.
func (a *Agent) Config() *config.Config { return a.cfg }

// Logger returns the agent logger.
func (a *Agent) Logger() observe.Logger { return a.logger }

// Observer returns the observer in use.
func (a *Agent) Observer() observe.Observer { return a.obs }

// Hooks returns the request lifecycle hooks for framework adapters.
func (a *Agent) Hooks() requests.Hooks { return a.hooks }

// Metrics returns the request and probe instruments.
func (a *Agent) Metrics() observe.Metrics { return a.metrics }

// Guard returns the auth middleware for the health routes. It passes
// everything through when no secret is configured.
func (a *Agent) Guard() func(http.Handler) http.Handler { return a.guard }

// Monitor returns the aggregator.
func (a *Agent) Monitor() *monitor.Monitor { return a.monitor }

// Scheduler returns the probe scheduler.
func (a *Agent) Scheduler() *health.Scheduler { return a.scheduler }

// Tracker returns the request tracker.
func (a *Agent) Tracker() *requests.Tracker { return a.tracker }

// Sampler returns the resource sampler.
func (a *Agent) Sampler() *sampler.Sampler { return a.sampler }
