package monitor

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/jonwraymond/pulse/health"
	"github.com/jonwraymond/pulse/internal/ring"
	"github.com/jonwraymond/pulse/observe"
	"github.com/jonwraymond/pulse/requests"
	"github.com/jonwraymond/pulse/sampler"
)

const (
	// DefaultCollectInterval is the snapshot collection period.
	DefaultCollectInterval = 30 * time.Second

	// DefaultHistorySize is the history capacity.
	DefaultHistorySize = 100

	// DefaultHistoryLimit is used for missing or invalid history limits.
	DefaultHistoryLimit = 50
)

// Sampler supplies resource readings. *sampler.Sampler implements it.
type Sampler interface {
	Memory(ctx context.Context) (sampler.Memory, error)
	CPU(ctx context.Context) (sampler.CPU, error)
	ProcessInfo(ctx context.Context) (sampler.ProcessInfo, error)
	Start(ctx context.Context)
	Stop()
}

// RequestSource supplies request metrics. *requests.Tracker implements it.
type RequestSource interface {
	Metrics() requests.Metrics
}

// ProbeResults supplies the latest probe results. *health.Scheduler
// implements it.
type ProbeResults interface {
	Results() map[string]health.Result
}

// Config configures a Monitor.
type Config struct {
	// Collect enables the background collection tick.
	Collect bool

	// CollectInterval is the collection period. Default: 30s.
	CollectInterval time.Duration

	// HistorySize bounds the snapshot history. Default: 100.
	HistorySize int

	// Version is reported in the health report.
	Version string

	// Logger receives degraded-reading warnings. Default: no-op.
	Logger observe.Logger

	// Meter, when set, receives observable resource gauges while running.
	Meter metric.Meter

	// Now overrides the wall clock. Default: time.Now.
	Now func() time.Time
}

// DefaultConfig returns a Config with collection enabled.
func DefaultConfig() Config {
	return Config{
		Collect:         true,
		CollectInterval: DefaultCollectInterval,
		HistorySize:     DefaultHistorySize,
	}
}

// Monitor is the aggregation core.
//
// Contract:
// - Concurrency: safe for concurrent use; one mutex guards the history.
// - Errors: reading failures degrade single fields and are logged, never returned.
type Monitor struct {
	cfg      Config
	sampler  Sampler
	requests RequestSource
	probes   ProbeResults
	start    time.Time

	mu      sync.RWMutex
	history *ring.Buffer[Snapshot]
	latest  Snapshot

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	gauges metric.Registration
}

// New creates a Monitor. The start time used for uptime is the time of the
// call.
func New(cfg Config, s Sampler, reqs RequestSource, probes ProbeResults) *Monitor {
	if cfg.CollectInterval <= 0 {
		cfg.CollectInterval = DefaultCollectInterval
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultHistorySize
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Monitor{
		cfg:      cfg,
		sampler:  s,
		requests: reqs,
		probes:   probes,
		start:    cfg.Now(),
		history:  ring.New[Snapshot](cfg.HistorySize),
	}
}

// StartTime returns when the Monitor was created.
func (m *Monitor) StartTime() time.Time {
	return m.start
}

// CollectSnapshot reads the sampler and request tracker and returns a new
// Snapshot. It does not touch the history.
func (m *Monitor) CollectSnapshot(ctx context.Context) Snapshot {
	mem, err := m.sampler.Memory(ctx)
	if err != nil {
		m.cfg.Logger.Warn(ctx, "memory reading degraded", observe.F("error", err))
	}
	cpu, err := m.sampler.CPU(ctx)
	if err != nil {
		m.cfg.Logger.Warn(ctx, "cpu reading degraded", observe.F("error", err))
	}
	proc, err := m.sampler.ProcessInfo(ctx)
	if err != nil {
		m.cfg.Logger.Warn(ctx, "process info degraded", observe.F("error", err))
	}
	rm := m.requests.Metrics()

	now := m.cfg.Now()
	snap := Snapshot{
		Timestamp:   now,
		Uptime:      now.Sub(m.start).Seconds(),
		Memory:      mem,
		CPU:         cpu,
		ProcessInfo: proc,
		RequestStats: RequestStats{
			Total:             rm.Total,
			Active:            rm.Active,
			AvgResponseTimeMs: rm.AverageResponseTime,
		},
		ErrorStats: ErrorStats{
			Total:         rm.Errors.Total,
			RatePerMinute: rm.Errors.Rate,
		},
	}

	m.mu.Lock()
	m.latest = snap
	m.mu.Unlock()

	return snap
}

// Record appends s to the history, evicting the oldest entry when full.
func (m *Monitor) Record(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history.Push(s)
}

// History returns the most recent limit snapshots, oldest first. A limit
// <= 0 uses DefaultHistoryLimit.
func (m *Monitor) History(limit int) History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	h := History{Metrics: m.history.Tail(limit)}
	h.Count = len(h.Metrics)
	if last, ok := m.history.Last(); ok {
		h.Latest = &last
	}
	return h
}

// ParseLimit parses a history limit query value. Missing, non-numeric and
// non-positive values yield DefaultHistoryLimit.
func ParseLimit(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return DefaultHistoryLimit
	}
	return n
}

// HealthReport builds the health payload from a fresh snapshot and the
// current probe results.
func (m *Monitor) HealthReport(ctx context.Context) Report {
	snap := m.CollectSnapshot(ctx)
	results := m.probes.Results()

	return Report{
		Status:    health.OverallStatus(results),
		Timestamp: snap.Timestamp,
		Uptime:    snap.Uptime,
		Metrics:   snap,
		Probes:    results,
		Version:   m.cfg.Version,
	}
}

// Start starts the sampler tick, the collection tick when enabled and the
// gauge callbacks when a Meter is configured. Calling Start on a running
// Monitor is a no-op.
func (m *Monitor) Start(ctx context.Context) error {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if m.cancel != nil {
		return nil
	}

	if m.cfg.Meter != nil {
		reg, err := observe.RegisterGauges(m.cfg.Meter, m.gaugeReadings)
		if err != nil {
			return err
		}
		m.gauges = reg
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	m.sampler.Start(ctx)

	if !m.cfg.Collect {
		close(m.done)
		return nil
	}

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(m.cfg.CollectInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Record(m.CollectSnapshot(ctx))
			case <-ctx.Done():
				return
			}
		}
	}(m.done)

	m.cfg.Logger.Info(ctx, "metrics collection started",
		observe.F("interval", m.cfg.CollectInterval.String()),
		observe.F("history_size", m.cfg.HistorySize))
	return nil
}

// Stop stops every tick started by Start. Idempotent.
func (m *Monitor) Stop() {
	m.runMu.Lock()
	cancel, done, gauges := m.cancel, m.done, m.gauges
	m.cancel, m.done, m.gauges = nil, nil, nil
	m.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	m.sampler.Stop()
	if gauges != nil {
		_ = gauges.Unregister()
	}
}

// gaugeReadings reads the sampler and tracker at collection time, so the
// gauges are current even when snapshot collection is off. A failed source
// read reports the sampler's last-known values.
func (m *Monitor) gaugeReadings(ctx context.Context) observe.GaugeReadings {
	mem, _ := m.sampler.Memory(ctx)
	cpu, _ := m.sampler.CPU(ctx)

	return observe.GaugeReadings{
		MemoryPercent:  float64(mem.Percentage),
		HeapPercent:    float64(mem.HeapPercentage),
		CPUPercent:     cpu.UsagePercent,
		ActiveRequests: m.requests.Metrics().Active,
	}
}
