package sampler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jonwraymond/pulse/observe"
)

// DefaultTickInterval is the CPU recomputation period.
const DefaultTickInterval = time.Second

// Memory is a point-in-time memory reading. Percentages are rounded to the
// nearest integer.
type Memory struct {
	Used           uint64 `json:"used"`
	Total          uint64 `json:"total"`
	Percentage     int    `json:"percentage"`
	HeapUsed       uint64 `json:"heapUsed"`
	HeapTotal      uint64 `json:"heapTotal"`
	HeapPercentage int    `json:"heapPercentage"`
}

// CPU is a CPU reading. UsagePercent is the value computed by the last tick.
type CPU struct {
	UsagePercent float64    `json:"usagePercent"`
	LoadAverage  [3]float64 `json:"loadAverage"`
}

// ProcessInfo identifies the running process.
type ProcessInfo struct {
	PID      int    `json:"pid"`
	Version  string `json:"version"`
	Platform string `json:"platform"`
	Arch     string `json:"arch"`
}

// Config configures a Sampler.
type Config struct {
	// TickInterval is how often CPU usage is recomputed. Default: 1s.
	TickInterval time.Duration

	// Logger receives tick failures. Default: no-op.
	Logger observe.Logger

	// Now overrides the wall clock. Default: time.Now.
	Now func() time.Time
}

// Sampler reads resource usage from a Source.
//
// Contract:
// - Concurrency: safe for concurrent use; the CPU state is written only by Refresh.
// - Errors: reads return the last-known value with ErrSourceUnavailable on failure.
type Sampler struct {
	source Source
	cfg    Config

	mu          sync.RWMutex
	memory      Memory
	load        [3]float64
	process     ProcessInfo
	usage       float64
	lastCPUTime time.Duration
	lastWall    time.Time
	primed      bool

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Sampler. A nil source uses NewSystemSource.
func New(cfg Config, source Source) *Sampler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if source == nil {
		source = NewSystemSource()
	}
	return &Sampler{source: source, cfg: cfg}
}

// Memory reads system and heap memory. The source is read without holding
// the lock; a failed read keeps the last-known fields.
func (s *Sampler) Memory(ctx context.Context) (Memory, error) {
	total, free, sysErr := s.source.SystemMemory(ctx)
	heapUsed, heapTotal, heapErr := s.source.HeapMemory(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if sysErr != nil {
		errs = append(errs, fmt.Errorf("%w: system memory: %v", ErrSourceUnavailable, sysErr))
	} else {
		used := uint64(0)
		if total > free {
			used = total - free
		}
		s.memory.Used = used
		s.memory.Total = total
		s.memory.Percentage = percent(used, total)
	}

	if heapErr != nil {
		errs = append(errs, fmt.Errorf("%w: heap memory: %v", ErrSourceUnavailable, heapErr))
	} else {
		s.memory.HeapUsed = heapUsed
		s.memory.HeapTotal = heapTotal
		s.memory.HeapPercentage = percent(heapUsed, heapTotal)
	}

	return s.memory, errors.Join(errs...)
}

// CPU returns the smoothed usage percentage and the current load average.
func (s *Sampler) CPU(ctx context.Context) (CPU, error) {
	l, err := s.source.LoadAverage(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		return CPU{UsagePercent: s.usage, LoadAverage: s.load},
			fmt.Errorf("%w: load average: %v", ErrSourceUnavailable, err)
	}
	s.load = l
	return CPU{UsagePercent: s.usage, LoadAverage: l}, nil
}

// ProcessInfo re-reads the process identity.
func (s *Sampler) ProcessInfo(ctx context.Context) (ProcessInfo, error) {
	info, err := s.source.ProcessInfo(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		return s.process, fmt.Errorf("%w: process info: %v", ErrSourceUnavailable, err)
	}
	s.process = info
	return info, nil
}

// Refresh performs one CPU tick. The first successful call only records the
// baseline; later calls set usage = ΔcpuMs / ΔwallMs * 100.
func (s *Sampler) Refresh(ctx context.Context) error {
	cpuTime, err := s.source.CPUTime(ctx)
	if err != nil {
		return fmt.Errorf("%w: cpu time: %v", ErrSourceUnavailable, err)
	}
	now := s.cfg.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.primed {
		wall := now.Sub(s.lastWall)
		if wall > 0 {
			delta := cpuTime - s.lastCPUTime
			if delta < 0 {
				delta = 0
			}
			s.usage = float64(delta) / float64(wall) * 100
		}
	}
	s.lastCPUTime = cpuTime
	s.lastWall = now
	s.primed = true
	return nil
}

// Start primes the CPU baseline and starts the background tick. Calling Start
// on a running Sampler is a no-op.
func (s *Sampler) Start(ctx context.Context) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	s.tick(ctx)

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(s.cfg.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.tick(ctx)
			case <-ctx.Done():
				return
			}
		}
	}(s.done)
}

// Stop ends the background tick and waits for it to exit. Idempotent.
func (s *Sampler) Stop() {
	s.runMu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Sampler) tick(ctx context.Context) {
	if err := s.Refresh(ctx); err != nil {
		s.cfg.Logger.Warn(ctx, "cpu sample failed", observe.F("error", err))
	}
}

func percent(part, whole uint64) int {
	if whole == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(whole) * 100))
}
