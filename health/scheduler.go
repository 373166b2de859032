package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonwraymond/pulse/observe"
	"github.com/jonwraymond/pulse/resilience"
)

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithLogger sets the logger used for scheduler events. Default: no-op.
func WithLogger(l observe.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMiddleware wraps every probe execution with tracing, metrics and
// logging.
func WithMiddleware(mw *observe.Middleware) SchedulerOption {
	return func(s *Scheduler) {
		if mw != nil {
			s.mw = mw
		}
	}
}

// WithDefaultInterval sets the interval for probes registered without one.
func WithDefaultInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.defaultInterval = d
		}
	}
}

// WithDefaultTimeout sets the timeout for probes registered without one.
func WithDefaultTimeout(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.defaultTimeout = d
		}
	}
}

// Scheduler runs registered probes on independent timers and keeps the
// latest result of each.
//
// Contract:
//   - Concurrency: safe for concurrent use. Results never block on a probe.
//   - Ordering: overlapping runs of one probe store results in completion order.
//   - Errors: check failures are stored as critical results, never returned.
type Scheduler struct {
	logger          observe.Logger
	mw              *observe.Middleware
	defaultInterval time.Duration
	defaultTimeout  time.Duration

	root   context.Context
	cancel context.CancelFunc
	loops  sync.WaitGroup

	mu      sync.RWMutex
	entries map[string]*entry
	order   []string // Maintains registration order
	results map[string]Result
	stopped bool
}

// entry is one registration. Results are stored only while the entry is
// the current registration for its name.
type entry struct {
	probe  Probe
	cancel context.CancelFunc
}

// NewScheduler creates a Scheduler.
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	root, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		logger:          observe.NopLogger(),
		defaultInterval: DefaultInterval,
		root:            root,
		cancel:          cancel,
		entries:         make(map[string]*entry),
		results:         make(map[string]Result),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.mw == nil {
		s.mw = observe.NewMiddleware(nil, nil, s.logger)
	}
	return s
}

// Register adds p, runs it once immediately and then every p.Interval.
// A probe already registered under the same name is replaced.
func (s *Scheduler) Register(p Probe) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.Interval <= 0 {
		p.Interval = s.defaultInterval
	}
	if p.Timeout <= 0 {
		p.Timeout = s.defaultTimeout
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrSchedulerStopped
	}
	old, replaced := s.entries[p.Name]
	if replaced {
		old.cancel()
	} else {
		s.order = append(s.order, p.Name)
	}
	ctx, cancel := context.WithCancel(s.root)
	e := &entry{probe: p, cancel: cancel}
	s.entries[p.Name] = e
	s.loops.Add(1)
	s.mu.Unlock()

	fields := []observe.Field{
		observe.F("probe", p.Name),
		observe.F("interval", p.Interval.String()),
	}
	if replaced {
		s.logger.Info(ctx, "probe replaced", fields...)
	} else {
		s.logger.Info(ctx, "probe registered", fields...)
	}

	go s.loop(ctx, e)
	return nil
}

// Unregister stops scheduling the named probe and drops its result. Runs
// already in flight finish but their results are discarded.
func (s *Scheduler) Unregister(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[name]
	if !ok {
		return false
	}
	e.cancel()
	delete(s.entries, name)
	delete(s.results, name)

	// Remove from order
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Names returns registered probe names in registration order.
func (s *Scheduler) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.order))
	copy(names, s.order)
	return names
}

// Results returns a copy of the latest result of every probe that has
// completed at least once.
func (s *Scheduler) Results() map[string]Result {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Result, len(s.results))
	for name, r := range s.results {
		out[name] = r
	}
	return out
}

// Result returns the latest result of the named probe.
func (s *Scheduler) Result(name string) (Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.results[name]
	return r, ok
}

// Check runs the named probe synchronously, stores the result and returns
// it.
func (s *Scheduler) Check(ctx context.Context, name string) (Result, error) {
	s.mu.RLock()
	e, ok := s.entries[name]
	s.mu.RUnlock()

	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrProbeNotFound, name)
	}
	return s.execute(ctx, e), nil
}

// CheckAll runs every registered probe in parallel, stores the results and
// returns them.
func (s *Scheduler) CheckAll(ctx context.Context) map[string]Result {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	results := make(map[string]Result, len(entries))
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, e := range entries {
		wg.Add(1)
		go func(e *entry) {
			defer wg.Done()
			r := s.execute(ctx, e)
			mu.Lock()
			results[e.probe.Name] = r
			mu.Unlock()
		}(e)
	}
	wg.Wait()

	return results
}

// Stop cancels every schedule and waits for the timer goroutines to exit.
// Check functions already running are not waited for. Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	s.loops.Wait()
}

func (s *Scheduler) loop(ctx context.Context, e *entry) {
	defer s.loops.Done()

	go s.execute(ctx, e)

	ticker := time.NewTicker(e.probe.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			go s.execute(ctx, e)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, e *entry) Result {
	meta := observe.ProbeMeta{
		Name:     e.probe.Name,
		Interval: e.probe.Interval,
		Timeout:  e.probe.Timeout,
	}

	var result Result
	_, _ = s.mw.Wrap(func(ctx context.Context, _ observe.ProbeMeta) (string, error) {
		result = s.run(ctx, e.probe)
		return result.Status.String(), result.Error
	})(ctx, meta)

	s.store(e, result)
	return result
}

// run executes the check with panic recovery and the optional timeout.
func (s *Scheduler) run(ctx context.Context, p Probe) Result {
	start := time.Now()

	// Buffered so a check that outlives its timeout can still deliver.
	done := make(chan Result, 1)
	call := func(ctx context.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", ErrProbePanic, r)
			}
		}()
		out, err := p.Check(ctx)
		if err == nil {
			done <- out
		}
		return err
	}

	err := resilience.NewTimeout(resilience.TimeoutConfig{Timeout: p.Timeout}).Execute(ctx, call)

	var res Result
	if err != nil {
		res = Failed(err)
	} else {
		res = <-done
	}
	res.Duration = time.Since(start)
	res.Timestamp = time.Now()
	return res
}

func (s *Scheduler) store(e *entry, r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped || s.entries[e.probe.Name] != e {
		return
	}
	s.results[e.probe.Name] = r
}
