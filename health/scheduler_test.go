package health

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/pulse/observe"
	"github.com/jonwraymond/pulse/resilience"
)

// lockedBuffer lets tests read log output while probes are still writing.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func healthyCheck(counter *atomic.Int64) CheckFunc {
	return func(ctx context.Context) (Result, error) {
		n := counter.Add(1)
		return Healthy("ok").WithValue(float64(n)), nil
	}
}

func TestScheduler_RegisterValidation(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	err := s.Register(Probe{Check: healthyCheck(new(atomic.Int64))})
	assert.ErrorIs(t, err, ErrInvalidProbe)

	err = s.Register(Probe{Name: "nil-check"})
	assert.ErrorIs(t, err, ErrInvalidProbe)

	assert.Empty(t, s.Names())
}

func TestProbe_Validate(t *testing.T) {
	assert.NoError(t, Probe{Name: "db", Check: healthyCheck(new(atomic.Int64))}.Validate())
	assert.ErrorIs(t, Probe{Check: healthyCheck(new(atomic.Int64))}.Validate(), ErrInvalidProbe)
	assert.ErrorIs(t, Probe{Name: "db"}.Validate(), ErrInvalidProbe)
}

func TestScheduler_ImmediateExecution(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	require.NoError(t, s.Register(Probe{
		Name:     "slow-interval",
		Interval: time.Hour,
		Check:    healthyCheck(new(atomic.Int64)),
	}))

	require.Eventually(t, func() bool {
		_, ok := s.Result("slow-interval")
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestScheduler_RecurringExecution(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var runs atomic.Int64
	require.NoError(t, s.Register(Probe{
		Name:     "fast",
		Interval: 50 * time.Millisecond,
		Check:    healthyCheck(&runs),
	}))

	time.Sleep(200 * time.Millisecond)

	assert.GreaterOrEqual(t, runs.Load(), int64(3))
	r, ok := s.Result("fast")
	require.True(t, ok)
	assert.Equal(t, StatusHealthy, r.Status)
	require.NotNil(t, r.Value)
	assert.GreaterOrEqual(t, *r.Value, 3.0, "last write is visible")
}

func TestScheduler_FailingProbeIsCritical(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var failures atomic.Int64
	require.NoError(t, s.Register(Probe{
		Name:     "broken",
		Interval: 20 * time.Millisecond,
		Check: func(ctx context.Context) (Result, error) {
			failures.Add(1)
			return Result{}, errors.New("database unreachable")
		},
	}))
	require.NoError(t, s.Register(Probe{
		Name:     "fine",
		Interval: 20 * time.Millisecond,
		Check:    healthyCheck(new(atomic.Int64)),
	}))

	require.Eventually(t, func() bool {
		return failures.Load() >= 3 && len(s.Results()) == 2
	}, time.Second, 5*time.Millisecond)

	results := s.Results()
	assert.Equal(t, StatusCritical, results["broken"].Status)
	assert.Equal(t, "Probe execution failed: database unreachable", results["broken"].Message)
	assert.Equal(t, StatusHealthy, results["fine"].Status)
	assert.Equal(t, StatusCritical, OverallStatus(results))
}

func TestScheduler_PanicRecovered(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	require.NoError(t, s.Register(Probe{
		Name: "panics",
		Check: func(ctx context.Context) (Result, error) {
			panic("nil map write")
		},
	}))

	require.Eventually(t, func() bool {
		_, ok := s.Result("panics")
		return ok
	}, time.Second, 5*time.Millisecond)

	r, _ := s.Result("panics")
	assert.Equal(t, StatusCritical, r.Status)
	assert.ErrorIs(t, r.Error, ErrProbePanic)
	assert.Contains(t, r.Message, "nil map write")
}

func TestScheduler_Timeout(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	release := make(chan struct{})
	defer close(release)

	require.NoError(t, s.Register(Probe{
		Name:    "hangs",
		Timeout: 20 * time.Millisecond,
		Check: func(ctx context.Context) (Result, error) {
			<-release
			return Healthy("late"), nil
		},
	}))

	require.Eventually(t, func() bool {
		_, ok := s.Result("hangs")
		return ok
	}, time.Second, 5*time.Millisecond)

	r, _ := s.Result("hangs")
	assert.Equal(t, StatusCritical, r.Status)
	assert.ErrorIs(t, r.Error, resilience.ErrTimeout)
	assert.True(t, strings.HasPrefix(r.Message, "Probe execution failed: "))
}

func TestScheduler_NoTimeoutByDefault(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	require.NoError(t, s.Register(Probe{
		Name: "slowish",
		Check: func(ctx context.Context) (Result, error) {
			time.Sleep(30 * time.Millisecond)
			return Healthy("done"), nil
		},
	}))

	require.Eventually(t, func() bool {
		r, ok := s.Result("slowish")
		return ok && r.Status == StatusHealthy
	}, time.Second, 5*time.Millisecond)
}

func TestScheduler_SlowProbeDoesNotBlockOthers(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	release := make(chan struct{})
	defer close(release)

	require.NoError(t, s.Register(Probe{
		Name: "stuck",
		Check: func(ctx context.Context) (Result, error) {
			<-release
			return Healthy(""), nil
		},
	}))
	require.NoError(t, s.Register(Probe{
		Name:  "quick",
		Check: healthyCheck(new(atomic.Int64)),
	}))

	require.Eventually(t, func() bool {
		_, ok := s.Result("quick")
		return ok
	}, time.Second, 5*time.Millisecond)

	done := make(chan map[string]Result)
	go func() { done <- s.Results() }()
	select {
	case results := <-done:
		assert.NotContains(t, results, "stuck")
	case <-time.After(time.Second):
		t.Fatal("Results blocked on a running probe")
	}
}

func TestScheduler_DuplicateReplacesAndCancelsOld(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var oldRuns, newRuns atomic.Int64
	require.NoError(t, s.Register(Probe{
		Name:     "dup",
		Interval: 10 * time.Millisecond,
		Check: func(ctx context.Context) (Result, error) {
			oldRuns.Add(1)
			return Warning("old"), nil
		},
	}))
	require.Eventually(t, func() bool { return oldRuns.Load() > 0 }, time.Second, time.Millisecond)

	require.NoError(t, s.Register(Probe{
		Name:     "dup",
		Interval: 10 * time.Millisecond,
		Check: func(ctx context.Context) (Result, error) {
			newRuns.Add(1)
			return Healthy("new"), nil
		},
	}))

	require.Eventually(t, func() bool {
		r, _ := s.Result("dup")
		return r.Message == "new"
	}, time.Second, time.Millisecond)

	// Allow any run that was already in flight to finish.
	time.Sleep(20 * time.Millisecond)
	settled := oldRuns.Load()
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, settled, oldRuns.Load(), "old schedule stopped")
	assert.Greater(t, newRuns.Load(), int64(1))
	assert.Equal(t, []string{"dup"}, s.Names())

	r, _ := s.Result("dup")
	assert.Equal(t, "new", r.Message)
}

func TestScheduler_Unregister(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var runs atomic.Int64
	require.NoError(t, s.Register(Probe{Name: "a", Interval: 10 * time.Millisecond, Check: healthyCheck(&runs)}))
	require.NoError(t, s.Register(Probe{Name: "b", Check: healthyCheck(new(atomic.Int64))}))

	require.Eventually(t, func() bool { return runs.Load() > 0 }, time.Second, time.Millisecond)

	assert.True(t, s.Unregister("a"))
	assert.False(t, s.Unregister("a"))
	assert.Equal(t, []string{"b"}, s.Names())

	time.Sleep(20 * time.Millisecond)
	settled := runs.Load()
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, settled, runs.Load())

	_, ok := s.Result("a")
	assert.False(t, ok)
}

func TestScheduler_CheckAndCheckAll(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	require.NoError(t, s.Register(Probe{Name: "x", Interval: time.Hour, Check: healthyCheck(new(atomic.Int64))}))
	require.NoError(t, s.Register(Probe{
		Name:     "y",
		Interval: time.Hour,
		Check: func(ctx context.Context) (Result, error) {
			return Warning("close to limit"), nil
		},
	}))

	r, err := s.Check(context.Background(), "y")
	require.NoError(t, err)
	assert.Equal(t, StatusWarning, r.Status)
	assert.False(t, r.Timestamp.IsZero())

	_, err = s.Check(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrProbeNotFound)

	all := s.CheckAll(context.Background())
	assert.Len(t, all, 2)
	assert.Equal(t, StatusWarning, OverallStatus(all))
}

func TestScheduler_Stop(t *testing.T) {
	s := NewScheduler()

	var runs atomic.Int64
	require.NoError(t, s.Register(Probe{Name: "p", Interval: 10 * time.Millisecond, Check: healthyCheck(&runs)}))
	require.Eventually(t, func() bool { return runs.Load() > 0 }, time.Second, time.Millisecond)

	s.Stop()
	s.Stop()

	settled := runs.Load()
	time.Sleep(40 * time.Millisecond)
	assert.LessOrEqual(t, runs.Load(), settled+1)

	err := s.Register(Probe{Name: "late", Check: healthyCheck(new(atomic.Int64))})
	assert.ErrorIs(t, err, ErrSchedulerStopped)
}

func TestScheduler_DefaultsAndLogging(t *testing.T) {
	var buf lockedBuffer
	logger := observe.NewLoggerWithWriter("info", &buf)
	s := NewScheduler(
		WithLogger(logger),
		WithMiddleware(observe.NewMiddleware(nil, nil, logger)),
		WithDefaultInterval(time.Hour),
		WithDefaultTimeout(time.Second),
	)
	defer s.Stop()

	require.NoError(t, s.Register(Probe{
		Name: "logged",
		Check: func(ctx context.Context) (Result, error) {
			return Result{}, errors.New("kaput")
		},
	}))

	require.Eventually(t, func() bool {
		_, ok := s.Result("logged")
		return ok
	}, time.Second, 5*time.Millisecond)

	s.mu.RLock()
	p := s.entries["logged"].probe
	s.mu.RUnlock()
	assert.Equal(t, time.Hour, p.Interval)
	assert.Equal(t, time.Second, p.Timeout)

	require.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "probe execution failed")
	}, time.Second, 5*time.Millisecond)
	assert.Contains(t, buf.String(), "probe registered")
}
