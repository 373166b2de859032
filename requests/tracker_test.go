package requests

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *clock { return &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)} }

func TestTracker_StartEnd(t *testing.T) {
	c := newClock()
	tr := NewTracker(0, c.Now)

	start := c.Now()
	tok := tr.Start()
	assert.Equal(t, int64(1), tr.Metrics().Active)

	c.Advance(40 * time.Millisecond)
	assert.True(t, tr.End(tok, start))

	m := tr.Metrics()
	assert.Equal(t, int64(1), m.Total)
	assert.Equal(t, int64(0), m.Active)
	assert.InDelta(t, 40.0, m.AverageResponseTime, 0.001)
}

func TestTracker_TokenFormat(t *testing.T) {
	tr := NewTracker(0, nil)
	a, b := tr.Start(), tr.Start()

	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(string(a), "1-"))
	assert.True(t, strings.HasPrefix(string(b), "2-"))
	assert.Len(t, strings.SplitN(string(a), "-", 2)[1], 8)
}

func TestTracker_EndUnknownTokenIgnored(t *testing.T) {
	tr := NewTracker(0, nil)
	tok := tr.Start()

	assert.False(t, tr.End("bogus", time.Now()))
	assert.True(t, tr.End(tok, time.Now()))
	assert.False(t, tr.End(tok, time.Now()), "double end is ignored")

	assert.Equal(t, int64(0), tr.Metrics().Active)
}

func TestTracker_AverageUsesWindow(t *testing.T) {
	c := newClock()
	tr := NewTracker(3, c.Now)

	for _, ms := range []int{1000, 10, 20, 30} {
		start := c.Now()
		tok := tr.Start()
		c.Advance(time.Duration(ms) * time.Millisecond)
		tr.End(tok, start)
	}

	// 1000ms is evicted from the three-entry window.
	assert.InDelta(t, 20.0, tr.Metrics().AverageResponseTime, 0.001)
}

func TestTracker_AverageEmptyIsZero(t *testing.T) {
	assert.Equal(t, 0.0, NewTracker(0, nil).Metrics().AverageResponseTime)
}

func TestTracker_ErrorRate(t *testing.T) {
	c := newClock()
	tr := NewTracker(0, c.Now)

	tr.RecordError()
	tr.RecordError()
	c.Advance(4 * time.Minute)
	for i := 0; i < 8; i++ {
		tr.RecordError()
	}

	m := tr.Metrics()
	assert.Equal(t, int64(10), m.Errors.Total)
	assert.InDelta(t, 2.0, m.Errors.Rate, 0.001) // 10 errors / 5 minutes

	c.Advance(2 * time.Minute)
	m = tr.Metrics()
	assert.Equal(t, int64(10), m.Errors.Total)
	assert.InDelta(t, 1.6, m.Errors.Rate, 0.001) // the first two aged out
}

func TestTracker_ErrorWindowBounded(t *testing.T) {
	tr := NewTracker(5, nil)
	for i := 0; i < 20; i++ {
		tr.RecordError()
	}
	m := tr.Metrics()
	assert.Equal(t, int64(20), m.Errors.Total)
	assert.InDelta(t, 1.0, m.Errors.Rate, 0.001) // only 5 retained
}

func TestTracker_Concurrent(t *testing.T) {
	tr := NewTracker(0, nil)

	const workers, perWorker = 16, 200
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				start := time.Now()
				tok := tr.Start()
				if i%10 == 0 {
					tr.RecordError()
				}
				// Every worker leaves its last request in flight.
				if i < perWorker-1 {
					tr.End(tok, start)
				}
			}
		}(w)
	}
	wg.Wait()

	m := tr.Metrics()
	require.Equal(t, int64(workers*perWorker), m.Total)
	assert.Equal(t, int64(workers), m.Active)
	assert.Equal(t, int64(workers*perWorker/10), m.Errors.Total)
}
