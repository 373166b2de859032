// Package requests tracks in-flight requests, latency and error rate.
package requests

import (
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/pulse/internal/ring"
)

const (
	// DefaultWindowSize bounds the latency and error-time windows.
	DefaultWindowSize = 100

	// ErrorRateWindow is the trailing window used for the error rate.
	ErrorRateWindow = 5 * time.Minute
)

// Token correlates Start and End for one request.
type Token string

// Metrics is a point-in-time view of the tracker.
type Metrics struct {
	Total               int64   `json:"total"`
	Active              int64   `json:"active"`
	AverageResponseTime float64 `json:"averageResponseTime"`
	Errors              Errors  `json:"errors"`
}

// Errors summarizes recorded errors. Rate is errors per minute over the
// trailing five minutes.
type Errors struct {
	Total int64   `json:"total"`
	Rate  float64 `json:"rate"`
}

// Tracker records request lifecycles.
//
// Contract:
// - Concurrency: safe for concurrent use; one mutex guards all state.
// - Active never goes negative: End ignores unknown tokens.
type Tracker struct {
	now func() time.Time

	mu        sync.Mutex
	seq       uint64
	total     int64
	active    int64
	errors    int64
	inflight  map[Token]struct{}
	latencies *ring.Buffer[time.Duration]
	errTimes  *ring.Buffer[time.Time]
}

// NewTracker creates a Tracker whose windows hold windowSize entries
// (DefaultWindowSize when <= 0). A nil now uses time.Now.
func NewTracker(windowSize int, now func() time.Time) *Tracker {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		now:       now,
		inflight:  make(map[Token]struct{}),
		latencies: ring.New[time.Duration](windowSize),
		errTimes:  ring.New[time.Time](windowSize),
	}
}

// Start counts a new request and returns its token.
func (t *Tracker) Start() Token {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.seq++
	tok := Token(strconv.FormatUint(t.seq, 10) + "-" + uuid.NewString()[:8])
	t.inflight[tok] = struct{}{}
	t.total++
	t.active++
	return tok
}

// End completes the request identified by token, recording now-start as its
// latency. It reports false for unknown or already-ended tokens.
func (t *Tracker) End(token Token, start time.Time) bool {
	elapsed := t.now().Sub(start)
	if elapsed < 0 {
		elapsed = 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.inflight[token]; !ok {
		return false
	}
	delete(t.inflight, token)
	t.active--
	t.latencies.Push(elapsed)
	return true
}

// RecordError counts one error at the current time.
func (t *Tracker) RecordError() {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.errors++
	t.errTimes.Push(now)
}

// Metrics returns the current counters and window aggregates.
func (t *Tracker) Metrics() Metrics {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	m := Metrics{
		Total:  t.total,
		Active: t.active,
		Errors: Errors{Total: t.errors},
	}

	if n := t.latencies.Len(); n > 0 {
		var sum time.Duration
		t.latencies.Do(func(d time.Duration) { sum += d })
		m.AverageResponseTime = float64(sum) / float64(n) / float64(time.Millisecond)
	}

	cutoff := now.Add(-ErrorRateWindow)
	recent := 0
	t.errTimes.Do(func(ts time.Time) {
		if ts.After(cutoff) {
			recent++
		}
	})
	m.Errors.Rate = float64(recent) / ErrorRateWindow.Minutes()

	return m
}
