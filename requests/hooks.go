package requests

import "time"

// Hooks is the request lifecycle pair a host framework calls around every
// request it serves.
type Hooks interface {
	// Begin starts tracking and returns the token and start time.
	Begin() (Token, time.Time)

	// Finish completes tracking. statusCode >= 400 counts as an error.
	Finish(token Token, start time.Time, statusCode int)
}

// Options control which parts of a request are recorded.
type Options struct {
	TrackRequests bool
	TrackErrors   bool
}

// DefaultOptions enables request and error tracking.
func DefaultOptions() Options {
	return Options{TrackRequests: true, TrackErrors: true}
}

type trackerHooks struct {
	tracker *Tracker
	opts    Options
}

// NewHooks returns Hooks recording into tracker.
func NewHooks(tracker *Tracker, opts Options) Hooks {
	return &trackerHooks{tracker: tracker, opts: opts}
}

func (h *trackerHooks) Begin() (Token, time.Time) {
	start := h.tracker.now()
	if !h.opts.TrackRequests {
		return "", start
	}
	return h.tracker.Start(), start
}

func (h *trackerHooks) Finish(token Token, start time.Time, statusCode int) {
	if h.opts.TrackRequests && token != "" {
		h.tracker.End(token, start)
	}
	if h.opts.TrackErrors && statusCode >= 400 {
		h.tracker.RecordError()
	}
}
