package health

import (
	"context"
	"fmt"
	"time"
)

// Result is the outcome of one probe execution.
type Result struct {
	Status   Status   `json:"status"`
	Message  string   `json:"message,omitempty"`
	Value    *float64 `json:"value,omitempty"`
	Metadata Metadata `json:"metadata,omitempty"`

	// Duration is how long the check took.
	Duration time.Duration `json:"-"`

	// Timestamp is when the check completed.
	Timestamp time.Time `json:"-"`

	// Error is the failure that produced a synthesized result.
	Error error `json:"-"`
}

// Healthy creates a healthy result.
func Healthy(message string) Result {
	return Result{Status: StatusHealthy, Message: message}
}

// Warning creates a warning result.
func Warning(message string) Result {
	return Result{Status: StatusWarning, Message: message}
}

// Critical creates a critical result.
func Critical(message string) Result {
	return Result{Status: StatusCritical, Message: message}
}

// Failed creates the critical result stored when a check fails.
func Failed(err error) Result {
	return Result{
		Status:  StatusCritical,
		Message: "Probe execution failed: " + err.Error(),
		Error:   err,
	}
}

// WithValue sets the numeric reading on a result.
func (r Result) WithValue(v float64) Result {
	r.Value = &v
	return r
}

// WithMetadata sets the metadata on a result.
func (r Result) WithMetadata(m Metadata) Result {
	r.Metadata = m
	return r
}

// CheckFunc performs one probe check. A non-nil error is recorded as a
// critical result carrying the error text.
type CheckFunc func(ctx context.Context) (Result, error)

// DefaultInterval is used when a Probe has no interval.
const DefaultInterval = 60 * time.Second

// Probe is a named, independently scheduled check.
type Probe struct {
	// Name is the unique key of the probe (required).
	Name string

	// Check is the check function (required).
	Check CheckFunc

	// Interval between executions. Default: 60s.
	Interval time.Duration

	// Timeout bounds each execution. Zero means no timeout.
	Timeout time.Duration
}

// Validate reports a probe that cannot be scheduled.
func (p Probe) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProbe)
	}
	if p.Check == nil {
		return fmt.Errorf("%w: %s: check function is required", ErrInvalidProbe, p.Name)
	}
	return nil
}
