package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned when an operation outlives its deadline.
var ErrTimeout = errors.New("resilience: operation timed out")

// TimeoutConfig configures a Timeout.
type TimeoutConfig struct {
	// Timeout is the deadline for one operation. Zero or negative disables
	// the deadline and runs the operation inline.
	Timeout time.Duration
}

// Timeout runs operations under a deadline.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Context: op receives a context cancelled at the deadline. An op that
//     ignores it keeps running in its goroutine; its result is dropped.
//   - Errors: a missed deadline returns an error wrapping ErrTimeout.
//     Cancellation of the parent returns the parent's error.
type Timeout struct {
	d time.Duration
}

// NewTimeout creates a Timeout.
func NewTimeout(config TimeoutConfig) *Timeout {
	return &Timeout{d: config.Timeout}
}

// Duration returns the configured deadline, zero when disabled.
func (t *Timeout) Duration() time.Duration {
	if t.d < 0 {
		return 0
	}
	return t.d
}

// Execute runs op, giving up when the deadline passes.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	if t.d <= 0 {
		return op(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- op(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s", ErrTimeout, t.d)
		}
		return ctx.Err()
	}
}
