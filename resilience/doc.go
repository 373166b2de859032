// Package resilience bounds and retries operations pulse performs against
// things it does not control.
//
// Timeout caps a single probe execution; the scheduler turns ErrTimeout into
// a critical result. Retry retries dependency connections at startup with
// exponential backoff, so a database that comes up a few seconds after the
// agent does not abort it.
//
//	err := resilience.NewRetry(resilience.RetryConfig{
//	    MaxAttempts:  4,
//	    InitialDelay: 250 * time.Millisecond,
//	}).Execute(ctx, pool.Ping)
package resilience
