package health

import "errors"

var (
	// ErrInvalidProbe indicates a probe without a name or check function.
	ErrInvalidProbe = errors.New("health: invalid probe")

	// ErrProbeNotFound indicates no probe is registered under the name.
	ErrProbeNotFound = errors.New("health: probe not found")

	// ErrSchedulerStopped indicates the scheduler no longer accepts probes.
	ErrSchedulerStopped = errors.New("health: scheduler stopped")

	// ErrProbePanic indicates a check function panicked.
	ErrProbePanic = errors.New("health: probe panicked")
)
