// Package health schedules probes and keeps their latest results.
//
// A Probe is a named check run on its own interval. The Scheduler runs every
// registered probe independently: a slow or failing probe never delays
// another, and readers of Results never wait on a probe. Each probe
// execution runs in its own goroutine, so runs of the same probe may overlap
// when a check outlives its interval; the last run to complete wins.
//
// Failures are never propagated to callers. An error, a panic or an expired
// timeout becomes a critical Result whose message starts with
// "Probe execution failed: ".
//
// # Basic Usage
//
//	s := health.NewScheduler(health.WithLogger(logger))
//	defer s.Stop()
//
//	err := s.Register(health.Probe{
//	    Name:     "database",
//	    Interval: 30 * time.Second,
//	    Check: func(ctx context.Context) (health.Result, error) {
//	        if err := db.Ping(ctx); err != nil {
//	            return health.Result{}, err
//	        }
//	        return health.Healthy("reachable"), nil
//	    },
//	})
//
//	overall := health.OverallStatus(s.Results())
//
// # Duplicate Names
//
// Registering a name that is already registered replaces the probe: the old
// schedule is cancelled and results from its in-flight runs are discarded.
package health
