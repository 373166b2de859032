package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/jonwraymond/pulse/config"
	"github.com/jonwraymond/pulse/health"
	"github.com/jonwraymond/pulse/observe"
	"github.com/jonwraymond/pulse/probes"
	"github.com/jonwraymond/pulse/resilience"
)

// dependencies are the external services probed by the agent.
type dependencies struct {
	pool  *pgxpool.Pool
	redis *redis.Client
}

// connectDependencies opens clients for the configured dependencies and
// pings each with retry. A dependency still unreachable after the retries
// is logged and probed anyway, so its probe reports it critical.
func connectDependencies(ctx context.Context, cfg *config.Config, logger observe.Logger) (*dependencies, error) {
	d := &dependencies{}
	dc := cfg.Dependencies

	retry := resilience.NewRetry(resilience.RetryConfig{
		MaxAttempts:  dc.StartupRetries + 1,
		InitialDelay: 250 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Jitter:       true,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			logger.Warn(ctx, "dependency not ready, retrying",
				observe.F("attempt", attempt),
				observe.F("delay", delay.String()),
				observe.F("error", err))
		},
	})

	if dc.PostgresDSN != "" {
		pool, err := pgxpool.New(ctx, dc.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		d.pool = pool
		if err := retry.Execute(ctx, pool.Ping); err != nil {
			logger.Warn(ctx, "postgres unreachable at startup", observe.F("error", err))
		}
	}

	if dc.RedisAddr != "" {
		d.redis = redis.NewClient(&redis.Options{
			Addr:     dc.RedisAddr,
			Password: dc.RedisPassword,
		})
		ping := func(ctx context.Context) error { return d.redis.Ping(ctx).Err() }
		if err := retry.Execute(ctx, ping); err != nil {
			logger.Warn(ctx, "redis unreachable at startup", observe.F("error", err))
		}
	}

	return d, nil
}

// probes returns one probe per connected dependency.
func (d *dependencies) probes() []health.Probe {
	var out []health.Probe
	if d.pool != nil {
		out = append(out, health.Probe{Name: "postgres", Check: probes.Postgres(d.pool)})
	}
	if d.redis != nil {
		out = append(out, health.Probe{Name: "redis", Check: probes.Redis(d.redis)})
	}
	return out
}

func (d *dependencies) Close() {
	if d.pool != nil {
		d.pool.Close()
	}
	if d.redis != nil {
		_ = d.redis.Close()
	}
}
