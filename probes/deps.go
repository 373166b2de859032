package probes

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/jonwraymond/pulse/health"
)

// Pinger is any dependency that can be pinged. *pgxpool.Pool and *pgx.Conn
// implement it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RedisPinger is the subset of redis.Cmdable the Redis probe needs.
type RedisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// Postgres pings a PostgreSQL connection. A failed ping is returned as an
// error and recorded as a critical result. Pool statistics are attached
// when p is a *pgxpool.Pool.
func Postgres(p Pinger) health.CheckFunc {
	return func(ctx context.Context) (health.Result, error) {
		if err := p.Ping(ctx); err != nil {
			return health.Result{}, fmt.Errorf("postgres ping: %w", err)
		}

		res := health.Healthy("PostgreSQL reachable")
		if pool, ok := p.(*pgxpool.Pool); ok {
			st := pool.Stat()
			res = res.WithMetadata(health.Metadata{
				"totalConns":    health.NumberValue(float64(st.TotalConns())),
				"idleConns":     health.NumberValue(float64(st.IdleConns())),
				"acquiredConns": health.NumberValue(float64(st.AcquiredConns())),
				"maxConns":      health.NumberValue(float64(st.MaxConns())),
			})
		}
		return res, nil
	}
}

// Redis pings a Redis client.
func Redis(c RedisPinger) health.CheckFunc {
	return func(ctx context.Context) (health.Result, error) {
		pong, err := c.Ping(ctx).Result()
		if err != nil {
			return health.Result{}, fmt.Errorf("redis ping: %w", err)
		}
		return health.Healthy("Redis reachable").WithMetadata(health.Metadata{
			"reply": health.StringValue(pong),
		}), nil
	}
}
