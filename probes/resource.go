package probes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jonwraymond/pulse/health"
	"github.com/jonwraymond/pulse/sampler"
)

// MemoryReader supplies memory readings. *sampler.Sampler implements it.
type MemoryReader interface {
	Memory(ctx context.Context) (sampler.Memory, error)
}

// CPUReader supplies CPU readings. *sampler.Sampler implements it.
type CPUReader interface {
	CPU(ctx context.Context) (sampler.CPU, error)
}

// degraded returns the stale flag for a sampler error. A source failure
// with a last-known reading is classified on that reading; any other error,
// or a failure before the first reading, fails the check.
func degraded(err error, haveReading bool) (bool, error) {
	if err == nil {
		return false, nil
	}
	if errors.Is(err, sampler.ErrSourceUnavailable) && haveReading {
		return true, nil
	}
	return false, err
}

// markStale raises a stale result to at least warning and records why.
func markStale(res health.Result, md health.Metadata, err error) (health.Result, health.Metadata) {
	if res.Status < health.StatusWarning {
		res.Status = health.StatusWarning
	}
	res.Message += " (stale)"
	md["error"] = health.StringValue(err.Error())
	return res, md
}

// Memory classifies the system memory percentage against threshold. When
// the source fails after an earlier success the last-known reading is
// classified and reported at least as warning.
func Memory(r MemoryReader, threshold float64) health.CheckFunc {
	return func(ctx context.Context) (health.Result, error) {
		m, readErr := r.Memory(ctx)
		stale, err := degraded(readErr, m.Total > 0)
		if err != nil {
			return health.Result{}, err
		}

		value := float64(m.Percentage)
		status := Classify(value, threshold)

		res := health.Result{
			Status:  status,
			Message: fmt.Sprintf("Memory usage: %d%% (%s of %s)", m.Percentage, humanize.IBytes(m.Used), humanize.IBytes(m.Total)),
		}
		md := health.Metadata{
			"used":           health.StringValue(humanize.IBytes(m.Used)),
			"total":          health.StringValue(humanize.IBytes(m.Total)),
			"heapUsed":       health.StringValue(humanize.IBytes(m.HeapUsed)),
			"heapPercentage": health.NumberValue(float64(m.HeapPercentage)),
			"threshold":      health.NumberValue(threshold),
		}
		if stale {
			res, md = markStale(res, md, readErr)
		}
		return res.WithValue(value).WithMetadata(md), nil
	}
}

// CPU classifies the smoothed CPU usage against threshold. A failed load
// average read keeps the usage, which comes from the sampler tick, and is
// reported at least as warning.
func CPU(r CPUReader, threshold float64) health.CheckFunc {
	return func(ctx context.Context) (health.Result, error) {
		c, readErr := r.CPU(ctx)
		stale, err := degraded(readErr, true)
		if err != nil {
			return health.Result{}, err
		}

		res := health.Result{
			Status:  Classify(c.UsagePercent, threshold),
			Message: fmt.Sprintf("CPU usage: %.1f%%", c.UsagePercent),
		}
		md := health.Metadata{
			"loadAverage": health.MapValue(health.Metadata{
				"1m":  health.NumberValue(c.LoadAverage[0]),
				"5m":  health.NumberValue(c.LoadAverage[1]),
				"15m": health.NumberValue(c.LoadAverage[2]),
			}),
			"threshold": health.NumberValue(threshold),
		}
		if stale {
			res, md = markStale(res, md, readErr)
		}
		return res.WithValue(c.UsagePercent).WithMetadata(md), nil
	}
}

// Uptime always reports healthy with the time elapsed since start. A nil
// now uses time.Now.
func Uptime(start time.Time, now func() time.Time) health.CheckFunc {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context) (health.Result, error) {
		elapsed := now().Sub(start)
		hours := int(elapsed.Hours())
		minutes := int(elapsed.Minutes()) % 60

		return health.Healthy(fmt.Sprintf("Uptime: %dh %dm", hours, minutes)).
			WithValue(elapsed.Seconds()).
			WithMetadata(health.Metadata{
				"startedAt": health.StringValue(start.UTC().Format(time.RFC3339)),
				"since":     health.StringValue(humanize.RelTime(start, now(), "ago", "from now")),
			}), nil
	}
}
