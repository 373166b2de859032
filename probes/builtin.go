package probes

import (
	"time"

	"github.com/jonwraymond/pulse/health"
)

// Resources supplies both memory and CPU readings.
type Resources interface {
	MemoryReader
	CPUReader
}

// Options configures the built-in probes.
type Options struct {
	Resources  Resources
	Thresholds Thresholds

	// Interval for every built-in probe. Zero uses the scheduler default.
	Interval time.Duration

	// Start is the process start time for the uptime probe. Default: now.
	Start time.Time

	// Dir is checked by the disk probe. Default: working directory.
	Dir string
}

// Builtins returns the memory, cpu, uptime and disk probes.
func Builtins(opts Options) []health.Probe {
	if opts.Start.IsZero() {
		opts.Start = time.Now()
	}
	th := opts.Thresholds
	def := DefaultThresholds()
	if th.MemoryUsage <= 0 {
		th.MemoryUsage = def.MemoryUsage
	}
	if th.CPUUsage <= 0 {
		th.CPUUsage = def.CPUUsage
	}

	return []health.Probe{
		{Name: "memory", Check: Memory(opts.Resources, th.MemoryUsage), Interval: opts.Interval},
		{Name: "cpu", Check: CPU(opts.Resources, th.CPUUsage), Interval: opts.Interval},
		{Name: "uptime", Check: Uptime(opts.Start, nil), Interval: opts.Interval},
		{Name: "disk", Check: Disk(opts.Dir), Interval: opts.Interval},
	}
}
