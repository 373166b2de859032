// Package sampler reads process and system resource usage.
//
// A Sampler wraps a Source (by default gopsutil plus the Go runtime) and
// exposes point-in-time memory, CPU and process readings. CPU usage is
// smoothed: a background tick records cumulative process CPU time and
// wall-clock time and derives the usage percentage from the deltas, so reads
// never recompute anything synchronously.
//
// Reads are fail-soft. When the Source fails, the last-known reading is
// returned together with an error wrapping ErrSourceUnavailable.
package sampler
