package monitor

import (
	"time"

	"github.com/jonwraymond/pulse/health"
	"github.com/jonwraymond/pulse/sampler"
)

// Snapshot is one timestamped bundle of resource and request metrics.
// It is a value type; copies share no mutable state.
type Snapshot struct {
	Timestamp    time.Time           `json:"timestamp"`
	Uptime       float64             `json:"uptime"`
	Memory       sampler.Memory      `json:"memory"`
	CPU          sampler.CPU         `json:"cpu"`
	ProcessInfo  sampler.ProcessInfo `json:"processInfo"`
	RequestStats RequestStats        `json:"requestStats"`
	ErrorStats   ErrorStats          `json:"errorStats"`
}

// RequestStats summarizes tracked requests.
type RequestStats struct {
	Total             int64   `json:"total"`
	Active            int64   `json:"active"`
	AvgResponseTimeMs float64 `json:"avgResponseTimeMs"`
}

// ErrorStats summarizes tracked errors.
type ErrorStats struct {
	Total         int64   `json:"total"`
	RatePerMinute float64 `json:"ratePerMinute"`
}

// History is the response of a history query.
type History struct {
	Metrics []Snapshot `json:"metrics"`
	Count   int        `json:"count"`
	Latest  *Snapshot  `json:"latest"`
}

// Report is the health endpoint payload.
type Report struct {
	Status    health.Status            `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Uptime    float64                  `json:"uptime"`
	Metrics   Snapshot                 `json:"metrics"`
	Probes    map[string]health.Result `json:"probes"`
	Version   string                   `json:"version"`
}
