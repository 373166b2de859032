package probes

import (
	"fmt"
	"time"

	"github.com/jonwraymond/pulse/health"
)

// Thresholds are the alert thresholds in percent. ResponseTime and ErrorRate
// are advisory and reported but not enforced.
type Thresholds struct {
	MemoryUsage  float64       `json:"memoryUsage" yaml:"memoryUsage"`
	CPUUsage     float64       `json:"cpuUsage" yaml:"cpuUsage"`
	ResponseTime time.Duration `json:"responseTime" yaml:"responseTime"`
	ErrorRate    float64       `json:"errorRate" yaml:"errorRate"`
}

// DefaultThresholds returns the stock thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MemoryUsage:  80,
		CPUUsage:     80,
		ResponseTime: time.Second,
		ErrorRate:    5,
	}
}

// Validate rejects thresholds that cannot classify anything.
func (t Thresholds) Validate() error {
	if t.MemoryUsage <= 0 {
		return fmt.Errorf("%w: memoryUsage must be > 0, got %v", ErrInvalidThreshold, t.MemoryUsage)
	}
	if t.CPUUsage <= 0 {
		return fmt.Errorf("%w: cpuUsage must be > 0, got %v", ErrInvalidThreshold, t.CPUUsage)
	}
	if t.ResponseTime < 0 {
		return fmt.Errorf("%w: responseTime must be >= 0", ErrInvalidThreshold)
	}
	if t.ErrorRate < 0 {
		return fmt.Errorf("%w: errorRate must be >= 0", ErrInvalidThreshold)
	}
	return nil
}

// Classify maps value to a status: critical when value > threshold, warning
// when value > 0.8*threshold, healthy otherwise.
func Classify(value, threshold float64) health.Status {
	switch {
	case value > threshold:
		return health.StatusCritical
	case value > threshold*4/5:
		return health.StatusWarning
	default:
		return health.StatusHealthy
	}
}
