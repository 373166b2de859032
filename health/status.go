package health

import (
	"encoding/json"
	"fmt"
)

// Status is a probe's tri-state verdict. Larger values are more severe.
type Status int

const (
	// StatusHealthy indicates the component is functioning normally.
	StatusHealthy Status = iota
	// StatusWarning indicates the component is approaching a threshold.
	StatusWarning
	// StatusCritical indicates the component has failed or crossed a threshold.
	StatusCritical
)

// String returns the lowercase label.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusWarning:
		return "warning"
	case StatusCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParseStatus parses a lowercase label.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "healthy":
		return StatusHealthy, nil
	case "warning":
		return StatusWarning, nil
	case "critical":
		return StatusCritical, nil
	default:
		return 0, fmt.Errorf("health: unknown status %q", s)
	}
}

// MarshalJSON encodes the status as its label.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a status label.
func (s *Status) UnmarshalJSON(data []byte) error {
	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return err
	}
	parsed, err := ParseStatus(label)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// OverallStatus returns the most severe status in results: critical if any
// result is critical, else warning if any is warning, else healthy. An empty
// set is healthy.
func OverallStatus(results map[string]Result) Status {
	overall := StatusHealthy
	for _, r := range results {
		if r.Status > overall {
			overall = r.Status
		}
		if overall == StatusCritical {
			break
		}
	}
	return overall
}
