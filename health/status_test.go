package health

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusHealthy, "healthy"},
		{StatusWarning, "warning"},
		{StatusCritical, "critical"},
		{Status(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.String())
		})
	}
}

func TestStatus_JSON(t *testing.T) {
	data, err := json.Marshal(StatusWarning)
	require.NoError(t, err)
	assert.Equal(t, `"warning"`, string(data))

	var s Status
	require.NoError(t, json.Unmarshal([]byte(`"critical"`), &s))
	assert.Equal(t, StatusCritical, s)

	assert.Error(t, json.Unmarshal([]byte(`"degraded"`), &s))
}

func TestOverallStatus_AllCombinations(t *testing.T) {
	// Every presence/absence combination of healthy, warning and critical
	// among at least three probes.
	for mask := 0; mask < 8; mask++ {
		hasHealthy := mask&1 != 0
		hasWarning := mask&2 != 0
		hasCritical := mask&4 != 0

		results := map[string]Result{}
		add := func(prefix string, status Status) {
			for i := 0; i < 3; i++ {
				results[fmt.Sprintf("%s-%d", prefix, i)] = Result{Status: status}
			}
		}
		if hasHealthy {
			add("h", StatusHealthy)
		}
		if hasWarning {
			add("w", StatusWarning)
		}
		if hasCritical {
			add("c", StatusCritical)
		}

		want := StatusHealthy
		switch {
		case hasCritical:
			want = StatusCritical
		case hasWarning:
			want = StatusWarning
		}

		t.Run(fmt.Sprintf("h=%t,w=%t,c=%t", hasHealthy, hasWarning, hasCritical), func(t *testing.T) {
			assert.Equal(t, want, OverallStatus(results))
		})
	}
}

func TestOverallStatus_Empty(t *testing.T) {
	assert.Equal(t, StatusHealthy, OverallStatus(nil))
}
