package observe

import (
	"errors"
	"strings"
)

var (
	ErrMissingServiceName     = errors.New("observe: service name is required")
	ErrInvalidSamplePct       = errors.New("observe: sample percentage must be between 0.0 and 1.0")
	ErrInvalidTracingExporter = errors.New("observe: unknown tracing exporter")
	ErrInvalidMetricsExporter = errors.New("observe: unknown metrics exporter")
	ErrInvalidLogLevel        = errors.New("observe: unknown log level")
)

// sensitiveMarkers are matched case-insensitively as substrings of a field
// key, so "postgres_dsn" and "X-Api-Key" are both masked.
var sensitiveMarkers = []string{
	"password",
	"secret",
	"token",
	"apikey",
	"api_key",
	"api-key",
	"credential",
	"dsn",
	"authorization",
}

// IsSensitiveKey reports whether a log field named key is written as
// "[REDACTED]".
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, m := range sensitiveMarkers {
		if strings.Contains(k, m) {
			return true
		}
	}
	return false
}
