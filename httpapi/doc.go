// Package httpapi serves the health and history endpoints and tracks
// requests for net/http hosts.
//
//	GET <path>          health report, 200 when healthy, 503 otherwise
//	GET <path>/metrics  snapshot history, ?limit=N (default 50)
//
// The ginadapter and echoadapter subpackages provide the same surface for
// those frameworks.
package httpapi
