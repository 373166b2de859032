package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jonwraymond/pulse/health"
	"github.com/jonwraymond/pulse/monitor"
)

// DefaultPath is the health route.
const DefaultPath = "/health"

// Reporter produces health reports and snapshot history. *monitor.Monitor
// implements it.
type Reporter interface {
	HealthReport(ctx context.Context) monitor.Report
	History(limit int) monitor.History
}

// StatusCode maps an overall status to the health endpoint status code.
func StatusCode(s health.Status) int {
	if s == health.StatusHealthy {
		return http.StatusOK
	}
	return http.StatusServiceUnavailable
}

// HealthHandler serves the health report.
func HealthHandler(rep Reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := rep.HealthReport(r.Context())
		writeJSON(w, StatusCode(report.Status), report)
	}
}

// MetricsHandler serves the snapshot history.
func MetricsHandler(rep Reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := monitor.ParseLimit(r.URL.Query().Get("limit"))
		writeJSON(w, http.StatusOK, rep.History(limit))
	}
}

// LivenessHandler returns an HTTP handler for liveness probes.
// This is a simple check that the service is running.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Options configures Register.
type Options struct {
	// Enabled mounts the routes. Register is a no-op when false.
	Enabled bool

	// Path is the health route. Default: "/health".
	Path string

	// Guard, when set, wraps both routes (for example auth.Guard).
	Guard func(http.Handler) http.Handler
}

// RoutePath normalizes a configured health path: trailing slashes are
// dropped so "<path>/metrics" stays a single-slash route, and an empty
// result means DefaultPath.
func RoutePath(path string) string {
	path = strings.TrimRight(path, "/")
	if path == "" {
		return DefaultPath
	}
	return path
}

// Register mounts the health and history routes on mux.
func Register(mux *http.ServeMux, rep Reporter, opts Options) {
	if !opts.Enabled {
		return
	}
	path := RoutePath(opts.Path)
	guard := opts.Guard
	if guard == nil {
		guard = func(h http.Handler) http.Handler { return h }
	}

	mux.Handle("GET "+path, guard(HealthHandler(rep)))
	mux.Handle("GET "+path+"/metrics", guard(MetricsHandler(rep)))
}
