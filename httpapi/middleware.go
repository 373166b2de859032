package httpapi

import (
	"net/http"
	"time"

	"github.com/jonwraymond/pulse/observe"
	"github.com/jonwraymond/pulse/requests"
)

// Middleware calls hooks around every request and records it in metrics.
// A nil metrics records nothing.
func Middleware(hooks requests.Hooks, metrics observe.Metrics) func(http.Handler) http.Handler {
	if metrics == nil {
		metrics = observe.NopMetrics()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, start := hooks.Begin()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			defer func() {
				p := recover()
				if p != nil {
					rec.status = http.StatusInternalServerError
				}
				hooks.Finish(token, start, rec.status)
				metrics.RecordRequest(r.Context(), r.Method, rec.status, time.Since(start))
				if p != nil {
					panic(p)
				}
			}()

			next.ServeHTTP(rec, r)
		})
	}
}

// statusRecorder captures the response status code.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
