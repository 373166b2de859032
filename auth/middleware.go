package auth

import (
	"encoding/json"
	"net/http"

	"github.com/jonwraymond/pulse/observe"
)

// Guard returns middleware rejecting requests without a valid token with
// 401. A nil verifier returns a pass-through middleware.
func Guard(v *Verifier, logger observe.Logger) func(http.Handler) http.Handler {
	if v == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if logger == nil {
		logger = observe.NopLogger()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := v.Verify(r.Header.Get(v.HeaderName()))
			if err != nil {
				logger.Debug(r.Context(), "request rejected",
					observe.F("path", r.URL.Path),
					observe.F("error", err))
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", `Bearer realm="pulse"`)
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
				return
			}
			ctx := withCaller(r.Context(), id)
			logger.Debug(ctx, "request authorized",
				observe.F("path", r.URL.Path),
				observe.F("subject", CallerSubject(ctx)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
