// Package ginadapter mounts the health routes and request tracking on gin.
package ginadapter

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonwraymond/pulse/httpapi"
	"github.com/jonwraymond/pulse/monitor"
	"github.com/jonwraymond/pulse/observe"
	"github.com/jonwraymond/pulse/requests"
)

// Middleware calls hooks around every request. A nil metrics records
// nothing.
func Middleware(hooks requests.Hooks, metrics observe.Metrics) gin.HandlerFunc {
	if metrics == nil {
		metrics = observe.NopMetrics()
	}
	return func(c *gin.Context) {
		token, start := hooks.Begin()
		c.Next()

		status := c.Writer.Status()
		hooks.Finish(token, start, status)
		metrics.RecordRequest(c.Request.Context(), c.Request.Method, status, time.Since(start))
	}
}

// Register mounts <path> and <path>/metrics on r. handlers run before the
// route handlers (for example an auth guard).
func Register(r gin.IRoutes, rep httpapi.Reporter, path string, handlers ...gin.HandlerFunc) {
	path = httpapi.RoutePath(path)
	handlers = handlers[:len(handlers):len(handlers)]

	r.GET(path, append(handlers, func(c *gin.Context) {
		report := rep.HealthReport(c.Request.Context())
		c.Header("Cache-Control", "no-store")
		c.JSON(httpapi.StatusCode(report.Status), report)
	})...)

	r.GET(path+"/metrics", append(handlers, func(c *gin.Context) {
		limit := monitor.ParseLimit(c.Query("limit"))
		c.Header("Cache-Control", "no-store")
		c.JSON(http.StatusOK, rep.History(limit))
	})...)
}

// Guard adapts net/http middleware such as auth.Guard to gin.
func Guard(mw func(http.Handler) http.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		passed := false
		mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
		})).ServeHTTP(c.Writer, c.Request)

		if !passed {
			c.Abort()
			return
		}
		c.Next()
	}
}
