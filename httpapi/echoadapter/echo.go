// Package echoadapter mounts the health routes and request tracking on echo.
package echoadapter

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jonwraymond/pulse/httpapi"
	"github.com/jonwraymond/pulse/monitor"
	"github.com/jonwraymond/pulse/observe"
	"github.com/jonwraymond/pulse/requests"
)

// Router is implemented by *echo.Echo and *echo.Group.
type Router interface {
	GET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
}

// Middleware calls hooks around every request. Handler errors are mapped to
// their HTTP status before being reported. A nil metrics records nothing.
func Middleware(hooks requests.Hooks, metrics observe.Metrics) echo.MiddlewareFunc {
	if metrics == nil {
		metrics = observe.NopMetrics()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, start := hooks.Begin()
			err := next(c)

			status := c.Response().Status
			if err != nil && !c.Response().Committed {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				} else {
					status = http.StatusInternalServerError
				}
			}

			hooks.Finish(token, start, status)
			metrics.RecordRequest(c.Request().Context(), c.Request().Method, status, time.Since(start))
			return err
		}
	}
}

// Register mounts <path> and <path>/metrics on r with optional route
// middleware (for example echo.WrapMiddleware(auth.Guard(...))).
func Register(r Router, rep httpapi.Reporter, path string, mw ...echo.MiddlewareFunc) {
	path = httpapi.RoutePath(path)

	r.GET(path, func(c echo.Context) error {
		report := rep.HealthReport(c.Request().Context())
		c.Response().Header().Set("Cache-Control", "no-store")
		return c.JSON(httpapi.StatusCode(report.Status), report)
	}, mw...)

	r.GET(path+"/metrics", func(c echo.Context) error {
		limit := monitor.ParseLimit(c.QueryParam("limit"))
		c.Response().Header().Set("Cache-Control", "no-store")
		return c.JSON(http.StatusOK, rep.History(limit))
	}, mw...)
}
