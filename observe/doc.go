// Package observe provides the observability primitives shared by the agent:
// a zap-backed structured logger, OpenTelemetry tracing and metrics, and a
// middleware that instruments probe executions.
//
// The package never decides health itself. The scheduler and HTTP adapters
// feed it events; exporters ship them wherever Config points.
package observe
