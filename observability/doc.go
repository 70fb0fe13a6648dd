// Package observability provides an OpenTelemetry metrics hook. The Hook
// registers as an open event hook: it observes every asset operation and
// wraps every executor run, recording counters and a duration histogram.
//
// For per-job tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
