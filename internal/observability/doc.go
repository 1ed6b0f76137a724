// Package observability groups the cross-cutting instrumentation of
// the service.
//
// Subpackages:
//   - logging: structured logging with slog
//   - tracing: OpenTelemetry tracing for the status HTTP surface
//
// Prometheus metrics live next to the components they measure, in
// pkg/breaker, pkg/ratelimit, and pkg/usage.
package observability
