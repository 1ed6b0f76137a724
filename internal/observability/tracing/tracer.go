// Package tracing provides OpenTelemetry instrumentation for the
// status HTTP surface.
package tracing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// tracer is the process-wide tracer for this service.
var tracer = otel.Tracer("callguard")

// GetTracer returns the tracer used to create spans.
func GetTracer() trace.Tracer {
	return tracer
}
