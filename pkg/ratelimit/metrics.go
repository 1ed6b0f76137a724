package ratelimit

// Metrics defines the interface for recording rate limiting metrics.
//
// Implementations can use Prometheus, StatsD, or custom metrics systems.
type Metrics interface {
	// RecordAllowed records an admitted check for a service key.
	RecordAllowed(key string)

	// RecordDenied records a denied check for a service key.
	RecordDenied(key string)

	// RecordEviction records that tracking state for some key was
	// evicted to admit key.
	RecordEviction(key string)
}

// NoOpMetrics implements the Metrics interface with no-op implementations.
//
// Useful for tests and for callers that do not collect metrics.
type NoOpMetrics struct{}

// NewNoOpMetrics creates a new NoOpMetrics instance.
func NewNoOpMetrics() *NoOpMetrics {
	return &NoOpMetrics{}
}

// RecordAllowed is a no-op implementation.
func (m *NoOpMetrics) RecordAllowed(key string) {}

// RecordDenied is a no-op implementation.
func (m *NoOpMetrics) RecordDenied(key string) {}

// RecordEviction is a no-op implementation.
func (m *NoOpMetrics) RecordEviction(key string) {}
