package breaker

// Metrics defines the interface for recording circuit breaker metrics.
//
// Implementations can use Prometheus, StatsD, or custom metrics systems.
type Metrics interface {
	// RecordState records the state a breaker has entered.
	RecordState(name string, state State)

	// RecordRejection records a call rejected without invoking the
	// protected operation.
	RecordRejection(name string)

	// RecordOutcome records the outcome of an admitted call.
	RecordOutcome(name string, failure bool)
}

// NoOpMetrics implements Metrics with no-op implementations.
//
// Useful for tests and for callers that do not collect metrics.
type NoOpMetrics struct{}

// NewNoOpMetrics creates a new NoOpMetrics instance.
func NewNoOpMetrics() *NoOpMetrics {
	return &NoOpMetrics{}
}

// RecordState is a no-op implementation.
func (m *NoOpMetrics) RecordState(name string, state State) {}

// RecordRejection is a no-op implementation.
func (m *NoOpMetrics) RecordRejection(name string) {}

// RecordOutcome is a no-op implementation.
func (m *NoOpMetrics) RecordOutcome(name string, failure bool) {}
