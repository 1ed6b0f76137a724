package breaker

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics implements the Metrics interface using Prometheus.
//
// All metrics use a custom registry for better testability and isolation;
// pass Registry() to promhttp.HandlerFor to expose them.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	// circuitState tracks the current state per breaker
	// (0=closed, 1=open, 2=half-open).
	circuitState *prometheus.GaugeVec

	// rejectionsTotal counts calls rejected while open or half-open.
	rejectionsTotal *prometheus.CounterVec

	// outcomesTotal counts admitted call outcomes by result.
	outcomesTotal *prometheus.CounterVec
}

// NewPrometheusMetrics creates a PrometheusMetrics instance with its own
// registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	circuitState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"circuit"},
	)

	rejectionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_rejections_total",
			Help: "Calls rejected without invoking the protected operation",
		},
		[]string{"circuit"},
	)

	outcomesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_outcomes_total",
			Help: "Admitted call outcomes by result",
		},
		[]string{"circuit", "result"},
	)

	registry.MustRegister(circuitState, rejectionsTotal, outcomesTotal)

	return &PrometheusMetrics{
		registry:        registry,
		circuitState:    circuitState,
		rejectionsTotal: rejectionsTotal,
		outcomesTotal:   outcomesTotal,
	}
}

// Registry returns the underlying Prometheus registry for exposition.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordState records the state a breaker has entered.
func (m *PrometheusMetrics) RecordState(name string, state State) {
	m.circuitState.WithLabelValues(name).Set(float64(state))
}

// RecordRejection records a rejected call.
func (m *PrometheusMetrics) RecordRejection(name string) {
	m.rejectionsTotal.WithLabelValues(name).Inc()
}

// RecordOutcome records an admitted call outcome.
func (m *PrometheusMetrics) RecordOutcome(name string, failure bool) {
	result := "success"
	if failure {
		result = "failure"
	}
	m.outcomesTotal.WithLabelValues(name, result).Inc()
}
