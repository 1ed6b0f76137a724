package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics implements the Metrics interface using Prometheus.
//
// All metrics use a custom registry for better testability and isolation;
// pass Registry() to promhttp.HandlerFor to expose them.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	// checksTotal counts rate limit checks by service key and status.
	checksTotal *prometheus.CounterVec

	// evictionsTotal counts LRU evictions of key tracking state.
	evictionsTotal prometheus.Counter
}

// NewPrometheusMetrics creates a PrometheusMetrics instance with its own
// registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	checksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_checks_total",
			Help: "Rate limit checks by service key and status",
		},
		[]string{"key", "status"},
	)

	evictionsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_limit_evictions_total",
			Help: "LRU evictions of rate limit key state",
		},
	)

	registry.MustRegister(checksTotal, evictionsTotal)

	return &PrometheusMetrics{
		registry:       registry,
		checksTotal:    checksTotal,
		evictionsTotal: evictionsTotal,
	}
}

// Registry returns the underlying Prometheus registry for exposition.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordAllowed records an admitted check.
func (m *PrometheusMetrics) RecordAllowed(key string) {
	m.checksTotal.WithLabelValues(key, "allowed").Inc()
}

// RecordDenied records a denied check.
func (m *PrometheusMetrics) RecordDenied(key string) {
	m.checksTotal.WithLabelValues(key, "denied").Inc()
}

// RecordEviction records an eviction.
func (m *PrometheusMetrics) RecordEviction(key string) {
	m.evictionsTotal.Inc()
}
