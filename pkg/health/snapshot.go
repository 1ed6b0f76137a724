// Package health composes the current state of the circuit breaker
// registry, the rate limiter, and the usage tracker into one structured,
// JSON-serializable snapshot with a single derived health verdict.
//
// Snapshots are pull-based and side-effect free: nothing here touches
// the guarded call path, performs blocking I/O, or mutates component
// state. Two snapshots taken with no intervening state change are equal.
package health

import (
	"callguard/pkg/breaker"
	"callguard/pkg/ratelimit"
	"callguard/pkg/usage"
)

// SystemHealth is the single derived verdict over all tracked signals.
type SystemHealth string

const (
	// Healthy means no tracked signal indicates trouble.
	Healthy SystemHealth = "healthy"

	// Degraded means at least one non-critical signal indicates trouble:
	// an open breaker on a non-critical dependency, a rate-limit key
	// near its ceiling, or a provider over budget.
	Degraded SystemHealth = "degraded"

	// Unhealthy means a breaker guarding a critical dependency is open.
	Unhealthy SystemHealth = "unhealthy"
)

// Section status values. A component that was not wired into the
// aggregator reports "unknown" rather than failing the whole snapshot.
const (
	StatusOK      = "ok"
	StatusUnknown = "unknown"
)

// Snapshot is a point-in-time view of the whole governance layer.
type Snapshot struct {
	Health    SystemHealth     `json:"health"`
	Breakers  BreakerSection   `json:"breakers"`
	RateLimit RateLimitSection `json:"rate_limit"`
	Usage     UsageSection     `json:"usage"`
}

// BreakerSection reports every registered circuit breaker.
type BreakerSection struct {
	Status   string                    `json:"status"`
	Breakers map[string]breaker.Status `json:"breakers,omitempty"`
}

// RateLimitSection reports per-key window utilization.
type RateLimitSection struct {
	Status string                           `json:"status"`
	Keys   map[string]ratelimit.Utilization `json:"keys,omitempty"`
}

// UsageSection reports per-provider consumption and budget state.
type UsageSection struct {
	Status    string                  `json:"status"`
	Providers map[string]usage.Record `json:"providers,omitempty"`
}

// severity orders verdicts for the precedence rules.
func severity(h SystemHealth) int {
	switch h {
	case Unhealthy:
		return 2
	case Degraded:
		return 1
	default:
		return 0
	}
}

// degrade returns the more severe of the two verdicts.
func degrade(current, candidate SystemHealth) SystemHealth {
	if severity(candidate) > severity(current) {
		return candidate
	}
	return current
}
