// Package ratelimit provides framework-agnostic sliding-window admission
// control for metered external services.
//
// Each service key is tracked over two independent trailing windows, one
// minute and one day, each with its own ceiling. A call is admitted only
// when both windows are under ceiling; denial consumes no quota. Expired
// entries are pruned lazily on each check, so memory per key is bounded
// by the admissions inside the longest window and the total key count is
// bounded by an LRU cap.
package ratelimit

import (
	"log/slog"
	"time"
)

const (
	// MinuteWindow is the short trailing window length.
	MinuteWindow = time.Minute

	// DayWindow is the long trailing window length.
	DayWindow = 24 * time.Hour
)

// Ceiling holds the admission ceilings for one service key.
type Ceiling struct {
	// PerMinute is the maximum admissions in any trailing minute.
	PerMinute int

	// PerDay is the maximum admissions in any trailing day.
	PerDay int
}

// Config contains the configuration for a Limiter.
type Config struct {
	// Default is the ceiling applied to keys without an override.
	// Defaults: 60/minute, 5000/day.
	Default Ceiling

	// PerKey overrides the default ceiling for specific service keys.
	// A non-positive field in an override falls back to the default.
	PerKey map[string]Ceiling

	// MaxKeys is the maximum number of keys kept in memory; least
	// recently used keys are evicted beyond it. Default: 10000
	MaxKeys int

	// Clock provides time operations for testing. Default: SystemClock
	Clock Clock

	// Metrics records limiter decisions. Default: NoOpMetrics
	Metrics Metrics

	// Logger for eviction logging. Default: slog.Default()
	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Default.PerMinute <= 0 {
		c.Default.PerMinute = 60
	}
	if c.Default.PerDay <= 0 {
		c.Default.PerDay = 5000
	}
	if c.MaxKeys <= 0 {
		c.MaxKeys = 10000
	}
	if c.Clock == nil {
		c.Clock = &SystemClock{}
	}
	if c.Metrics == nil {
		c.Metrics = &NoOpMetrics{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// ceilingFor resolves the effective ceiling for a key.
func (c Config) ceilingFor(key string) Ceiling {
	if ceiling, ok := c.PerKey[key]; ok {
		if ceiling.PerMinute <= 0 {
			ceiling.PerMinute = c.Default.PerMinute
		}
		if ceiling.PerDay <= 0 {
			ceiling.PerDay = c.Default.PerDay
		}
		return ceiling
	}
	return c.Default
}

// Clock provides an abstraction for time operations to enable testing.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// SystemClock is a Clock implementation that uses the system time.
type SystemClock struct{}

// Now returns the current system time.
func (c *SystemClock) Now() time.Time {
	return time.Now()
}
