package breaker

import (
	"log/slog"
	"time"
)

// Config holds the configuration for a circuit breaker.
type Config struct {
	// Name is the breaker name for errors, logging, and metrics.
	Name string

	// FailureThreshold is the number of consecutive failures that opens
	// the breaker. Default: 5
	FailureThreshold uint32

	// FailureRateThreshold opens the breaker when the failure rate over
	// the rolling window reaches this ratio (0-1), once MinSamples
	// outcomes have been observed. Default: 0.5
	FailureRateThreshold float64

	// MinSamples is the minimum number of recorded outcomes before the
	// rate condition is evaluated. Clamped to RollingWindow. Default: 10
	MinSamples uint32

	// RollingWindow is the number of recent outcomes kept for rate-based
	// tripping. Default: 10
	RollingWindow uint32

	// RecoveryTimeout is how long the breaker stays open before the next
	// call is admitted as a half-open trial. Default: 60s
	RecoveryTimeout time.Duration

	// HalfOpenTrialLimit is the number of consecutive trial successes
	// required to close the breaker again. Default: 1
	HalfOpenTrialLimit uint32

	// Critical marks the guarded dependency as critical: an open breaker
	// on a critical dependency makes the overall health verdict
	// Unhealthy rather than Degraded.
	Critical bool

	// Clock provides time operations for testing. Default: SystemClock
	Clock Clock

	// Metrics records state changes, rejections, and outcomes.
	// Default: NoOpMetrics
	Metrics Metrics

	// Logger for state-change logging. Default: slog.Default()
	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 5
	}
	if c.FailureRateThreshold <= 0 || c.FailureRateThreshold > 1 {
		c.FailureRateThreshold = 0.5
	}
	if c.RollingWindow == 0 {
		c.RollingWindow = 10
	}
	if c.MinSamples == 0 || c.MinSamples > c.RollingWindow {
		c.MinSamples = c.RollingWindow
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = 60 * time.Second
	}
	if c.HalfOpenTrialLimit == 0 {
		c.HalfOpenTrialLimit = 1
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

// RendererConfig returns a default configuration for the document
// rendering service: it recovers quickly, so a short open period is
// appropriate.
func RendererConfig() Config {
	return Config{
		Name:               "renderer",
		FailureThreshold:   3,
		RecoveryTimeout:    60 * time.Second,
		HalfOpenTrialLimit: 1,
		Critical:           true,
	}
}

// LLMProviderConfig returns a default configuration for an LLM provider
// breaker with the given name.
func LLMProviderConfig(name string) Config {
	return Config{
		Name:               name,
		FailureThreshold:   5,
		RecoveryTimeout:    120 * time.Second,
		HalfOpenTrialLimit: 1,
		Critical:           true,
	}
}

// ScraperConfig returns a default configuration for the web scraping
// service. Scraper outages tend to last, so the open period is long.
func ScraperConfig() Config {
	return Config{
		Name:               "scraper",
		FailureThreshold:   3,
		RecoveryTimeout:    300 * time.Second,
		HalfOpenTrialLimit: 1,
	}
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
