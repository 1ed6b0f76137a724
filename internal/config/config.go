// Package config loads and validates the YAML configuration that wires
// the circuit breaker registry, rate limiter, usage tracker, and health
// aggregator together.
//
// Loading never fails on out-of-range numeric values: those fall back
// to package defaults and produce warnings so an operator typo degrades
// gracefully instead of keeping the service down. Structural problems
// (unreadable file, malformed YAML, invalid cron expressions, unknown
// breaker references) are hard errors.
package config

import (
	"fmt"
	"os"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Default values applied when the YAML omits or mis-specifies a field.
const (
	DefaultListenAddr           = ":8080"
	DefaultRolloverSchedule     = "0 0 * * *"
	DefaultCleanupSchedule      = "*/5 * * * *"
	DefaultUtilizationThreshold = 0.9
)

// Config is the root of the YAML configuration file.
type Config struct {
	// ListenAddr is the bind address of the status HTTP server.
	ListenAddr string `yaml:"listen_addr"`

	// RolloverSchedule is the cron expression for usage period rollover.
	RolloverSchedule string `yaml:"rollover_schedule"`

	// CleanupSchedule is the cron expression for pruning idle
	// rate-limit keys.
	CleanupSchedule string `yaml:"cleanup_schedule"`

	Breakers  []BreakerConfig `yaml:"breakers"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Usage     UsageConfig     `yaml:"usage"`
	Health    HealthConfig    `yaml:"health"`
}

// BreakerConfig declares one named circuit breaker. Zero-valued fields
// take the breaker package defaults.
type BreakerConfig struct {
	Name                   string  `yaml:"name"`
	FailureThreshold       int     `yaml:"failure_threshold"`
	FailureRateThreshold   float64 `yaml:"failure_rate_threshold"`
	MinSamples             int     `yaml:"min_samples"`
	RollingWindow          int     `yaml:"rolling_window"`
	RecoveryTimeoutSeconds int     `yaml:"recovery_timeout_seconds"`
	HalfOpenTrialLimit     int     `yaml:"half_open_trial_limit"`
	Critical               bool    `yaml:"critical"`
}

// CeilingConfig declares request ceilings for one rate-limit key.
type CeilingConfig struct {
	PerMinute int `yaml:"per_minute"`
	PerDay    int `yaml:"per_day"`
}

// RateLimitConfig declares the default ceilings and per-key overrides.
type RateLimitConfig struct {
	MaxKeys int                      `yaml:"max_keys"`
	Default CeilingConfig            `yaml:"default"`
	PerKey  map[string]CeilingConfig `yaml:"per_key"`
}

// RateConfig declares the USD prices per thousand units for one model.
type RateConfig struct {
	InputPer1K  float64 `yaml:"input_per_1k"`
	OutputPer1K float64 `yaml:"output_per_1k"`
}

// UsageConfig declares pricing, budgets, and the accounting period.
// Model "*" under a provider prices every model without its own entry.
type UsageConfig struct {
	PeriodHours int                              `yaml:"period_hours"`
	Rates       map[string]map[string]RateConfig `yaml:"rates"`
	Budgets     map[string]float64               `yaml:"budgets"`
}

// HealthConfig tunes the aggregator's verdict rules.
type HealthConfig struct {
	// UtilizationThreshold marks a rate-limit key as degraded when a
	// window reaches this fraction of its ceiling. Must be in (0, 1].
	UtilizationThreshold float64 `yaml:"utilization_threshold"`
}

// Load reads and parses the configuration file at path.
// The path is expected to come from a trusted source (command-line
// argument or hardcoded default).
func Load(path string) (*Config, []string, error) {
	// #nosec G304 -- path is provided by trusted source (CLI arg), not user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses raw YAML configuration bytes. It returns the validated
// config together with any warnings produced by fallback handling.
func Parse(data []byte) (*Config, []string, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config: %w", err)
	}

	warnings, err := cfg.validate()
	if err != nil {
		return nil, nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, warnings, nil
}

// validate checks structural requirements and applies fallback defaults
// to recoverable problems, returning one warning per fallback.
func (c *Config) validate() ([]string, error) {
	var warnings []string

	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}

	warnings = append(warnings, c.applyScheduleFallbacks()...)

	seen := make(map[string]bool, len(c.Breakers))
	for i := range c.Breakers {
		b := &c.Breakers[i]
		if b.Name == "" {
			return nil, fmt.Errorf("breakers[%d]: name is required", i)
		}
		if seen[b.Name] {
			return nil, fmt.Errorf("duplicate breaker name %q", b.Name)
		}
		seen[b.Name] = true

		for _, field := range []struct {
			name  string
			value *int
		}{
			{"failure_threshold", &b.FailureThreshold},
			{"min_samples", &b.MinSamples},
			{"rolling_window", &b.RollingWindow},
			{"half_open_trial_limit", &b.HalfOpenTrialLimit},
		} {
			if *field.value < 0 {
				warnings = append(warnings, fmt.Sprintf(
					"breaker %q: %s must not be negative, falling back to default",
					b.Name, field.name))
				*field.value = 0
			}
		}

		if b.FailureRateThreshold < 0 || b.FailureRateThreshold > 1 {
			warnings = append(warnings, fmt.Sprintf(
				"breaker %q: failure_rate_threshold %.2f out of range (0, 1], falling back to default",
				b.Name, b.FailureRateThreshold))
			b.FailureRateThreshold = 0
		}
		if b.RecoveryTimeoutSeconds < 0 {
			warnings = append(warnings, fmt.Sprintf(
				"breaker %q: recovery_timeout_seconds must not be negative, falling back to default",
				b.Name))
			b.RecoveryTimeoutSeconds = 0
		}
	}

	for key, ceil := range c.RateLimit.PerKey {
		if key == "" {
			return nil, fmt.Errorf("rate_limit.per_key: key must not be empty")
		}
		if ceil.PerMinute < 0 || ceil.PerDay < 0 {
			warnings = append(warnings, fmt.Sprintf(
				"rate_limit.per_key[%q]: negative ceiling, falling back to default", key))
			delete(c.RateLimit.PerKey, key)
		}
	}

	if c.Usage.PeriodHours < 0 {
		warnings = append(warnings, fmt.Sprintf(
			"usage.period_hours %d must not be negative, falling back to 24", c.Usage.PeriodHours))
		c.Usage.PeriodHours = 0
	}
	for provider, ceiling := range c.Usage.Budgets {
		if ceiling <= 0 {
			return nil, fmt.Errorf("usage.budgets[%q]: ceiling must be positive", provider)
		}
	}

	if c.Health.UtilizationThreshold < 0 || c.Health.UtilizationThreshold > 1 {
		warnings = append(warnings, fmt.Sprintf(
			"health.utilization_threshold %.2f out of range (0, 1], falling back to %.1f",
			c.Health.UtilizationThreshold, DefaultUtilizationThreshold))
		c.Health.UtilizationThreshold = DefaultUtilizationThreshold
	}

	return warnings, nil
}

// applyScheduleFallbacks validates the cron expressions and substitutes
// defaults for empty or unparsable ones.
func (c *Config) applyScheduleFallbacks() []string {
	var warnings []string

	if c.RolloverSchedule == "" {
		c.RolloverSchedule = DefaultRolloverSchedule
	} else if err := ValidateCronSchedule(c.RolloverSchedule); err != nil {
		warnings = append(warnings, fmt.Sprintf(
			"rollover_schedule: %v, falling back to %q", err, DefaultRolloverSchedule))
		c.RolloverSchedule = DefaultRolloverSchedule
	}

	if c.CleanupSchedule == "" {
		c.CleanupSchedule = DefaultCleanupSchedule
	} else if err := ValidateCronSchedule(c.CleanupSchedule); err != nil {
		warnings = append(warnings, fmt.Sprintf(
			"cleanup_schedule: %v, falling back to %q", err, DefaultCleanupSchedule))
		c.CleanupSchedule = DefaultCleanupSchedule
	}

	return warnings
}

// ValidateCronSchedule validates a standard five-field cron expression
// using the robfig/cron/v3 parser, the same parser the scheduler runs.
func ValidateCronSchedule(schedule string) error {
	if schedule == "" {
		return fmt.Errorf("invalid cron schedule: cannot be empty")
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	return nil
}
