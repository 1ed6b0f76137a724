package config

import (
	"log/slog"
	"time"

	"callguard/pkg/breaker"
	"callguard/pkg/health"
	"callguard/pkg/ratelimit"
	"callguard/pkg/usage"
)

// Components holds the wired governance layer built from a Config.
type Components struct {
	Registry   *breaker.Registry
	Limiter    *ratelimit.Limiter
	Tracker    *usage.Tracker
	Aggregator *health.Aggregator

	BreakerMetrics   *breaker.PrometheusMetrics
	RateLimitMetrics *ratelimit.PrometheusMetrics
}

// Build constructs the registry, limiter, tracker, and aggregator
// declared by the config, wired to Prometheus metrics and the given
// logger.
func (c *Config) Build(logger *slog.Logger) *Components {
	breakerMetrics := breaker.NewPrometheusMetrics()
	limitMetrics := ratelimit.NewPrometheusMetrics()

	breakerCfgs := make([]breaker.Config, 0, len(c.Breakers))
	for _, b := range c.Breakers {
		breakerCfgs = append(breakerCfgs, breaker.Config{
			Name:                 b.Name,
			FailureThreshold:     uint32(b.FailureThreshold),
			FailureRateThreshold: b.FailureRateThreshold,
			MinSamples:           uint32(b.MinSamples),
			RollingWindow:        uint32(b.RollingWindow),
			RecoveryTimeout:      time.Duration(b.RecoveryTimeoutSeconds) * time.Second,
			HalfOpenTrialLimit:   uint32(b.HalfOpenTrialLimit),
			Critical:             b.Critical,
			Metrics:              breakerMetrics,
			Logger:               logger,
		})
	}
	registry := breaker.NewRegistryFromConfigs(breakerCfgs)

	perKey := make(map[string]ratelimit.Ceiling, len(c.RateLimit.PerKey))
	for key, ceil := range c.RateLimit.PerKey {
		perKey[key] = ratelimit.Ceiling{PerMinute: ceil.PerMinute, PerDay: ceil.PerDay}
	}
	limiter := ratelimit.NewLimiter(ratelimit.Config{
		Default: ratelimit.Ceiling{
			PerMinute: c.RateLimit.Default.PerMinute,
			PerDay:    c.RateLimit.Default.PerDay,
		},
		PerKey:  perKey,
		MaxKeys: c.RateLimit.MaxKeys,
		Metrics: limitMetrics,
		Logger:  logger,
	})

	rates := make(usage.RateTable, len(c.Usage.Rates))
	for provider, models := range c.Usage.Rates {
		rates[provider] = make(map[string]usage.Rate, len(models))
		for model, r := range models {
			rates[provider][model] = usage.Rate{
				InputPer1K:  r.InputPer1K,
				OutputPer1K: r.OutputPer1K,
			}
		}
	}
	tracker := usage.NewTracker(usage.Config{
		Rates:   rates,
		Budgets: c.Usage.Budgets,
		Period:  time.Duration(c.Usage.PeriodHours) * time.Hour,
		Logger:  logger,
	})

	aggregator := health.NewAggregator(health.Config{
		Registry:             registry,
		Limiter:              limiter,
		Tracker:              tracker,
		UtilizationThreshold: c.Health.UtilizationThreshold,
	})

	return &Components{
		Registry:         registry,
		Limiter:          limiter,
		Tracker:          tracker,
		Aggregator:       aggregator,
		BreakerMetrics:   breakerMetrics,
		RateLimitMetrics: limitMetrics,
	}
}
