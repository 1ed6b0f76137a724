package health

import (
	"golang.org/x/sync/singleflight"

	"callguard/pkg/breaker"
	"callguard/pkg/ratelimit"
	"callguard/pkg/usage"
)

// RegistrySource provides breaker state. *breaker.Registry satisfies it.
type RegistrySource interface {
	Snapshot() map[string]breaker.Status
}

// LimiterSource provides rate-limit utilization. *ratelimit.Limiter
// satisfies it.
type LimiterSource interface {
	Keys() []string
	Utilization(key string) ratelimit.Utilization
}

// TrackerSource provides usage records. *usage.Tracker satisfies it.
type TrackerSource interface {
	Snapshot() map[string]usage.Record
}

// Config contains the configuration for an Aggregator.
//
// Any nil source is reported as "unknown" in its snapshot section
// instead of failing the snapshot; a partially wired system still gets
// an overall verdict from the components that are present.
type Config struct {
	Registry RegistrySource
	Limiter  LimiterSource
	Tracker  TrackerSource

	// UtilizationThreshold marks a rate-limit key as degraded when
	// either of its windows reaches this fraction of its ceiling.
	// Default: 0.9
	UtilizationThreshold float64
}

// Aggregator derives snapshots of the whole governance layer.
//
// Safe for unsynchronized concurrent use; concurrent Snapshot calls are
// coalesced so a burst of dashboard refreshes performs the composition
// once.
type Aggregator struct {
	cfg   Config
	group singleflight.Group
}

// NewAggregator creates an aggregator over the given sources.
func NewAggregator(cfg Config) *Aggregator {
	if cfg.UtilizationThreshold <= 0 || cfg.UtilizationThreshold > 1 {
		cfg.UtilizationThreshold = 0.9
	}
	return &Aggregator{cfg: cfg}
}

// Snapshot composes the current state of all sources and derives the
// health verdict. It never fails: missing components yield "unknown"
// sections, and the verdict is total over every input combination.
func (a *Aggregator) Snapshot() Snapshot {
	v, _, _ := a.group.Do("snapshot", func() (any, error) {
		return a.compose(), nil
	})
	return v.(Snapshot)
}

func (a *Aggregator) compose() Snapshot {
	snap := Snapshot{
		Health:    Healthy,
		Breakers:  BreakerSection{Status: StatusUnknown},
		RateLimit: RateLimitSection{Status: StatusUnknown},
		Usage:     UsageSection{Status: StatusUnknown},
	}

	if a.cfg.Registry != nil {
		breakers := a.cfg.Registry.Snapshot()
		snap.Breakers = BreakerSection{Status: StatusOK, Breakers: breakers}

		for _, st := range breakers {
			if st.State != breaker.StateOpen.String() {
				continue
			}
			if st.Critical {
				snap.Health = degrade(snap.Health, Unhealthy)
			} else {
				snap.Health = degrade(snap.Health, Degraded)
			}
		}
	}

	if a.cfg.Limiter != nil {
		keys := make(map[string]ratelimit.Utilization)
		for _, key := range a.cfg.Limiter.Keys() {
			u := a.cfg.Limiter.Utilization(key)
			keys[key] = u
			if u.Minute >= a.cfg.UtilizationThreshold || u.Day >= a.cfg.UtilizationThreshold {
				snap.Health = degrade(snap.Health, Degraded)
			}
		}
		snap.RateLimit = RateLimitSection{Status: StatusOK, Keys: keys}
	}

	if a.cfg.Tracker != nil {
		providers := a.cfg.Tracker.Snapshot()
		snap.Usage = UsageSection{Status: StatusOK, Providers: providers}

		for _, rec := range providers {
			if rec.OverBudget {
				snap.Health = degrade(snap.Health, Degraded)
			}
		}
	}

	return snap
}
