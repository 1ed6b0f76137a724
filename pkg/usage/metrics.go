package usage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Usage metrics track token consumption and accrued cost per provider.
var (
	// tokensTotal counts consumed units by provider and direction.
	tokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usage_units_total",
			Help: "Consumed units (tokens) by provider and direction",
		},
		[]string{"provider", "direction"},
	)

	// costTotal accumulates accrued cost in USD by provider.
	costTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usage_cost_usd_total",
			Help: "Accrued cost in USD by provider",
		},
		[]string{"provider"},
	)
)
