// Package usage tracks per-provider consumption of metered external
// services (LLM tokens and their derived cost) against optional budget
// ceilings.
//
// The tracker is purely advisory: it never blocks a call. Budget
// enforcement, if any, belongs to the caller, which can consult
// IsOverBudget before dispatching work.
package usage

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Record is a point-in-time view of one provider's consumption within
// the current tracking period.
type Record struct {
	Provider      string    `json:"provider"`
	InputUnits    int64     `json:"input_units"`
	OutputUnits   int64     `json:"output_units"`
	CostAccrued   float64   `json:"cost_accrued"`
	PeriodStart   time.Time `json:"period_start"`
	BudgetCeiling *float64  `json:"budget_ceiling,omitempty"`
	OverBudget    bool      `json:"over_budget"`
}

// Config contains the configuration for a Tracker.
type Config struct {
	// Rates maps provider and model to unit prices. Usage recorded for
	// a provider/model pair without a rate accrues units but no cost.
	Rates RateTable

	// Budgets holds optional per-provider cost ceilings in USD for one
	// tracking period. Providers without an entry have no ceiling.
	Budgets map[string]float64

	// Period is the tracking period length. Rollover resets totals once
	// the current time crosses a period boundary. Default: 24h
	Period time.Duration

	// Clock provides time operations for testing. Default: SystemClock
	Clock Clock

	// Logger for unknown-rate warnings. Default: slog.Default()
	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Period <= 0 {
		c.Period = 24 * time.Hour
	}
	if c.Clock == nil {
		c.Clock = &SystemClock{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Tracker accumulates per-provider usage within the current period.
//
// All methods are safe for unsynchronized concurrent use. Each
// provider's totals carry their own mutex, so recording usage for one
// provider never blocks another.
type Tracker struct {
	cfg Config

	mu          sync.RWMutex
	providers   map[string]*providerTotals
	periodStart time.Time
	warned      map[string]struct{}
}

type providerTotals struct {
	mu          sync.Mutex
	inputUnits  int64
	outputUnits int64
	cost        float64
}

// NewTracker creates a tracker whose first period contains the current
// time. Zero-valued config fields are replaced with defaults (see Config).
func NewTracker(cfg Config) *Tracker {
	cfg = cfg.withDefaults()
	return &Tracker{
		cfg:         cfg,
		providers:   make(map[string]*providerTotals),
		periodStart: cfg.Clock.Now().UTC().Truncate(cfg.Period),
		warned:      make(map[string]struct{}),
	}
}

// RecordUsage adds one call's consumed units to the provider's running
// totals, plus the incremental cost from the configured rate table.
//
// A provider/model pair without a configured rate still accumulates
// units; its cost contribution is zero and a warning is logged once per
// pair (fail-safe: unpriced usage must not be dropped).
func (t *Tracker) RecordUsage(provider, model string, inputUnits, outputUnits int64) {
	cost, priced := t.cfg.Rates.Cost(provider, model, inputUnits, outputUnits)
	if !priced {
		t.warnUnpriced(provider, model)
	}

	totals := t.totals(provider)
	totals.mu.Lock()
	totals.inputUnits += inputUnits
	totals.outputUnits += outputUnits
	totals.cost += cost
	totals.mu.Unlock()

	tokensTotal.WithLabelValues(provider, "input").Add(float64(inputUnits))
	tokensTotal.WithLabelValues(provider, "output").Add(float64(outputUnits))
	costTotal.WithLabelValues(provider).Add(cost)
}

// Usage returns the provider's totals for the current period. A provider
// that has recorded nothing yet reports zeroes.
func (t *Tracker) Usage(provider string) Record {
	t.mu.RLock()
	totals := t.providers[provider]
	periodStart := t.periodStart
	t.mu.RUnlock()

	rec := Record{Provider: provider, PeriodStart: periodStart}
	if ceiling, ok := t.cfg.Budgets[provider]; ok {
		c := ceiling
		rec.BudgetCeiling = &c
	}
	if totals == nil {
		return rec
	}

	totals.mu.Lock()
	rec.InputUnits = totals.inputUnits
	rec.OutputUnits = totals.outputUnits
	rec.CostAccrued = totals.cost
	totals.mu.Unlock()

	if rec.BudgetCeiling != nil && rec.CostAccrued >= *rec.BudgetCeiling {
		rec.OverBudget = true
	}
	return rec
}

// IsOverBudget reports whether the provider's accrued cost has reached
// its configured ceiling. Always false for providers without a ceiling.
// Advisory only: the tracker never rejects a call.
func (t *Tracker) IsOverBudget(provider string) bool {
	return t.Usage(provider).OverBudget
}

// Providers returns the providers with recorded usage, sorted.
func (t *Tracker) Providers() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.providers))
	for name := range t.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns the current totals of every known provider, plus
// zero records for providers that have a budget configured but no usage
// yet, so budgeted providers are always visible to operators.
func (t *Tracker) Snapshot() map[string]Record {
	seen := make(map[string]struct{})
	t.mu.RLock()
	for name := range t.providers {
		seen[name] = struct{}{}
	}
	t.mu.RUnlock()
	for name := range t.cfg.Budgets {
		seen[name] = struct{}{}
	}

	snapshot := make(map[string]Record, len(seen))
	for name := range seen {
		snapshot[name] = t.Usage(name)
	}
	return snapshot
}

// PeriodStart returns the start of the current tracking period.
func (t *Tracker) PeriodStart() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.periodStart
}

// Rollover resets all totals and advances the period start if the
// current time has crossed a period boundary, and reports whether it
// did. The tracker has no internal timer: callers (typically a cron
// job) invoke Rollover when they observe time passing.
func (t *Tracker) Rollover() bool {
	now := t.cfg.Clock.Now().UTC()

	t.mu.Lock()
	defer t.mu.Unlock()

	boundary := now.Truncate(t.cfg.Period)
	if !boundary.After(t.periodStart) {
		return false
	}

	t.providers = make(map[string]*providerTotals)
	t.periodStart = boundary
	t.cfg.Logger.Info("usage period rolled over",
		slog.Time("period_start", boundary))
	return true
}

// totals returns the running totals for provider, creating them if
// needed.
func (t *Tracker) totals(provider string) *providerTotals {
	t.mu.RLock()
	totals, ok := t.providers[provider]
	t.mu.RUnlock()
	if ok {
		return totals
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if totals, ok := t.providers[provider]; ok {
		return totals
	}
	totals = &providerTotals{}
	t.providers[provider] = totals
	return totals
}

func (t *Tracker) warnUnpriced(provider, model string) {
	key := provider + "/" + model
	t.mu.Lock()
	_, already := t.warned[key]
	if !already {
		t.warned[key] = struct{}{}
	}
	t.mu.Unlock()

	if !already {
		t.cfg.Logger.Warn("no rate configured, accruing units with zero cost",
			slog.String("provider", provider),
			slog.String("model", model))
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
