package usage

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockClock implements Clock interface for testing
type MockClock struct {
	mu  sync.RWMutex
	now time.Time
}

func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

func (m *MockClock) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now
}

func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

func testRates() RateTable {
	return RateTable{
		"providerX": {
			"model-a": {InputPer1K: 0.01, OutputPer1K: 0.02},
		},
		"anthropic": {
			"*": {InputPer1K: 3.0, OutputPer1K: 15.0},
		},
	}
}

func TestTracker_RecordUsage_AccumulatesExactly(t *testing.T) {
	clock := NewMockClock(time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC))
	tracker := NewTracker(Config{Rates: testRates(), Clock: clock})

	tracker.RecordUsage("providerX", "model-a", 100, 50)
	tracker.RecordUsage("providerX", "model-a", 200, 20)

	rec := tracker.Usage("providerX")
	assert.Equal(t, int64(300), rec.InputUnits)
	assert.Equal(t, int64(70), rec.OutputUnits)
	assert.InDelta(t, 300*0.00001+70*0.00002, rec.CostAccrued, 1e-12)
	assert.Equal(t, time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), rec.PeriodStart)
}

func TestTracker_UnknownRateAccruesUnitsOnly(t *testing.T) {
	tracker := NewTracker(Config{Rates: testRates()})

	tracker.RecordUsage("mystery", "model-z", 1000, 1000)

	rec := tracker.Usage("mystery")
	assert.Equal(t, int64(1000), rec.InputUnits)
	assert.Equal(t, int64(1000), rec.OutputUnits)
	assert.Zero(t, rec.CostAccrued)
}

func TestTracker_WildcardModelRate(t *testing.T) {
	tracker := NewTracker(Config{Rates: testRates()})

	tracker.RecordUsage("anthropic", "claude-whatever", 1000, 1000)

	rec := tracker.Usage("anthropic")
	assert.InDelta(t, 3.0+15.0, rec.CostAccrued, 1e-9)
}

func TestTracker_Budget(t *testing.T) {
	tracker := NewTracker(Config{
		Rates:   testRates(),
		Budgets: map[string]float64{"providerX": 0.01},
	})

	require.False(t, tracker.IsOverBudget("providerX"))
	require.False(t, tracker.IsOverBudget("unbudgeted"))

	// 500K input units at $0.01/1K = $5.00, far over the 1-cent budget.
	tracker.RecordUsage("providerX", "model-a", 500_000, 0)

	assert.True(t, tracker.IsOverBudget("providerX"))

	rec := tracker.Usage("providerX")
	require.NotNil(t, rec.BudgetCeiling)
	assert.Equal(t, 0.01, *rec.BudgetCeiling)
	assert.True(t, rec.OverBudget)

	// Advisory only: recording is still possible over budget.
	tracker.RecordUsage("providerX", "model-a", 1, 0)
	assert.Equal(t, int64(500_001), tracker.Usage("providerX").InputUnits)
}

func TestTracker_Rollover(t *testing.T) {
	clock := NewMockClock(time.Date(2026, 8, 29, 23, 0, 0, 0, time.UTC))
	tracker := NewTracker(Config{Rates: testRates(), Clock: clock})

	tracker.RecordUsage("providerX", "model-a", 100, 10)

	// Same period: nothing happens.
	require.False(t, tracker.Rollover())
	assert.Equal(t, int64(100), tracker.Usage("providerX").InputUnits)

	// Crossing midnight: totals reset, period start advances.
	clock.Advance(2 * time.Hour)
	require.True(t, tracker.Rollover())

	rec := tracker.Usage("providerX")
	assert.Zero(t, rec.InputUnits)
	assert.Zero(t, rec.OutputUnits)
	assert.Zero(t, rec.CostAccrued)
	assert.Equal(t, time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC), rec.PeriodStart)

	// A second rollover in the same period is a no-op.
	require.False(t, tracker.Rollover())
}

func TestTracker_SnapshotIncludesBudgetedProviders(t *testing.T) {
	tracker := NewTracker(Config{
		Rates:   testRates(),
		Budgets: map[string]float64{"anthropic": 100},
	})
	tracker.RecordUsage("providerX", "model-a", 10, 10)

	snap := tracker.Snapshot()
	require.Len(t, snap, 2)
	assert.Contains(t, snap, "providerX")
	assert.Contains(t, snap, "anthropic")
	assert.Zero(t, snap["anthropic"].InputUnits)
}

func TestTracker_ConcurrentRecording(t *testing.T) {
	tracker := NewTracker(Config{Rates: testRates()})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tracker.RecordUsage("providerX", "model-a", 1, 1)
			}
		}()
	}
	wg.Wait()

	rec := tracker.Usage("providerX")
	assert.Equal(t, int64(2000), rec.InputUnits)
	assert.Equal(t, int64(2000), rec.OutputUnits)
	assert.InDelta(t, 2000*0.00001+2000*0.00002, rec.CostAccrued, 1e-9)
}

func TestRateTable_Cost(t *testing.T) {
	rates := testRates()

	tests := []struct {
		name       string
		provider   string
		model      string
		in, out    int64
		wantCost   float64
		wantPriced bool
	}{
		{"exact model", "providerX", "model-a", 1000, 1000, 0.03, true},
		{"wildcard fallback", "anthropic", "unknown", 1000, 0, 3.0, true},
		{"unknown provider", "nope", "model-a", 1000, 1000, 0, false},
		{"unknown model no wildcard", "providerX", "model-b", 1000, 1000, 0, false},
		{"zero units", "providerX", "model-a", 0, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cost, priced := rates.Cost(tt.provider, tt.model, tt.in, tt.out)
			assert.Equal(t, tt.wantPriced, priced)
			assert.InDelta(t, tt.wantCost, cost, 1e-12)
		})
	}
}
