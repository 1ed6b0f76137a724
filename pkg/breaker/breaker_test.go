package breaker

import (
	"errors"
	"sync"
	"testing"
	"time"
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

var errBoom = errors.New("boom")

func failOp() (any, error) {
	return nil, errBoom
}

func successOp() (any, error) {
	return "ok", nil
}

func TestState_String(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  string
	}{
		{"closed state", StateClosed, "closed"},
		{"open state", StateOpen, "open"},
		{"half-open state", StateHalfOpen, "half-open"},
		{"unknown state", State(999), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.String(); got != tt.want {
				t.Errorf("String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	b := New(Config{Name: "test"})

	if b.cfg.FailureThreshold != 5 {
		t.Errorf("FailureThreshold = %d, want 5", b.cfg.FailureThreshold)
	}
	if b.cfg.RecoveryTimeout != 60*time.Second {
		t.Errorf("RecoveryTimeout = %v, want 60s", b.cfg.RecoveryTimeout)
	}
	if b.cfg.HalfOpenTrialLimit != 1 {
		t.Errorf("HalfOpenTrialLimit = %d, want 1", b.cfg.HalfOpenTrialLimit)
	}
	if b.cfg.FailureRateThreshold != 0.5 {
		t.Errorf("FailureRateThreshold = %v, want 0.5", b.cfg.FailureRateThreshold)
	}
	if b.cfg.RollingWindow != 10 || b.cfg.MinSamples != 10 {
		t.Errorf("RollingWindow/MinSamples = %d/%d, want 10/10", b.cfg.RollingWindow, b.cfg.MinSamples)
	}
	if b.State() != StateClosed {
		t.Errorf("initial state = %v, want closed", b.State())
	}
}

func TestBreaker_ClosedState(t *testing.T) {
	clock := NewMockClock(time.Now())
	b := New(Config{Name: "test", FailureThreshold: 3, Clock: clock})

	result, err := b.Execute(successOp, nil)
	if err != nil {
		t.Errorf("Execute() error = %v, want nil", err)
	}
	if result != "ok" {
		t.Errorf("Execute() result = %v, want ok", result)
	}

	if _, err := b.Execute(failOp, nil); !errors.Is(err, errBoom) {
		t.Errorf("Execute() error = %v, want errBoom", err)
	}
	if b.State() != StateClosed {
		t.Errorf("State = %v, want closed after a single failure", b.State())
	}
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	clock := NewMockClock(time.Now())
	threshold := uint32(3)
	b := New(Config{Name: "test", FailureThreshold: threshold, RecoveryTimeout: 60 * time.Second, Clock: clock})

	// Exactly N classified failures open the breaker.
	for i := uint32(0); i < threshold; i++ {
		if b.State() != StateClosed {
			t.Fatalf("breaker opened after %d failures, want %d", i, threshold)
		}
		if _, err := b.Execute(failOp, nil); !errors.Is(err, errBoom) {
			t.Fatalf("Execute() error = %v, want errBoom", err)
		}
	}
	if !b.IsOpen() {
		t.Fatalf("breaker should be open after %d failures", threshold)
	}

	// The next call is rejected without invoking the operation.
	invoked := false
	_, err := b.Execute(func() (any, error) {
		invoked = true
		return nil, nil
	}, nil)
	if invoked {
		t.Error("operation was invoked while open")
	}
	var openErr *CircuitOpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("Execute() error = %v, want *CircuitOpenError", err)
	}
	if openErr.Name != "test" {
		t.Errorf("CircuitOpenError.Name = %q, want test", openErr.Name)
	}
	if openErr.RetryAfter <= 0 {
		t.Errorf("CircuitOpenError.RetryAfter = %v, want > 0", openErr.RetryAfter)
	}
}

func TestBreaker_SuccessResetsConsecutiveCount(t *testing.T) {
	clock := NewMockClock(time.Now())
	b := New(Config{Name: "test", FailureThreshold: 3, Clock: clock})

	for i := 0; i < 10; i++ {
		b.Execute(failOp, nil)
		b.Execute(failOp, nil)
		b.Execute(successOp, nil)
	}

	if b.State() != StateClosed {
		t.Errorf("State = %v, want closed when failures never run consecutively", b.State())
	}
}

func TestBreaker_OpensOnFailureRate(t *testing.T) {
	clock := NewMockClock(time.Now())
	b := New(Config{
		Name:                 "test",
		FailureThreshold:     100, // out of reach so only the rate condition can trip
		FailureRateThreshold: 0.5,
		RollingWindow:        10,
		MinSamples:           10,
		Clock:                clock,
	})

	// Alternate success/failure: 50% failure rate, never 2 consecutive.
	// The window fills on the 10th outcome, a failure, which trips it.
	for i := 0; i < 10; i++ {
		if i%2 == 0 {
			b.Execute(successOp, nil)
		} else {
			b.Execute(failOp, nil)
		}
	}

	if !b.IsOpen() {
		t.Errorf("State = %v, want open at 50%% failure rate over a full window", b.State())
	}
}

func TestBreaker_RateRequiresMinSamples(t *testing.T) {
	clock := NewMockClock(time.Now())
	b := New(Config{
		Name:                 "test",
		FailureThreshold:     100,
		FailureRateThreshold: 0.5,
		RollingWindow:        10,
		MinSamples:           10,
		Clock:                clock,
	})

	// 100% failure rate but below the minimum sample size: 4 < 10,
	// and 4 consecutive failures are below FailureThreshold too.
	for i := 0; i < 4; i++ {
		b.Execute(failOp, nil)
	}

	if b.State() != StateClosed {
		t.Errorf("State = %v, want closed below minimum sample size", b.State())
	}
}

func TestBreaker_RecoveryTrialAfterTimeout(t *testing.T) {
	clock := NewMockClock(time.Now())
	recoveryTimeout := 60 * time.Second
	b := New(Config{Name: "test", FailureThreshold: 3, RecoveryTimeout: recoveryTimeout, Clock: clock})

	for i := 0; i < 3; i++ {
		b.Execute(failOp, nil)
	}
	if !b.IsOpen() {
		t.Fatal("breaker should be open")
	}

	// Before the timeout: still rejected.
	clock.Advance(recoveryTimeout - time.Second)
	if _, err := b.Execute(successOp, nil); !IsCircuitOpen(err) {
		t.Fatalf("Execute() before timeout error = %v, want CircuitOpenError", err)
	}

	// At the timeout the next call is admitted as the half-open trial.
	clock.Advance(2 * time.Second)
	invoked := false
	_, err := b.Execute(func() (any, error) {
		invoked = true
		return nil, nil
	}, nil)
	if err != nil || !invoked {
		t.Fatalf("trial call: invoked=%v err=%v, want invoked with nil error", invoked, err)
	}
	if b.State() != StateClosed {
		t.Errorf("State = %v, want closed after successful trial", b.State())
	}
}

func TestBreaker_TrialFailureReopens(t *testing.T) {
	clock := NewMockClock(time.Now())
	recoveryTimeout := 60 * time.Second
	b := New(Config{Name: "test", FailureThreshold: 3, RecoveryTimeout: recoveryTimeout, Clock: clock})

	for i := 0; i < 3; i++ {
		b.Execute(failOp, nil)
	}
	clock.Advance(recoveryTimeout)

	if _, err := b.Execute(failOp, nil); !errors.Is(err, errBoom) {
		t.Fatalf("trial Execute() error = %v, want errBoom", err)
	}
	if !b.IsOpen() {
		t.Fatalf("State = %v, want open after failed trial", b.State())
	}

	// openedAt was reset by the failed trial: the full timeout applies again.
	clock.Advance(recoveryTimeout / 2)
	if _, err := b.Execute(successOp, nil); !IsCircuitOpen(err) {
		t.Errorf("Execute() error = %v, want CircuitOpenError before restarted timeout", err)
	}
}

func TestBreaker_HalfOpenTrialLimit(t *testing.T) {
	clock := NewMockClock(time.Now())
	recoveryTimeout := 60 * time.Second
	b := New(Config{
		Name:               "test",
		FailureThreshold:   3,
		RecoveryTimeout:    recoveryTimeout,
		HalfOpenTrialLimit: 3,
		Clock:              clock,
	})

	for i := 0; i < 3; i++ {
		b.Execute(failOp, nil)
	}
	clock.Advance(recoveryTimeout)

	// First two trial successes keep the breaker half-open.
	for i := 0; i < 2; i++ {
		if _, err := b.Execute(successOp, nil); err != nil {
			t.Fatalf("trial %d error = %v, want nil", i+1, err)
		}
		if b.State() != StateHalfOpen {
			t.Fatalf("State after trial %d = %v, want half-open", i+1, b.State())
		}
	}

	// The third success closes it and resets counters.
	if _, err := b.Execute(successOp, nil); err != nil {
		t.Fatalf("final trial error = %v, want nil", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("State = %v, want closed", b.State())
	}
	st := b.Status()
	if st.ConsecutiveFailures != 0 || st.OpenedAt != nil {
		t.Errorf("Status after close = %+v, want zeroed counters and no openedAt", st)
	}
}

func TestBreaker_SingleTrialInFlight(t *testing.T) {
	clock := NewMockClock(time.Now())
	recoveryTimeout := 60 * time.Second
	b := New(Config{Name: "test", FailureThreshold: 1, RecoveryTimeout: recoveryTimeout, Clock: clock})

	b.Execute(failOp, nil)
	clock.Advance(recoveryTimeout)

	// First caller takes the trial slot and holds it open.
	ticket, err := b.Acquire()
	if err != nil {
		t.Fatalf("Acquire() error = %v, want trial admission", err)
	}
	if b.State() != StateHalfOpen {
		t.Fatalf("State = %v, want half-open", b.State())
	}

	// A second concurrent caller is rejected as if open.
	if _, err := b.Acquire(); !IsCircuitOpen(err) {
		t.Errorf("second Acquire() error = %v, want CircuitOpenError", err)
	}

	ticket.Succeed()
	if b.State() != StateClosed {
		t.Errorf("State = %v, want closed after trial success", b.State())
	}
}

func TestBreaker_Classifier(t *testing.T) {
	errExpected := errors.New("expected: not found")

	tests := []struct {
		name      string
		classify  Classifier
		opErr     error
		wantState State
	}{
		{
			name:      "nil classifier counts every error as failure",
			classify:  nil,
			opErr:     errBoom,
			wantState: StateOpen,
		},
		{
			name:      "classifier exempts expected errors",
			classify:  func(err error) bool { return !errors.Is(err, errExpected) },
			opErr:     errExpected,
			wantState: StateClosed,
		},
		{
			name:      "classifier still counts unexpected errors",
			classify:  func(err error) bool { return !errors.Is(err, errExpected) },
			opErr:     errBoom,
			wantState: StateOpen,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := NewMockClock(time.Now())
			b := New(Config{Name: "test", FailureThreshold: 1, Clock: clock})

			_, err := b.Execute(func() (any, error) { return nil, tt.opErr }, tt.classify)
			if !errors.Is(err, tt.opErr) {
				t.Fatalf("Execute() error = %v, want %v passed through", err, tt.opErr)
			}
			if b.State() != tt.wantState {
				t.Errorf("State = %v, want %v", b.State(), tt.wantState)
			}
		})
	}
}

func TestBreaker_TicketReportIdempotent(t *testing.T) {
	clock := NewMockClock(time.Now())
	b := New(Config{Name: "test", FailureThreshold: 2, Clock: clock})

	ticket, err := b.Acquire()
	if err != nil {
		t.Fatal(err)
	}
	ticket.Fail()
	ticket.Fail() // second completion must not double count

	st := b.Status()
	if st.ConsecutiveFailures != 1 {
		t.Errorf("ConsecutiveFailures = %d, want 1", st.ConsecutiveFailures)
	}
}

func TestBreaker_Do(t *testing.T) {
	clock := NewMockClock(time.Now())
	b := New(Config{Name: "test", FailureThreshold: 1, Clock: clock})

	n, err := Do(b, func() (int, error) { return 42, nil }, nil)
	if err != nil || n != 42 {
		t.Fatalf("Do() = %d, %v, want 42, nil", n, err)
	}

	Do(b, func() (int, error) { return 0, errBoom }, nil)
	if _, err := Do(b, func() (int, error) { return 0, nil }, nil); !IsCircuitOpen(err) {
		t.Errorf("Do() on open breaker error = %v, want CircuitOpenError", err)
	}
}

func TestBreaker_ConcurrentExecute(t *testing.T) {
	clock := NewMockClock(time.Now())
	b := New(Config{Name: "test", FailureThreshold: 1000, Clock: clock})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if i%2 == 0 {
					b.Execute(successOp, nil)
				} else {
					b.Execute(failOp, nil)
				}
			}
		}(i)
	}
	wg.Wait()

	if b.State() != StateClosed {
		// 50% failure rate over the default 10-sample window can trip
		// the breaker legitimately; only verify internal consistency.
		if b.State() != StateOpen && b.State() != StateHalfOpen {
			t.Errorf("unexpected state %v", b.State())
		}
	}
}

func TestCircuitOpenError(t *testing.T) {
	err := &CircuitOpenError{Name: "renderer", RetryAfter: 1500 * time.Millisecond}

	if got := err.RetryAfterSeconds(); got != 2 {
		t.Errorf("RetryAfterSeconds() = %d, want 2 (rounded up)", got)
	}
	if !IsCircuitOpen(err) {
		t.Error("IsCircuitOpen() = false, want true")
	}
	if IsCircuitOpen(errBoom) {
		t.Error("IsCircuitOpen(errBoom) = true, want false")
	}
}
