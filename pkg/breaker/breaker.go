// Package breaker provides per-dependency circuit breakers for external
// service calls.
//
// A Breaker guards a single protected operation against a degraded
// dependency. It is a three-state machine (closed, open, half-open) that
// trips on consecutive failures or on the failure rate over a rolling
// window of recent outcomes, and probes recovery with a single trial call
// at a time after a configurable timeout.
//
// Breakers are safe for unsynchronized concurrent use. Admission and
// bookkeeping happen under a per-breaker mutex; the guarded operation
// itself always runs outside the lock, so concurrent callers on the same
// breaker are never serialized by it.
package breaker

import (
	"log/slog"
	"sync"
	"time"
)

// State represents the current state of a circuit breaker.
type State int

const (
	// StateClosed indicates normal operation; calls are admitted.
	StateClosed State = iota

	// StateOpen indicates the dependency is considered down; calls are
	// rejected with *CircuitOpenError until the recovery timeout elapses.
	StateOpen

	// StateHalfOpen indicates recovery probing; exactly one trial call is
	// admitted at a time, all other calls are rejected.
	StateHalfOpen
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Classifier reports whether the given non-nil error counts as a failure
// of the protected dependency.
//
// Callers use it to exempt expected errors (validation errors, not-found,
// caller-side cancellation) from tripping the breaker. A nil Classifier
// treats every error as a failure, and so does a Classifier that does not
// recognize the error type it is given: the bias is toward protecting the
// dependency.
type Classifier func(err error) bool

// Breaker is a circuit breaker guarding one external dependency.
//
// Create breakers with New or through a Registry; the zero value is not
// usable.
type Breaker struct {
	name string
	cfg  Config

	mu                  sync.Mutex
	state               State
	consecutiveFailures uint32
	openedAt            time.Time
	halfOpenSuccesses   uint32
	trialInFlight       bool

	// Rolling window of recent outcomes for rate-based tripping.
	// outcomes[i] is true when the i-th recorded call failed.
	outcomes    []bool
	outcomePos  int
	sampleCount uint32
	failures    uint32
}

// New creates a breaker with the given configuration.
// Zero-valued config fields are replaced with defaults (see Config).
func New(cfg Config) *Breaker {
	cfg = cfg.withDefaults()

	b := &Breaker{
		name:     cfg.Name,
		cfg:      cfg,
		state:    StateClosed,
		outcomes: make([]bool, cfg.RollingWindow),
	}
	cfg.Metrics.RecordState(cfg.Name, StateClosed)
	return b
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// IsOpen returns true if the breaker is currently open.
func (b *Breaker) IsOpen() bool {
	return b.State() == StateOpen
}

// Status is a point-in-time view of a breaker, suitable for snapshots.
type Status struct {
	State               string     `json:"state"`
	ConsecutiveFailures uint32     `json:"consecutive_failures"`
	OpenedAt            *time.Time `json:"opened_at,omitempty"`
	Critical            bool       `json:"critical"`
}

// Status returns the current breaker status.
func (b *Breaker) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := Status{
		State:               b.state.String(),
		ConsecutiveFailures: b.consecutiveFailures,
		Critical:            b.cfg.Critical,
	}
	if !b.openedAt.IsZero() {
		openedAt := b.openedAt
		st.OpenedAt = &openedAt
	}
	return st
}

// Execute runs op through the breaker.
//
// If admission is denied, op is not invoked and a *CircuitOpenError is
// returned. Otherwise op's result and error are returned unchanged, after
// the outcome has been recorded; classify decides whether a non-nil error
// counts as a failure (nil classify means every error does).
func (b *Breaker) Execute(op func() (any, error), classify Classifier) (any, error) {
	ticket, err := b.Acquire()
	if err != nil {
		return nil, err
	}

	result, opErr := op()
	ticket.Report(opErr, classify)
	return result, opErr
}

// Do is the generic form of Execute for call sites that want a typed
// result without an interface round trip.
func Do[T any](b *Breaker, op func() (T, error), classify Classifier) (T, error) {
	ticket, err := b.Acquire()
	if err != nil {
		var zero T
		return zero, err
	}

	result, opErr := op()
	ticket.Report(opErr, classify)
	return result, opErr
}

// Acquire requests admission for one call and returns a Ticket that the
// caller must complete with exactly one of Report, Succeed, or Fail.
//
// This is the scoped begin/end form of Execute, for call sites that
// cannot express the protected work as a single closure (streaming
// responses, multi-step transactions). If admission is denied, a
// *CircuitOpenError is returned and no Ticket is issued.
func (b *Breaker) Acquire() (*Ticket, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.cfg.Clock.Now()

	switch b.state {
	case StateClosed:
		return &Ticket{breaker: b}, nil

	case StateOpen:
		if now.Sub(b.openedAt) >= b.cfg.RecoveryTimeout {
			// Lazy transition: the first caller to arrive after the
			// timeout becomes the half-open trial.
			b.transition(StateHalfOpen, now)
			b.trialInFlight = true
			return &Ticket{breaker: b, trial: true}, nil
		}
		b.cfg.Metrics.RecordRejection(b.name)
		return nil, b.openErrorLocked(now)

	case StateHalfOpen:
		if b.trialInFlight {
			// Only one trial may be outstanding; everyone else is
			// rejected as if the breaker were still open.
			b.cfg.Metrics.RecordRejection(b.name)
			return nil, b.openErrorLocked(now)
		}
		b.trialInFlight = true
		return &Ticket{breaker: b, trial: true}, nil

	default:
		return &Ticket{breaker: b}, nil
	}
}

// openErrorLocked builds the rejection error. Callers must hold b.mu.
func (b *Breaker) openErrorLocked(now time.Time) error {
	retryAfter := b.openedAt.Add(b.cfg.RecoveryTimeout).Sub(now)
	if retryAfter <= 0 {
		// Half-open with a trial outstanding: recovery is being probed
		// right now, so the best estimate is "shortly".
		retryAfter = time.Second
	}
	return &CircuitOpenError{Name: b.name, RetryAfter: retryAfter}
}

// report records the outcome of an admitted call.
func (b *Breaker) report(trial, failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.cfg.Clock.Now()
	b.cfg.Metrics.RecordOutcome(b.name, failed)

	if trial {
		b.trialInFlight = false
		if failed {
			// A failed trial reopens immediately and restarts the
			// recovery timeout from now.
			b.halfOpenSuccesses = 0
			b.transition(StateOpen, now)
			return
		}
		b.halfOpenSuccesses++
		if b.halfOpenSuccesses >= b.cfg.HalfOpenTrialLimit {
			b.transition(StateClosed, now)
		}
		return
	}

	if b.state != StateClosed {
		// The breaker tripped while this call was already in flight;
		// its outcome no longer participates in closed-state counting.
		return
	}

	b.recordSampleLocked(failed)

	if !failed {
		b.consecutiveFailures = 0
		return
	}

	b.consecutiveFailures++
	if b.shouldTripLocked() {
		b.transition(StateOpen, now)
	}
}

// recordSampleLocked pushes one outcome into the rolling window.
func (b *Breaker) recordSampleLocked(failed bool) {
	if b.sampleCount == uint32(len(b.outcomes)) {
		if b.outcomes[b.outcomePos] {
			b.failures--
		}
	} else {
		b.sampleCount++
	}
	b.outcomes[b.outcomePos] = failed
	if failed {
		b.failures++
	}
	b.outcomePos = (b.outcomePos + 1) % len(b.outcomes)
}

// shouldTripLocked evaluates both trip conditions.
func (b *Breaker) shouldTripLocked() bool {
	if b.consecutiveFailures >= b.cfg.FailureThreshold {
		return true
	}
	if b.sampleCount < b.cfg.MinSamples {
		return false
	}
	rate := float64(b.failures) / float64(b.sampleCount)
	return rate >= b.cfg.FailureRateThreshold
}

// transition moves the breaker to a new state and resets the bookkeeping
// that the target state requires. Callers must hold b.mu.
func (b *Breaker) transition(to State, now time.Time) {
	from := b.state
	b.state = to

	switch to {
	case StateClosed:
		b.consecutiveFailures = 0
		b.halfOpenSuccesses = 0
		b.trialInFlight = false
		b.openedAt = time.Time{}
		b.sampleCount = 0
		b.failures = 0
		b.outcomePos = 0
	case StateOpen:
		b.openedAt = now
	case StateHalfOpen:
		// openedAt is retained so a later rejection can still estimate
		// retry-after from the original trip.
	}

	b.cfg.Metrics.RecordState(b.name, to)
	b.cfg.Logger.Warn("circuit breaker state changed",
		slog.String("circuit", b.name),
		slog.String("from", from.String()),
		slog.String("to", to.String()),
		slog.Uint64("consecutive_failures", uint64(b.consecutiveFailures)))
}

// Ticket represents one admitted call in its begin/end form.
//
// A Ticket must be completed exactly once; additional completions are
// ignored so a deferred Report alongside an explicit Succeed is safe.
type Ticket struct {
	breaker *Breaker
	trial   bool
	once    sync.Once
}

// Report completes the ticket from the wrapped call's error, using
// classify to decide whether a non-nil error counts as a failure.
func (t *Ticket) Report(err error, classify Classifier) {
	if err == nil {
		t.Succeed()
		return
	}
	if classify != nil && !classify(err) {
		t.Succeed()
		return
	}
	t.Fail()
}

// Succeed completes the ticket as a success.
func (t *Ticket) Succeed() {
	t.once.Do(func() { t.breaker.report(t.trial, false) })
}

// Fail completes the ticket as a failure.
func (t *Ticket) Fail() {
	t.once.Do(func() { t.breaker.report(t.trial, true) })
}
