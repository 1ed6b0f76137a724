package ratelimit

import (
	"fmt"
	"time"
)

// Decision represents the result of a rate limit check.
//
// Denial is an ordinary, expected outcome, not an error: callers branch
// on Allowed (or IsDenied) and schedule a retry after RetryAfter.
type Decision struct {
	// Key is the service key the decision applies to.
	Key string

	// Allowed indicates whether the call was admitted.
	Allowed bool

	// MinuteLimit and DayLimit are the effective ceilings for the key.
	MinuteLimit int
	DayLimit    int

	// MinuteRemaining and DayRemaining are the admissions left in each
	// window after this decision. Zero on denial.
	MinuteRemaining int
	DayRemaining    int

	// RetryAfter is how long the caller should wait before retrying.
	// Zero when allowed; always positive when denied.
	RetryAfter time.Duration
}

// String returns a human-readable representation of the decision.
func (d *Decision) String() string {
	if d.Allowed {
		return fmt.Sprintf(
			"Decision{Allowed: true, Key: %s, Remaining: %d/%d minute, %d/%d day}",
			d.Key, d.MinuteRemaining, d.MinuteLimit, d.DayRemaining, d.DayLimit,
		)
	}
	return fmt.Sprintf(
		"Decision{Allowed: false, Key: %s, RetryAfter: %s}",
		d.Key, d.RetryAfter,
	)
}

// IsAllowed returns true if the call was admitted.
func (d *Decision) IsAllowed() bool {
	return d.Allowed
}

// IsDenied returns true if the call was denied.
func (d *Decision) IsDenied() bool {
	return !d.Allowed
}

// RetryAfterSeconds returns the retry delay in whole seconds, rounded up
// so a denied call never reports zero. Useful for Retry-After headers.
func (d *Decision) RetryAfterSeconds() int64 {
	if d.Allowed || d.RetryAfter <= 0 {
		return 0
	}
	seconds := int64((d.RetryAfter + time.Second - 1) / time.Second)
	if seconds < 1 {
		return 1
	}
	return seconds
}

func newAllowedDecision(key string, ceiling Ceiling, minuteCount, dayCount int) *Decision {
	return &Decision{
		Key:             key,
		Allowed:         true,
		MinuteLimit:     ceiling.PerMinute,
		DayLimit:        ceiling.PerDay,
		MinuteRemaining: ceiling.PerMinute - minuteCount,
		DayRemaining:    ceiling.PerDay - dayCount,
	}
}

func newDeniedDecision(key string, ceiling Ceiling, retryAfter time.Duration) *Decision {
	return &Decision{
		Key:         key,
		Allowed:     false,
		MinuteLimit: ceiling.PerMinute,
		DayLimit:    ceiling.PerDay,
		RetryAfter:  retryAfter,
	}
}
