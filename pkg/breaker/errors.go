package breaker

import (
	"errors"
	"fmt"
	"time"
)

// CircuitOpenError is returned when a call is rejected because the
// breaker is open, or half-open with its trial slot taken. It is the
// only error this package raises for rejected calls; errors from the
// wrapped operation itself pass through unchanged.
type CircuitOpenError struct {
	// Name is the breaker that rejected the call.
	Name string

	// RetryAfter estimates how long until a call may be admitted again.
	// Always positive.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker %q is open, retry after %s", e.Name, e.RetryAfter)
}

// RetryAfterSeconds returns the retry delay in whole seconds, rounded
// up so a sub-second estimate never reports zero. Useful for Retry-After
// headers.
func (e *CircuitOpenError) RetryAfterSeconds() int64 {
	seconds := int64((e.RetryAfter + time.Second - 1) / time.Second)
	if seconds < 1 {
		return 1
	}
	return seconds
}

// IsCircuitOpen reports whether err is a rejection by an open breaker.
func IsCircuitOpen(err error) bool {
	var openErr *CircuitOpenError
	return errors.As(err, &openErr)
}
