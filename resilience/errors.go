package resilience

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for resilience operations.
var (
	// ErrCircuitOpen is matched by every CircuitOpenError.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrMaxRetriesExceeded is matched by every RetryExhaustedError.
	ErrMaxRetriesExceeded = errors.New("resilience: max retries exceeded")

	// ErrBulkheadFull is returned when the bulkhead is at capacity.
	ErrBulkheadFull = errors.New("resilience: bulkhead at capacity")

	// ErrTimeout is returned when an attempt exceeds its timeout.
	ErrTimeout = errors.New("resilience: operation timed out")
)

// CircuitOpenError is returned without invoking the operation when the
// partition's circuit is open, or half-open with a probe already in flight.
type CircuitOpenError struct {
	// Partition is the breaker partition that rejected the call.
	Partition string

	// RetryAfter is the time left until a probe may be admitted. Zero while
	// a probe is in flight.
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	if e.Partition == "" {
		return ErrCircuitOpen.Error()
	}
	return fmt.Sprintf("%s: %s", ErrCircuitOpen.Error(), e.Partition)
}

// Is reports whether target is ErrCircuitOpen.
func (e *CircuitOpenError) Is(target error) bool {
	return target == ErrCircuitOpen
}

// RetryExhaustedError is returned when every attempt of a retried call failed.
// It unwraps to the last failure.
type RetryExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempts: %v", ErrMaxRetriesExceeded.Error(), e.Attempts, e.Err)
}

// Unwrap returns the last failure.
func (e *RetryExhaustedError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrMaxRetriesExceeded.
func (e *RetryExhaustedError) Is(target error) bool {
	return target == ErrMaxRetriesExceeded
}
