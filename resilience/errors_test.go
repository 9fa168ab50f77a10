package resilience

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrCircuitOpen", ErrCircuitOpen},
		{"ErrMaxRetriesExceeded", ErrMaxRetriesExceeded},
		{"ErrBulkheadFull", ErrBulkheadFull},
		{"ErrTimeout", ErrTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.HasPrefix(tt.err.Error(), "resilience: ") {
				t.Errorf("%s = %q, want prefix %q", tt.name, tt.err, "resilience: ")
			}
		})
	}
}

func TestCircuitOpenError(t *testing.T) {
	err := error(&CircuitOpenError{Partition: "rates.latest", RetryAfter: time.Second})

	if !errors.Is(err, ErrCircuitOpen) {
		t.Error("CircuitOpenError should match ErrCircuitOpen")
	}
	if errors.Is(err, ErrMaxRetriesExceeded) {
		t.Error("CircuitOpenError should not match ErrMaxRetriesExceeded")
	}
	if !strings.Contains(err.Error(), "rates.latest") {
		t.Errorf("Error() = %q, want partition in message", err)
	}

	wrapped := fmt.Errorf("call failed: %w", err)
	var openErr *CircuitOpenError
	if !errors.As(wrapped, &openErr) {
		t.Fatal("errors.As should find CircuitOpenError")
	}
	if openErr.RetryAfter != time.Second {
		t.Errorf("RetryAfter = %v, want %v", openErr.RetryAfter, time.Second)
	}
}

func TestRetryExhaustedError(t *testing.T) {
	last := errors.New("connection refused")
	err := error(&RetryExhaustedError{Attempts: 3, Err: last})

	if !errors.Is(err, ErrMaxRetriesExceeded) {
		t.Error("RetryExhaustedError should match ErrMaxRetriesExceeded")
	}
	if !errors.Is(err, last) {
		t.Error("RetryExhaustedError should unwrap to the last failure")
	}
	if !strings.Contains(err.Error(), "3 attempts") {
		t.Errorf("Error() = %q, want attempt count", err)
	}
}
