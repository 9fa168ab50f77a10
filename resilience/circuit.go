package resilience

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means calls flow through and failures are counted.
	StateClosed State = iota
	// StateOpen means calls are rejected without invoking the operation.
	StateOpen
	// StateHalfOpen means a single probe call decides whether to close.
	StateHalfOpen
)

// String returns the string representation of the state.
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

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies the breaker in errors and state change callbacks.
	Name string

	// FailureThreshold is the number of consecutive failures that opens the
	// circuit.
	// Default: 5
	FailureThreshold int

	// OpenDuration is how long the circuit stays open before a probe is
	// admitted.
	// Default: 30 seconds
	OpenDuration time.Duration

	// OnStateChange is called after every transition, outside the breaker
	// lock.
	OnStateChange func(name string, from, to State)

	// IsFailure determines if an error counts against the circuit. Errors
	// that are not failures neither trip nor reset it.
	// Default: all non-nil errors are failures.
	IsFailure func(err error) bool

	// Now is the clock used for open durations.
	// Default: time.Now
	Now func() time.Time
}

// CircuitBreaker implements the consecutive-failure circuit breaker pattern.
//
// In the half-open state exactly one probe call is admitted. Calls admitted
// while closed that complete after the circuit has left the closed state do
// not affect it.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	openedAt            time.Time
	probing             atomic.Bool
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	// Apply defaults
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.OpenDuration <= 0 {
		config.OpenDuration = 30 * time.Second
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool { return err != nil }
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
	}
}

// transition is a state change to report once the lock is released.
type transition struct {
	from, to State
}

// Execute runs the operation through the circuit breaker. A rejected call
// returns a *CircuitOpenError and op is not invoked.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	probe, err := cb.allow()
	if err != nil {
		return err
	}

	err = op(ctx)
	cb.record(probe, err)
	return err
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	state, moved := cb.currentStateLocked()
	cb.mu.Unlock()

	cb.notify(moved)
	return state
}

// Name returns the breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.config.Name
}

// Reset resets the circuit breaker to the closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from := cb.state
	cb.state = StateClosed
	cb.consecutiveFailures = 0
	cb.openedAt = time.Time{}
	cb.probing.Store(false)
	cb.mu.Unlock()

	if from != StateClosed {
		cb.notify([]transition{{from, StateClosed}})
	}
}

func (cb *CircuitBreaker) allow() (probe bool, err error) {
	cb.mu.Lock()
	state, moved := cb.currentStateLocked()

	switch state {
	case StateOpen:
		retryAfter := cb.config.OpenDuration - cb.config.Now().Sub(cb.openedAt)
		err = &CircuitOpenError{Partition: cb.config.Name, RetryAfter: max(retryAfter, 0)}
	case StateHalfOpen:
		if cb.probing.CompareAndSwap(false, true) {
			probe = true
		} else {
			err = &CircuitOpenError{Partition: cb.config.Name}
		}
	}
	cb.mu.Unlock()

	cb.notify(moved)
	return probe, err
}

func (cb *CircuitBreaker) record(probe bool, err error) {
	failure := err != nil && cb.config.IsFailure(err)
	neutral := err != nil && !failure

	cb.mu.Lock()
	from := cb.state

	if probe {
		cb.probing.Store(false)
	}

	switch cb.state {
	case StateClosed:
		switch {
		case failure:
			cb.consecutiveFailures++
			if cb.consecutiveFailures >= cb.config.FailureThreshold {
				cb.openLocked()
			}
		case !neutral:
			cb.consecutiveFailures = 0
		}

	case StateHalfOpen:
		// Only the probe decides.
		if !probe || neutral {
			break
		}
		if failure {
			cb.openLocked()
		} else {
			cb.state = StateClosed
			cb.consecutiveFailures = 0
		}
	}

	to := cb.state
	cb.mu.Unlock()

	if from != to {
		cb.notify([]transition{{from, to}})
	}
}

func (cb *CircuitBreaker) openLocked() {
	cb.state = StateOpen
	cb.openedAt = cb.config.Now()
}

// currentStateLocked moves an open circuit to half-open once its open
// duration has elapsed.
func (cb *CircuitBreaker) currentStateLocked() (State, []transition) {
	if cb.state == StateOpen && cb.config.Now().Sub(cb.openedAt) >= cb.config.OpenDuration {
		cb.state = StateHalfOpen
		cb.probing.Store(false)
		return cb.state, []transition{{StateOpen, StateHalfOpen}}
	}
	return cb.state, nil
}

func (cb *CircuitBreaker) notify(moves []transition) {
	if cb.config.OnStateChange == nil {
		return
	}
	for _, m := range moves {
		cb.config.OnStateChange(cb.config.Name, m.from, m.to)
	}
}

// Metrics returns current circuit breaker metrics.
func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	cb.mu.Lock()
	state, moved := cb.currentStateLocked()
	m := CircuitBreakerMetrics{
		State:               state,
		ConsecutiveFailures: cb.consecutiveFailures,
		OpenedAt:            cb.openedAt,
		Probing:             cb.probing.Load(),
	}
	cb.mu.Unlock()

	cb.notify(moved)
	return m
}

// CircuitBreakerMetrics contains circuit breaker statistics.
type CircuitBreakerMetrics struct {
	State               State
	ConsecutiveFailures int
	OpenedAt            time.Time
	Probing             bool
}
