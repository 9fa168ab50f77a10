package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/jonwraymond/interceptops/policy"
	"github.com/puzpuzpuz/xsync/v3"
)

// Coordinator applies a policy's resilience settings to calls, keeping one
// circuit breaker and one bulkhead per partition.
type Coordinator struct {
	breakers  *Registry
	bulkheads *xsync.MapOf[string, *Bulkhead]

	onStateChange func(partition string, from, to State)
	onRetry       func(partition string, attempt int, err error, delay time.Duration)
	bulkheadWait  time.Duration
	now           func() time.Time
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithStateChangeHook registers a callback for every circuit transition.
func WithStateChangeHook(fn func(partition string, from, to State)) CoordinatorOption {
	return func(c *Coordinator) {
		c.onStateChange = fn
	}
}

// WithRetryHook registers a callback invoked before each retry.
func WithRetryHook(fn func(partition string, attempt int, err error, delay time.Duration)) CoordinatorOption {
	return func(c *Coordinator) {
		c.onRetry = fn
	}
}

// WithBulkheadWait sets how long a call waits for a bulkhead slot before
// failing with ErrBulkheadFull.
func WithBulkheadWait(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		c.bulkheadWait = d
	}
}

// WithClock replaces the clock used by circuit breakers.
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		c.now = now
	}
}

// NewCoordinator creates a new resilience coordinator.
func NewCoordinator(opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		bulkheads: xsync.NewMapOf[string, *Bulkhead](),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breakers = NewRegistry(c.onStateChange)
	return c
}

// Execute runs op under the resilience settings of p for partition.
//
// The execution order is:
// 1. Bulkhead (if MaxConcurrent > 0) - limits concurrency
// 2. Circuit Breaker - rejects calls while the partition is open
// 3. Retry (if RetryMaxAttempts > 1) - linear backoff between attempts
// 4. Timeout (if AttemptTimeout > 0) - bounds each attempt
//
// A retried call is a single outcome for the circuit breaker. The breaker
// for a partition is configured by the first policy seen for it.
func (c *Coordinator) Execute(ctx context.Context, partition string, p policy.Policy, op func(context.Context) error) error {
	p = p.WithDefaults()

	// Build the execution chain from inside out
	execute := op

	if p.AttemptTimeout > 0 {
		timeout := NewTimeout(TimeoutConfig{Timeout: p.AttemptTimeout})
		inner := execute
		execute = func(ctx context.Context) error {
			return timeout.Execute(ctx, inner)
		}
	}

	if p.RetryMaxAttempts > 1 {
		retry := NewRetry(RetryConfig{
			MaxAttempts:  p.RetryMaxAttempts,
			InitialDelay: p.RetryBackoff,
			Strategy:     BackoffLinear,
			OnRetry:      c.retryHook(partition),
		})
		inner := execute
		execute = func(ctx context.Context) error {
			return retry.Execute(ctx, inner)
		}
	}

	cb := c.breakers.GetOrCreate(partition, CircuitBreakerConfig{
		FailureThreshold: p.CircuitFailureThreshold,
		OpenDuration:     p.CircuitOpenDuration,
		IsFailure:        isBreakerFailure,
		Now:              c.now,
	})
	{
		inner := execute
		execute = func(ctx context.Context) error {
			return cb.Execute(ctx, inner)
		}
	}

	if p.MaxConcurrent > 0 {
		bulkhead, _ := c.bulkheads.LoadOrCompute(partition, func() *Bulkhead {
			return NewBulkhead(BulkheadConfig{
				MaxConcurrent: p.MaxConcurrent,
				MaxWait:       c.bulkheadWait,
			})
		})
		inner := execute
		execute = func(ctx context.Context) error {
			return bulkhead.Execute(ctx, inner)
		}
	}

	return execute(ctx)
}

// Breakers returns the per-partition breaker registry.
func (c *Coordinator) Breakers() *Registry {
	return c.breakers
}

// States returns a snapshot of every partition's circuit state.
func (c *Coordinator) States() map[string]State {
	return c.breakers.States()
}

// Reset closes the circuit for partition. It reports whether one existed.
func (c *Coordinator) Reset(partition string) bool {
	return c.breakers.Reset(partition)
}

func (c *Coordinator) retryHook(partition string) func(int, error, time.Duration) {
	if c.onRetry == nil {
		return nil
	}
	return func(attempt int, err error, delay time.Duration) {
		c.onRetry(partition, attempt, err, delay)
	}
}

// isBreakerFailure treats caller cancellation as neither success nor failure.
func isBreakerFailure(err error) bool {
	return !errors.Is(err, context.Canceled)
}
