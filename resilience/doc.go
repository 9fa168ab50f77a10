// Package resilience guards operation calls with circuit breaking, retry,
// per-attempt timeouts and bulkheads.
//
// # Patterns
//
//   - Circuit Breaker: counts consecutive failed calls per partition, opens
//     at a threshold, fails fast while open and admits a single probe once
//     the open duration has elapsed.
//
//   - Retry: re-runs a failed call with linear (default), exponential or
//     constant backoff, and reports exhaustion as a RetryExhaustedError.
//
//   - Timeout: bounds each attempt.
//
//   - Bulkhead: limits concurrent calls.
//
// # Coordinator
//
// Coordinator composes the patterns from a policy.Policy, keeping one
// breaker and one bulkhead per partition:
//
//	c := resilience.NewCoordinator()
//
//	p := policy.Default()
//	p.RetryMaxAttempts = 3
//	p.RetryBackoff = 100 * time.Millisecond
//
//	err := c.Execute(ctx, "rates.latest", p, func(ctx context.Context) error {
//	    return callExternalService(ctx)
//	})
//
// The chain runs bulkhead, then circuit breaker, then retry, then timeout.
// Retries happen inside the breaker, so a retried call counts once.
package resilience
