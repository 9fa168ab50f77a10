// Package intercept wraps operations with caching, circuit breaking with
// retry, and execution logging.
//
// An Engine is built once at startup and shared by reference. Operations
// are either registered up front and called by ID:
//
//	e := intercept.New(intercept.WithRecorder(rec))
//	op, err := intercept.Register(e, "rates.latest", policy.Cached(time.Minute, 100), fetchRate)
//	rate, err := op.Call(ctx, "EUR", "USD")
//
// or invoked ad hoc with an explicit policy:
//
//	rate, err := intercept.Invoke(ctx, e, "rates.latest", []any{"EUR", "USD"}, p, fetch)
//
// Every call runs a fixed pipeline: key derivation, start record, cache
// lookup, resilience-guarded execution on a miss, cache store on success,
// and the end record. The cache sits outside the circuit breaker, so cache
// hits are served while a circuit is open.
package intercept
