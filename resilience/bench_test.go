package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonwraymond/interceptops/policy"
)

// BenchmarkCircuitBreaker_Execute_Closed measures the closed-path overhead.
func BenchmarkCircuitBreaker_Execute_Closed(b *testing.B) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cb.Execute(ctx, succeeding)
	}
}

// BenchmarkCircuitBreaker_Execute_Open measures fail-fast rejection.
func BenchmarkCircuitBreaker_Execute_Open(b *testing.B) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, OpenDuration: time.Hour})
	ctx := context.Background()
	_ = cb.Execute(ctx, failing)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cb.Execute(ctx, succeeding)
	}
}

// BenchmarkCircuitBreaker_Concurrent measures contention on one breaker.
func BenchmarkCircuitBreaker_Concurrent(b *testing.B) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})
	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = cb.Execute(ctx, succeeding)
		}
	})
}

// BenchmarkRetry_NoRetries measures retry overhead on first-attempt success.
func BenchmarkRetry_NoRetries(b *testing.B) {
	r := NewRetry(RetryConfig{MaxAttempts: 3})
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = r.Execute(ctx, succeeding)
	}
}

// BenchmarkBulkhead_Execute measures slot acquire and release.
func BenchmarkBulkhead_Execute(b *testing.B) {
	bh := NewBulkhead(BulkheadConfig{MaxConcurrent: 100})
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = bh.Execute(ctx, succeeding)
	}
}

// BenchmarkCoordinator_Execute measures the full chain with defaults.
func BenchmarkCoordinator_Execute(b *testing.B) {
	c := NewCoordinator()
	p := policy.Default()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Execute(ctx, "op", p, succeeding)
	}
}

// BenchmarkCoordinator_Concurrent measures parallel calls across partitions.
func BenchmarkCoordinator_Concurrent(b *testing.B) {
	c := NewCoordinator()
	p := policy.Default()
	p.MaxConcurrent = 1000
	ctx := context.Background()
	partitions := []string{"a", "b", "c", "d"}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_ = c.Execute(ctx, partitions[i%len(partitions)], p, succeeding)
			i++
		}
	})
}

// BenchmarkErrorIs measures matching a typed open-circuit error.
func BenchmarkErrorIs(b *testing.B) {
	err := error(&CircuitOpenError{Partition: "op"})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = errors.Is(err, ErrCircuitOpen)
	}
}
