package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records invocation metrics for operations.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordInvocation records one invocation with its outcome and duration.
	RecordInvocation(ctx context.Context, meta OperationMeta, outcome Outcome, duration time.Duration, err error)

	// RecordRetry records a retry of a failed attempt.
	RecordRetry(ctx context.Context, operationID string, attempt int)

	// RecordCircuitTransition records a circuit breaker state change.
	RecordCircuitTransition(ctx context.Context, operationID, from, to string)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	retryCount   metric.Int64Counter
	circuitCount metric.Int64Counter
	durationHist metric.Float64Histogram
}

// NewMetrics creates a new Metrics instance with the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	totalCount, err := meter.Int64Counter(
		"operation.invoke.total",
		metric.WithDescription("Total number of intercepted invocations by outcome"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"operation.invoke.errors",
		metric.WithDescription("Total number of invocations that returned an error"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	retryCount, err := meter.Int64Counter(
		"operation.invoke.retries",
		metric.WithDescription("Total number of retried attempts"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return nil, err
	}

	circuitCount, err := meter.Int64Counter(
		"operation.circuit.transitions",
		metric.WithDescription("Total number of circuit breaker state changes"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"operation.invoke.duration_ms",
		metric.WithDescription("Invocation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		totalCount:   totalCount,
		errorCount:   errorCount,
		retryCount:   retryCount,
		circuitCount: circuitCount,
		durationHist: durationHist,
	}, nil
}

// RecordInvocation records metrics for one invocation.
func (m *metricsImpl) RecordInvocation(ctx context.Context, meta OperationMeta, outcome Outcome, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("operation.id", meta.ID),
	}
	if meta.Component != "" {
		attrs = append(attrs, attribute.String("operation.component", meta.Component))
	}
	opt := metric.WithAttributes(attrs...)

	m.totalCount.Add(ctx, 1, metric.WithAttributes(append(attrs, attribute.String("outcome", string(outcome)))...))

	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}

	m.durationHist.Record(ctx, float64(duration)/float64(time.Millisecond), opt)
}

// RecordRetry counts a retried attempt.
func (m *metricsImpl) RecordRetry(ctx context.Context, operationID string, attempt int) {
	m.retryCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation.id", operationID),
		attribute.Int("attempt", attempt),
	))
}

// RecordCircuitTransition counts a circuit state change.
func (m *metricsImpl) RecordCircuitTransition(ctx context.Context, operationID, from, to string) {
	m.circuitCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation.id", operationID),
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

func (m *noopMetrics) RecordInvocation(context.Context, OperationMeta, Outcome, time.Duration, error) {}
func (m *noopMetrics) RecordRetry(context.Context, string, int)                                    {}
func (m *noopMetrics) RecordCircuitTransition(context.Context, string, string, string)             {}
