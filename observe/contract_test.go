package observe

import (
	"context"
	"testing"
	"time"
)

func TestObserverContract_Noops(t *testing.T) {
	cfg := Config{
		ServiceName: "observe-test",
		Tracing:     TracingConfig{Enabled: false, Exporter: "none"},
		Metrics:     MetricsConfig{Enabled: false, Exporter: "none"},
		Logging:     LoggingConfig{Enabled: false, Level: "info"},
	}

	obs, err := NewObserver(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewObserver failed: %v", err)
	}

	if obs.Tracer() == nil {
		t.Fatalf("expected non-nil tracer")
	}
	if obs.Meter() == nil {
		t.Fatalf("expected non-nil meter")
	}
	if obs.Logger() == nil {
		t.Fatalf("expected non-nil logger")
	}
}

func TestLoggerContract_WithOperation(t *testing.T) {
	logger := &noopLogger{}
	if logger.WithOperation(OperationMeta{ID: "noop"}) == nil {
		t.Fatalf("WithOperation should return non-nil logger")
	}
}

func TestMetricsContract_NoPanic(t *testing.T) {
	metrics := &noopMetrics{}
	metrics.RecordInvocation(context.Background(), OperationMeta{ID: "noop"}, OutcomeSuccess, 10*time.Millisecond, nil)
	metrics.RecordRetry(context.Background(), "noop", 1)
	metrics.RecordCircuitTransition(context.Background(), "noop", "closed", "open")
}

func TestTracerContract_NoPanic(t *testing.T) {
	tracer := newNoopTracer()
	_, span := tracer.StartSpan(context.Background(), OperationMeta{ID: "noop"}, "")
	tracer.EndSpan(span, OutcomeSuccess, nil)
}

func TestRecorderContract_NoopRecorder(t *testing.T) {
	r := NewNoopRecorder()
	ctx, tok := r.RecordStart(context.Background(), OperationMeta{ID: "noop"}, "noop:1", "debug")
	if ctx == nil || tok == nil {
		t.Fatal("RecordStart should return a context and token")
	}
	r.RecordEnd(ctx, tok, OutcomeFailure, time.Millisecond, context.Canceled)
	r.RecordEnd(ctx, nil, OutcomeSuccess, 0, nil)

	if r.Dropped() != 0 {
		t.Errorf("Dropped() = %d, want 0", r.Dropped())
	}
}
