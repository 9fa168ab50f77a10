package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// OperationMeta describes an intercepted operation for telemetry purposes.
type OperationMeta struct {
	ID        string   // Operation ID (required)
	Component string   // Owning component, e.g. a client type (optional)
	Method    string   // Method name within the component (optional)
	Tags      []string // Free-form tags (optional)
}

// SpanName returns the deterministic span name for this operation.
// Format: operation.invoke.<id>
func (m OperationMeta) SpanName() string {
	return "operation.invoke." + m.ID
}

// DisplayName renders the operation as Component#Method when both are set,
// and as the ID otherwise.
func (m OperationMeta) DisplayName() string {
	if m.Component != "" && m.Method != "" {
		return m.Component + "#" + m.Method
	}
	return m.ID
}

// Validate reports whether the metadata identifies an operation.
func (m OperationMeta) Validate() error {
	if m.ID == "" {
		return ErrMissingOperationID
	}
	return nil
}

// Tracer wraps OpenTelemetry tracing with per-invocation span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for one invocation.
	StartSpan(ctx context.Context, meta OperationMeta, key string) (context.Context, trace.Span)

	// EndSpan ends the span, recording the outcome and any error.
	EndSpan(span trace.Span, outcome Outcome, err error)
}

// tracerImpl is the concrete implementation of Tracer.
type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a new Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a new span with operation metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta OperationMeta, key string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("operation.id", meta.ID),
		attribute.Bool("operation.error", false), // Updated in EndSpan
	}
	if key != "" {
		attrs = append(attrs, attribute.String("operation.key", key))
	}
	if meta.Component != "" {
		attrs = append(attrs, attribute.String("operation.component", meta.Component))
	}
	if meta.Method != "" {
		attrs = append(attrs, attribute.String("operation.method", meta.Method))
	}
	if len(meta.Tags) > 0 {
		attrs = append(attrs, attribute.StringSlice("operation.tags", meta.Tags))
	}

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, outcome Outcome, err error) {
	span.SetAttributes(attribute.String("operation.outcome", string(outcome)))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("operation.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// noopTracer is a tracer that does nothing.
type noopTracer struct {
	noop trace.Tracer
}

// newNoopTracer creates a no-op tracer.
func newNoopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta OperationMeta, _ string) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, _ Outcome, _ error) {
	span.End()
}
