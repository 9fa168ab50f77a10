package observe

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Outcome classifies how an intercepted invocation ended.
type Outcome string

const (
	OutcomeSuccess     Outcome = "SUCCESS"
	OutcomeFailure     Outcome = "FAILURE"
	OutcomeCacheHit    Outcome = "CACHE_HIT"
	OutcomeCircuitOpen Outcome = "CIRCUIT_OPEN"
)

// Level returns the log level an outcome is emitted at.
func (o Outcome) Level() LogLevel {
	switch o {
	case OutcomeFailure:
		return LevelError
	case OutcomeCircuitOpen:
		return LevelWarn
	default:
		return LevelInfo
	}
}

// ExecutionRecord describes one completed invocation.
type ExecutionRecord struct {
	Operation string
	Key       string
	StartTime time.Time
	Duration  time.Duration
	Outcome   Outcome
	Err       error
}

// Token carries per-invocation state from RecordStart to RecordEnd.
type Token struct {
	meta   OperationMeta
	key    string
	level  LogLevel
	start  time.Time
	span   trace.Span
	logger Logger
}

// Start returns when the invocation began.
func (t *Token) Start() time.Time {
	return t.start
}

// DiagnosticFunc receives panics recovered from telemetry sinks.
type DiagnosticFunc func(ctx context.Context, stage string, recovered any)

// Recorder emits one execution record per invocation through the logger,
// a span per invocation through the tracer, and invocation metrics.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Errors: a panicking sink is recovered, counted in Dropped and reported
//     to the diagnostic hook. Recording never fails the invocation.
//   - Levels: the per-call level only gates log records. Spans and metrics
//     are always recorded.
type Recorder struct {
	tracer     Tracer
	metrics    Metrics
	logger     Logger
	diagnostic DiagnosticFunc
	sink       func(ExecutionRecord)
	now        func() time.Time

	dropped atomic.Int64
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithDiagnosticHook replaces the default slog warning for recovered panics.
func WithDiagnosticHook(fn DiagnosticFunc) RecorderOption {
	return func(r *Recorder) {
		r.diagnostic = fn
	}
}

// WithRecordSink receives every execution record after it is logged.
func WithRecordSink(fn func(ExecutionRecord)) RecorderOption {
	return func(r *Recorder) {
		r.sink = fn
	}
}

// WithRecorderClock replaces the clock used for start times.
func WithRecorderClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		r.now = now
	}
}

// NewRecorder creates a Recorder. Nil components are replaced with no-ops.
func NewRecorder(tracer Tracer, metrics Metrics, logger Logger, opts ...RecorderOption) *Recorder {
	if tracer == nil {
		tracer = newNoopTracer()
	}
	if metrics == nil {
		metrics = &noopMetrics{}
	}
	if logger == nil {
		logger = &noopLogger{}
	}

	r := &Recorder{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
		diagnostic: func(ctx context.Context, stage string, recovered any) {
			slog.WarnContext(ctx, "execution recorder sink panicked",
				slog.String("stage", stage),
				slog.String("panic", fmt.Sprint(recovered)))
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewNoopRecorder returns a Recorder that records nothing.
func NewNoopRecorder() *Recorder {
	return NewRecorder(nil, nil, nil)
}

// RecorderFromObserver creates a Recorder from an Observer.
func RecorderFromObserver(obs Observer, opts ...RecorderOption) (*Recorder, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewRecorder(NewTracer(obs.Tracer()), metrics, obs.Logger(), opts...), nil
}

// RecordStart opens the span for an invocation and emits the debug start
// record. The returned context carries the span.
func (r *Recorder) RecordStart(ctx context.Context, meta OperationMeta, key string, level string) (context.Context, *Token) {
	tok := &Token{
		meta:  meta,
		key:   key,
		level: ParseLogLevel(level),
		start: r.now(),
	}

	r.safely(ctx, "logger", func() {
		tok.logger = r.logger.WithOperation(meta)
	})

	spanCtx := ctx
	r.safely(ctx, "tracer.start", func() {
		spanCtx, tok.span = r.tracer.StartSpan(ctx, meta, key)
	})
	if tok.span == nil {
		spanCtx = ctx
	}

	if tok.logger != nil && LevelDebug >= tok.level {
		r.safely(ctx, "logger", func() {
			tok.logger.Debug(spanCtx, "operation started",
				Field{Key: "operation", Value: meta.ID},
				Field{Key: "key", Value: key},
				Field{Key: "start_time", Value: tok.start.UTC().Format(time.RFC3339Nano)},
			)
		})
	}

	return spanCtx, tok
}

// RecordEnd closes the invocation: it ends the span, records metrics and
// emits the execution record if its level passes the token's level.
func (r *Recorder) RecordEnd(ctx context.Context, tok *Token, outcome Outcome, duration time.Duration, err error) {
	if tok == nil {
		return
	}

	if tok.span != nil {
		r.safely(ctx, "tracer.end", func() {
			r.tracer.EndSpan(tok.span, outcome, err)
		})
	}

	r.safely(ctx, "metrics", func() {
		r.metrics.RecordInvocation(ctx, tok.meta, outcome, duration, err)
	})

	rec := ExecutionRecord{
		Operation: tok.meta.ID,
		Key:       tok.key,
		StartTime: tok.start,
		Duration:  duration,
		Outcome:   outcome,
		Err:       err,
	}

	if tok.logger != nil && outcome.Level() >= tok.level {
		r.safely(ctx, "logger", func() {
			r.emit(ctx, tok, rec)
		})
	}

	if r.sink != nil {
		r.safely(ctx, "sink", func() {
			r.sink(rec)
		})
	}
}

func (r *Recorder) emit(ctx context.Context, tok *Token, rec ExecutionRecord) {
	fields := []Field{
		{Key: "operation", Value: rec.Operation},
		{Key: "key", Value: rec.Key},
		{Key: "outcome", Value: string(rec.Outcome)},
		{Key: "duration_ms", Value: float64(rec.Duration) / float64(time.Millisecond)},
		{Key: "start_time", Value: rec.StartTime.UTC().Format(time.RFC3339Nano)},
	}
	if rec.Err != nil {
		fields = append(fields, Field{Key: "error", Value: rec.Err.Error()})
	}

	msg := fmt.Sprintf("%s took %d ms", tok.meta.DisplayName(), rec.Duration.Milliseconds())

	switch rec.Outcome.Level() {
	case LevelError:
		tok.logger.Error(ctx, msg, fields...)
	case LevelWarn:
		tok.logger.Warn(ctx, msg, fields...)
	default:
		tok.logger.Info(ctx, msg, fields...)
	}
}

// RecordRetry logs and counts a retried attempt of operationID.
func (r *Recorder) RecordRetry(ctx context.Context, operationID string, attempt int, err error, delay time.Duration) {
	r.safely(ctx, "metrics", func() {
		r.metrics.RecordRetry(ctx, operationID, attempt)
	})
	r.safely(ctx, "logger", func() {
		fields := []Field{
			{Key: "operation", Value: operationID},
			{Key: "attempt", Value: attempt},
			{Key: "delay_ms", Value: delay.Milliseconds()},
		}
		if err != nil {
			fields = append(fields, Field{Key: "error", Value: err.Error()})
		}
		r.logger.Debug(ctx, "retrying operation", fields...)
	})
}

// RecordCircuitTransition logs and counts a circuit state change.
func (r *Recorder) RecordCircuitTransition(ctx context.Context, operationID, from, to string) {
	r.safely(ctx, "metrics", func() {
		r.metrics.RecordCircuitTransition(ctx, operationID, from, to)
	})
	r.safely(ctx, "logger", func() {
		r.logger.Warn(ctx, "circuit state changed",
			Field{Key: "operation", Value: operationID},
			Field{Key: "from", Value: from},
			Field{Key: "to", Value: to},
		)
	})
}

// Dropped returns how many sink calls panicked and were discarded.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

func (r *Recorder) safely(ctx context.Context, stage string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.dropped.Add(1)
			r.report(ctx, stage, rec)
		}
	}()
	fn()
}

// report calls the diagnostic hook, which must not take the process down
// either.
func (r *Recorder) report(ctx context.Context, stage string, recovered any) {
	if r.diagnostic == nil {
		return
	}
	defer func() { _ = recover() }()
	r.diagnostic(ctx, stage, recovered)
}
