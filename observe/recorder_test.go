package observe

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// panicLogger panics on every record.
type panicLogger struct{}

func (panicLogger) Info(context.Context, string, ...Field)  { panic("info sink down") }
func (panicLogger) Warn(context.Context, string, ...Field)  { panic("warn sink down") }
func (panicLogger) Error(context.Context, string, ...Field) { panic("error sink down") }
func (panicLogger) Debug(context.Context, string, ...Field) { panic("debug sink down") }
func (l panicLogger) WithOperation(OperationMeta) Logger    { return l }

func logLines(buf *bytes.Buffer) []string {
	s := strings.TrimSpace(buf.String())
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestRecorder_LevelGating(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		outcome Outcome
		want    []string
	}{
		{name: "info hides start record", level: "info", outcome: OutcomeSuccess, want: []string{"info"}},
		{name: "debug shows start record", level: "debug", outcome: OutcomeSuccess, want: []string{"debug", "info"}},
		{name: "cache hit at info", level: "info", outcome: OutcomeCacheHit, want: []string{"info"}},
		{name: "warn hides success", level: "warn", outcome: OutcomeSuccess, want: nil},
		{name: "warn shows circuit open", level: "warn", outcome: OutcomeCircuitOpen, want: []string{"warn"}},
		{name: "error hides circuit open", level: "error", outcome: OutcomeCircuitOpen, want: nil},
		{name: "error shows failure", level: "error", outcome: OutcomeFailure, want: []string{"error"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			r := NewRecorder(nil, nil, NewLoggerWithWriter("debug", &buf))

			ctx, tok := r.RecordStart(context.Background(), OperationMeta{ID: "op"}, "op:1", tt.level)
			r.RecordEnd(ctx, tok, tt.outcome, time.Millisecond, nil)

			lines := logLines(&buf)
			if len(lines) != len(tt.want) {
				t.Fatalf("got %d records, want %d: %v", len(lines), len(tt.want), lines)
			}
			for i, line := range lines {
				if got := decodeLine(t, line)["level"]; got != tt.want[i] {
					t.Errorf("record %d level = %v, want %s", i, got, tt.want[i])
				}
			}
		})
	}
}

func TestRecorder_ExecutionRecordFields(t *testing.T) {
	var buf bytes.Buffer
	start := time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)
	r := NewRecorder(nil, nil, NewLoggerWithWriter("info", &buf),
		WithRecorderClock(func() time.Time { return start }))

	meta := OperationMeta{ID: "rates.latest", Component: "RateClient", Method: "Latest"}
	ctx, tok := r.RecordStart(context.Background(), meta, "rates.latest:ab12", "info")
	if !tok.Start().Equal(start) {
		t.Errorf("Start() = %v, want %v", tok.Start(), start)
	}
	r.RecordEnd(ctx, tok, OutcomeFailure, 1500*time.Millisecond, errors.New("upstream 503"))

	lines := logLines(&buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 record, got %d", len(lines))
	}
	entry := decodeLine(t, lines[0])

	want := map[string]any{
		"msg":          "RateClient#Latest took 1500 ms",
		"operation":    "rates.latest",
		"operation.id": "rates.latest",
		"key":          "rates.latest:ab12",
		"outcome":      "FAILURE",
		"duration_ms":  1500.0,
		"start_time":   "2026-05-04T10:30:00Z",
		"error":        "upstream 503",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %v", k, entry[k], v)
		}
	}
}

func TestRecorder_SuccessHasNoErrorField(t *testing.T) {
	var buf bytes.Buffer
	r := NewRecorder(nil, nil, NewLoggerWithWriter("info", &buf))

	ctx, tok := r.RecordStart(context.Background(), OperationMeta{ID: "op"}, "op:1", "info")
	r.RecordEnd(ctx, tok, OutcomeSuccess, 0, nil)

	entry := decodeLine(t, logLines(&buf)[0])
	if _, ok := entry["error"]; ok {
		t.Errorf("unexpected error field: %v", entry["error"])
	}
	if entry["msg"] != "op took 0 ms" {
		t.Errorf("msg = %v", entry["msg"])
	}
}

func TestRecorder_SinkReceivesEveryRecord(t *testing.T) {
	var got []ExecutionRecord
	r := NewRecorder(nil, nil, nil, WithRecordSink(func(rec ExecutionRecord) {
		got = append(got, rec)
	}))

	// The sink is not gated by level.
	ctx, tok := r.RecordStart(context.Background(), OperationMeta{ID: "op"}, "op:1", "error")
	r.RecordEnd(ctx, tok, OutcomeCacheHit, 2*time.Millisecond, nil)

	if len(got) != 1 {
		t.Fatalf("sink got %d records, want 1", len(got))
	}
	rec := got[0]
	if rec.Operation != "op" || rec.Key != "op:1" || rec.Outcome != OutcomeCacheHit || rec.Duration != 2*time.Millisecond {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestRecorder_SpansAndMetricsIgnoreLevel(t *testing.T) {
	spans, _, tracer := newRecordingTracer()
	reader := sdkmetric.NewManualReader()
	metrics, err := NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	r := NewRecorder(tracer, metrics, nil)
	ctx, tok := r.RecordStart(context.Background(), OperationMeta{ID: "op"}, "op:1", "error")
	r.RecordEnd(ctx, tok, OutcomeSuccess, time.Millisecond, nil)

	ended := spans.Ended()
	if len(ended) != 1 {
		t.Fatalf("expected 1 span, got %d", len(ended))
	}
	if attrMap(ended[0])["operation.outcome"].AsString() != "SUCCESS" {
		t.Error("span missing outcome")
	}

	sum := sumOf(t, collect(t, reader), "operation.invoke.total")
	if len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 1 {
		t.Errorf("expected one SUCCESS invocation, got %v", sum.DataPoints)
	}
}

func TestRecorder_ContextCarriesSpan(t *testing.T) {
	spans, _, tracer := newRecordingTracer()
	r := NewRecorder(tracer, nil, nil)

	ctx, tok := r.RecordStart(context.Background(), OperationMeta{ID: "outer"}, "", "info")
	innerCtx, innerTok := r.RecordStart(ctx, OperationMeta{ID: "inner"}, "", "info")
	r.RecordEnd(innerCtx, innerTok, OutcomeSuccess, 0, nil)
	r.RecordEnd(ctx, tok, OutcomeSuccess, 0, nil)

	ended := spans.Ended()
	if len(ended) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(ended))
	}
	inner, outer := ended[0], ended[1]
	if inner.Parent().SpanID() != outer.SpanContext().SpanID() {
		t.Error("inner span should be a child of the outer span")
	}
}

func TestRecorder_PanickingSinkIsContained(t *testing.T) {
	var (
		mu     sync.Mutex
		stages []string
		sinked int
	)
	r := NewRecorder(nil, nil, panicLogger{},
		WithDiagnosticHook(func(_ context.Context, stage string, recovered any) {
			mu.Lock()
			defer mu.Unlock()
			stages = append(stages, stage)
			if recovered == nil {
				t.Error("diagnostic hook got nil panic value")
			}
		}),
		WithRecordSink(func(ExecutionRecord) { sinked++ }),
	)

	ctx, tok := r.RecordStart(context.Background(), OperationMeta{ID: "op"}, "op:1", "info")
	r.RecordEnd(ctx, tok, OutcomeSuccess, 0, nil)

	if r.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", r.Dropped())
	}
	if len(stages) != 1 || stages[0] != "logger" {
		t.Errorf("diagnostic stages = %v, want [logger]", stages)
	}
	if sinked != 1 {
		t.Errorf("sink called %d times, want 1", sinked)
	}
}

func TestRecorder_PanickingDiagnosticHookIsContained(t *testing.T) {
	r := NewRecorder(nil, nil, panicLogger{},
		WithDiagnosticHook(func(context.Context, string, any) { panic("hook down") }))

	ctx, tok := r.RecordStart(context.Background(), OperationMeta{ID: "op"}, "op:1", "debug")
	r.RecordEnd(ctx, tok, OutcomeFailure, 0, errors.New("boom"))

	if r.Dropped() != 2 {
		t.Errorf("Dropped() = %d, want 2", r.Dropped())
	}
}

func TestRecorder_RetryAndCircuitRecords(t *testing.T) {
	var buf bytes.Buffer
	r := NewRecorder(nil, nil, NewLoggerWithWriter("debug", &buf))
	ctx := context.Background()

	r.RecordRetry(ctx, "op", 1, errors.New("flaky"), 20*time.Millisecond)
	r.RecordCircuitTransition(ctx, "op", "closed", "open")

	lines := logLines(&buf)
	if len(lines) != 2 {
		t.Fatalf("expected 2 records, got %d", len(lines))
	}

	retry := decodeLine(t, lines[0])
	if retry["msg"] != "retrying operation" || retry["attempt"] != 1.0 || retry["delay_ms"] != 20.0 || retry["error"] != "flaky" {
		t.Errorf("unexpected retry record: %v", retry)
	}

	circuit := decodeLine(t, lines[1])
	if circuit["level"] != "warn" || circuit["from"] != "closed" || circuit["to"] != "open" {
		t.Errorf("unexpected circuit record: %v", circuit)
	}
}

func TestRecorderFromObserver_Nil(t *testing.T) {
	if _, err := RecorderFromObserver(nil); !errors.Is(err, ErrNilObserver) {
		t.Errorf("RecorderFromObserver(nil) error = %v, want %v", err, ErrNilObserver)
	}
}

func TestOutcome_Level(t *testing.T) {
	tests := map[Outcome]LogLevel{
		OutcomeSuccess:     LevelInfo,
		OutcomeCacheHit:    LevelInfo,
		OutcomeCircuitOpen: LevelWarn,
		OutcomeFailure:     LevelError,
	}
	for o, want := range tests {
		if got := o.Level(); got != want {
			t.Errorf("%s.Level() = %v, want %v", o, got, want)
		}
	}
}
