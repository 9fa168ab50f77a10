package observe_test

import (
	"context"
	"fmt"
	"time"

	"github.com/jonwraymond/interceptops/observe"
)

func ExampleRecorder() {
	var last observe.ExecutionRecord
	rec := observe.NewRecorder(nil, nil, nil, observe.WithRecordSink(func(r observe.ExecutionRecord) {
		last = r
	}))

	meta := observe.OperationMeta{ID: "rates.latest", Component: "RateClient", Method: "Latest"}
	ctx, tok := rec.RecordStart(context.Background(), meta, "rates.latest:ab12", "info")
	rec.RecordEnd(ctx, tok, observe.OutcomeCacheHit, 3*time.Millisecond, nil)

	fmt.Println(last.Operation, last.Outcome, last.Duration)
	// Output: rates.latest CACHE_HIT 3ms
}

func ExampleOperationMeta() {
	meta := observe.OperationMeta{ID: "rates.latest", Component: "RateClient", Method: "Latest"}
	fmt.Println(meta.SpanName())
	fmt.Println(meta.DisplayName())
	// Output:
	// operation.invoke.rates.latest
	// RateClient#Latest
}

func ExampleConfig_Validate() {
	cfg := observe.Config{
		ServiceName: "rates",
		Tracing:     observe.TracingConfig{Enabled: true, Exporter: "zipkin"},
	}
	fmt.Println(cfg.Validate())
	// Output: observe: invalid tracing exporter: "zipkin"
}
