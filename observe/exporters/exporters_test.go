package exporters

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func TestNewTracingExporter(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")

	tests := []struct {
		name    string
		opts    Options
		wantNil bool
		wantErr error
	}{
		{name: "stdout", opts: Options{Writer: &bytes.Buffer{}}},
		{name: "otlp", opts: Options{Endpoint: "localhost:4317", Insecure: true}},
		{name: "otlp", opts: Options{}, wantErr: ErrEndpointNotConfigured},
		{name: "none", wantNil: true},
		{name: "", wantNil: true},
		{name: "jaeger", wantErr: ErrUnknownExporter},
	}

	for _, tt := range tests {
		t.Run(tt.name+"/"+tt.opts.Endpoint, func(t *testing.T) {
			exp, err := NewTracingExporter(context.Background(), tt.name, tt.opts)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if (exp == nil) != tt.wantNil {
				t.Errorf("exporter nil = %v, want %v", exp == nil, tt.wantNil)
			}
			if exp != nil {
				_ = exp.Shutdown(context.Background())
			}
		})
	}
}

func TestNewTracingExporter_OTLPFromEnv(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4317")

	exp, err := NewTracingExporter(context.Background(), "otlp", Options{})
	if err != nil {
		t.Fatalf("failed to create OTLP exporter with endpoint: %v", err)
	}
	if exp == nil {
		t.Fatal("expected non-nil exporter")
	}
	_ = exp.Shutdown(context.Background())
}

func TestNewMetricsReader(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")

	tests := []struct {
		name    string
		opts    Options
		wantNil bool
		wantErr error
	}{
		{name: "stdout", opts: Options{Writer: &bytes.Buffer{}}},
		{name: "otlp", opts: Options{Endpoint: "localhost:4317", Insecure: true}},
		{name: "otlp", opts: Options{}, wantErr: ErrEndpointNotConfigured},
		{name: "prometheus", opts: Options{Registerer: prometheus.NewRegistry()}},
		{name: "none", wantNil: true},
		{name: "badvalue", wantErr: ErrUnknownExporter},
	}

	for _, tt := range tests {
		t.Run(tt.name+"/"+tt.opts.Endpoint, func(t *testing.T) {
			reader, err := NewMetricsReader(context.Background(), tt.name, tt.opts)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if (reader == nil) != tt.wantNil {
				t.Errorf("reader nil = %v, want %v", reader == nil, tt.wantNil)
			}
		})
	}
}

func TestNewMetricsReader_PrometheusRegistersCollector(t *testing.T) {
	reg := prometheus.NewRegistry()

	reader, err := NewMetricsReader(context.Background(), "prometheus", Options{Registerer: reg})
	if err != nil {
		t.Fatalf("failed to create Prometheus reader: %v", err)
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	counter, err := mp.Meter("test").Int64Counter("invocations")
	if err != nil {
		t.Fatalf("failed to create counter: %v", err)
	}
	counter.Add(context.Background(), 3)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range families {
		if strings.HasPrefix(mf.GetName(), "invocations") {
			return
		}
	}
	t.Error("counter not exposed through the registry")
}
