package observe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/jonwraymond/interceptops/observe/exporters"
)

// Config describes where a service's execution telemetry goes. The
// service name and version become resource attributes on every span and
// metric an operation produces.
type Config struct {
	ServiceName string        `yaml:"service_name"`
	Version     string        `yaml:"version"`
	Tracing     TracingConfig `yaml:"tracing"`
	Metrics     MetricsConfig `yaml:"metrics"`
	Logging     LoggingConfig `yaml:"logging"`

	// Output is shared by the stdout exporters and the record logger.
	// Nil means os.Stdout for exporters and os.Stderr for records.
	Output io.Writer `yaml:"-"`

	// Registerer takes the Prometheus collector of the "prometheus"
	// metrics exporter. Nil means prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer `yaml:"-"`
}

// TracingConfig selects the span exporter for operation spans.
type TracingConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Exporter  string  `yaml:"exporter"`   // otlp|stdout|none
	SamplePct float64 `yaml:"sample_pct"` // fraction of root spans kept, 0.0-1.0
	Endpoint  string  `yaml:"endpoint"`
	Insecure  bool    `yaml:"insecure"`
}

// MetricsConfig selects the reader for invocation counters and durations.
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // otlp|prometheus|stdout|none
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

// LoggingConfig sets the floor for execution records. A per-operation
// policy level can raise it but never lower it.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"` // debug|info|warn|error
}

// Validate reports the first invalid setting. Disabled sections are not
// checked.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return ErrMissingServiceName
	}

	if c.Tracing.Enabled {
		if !slices.Contains(ValidTracingExporters, c.Tracing.Exporter) {
			return fmt.Errorf("%w: %q", ErrInvalidTracingExporter, c.Tracing.Exporter)
		}
		if c.Tracing.SamplePct < MinSamplePct || c.Tracing.SamplePct > MaxSamplePct {
			return fmt.Errorf("%w: got %f", ErrInvalidSamplePct, c.Tracing.SamplePct)
		}
	}
	if c.Metrics.Enabled && !slices.Contains(ValidMetricsExporters, c.Metrics.Exporter) {
		return fmt.Errorf("%w: %q", ErrInvalidMetricsExporter, c.Metrics.Exporter)
	}
	if c.Logging.Enabled && !slices.Contains(ValidLogLevels, c.Logging.Level) {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level)
	}
	return nil
}

// Observer hands out the tracer, meter and logger a Recorder writes
// execution records to.
//
// Observers are safe for concurrent use. Shutdown flushes pending spans
// and metrics, honors the context deadline and returns the same result
// when called again.
type Observer interface {
	Tracer() trace.Tracer
	Meter() metric.Meter
	Logger() Logger
	Shutdown(ctx context.Context) error
}

// Logger writes structured execution records. Implementations must be safe
// for concurrent use and must not panic on bad field values.
type Logger interface {
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	Debug(ctx context.Context, msg string, fields ...Field)

	// WithOperation returns a logger that stamps every record with the
	// operation's id and component.
	WithOperation(meta OperationMeta) Logger
}

// Field is one key/value pair of an execution record.
type Field struct {
	Key   string
	Value any
}

type telemetry struct {
	tracer trace.Tracer
	meter  metric.Meter
	logger Logger

	// stops flush and release providers in reverse creation order.
	stops []func(context.Context) error

	shutdownOnce sync.Once
	shutdownErr  error
}

// NewObserver validates cfg and starts the enabled providers. Disabled
// tracing or metrics get no-op implementations. On error every provider
// started so far is shut down again.
func NewObserver(ctx context.Context, cfg Config) (Observer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.Version),
	))
	if err != nil {
		return nil, fmt.Errorf("observe: resource: %w", err)
	}

	t := &telemetry{
		tracer: tracenoop.NewTracerProvider().Tracer("interceptops"),
		meter:  noop.NewMeterProvider().Meter("interceptops"),
		logger: &noopLogger{},
	}

	if cfg.Tracing.Enabled {
		tp, err := newTracerProvider(ctx, cfg, res)
		if err != nil {
			return nil, fmt.Errorf("observe: tracing: %w", err)
		}
		t.tracer = tp.Tracer(cfg.ServiceName)
		t.stops = append(t.stops, tp.Shutdown)
	}

	if cfg.Metrics.Enabled {
		mp, err := newMeterProvider(ctx, cfg, res)
		if err != nil {
			_ = t.Shutdown(ctx)
			return nil, fmt.Errorf("observe: metrics: %w", err)
		}
		t.meter = mp.Meter(cfg.ServiceName)
		t.stops = append(t.stops, mp.Shutdown)
	}

	if cfg.Logging.Enabled {
		if cfg.Output != nil {
			t.logger = NewLoggerWithWriter(cfg.Logging.Level, cfg.Output)
		} else {
			t.logger = NewLogger(cfg.Logging.Level)
		}
	}

	return t, nil
}

func exporterOptions(cfg Config, endpoint string, insecure bool) exporters.Options {
	return exporters.Options{
		Endpoint:   endpoint,
		Insecure:   insecure,
		Writer:     cfg.Output,
		Registerer: cfg.Registerer,
	}
}

// sampler keeps SamplePct of root spans. Child spans follow their parent,
// so a sampled call keeps its retry and fallback spans.
func sampler(pct float64) sdktrace.Sampler {
	var root sdktrace.Sampler
	switch {
	case pct >= MaxSamplePct:
		root = sdktrace.AlwaysSample()
	case pct <= MinSamplePct:
		root = sdktrace.NeverSample()
	default:
		root = sdktrace.TraceIDRatioBased(pct)
	}
	return sdktrace.ParentBased(root)
}

func newTracerProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	exporter, err := exporters.NewTracingExporter(ctx, cfg.Tracing.Exporter,
		exporterOptions(cfg, cfg.Tracing.Endpoint, cfg.Tracing.Insecure))
	if err != nil {
		return nil, err
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.Tracing.SamplePct)),
	}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	return tp, nil
}

func newMeterProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	reader, err := exporters.NewMetricsReader(ctx, cfg.Metrics.Exporter,
		exporterOptions(cfg, cfg.Metrics.Endpoint, cfg.Metrics.Insecure))
	if err != nil {
		return nil, err
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if reader != nil {
		opts = append(opts, sdkmetric.WithReader(reader))
	}

	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)
	return mp, nil
}

func (t *telemetry) Tracer() trace.Tracer { return t.tracer }
func (t *telemetry) Meter() metric.Meter  { return t.meter }
func (t *telemetry) Logger() Logger       { return t.logger }

func (t *telemetry) Shutdown(ctx context.Context) error {
	t.shutdownOnce.Do(func() {
		var errs []error
		for i := len(t.stops) - 1; i >= 0; i-- {
			if err := t.stops[i](ctx); err != nil {
				errs = append(errs, err)
			}
		}
		if len(errs) > 0 {
			t.shutdownErr = fmt.Errorf("observe: shutdown: %w", errors.Join(errs...))
		}
	})
	return t.shutdownErr
}

type noopLogger struct{}

func (*noopLogger) Info(context.Context, string, ...Field)  {}
func (*noopLogger) Warn(context.Context, string, ...Field)  {}
func (*noopLogger) Error(context.Context, string, ...Field) {}
func (*noopLogger) Debug(context.Context, string, ...Field) {}

func (l *noopLogger) WithOperation(OperationMeta) Logger { return l }
