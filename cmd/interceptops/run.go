package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/interceptops/config"
	"github.com/jonwraymond/interceptops/health"
	"github.com/jonwraymond/interceptops/intercept"
	"github.com/jonwraymond/interceptops/observe"
	"github.com/jonwraymond/interceptops/policy"
	"github.com/jonwraymond/interceptops/resilience"
)

const (
	loadConcurrency = 8
	shutdownTimeout = 5 * time.Second
)

type policyFunc func(id string) (policy.Policy, error)

// demoPolicy is used for operations the config file does not mention.
func demoPolicy(cfg *config.Config) policyFunc {
	return func(id string) (policy.Policy, error) {
		if _, ok := cfg.Operations[id]; ok {
			return cfg.PolicyFor(id)
		}
		p := policy.Cached(time.Minute, 100)
		p.RetryMaxAttempts = 2
		p.RetryBackoff = 10 * time.Millisecond
		p.CircuitFailureThreshold = 3
		p.CircuitOpenDuration = 2 * time.Second
		p.CoalesceMisses = true
		return p.WithDefaults(), nil
	}
}

func run(configPath string, requests int) error {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting interceptops", "version", version, "service", cfg.Service)

	reg := prometheus.NewRegistry()
	app, err := newApp(ctx, cfg, reg)
	if err != nil {
		return err
	}
	defer app.close()

	var srv *http.Server
	errCh := make(chan error, 1)
	if cfg.MetricsAddr != "" {
		srv = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           app.handler(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()
		slog.Info("metrics endpoint ready", "addr", cfg.MetricsAddr)
	}

	stats, err := app.drive(ctx, requests)
	if err != nil {
		return err
	}
	slog.Info("demo load finished",
		"requests", stats.requests.Load(),
		"succeeded", stats.succeeded.Load(),
		"unavailable", stats.unavailable.Load(),
		"failed", stats.failed.Load(),
		"upstream_calls", app.source.calls.Load(),
	)

	report := app.health.CheckAll(ctx)
	slog.Info("health", "status", report.Status.String(), "circuits", app.engine.CircuitStates())

	if srv == nil {
		return nil
	}

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	slog.Info("interceptops stopped")
	return nil
}

// app holds the wired components of the demo.
type app struct {
	observer observe.Observer
	engine   *intercept.Engine
	health   *health.Aggregator
	source   *rateSource
	latest   *intercept.Operation[Rate]
}

func newApp(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (*app, error) {
	oc := cfg.ObserveConfig()
	oc.Registerer = reg
	obs, err := observe.NewObserver(ctx, oc)
	if err != nil {
		return nil, err
	}

	recorder, err := observe.RecorderFromObserver(obs, observe.WithDiagnosticHook(
		func(_ context.Context, stage string, recovered any) {
			slog.Warn("execution record dropped", "stage", stage, "panic", recovered)
		},
	))
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, err
	}

	backend, err := cfg.Cache.NewCache()
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, err
	}

	engine := intercept.New(
		intercept.WithCache(backend),
		intercept.WithRecorder(recorder),
		intercept.WithCircuitHook(func(id string, from, to resilience.State) {
			slog.Warn("circuit state changed", "operation", id, "from", from.String(), "to", to.String())
		}),
	)

	src := &rateSource{latency: 5 * time.Millisecond, failEvery: 4}
	latest, err := registerRates(engine, src, demoPolicy(cfg))
	if err != nil {
		_ = engine.Close()
		_ = obs.Shutdown(ctx)
		return nil, err
	}

	agg := health.NewAggregator(2 * time.Second)
	agg.Register(health.NewCircuitChecker(engine, health.CircuitCheckerConfig{
		Critical: []string{latestRateOp},
	}))

	return &app{
		observer: obs,
		engine:   engine,
		health:   agg,
		source:   src,
		latest:   latest,
	}, nil
}

func (a *app) handler(reg prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	health.RegisterHandlers(mux, a.health)
	return mux
}

type loadStats struct {
	requests    atomic.Int64
	succeeded   atomic.Int64
	unavailable atomic.Int64
	failed      atomic.Int64
}

// drive issues requests rate lookups across a fixed set of currencies.
func (a *app) drive(ctx context.Context, requests int) (*loadStats, error) {
	currencies := []string{"USD", "EUR", "GBP", "JPY", "CHF"}
	stats := &loadStats{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)
	for i := range requests {
		currency := currencies[i%len(currencies)]
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			stats.requests.Add(1)
			_, err := a.latest.Call(gctx, currency)
			switch {
			case err == nil:
				stats.succeeded.Add(1)
			case errors.Is(err, errServiceUnavailable):
				stats.unavailable.Add(1)
			case errors.Is(err, context.Canceled):
			default:
				stats.failed.Add(1)
			}
			return nil
		})
	}
	return stats, g.Wait()
}

func (a *app) close() {
	if err := a.engine.Close(); err != nil {
		slog.Error("close engine", "error", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.observer.Shutdown(ctx); err != nil {
		slog.Error("shutdown observer", "error", err)
	}
}
