package main

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jonwraymond/interceptops/intercept"
	"github.com/jonwraymond/interceptops/resilience"
)

const latestRateOp = "rates.latest"

var errServiceUnavailable = errors.New("rate service unavailable")

// Rate is one exchange rate quote.
type Rate struct {
	Currency string    `json:"currency"`
	Value    float64   `json:"value"`
	AsOf     time.Time `json:"as_of"`
}

// rateSource simulates a remote rate service. Every failEvery-th call fails.
type rateSource struct {
	latency   time.Duration
	failEvery int64
	calls     atomic.Int64
}

var baseRates = map[string]float64{
	"USD": 1,
	"EUR": 0.92,
	"GBP": 0.79,
	"JPY": 151.3,
	"CHF": 0.88,
}

func (s *rateSource) Latest(ctx context.Context, currency string) (Rate, error) {
	n := s.calls.Add(1)

	select {
	case <-time.After(s.latency):
	case <-ctx.Done():
		return Rate{}, ctx.Err()
	}

	if s.failEvery > 0 && n%s.failEvery == 0 {
		return Rate{}, fmt.Errorf("rate service: upstream error on call %d", n)
	}
	v, ok := baseRates[currency]
	if !ok {
		return Rate{}, fmt.Errorf("rate service: unknown currency %q", currency)
	}
	return Rate{Currency: currency, Value: v, AsOf: time.Now().UTC()}, nil
}

// rateFallback turns a rejected call into a service-unavailable error.
// Other failures pass through.
func rateFallback(_ context.Context, err error) (Rate, error) {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return Rate{}, fmt.Errorf("%w: %w", errServiceUnavailable, err)
	}
	return Rate{}, err
}

// registerRates registers the rate lookup with the engine.
func registerRates(e *intercept.Engine, src *rateSource, p policyFunc) (*intercept.Operation[Rate], error) {
	pol, err := p(latestRateOp)
	if err != nil {
		return nil, err
	}
	return intercept.Register(e, latestRateOp, pol,
		func(ctx context.Context, args ...any) (Rate, error) {
			currency, _ := args[0].(string)
			return src.Latest(ctx, currency)
		},
		intercept.WithComponent("RateClient", "Latest"),
		intercept.WithTags("rates", "demo"),
		intercept.Fallback(rateFallback),
	)
}
