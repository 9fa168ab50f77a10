// Package health reports whether intercepted operations are being served.
//
// A CircuitChecker turns the engine's circuit states into a health status:
// healthy while every circuit is closed, degraded while some are open or
// probing, unhealthy once a critical operation or enough operations are cut
// off. An Aggregator combines checkers, and the HTTP handlers expose the
// result for liveness and readiness probes:
//
//	agg := health.NewAggregator(5 * time.Second)
//	agg.Register(health.NewCircuitChecker(engine, health.CircuitCheckerConfig{
//	    Critical: []string{"rates.latest"},
//	}))
//	health.RegisterHandlers(mux, agg)
package health
