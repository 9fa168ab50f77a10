package intercept

import (
	"context"

	"github.com/jonwraymond/interceptops/cache"
	"github.com/jonwraymond/interceptops/observe"
	"github.com/jonwraymond/interceptops/resilience"
)

// Option configures an Engine.
type Option func(*Engine)

// WithCache sets the cache backend. Default: a MemoryCache with
// cache.DefaultConfig.
func WithCache(c cache.Cache) Option {
	return func(e *Engine) {
		if c != nil {
			e.cache = c
		}
	}
}

// WithKeyer sets how invocation keys are derived. Default: cache.DefaultKeyer.
func WithKeyer(k cache.Keyer) Option {
	return func(e *Engine) {
		if k != nil {
			e.keyer = k
		}
	}
}

// WithRecorder sets the execution recorder. Default: a no-op recorder.
func WithRecorder(r *observe.Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithResilienceOptions passes options to the engine's resilience
// coordinator. Retry and state change hooks are owned by the engine; use
// WithCircuitHook to observe transitions.
func WithResilienceOptions(opts ...resilience.CoordinatorOption) Option {
	return func(e *Engine) {
		e.coordOpts = append(e.coordOpts, opts...)
	}
}

// WithCircuitHook registers a callback for every circuit transition, called
// after the transition is recorded.
func WithCircuitHook(fn func(operationID string, from, to resilience.State)) Option {
	return func(e *Engine) {
		e.circuitHook = fn
	}
}

// RegisterOption configures a registered operation.
type RegisterOption func(*registration)

// FallbackFunc produces a substitute result for a failed invocation. It
// receives the error the caller would otherwise see.
type FallbackFunc func(ctx context.Context, err error) (any, error)

// WithFallback sets the fallback for a registered operation. Fallback
// results are returned to the caller but never cached.
func WithFallback(fn FallbackFunc) RegisterOption {
	return func(r *registration) {
		r.fallback = fn
	}
}

// WithComponent names the component and method an operation belongs to.
// Execution records render it as Component#Method.
func WithComponent(component, method string) RegisterOption {
	return func(r *registration) {
		r.meta.Component = component
		r.meta.Method = method
	}
}

// WithTags attaches free-form tags to the operation's spans.
func WithTags(tags ...string) RegisterOption {
	return func(r *registration) {
		r.meta.Tags = append(r.meta.Tags, tags...)
	}
}
