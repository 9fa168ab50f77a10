package intercept

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonwraymond/interceptops/cache"
	"github.com/jonwraymond/interceptops/observe"
	"github.com/jonwraymond/interceptops/policy"
	"github.com/jonwraymond/interceptops/resilience"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/singleflight"
)

// Engine composes caching, resilience and execution recording around
// operation calls.
//
// Every call runs the same pipeline: derive the invocation key, record the
// start, look the key up in the cache, run the operation under the
// resilience coordinator on a miss, store a successful result, and record
// the outcome.
//
// Contract:
//   - Concurrency: safe for concurrent use. Shared state is scoped per
//     operation, so unrelated operations never contend.
//   - Errors: callers see the operation's result, its error, a
//     *resilience.CircuitOpenError or a *resilience.RetryExhaustedError.
//     Cache and recording failures are absorbed.
//   - Lifecycle: state lives until Close.
type Engine struct {
	cache       cache.Cache
	keyer       cache.Keyer
	recorder    *observe.Recorder
	coord       *resilience.Coordinator
	coordOpts   []resilience.CoordinatorOption
	circuitHook func(operationID string, from, to resilience.State)

	ops    *xsync.MapOf[string, *registration]
	limits *xsync.MapOf[string, int]
	flight singleflight.Group

	cacheFailures atomic.Int64
	closed        atomic.Bool
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		keyer:    cache.NewDefaultKeyer(),
		recorder: observe.NewNoopRecorder(),
		ops:      xsync.NewMapOf[string, *registration](),
		limits:   xsync.NewMapOf[string, int](),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cache == nil {
		e.cache = cache.NewMemoryCache(cache.DefaultConfig())
	}

	coordOpts := append(e.coordOpts,
		resilience.WithStateChangeHook(e.onStateChange),
		resilience.WithRetryHook(e.onRetry),
	)
	e.coord = resilience.NewCoordinator(coordOpts...)
	return e
}

// call is one invocation travelling through the pipeline.
type call struct {
	meta     observe.OperationMeta
	args     []any
	policy   policy.Policy
	fn       func(context.Context) (any, error)
	fallback FallbackFunc

	// accept reports whether a cached value can be returned. Nil accepts
	// every value.
	accept func(any) bool
}

// Invoke runs underlying for operationID under p.
//
// args identify the invocation for caching; they are not passed to
// underlying. The policy is normalized with WithDefaults.
func (e *Engine) Invoke(ctx context.Context, operationID string, args []any, p policy.Policy, underlying func(context.Context) (any, error)) (any, error) {
	if err := e.check(operationID, underlying == nil); err != nil {
		return nil, err
	}
	return e.invoke(ctx, &call{
		meta:   observe.OperationMeta{ID: operationID},
		args:   args,
		policy: p.WithDefaults(),
		fn:     underlying,
	})
}

func (e *Engine) check(operationID string, nilFn bool) error {
	if e.closed.Load() {
		return ErrClosed
	}
	if strings.TrimSpace(operationID) == "" {
		return ErrInvalidOperationID
	}
	if nilFn {
		return ErrNilOperation
	}
	return nil
}

func (e *Engine) invoke(ctx context.Context, c *call) (any, error) {
	start := time.Now()

	key, keyErr := e.keyer.Key(c.meta.ID, c.args)
	cacheable := c.policy.CacheEnabled && keyErr == nil
	var rendered string
	if keyErr == nil {
		rendered = key.String()
	}

	ctx, tok := e.recorder.RecordStart(ctx, c.meta, rendered, c.policy.LogLevel)

	if cacheable {
		e.ensureLimit(c.meta.ID, c.policy.MaxEntries)
		if v, ok := e.lookup(ctx, key, c.accept); ok {
			e.recorder.RecordEnd(ctx, tok, observe.OutcomeCacheHit, time.Since(start), nil)
			return v, nil
		}
	}

	var (
		v   any
		err error
	)
	if cacheable && c.policy.CoalesceMisses {
		v, err, _ = e.flight.Do(rendered, func() (any, error) {
			return e.execute(ctx, c, key, cacheable)
		})
	} else {
		v, err = e.execute(ctx, c, key, cacheable)
	}

	e.recorder.RecordEnd(ctx, tok, outcomeOf(err), time.Since(start), err)

	if err != nil && c.fallback != nil {
		return c.fallback(ctx, err)
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// execute runs the operation under the coordinator and stores a successful
// result.
func (e *Engine) execute(ctx context.Context, c *call, key cache.Key, cacheable bool) (any, error) {
	var box resultBox
	err := e.coord.Execute(ctx, c.meta.ID, c.policy, func(ctx context.Context) error {
		v, err := c.fn(ctx)
		if err != nil {
			return err
		}
		box.set(v)
		return nil
	})
	v := box.seal()
	if err != nil {
		return nil, err
	}

	if cacheable {
		e.store(ctx, key, v, c.policy.TTL)
	}
	return v, nil
}

func outcomeOf(err error) observe.Outcome {
	switch {
	case err == nil:
		return observe.OutcomeSuccess
	case errors.Is(err, resilience.ErrCircuitOpen):
		return observe.OutcomeCircuitOpen
	default:
		return observe.OutcomeFailure
	}
}

// lookup reads the cache. A panicking backend or an unacceptable value is a
// miss.
func (e *Engine) lookup(ctx context.Context, key cache.Key, accept func(any) bool) (v any, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.cacheFailures.Add(1)
			v, ok = nil, false
		}
	}()

	v, ok = e.cache.Get(ctx, key)
	if ok && accept != nil && !accept(v) {
		e.cacheFailures.Add(1)
		return nil, false
	}
	return v, ok
}

// store writes a result to the cache. Failures are counted and dropped.
func (e *Engine) store(ctx context.Context, key cache.Key, v any, ttl time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			e.cacheFailures.Add(1)
		}
	}()

	if err := e.cache.Set(ctx, key, v, ttl); err != nil {
		e.cacheFailures.Add(1)
	}
}

// ensureLimit applies an operation's entry cap when it changes.
func (e *Engine) ensureLimit(operationID string, maxEntries int) {
	b, ok := e.cache.(cache.Bounded)
	if !ok {
		return
	}
	if prev, ok := e.limits.Load(operationID); ok && prev == maxEntries {
		return
	}
	e.limits.Store(operationID, maxEntries)
	b.SetLimit(operationID, maxEntries)
}

// Invalidate drops the cached result of one invocation.
func (e *Engine) Invalidate(ctx context.Context, operationID string, args ...any) error {
	key, err := e.keyer.Key(operationID, args)
	if err != nil {
		return fmt.Errorf("intercept: invalidate %q: %w", operationID, err)
	}
	return e.cache.Delete(ctx, key)
}

// InvalidateOperation drops every cached result of an operation.
func (e *Engine) InvalidateOperation(ctx context.Context, operationID string) error {
	p, ok := e.cache.(cache.Purger)
	if !ok {
		return ErrPurgeUnsupported
	}
	return p.Purge(ctx, operationID)
}

// CircuitStates returns a snapshot of every operation's circuit state.
func (e *Engine) CircuitStates() map[string]resilience.State {
	return e.coord.States()
}

// ResetCircuit closes the circuit of an operation. It reports whether the
// operation had one.
func (e *Engine) ResetCircuit(operationID string) bool {
	return e.coord.Reset(operationID)
}

// Coordinator returns the engine's resilience coordinator.
func (e *Engine) Coordinator() *resilience.Coordinator {
	return e.coord
}

// CacheFailures returns how many cache reads or writes failed and were
// treated as misses.
func (e *Engine) CacheFailures() int64 {
	return e.cacheFailures.Load()
}

// Close stops accepting calls and closes the cache backend. It is safe to
// call more than once.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}

	var errs []error
	if c, ok := e.cache.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("intercept: close cache: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) onStateChange(partition string, from, to resilience.State) {
	e.recorder.RecordCircuitTransition(context.Background(), partition, from.String(), to.String())
	if e.circuitHook != nil {
		e.circuitHook(partition, from, to)
	}
}

func (e *Engine) onRetry(partition string, attempt int, err error, delay time.Duration) {
	e.recorder.RecordRetry(context.Background(), partition, attempt, err, delay)
}

// resultBox holds the value of the successful attempt. Attempts abandoned by
// a timeout may still finish later, so writes after seal are dropped.
type resultBox struct {
	mu     sync.Mutex
	v      any
	sealed bool
}

func (b *resultBox) set(v any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.sealed {
		b.v = v
	}
}

func (b *resultBox) seal() any {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sealed = true
	return b.v
}
