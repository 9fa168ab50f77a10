package intercept

import (
	"context"
	"fmt"
	"slices"

	"github.com/jonwraymond/interceptops/observe"
	"github.com/jonwraymond/interceptops/policy"
)

// Func is the callable behind a registered operation.
type Func func(ctx context.Context, args ...any) (any, error)

// registration binds an operation ID to its policy and callable. It is not
// modified after Register returns.
type registration struct {
	meta     observe.OperationMeta
	policy   policy.Policy
	fn       Func
	fallback FallbackFunc
	accept   func(any) bool
}

// Register associates an operation ID and policy with fn. The policy is
// normalized with WithDefaults and validated once, here.
func (e *Engine) Register(id string, p policy.Policy, fn Func, opts ...RegisterOption) error {
	_, err := e.register(id, p, fn, nil, opts)
	return err
}

func (e *Engine) register(id string, p policy.Policy, fn Func, accept func(any) bool, opts []RegisterOption) (*registration, error) {
	if err := e.check(id, fn == nil); err != nil {
		return nil, err
	}

	p = p.WithDefaults()
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("intercept: register %q: %w", id, err)
	}

	reg := &registration{
		meta:   observe.OperationMeta{ID: id},
		policy: p,
		fn:     fn,
		accept: accept,
	}
	for _, opt := range opts {
		opt(reg)
	}

	if _, loaded := e.ops.LoadOrStore(id, reg); loaded {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateOperation, id)
	}
	if p.CacheEnabled {
		e.ensureLimit(id, p.MaxEntries)
	}
	return reg, nil
}

// Call invokes a registered operation with args. The arguments are passed
// to the operation and identify the invocation for caching.
func (e *Engine) Call(ctx context.Context, id string, args ...any) (any, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	reg, ok := e.ops.Load(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, id)
	}

	return e.invoke(ctx, &call{
		meta:   reg.meta,
		args:   args,
		policy: reg.policy,
		fn: func(ctx context.Context) (any, error) {
			return reg.fn(ctx, args...)
		},
		fallback: reg.fallback,
		accept:   reg.accept,
	})
}

// Policy returns the normalized policy of a registered operation.
func (e *Engine) Policy(id string) (policy.Policy, bool) {
	reg, ok := e.ops.Load(id)
	if !ok {
		return policy.Policy{}, false
	}
	return reg.policy, true
}

// Operations returns the registered operation IDs in sorted order.
func (e *Engine) Operations() []string {
	ids := make([]string, 0, e.ops.Size())
	e.ops.Range(func(id string, _ *registration) bool {
		ids = append(ids, id)
		return true
	})
	slices.Sort(ids)
	return ids
}
