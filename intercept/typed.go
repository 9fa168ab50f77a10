package intercept

import (
	"context"
	"fmt"

	"github.com/jonwraymond/interceptops/observe"
	"github.com/jonwraymond/interceptops/policy"
)

// Invoke is the typed form of Engine.Invoke. A cached value of another type
// is treated as a miss.
func Invoke[T any](ctx context.Context, e *Engine, operationID string, args []any, p policy.Policy, underlying func(context.Context) (T, error)) (T, error) {
	if err := e.check(operationID, underlying == nil); err != nil {
		var zero T
		return zero, err
	}

	v, err := e.invoke(ctx, &call{
		meta:   observe.OperationMeta{ID: operationID},
		args:   args,
		policy: p.WithDefaults(),
		fn: func(ctx context.Context) (any, error) {
			return underlying(ctx)
		},
		accept: isType[T],
	})
	return as[T](v, err)
}

// Operation is a registered operation returning T.
type Operation[T any] struct {
	engine *Engine
	id     string
}

// Register registers fn under id and returns a typed handle to call it.
func Register[T any](e *Engine, id string, p policy.Policy, fn func(ctx context.Context, args ...any) (T, error), opts ...RegisterOption) (*Operation[T], error) {
	var wrapped Func
	if fn != nil {
		wrapped = func(ctx context.Context, args ...any) (any, error) {
			return fn(ctx, args...)
		}
	}

	if _, err := e.register(id, p, wrapped, isType[T], opts); err != nil {
		return nil, err
	}
	return &Operation[T]{engine: e, id: id}, nil
}

// ID returns the operation ID.
func (o *Operation[T]) ID() string {
	return o.id
}

// Call invokes the operation with args.
func (o *Operation[T]) Call(ctx context.Context, args ...any) (T, error) {
	return as[T](o.engine.Call(ctx, o.id, args...))
}

// Invalidate drops the cached result for args.
func (o *Operation[T]) Invalidate(ctx context.Context, args ...any) error {
	return o.engine.Invalidate(ctx, o.id, args...)
}

// Fallback is the typed form of WithFallback.
func Fallback[T any](fn func(ctx context.Context, err error) (T, error)) RegisterOption {
	return WithFallback(func(ctx context.Context, err error) (any, error) {
		return fn(ctx, err)
	})
}

func isType[T any](v any) bool {
	if v == nil {
		return true
	}
	_, ok := v.(T)
	return ok
}

func as[T any](v any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: got %T, want %T", ErrTypeMismatch, v, zero)
	}
	return t, nil
}
