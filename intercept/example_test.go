package intercept_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/interceptops/intercept"
	"github.com/jonwraymond/interceptops/policy"
	"github.com/jonwraymond/interceptops/resilience"
)

func ExampleRegister() {
	e := intercept.New()
	defer e.Close()

	calls := 0
	op, err := intercept.Register(e, "greet", policy.Cached(time.Minute, 10),
		func(_ context.Context, args ...any) (string, error) {
			calls++
			return fmt.Sprintf("hello %v", args[0]), nil
		})
	if err != nil {
		fmt.Println(err)
		return
	}

	for i := 0; i < 3; i++ {
		msg, _ := op.Call(context.Background(), "ada")
		fmt.Println(msg)
	}
	fmt.Println("calls:", calls)
	// Output:
	// hello ada
	// hello ada
	// hello ada
	// calls: 1
}

func ExampleInvoke() {
	e := intercept.New()
	defer e.Close()

	p := policy.Default()
	p.CircuitFailureThreshold = 2

	fail := func(context.Context) (float64, error) { return 0, errors.New("upstream down") }
	for i := 0; i < 3; i++ {
		_, err := intercept.Invoke(context.Background(), e, "rates", nil, p, fail)
		fmt.Println(errors.Is(err, resilience.ErrCircuitOpen))
	}
	// Output:
	// false
	// false
	// true
}

func ExampleWithFallback() {
	e := intercept.New()
	defer e.Close()

	_ = e.Register("rates", policy.Default(),
		func(context.Context, ...any) (any, error) { return nil, errors.New("upstream down") },
		intercept.WithFallback(func(context.Context, error) (any, error) { return 1.0, nil }),
	)

	v, err := e.Call(context.Background(), "rates", "EUR")
	fmt.Println(v, err)
	// Output: 1 <nil>
}
