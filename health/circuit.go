package health

import (
	"context"
	"fmt"
	"slices"

	"github.com/jonwraymond/interceptops/resilience"
)

// CircuitSource reports the circuit state of every operation.
// *intercept.Engine satisfies it.
type CircuitSource interface {
	CircuitStates() map[string]resilience.State
}

// CircuitCheckerConfig configures a CircuitChecker.
type CircuitCheckerConfig struct {
	// Name is the checker name. Default: "circuits"
	Name string

	// Critical lists operations whose open circuit makes the check unhealthy
	// on its own.
	Critical []string

	// UnhealthyRatio is the share of open circuits at which the check turns
	// unhealthy. Default: 1 (every circuit open)
	UnhealthyRatio float64
}

// CircuitChecker reports degraded while any circuit is open or half-open,
// and unhealthy once a critical circuit or enough circuits are open.
type CircuitChecker struct {
	source CircuitSource
	config CircuitCheckerConfig
}

// NewCircuitChecker creates a checker over source.
func NewCircuitChecker(source CircuitSource, config CircuitCheckerConfig) *CircuitChecker {
	if config.Name == "" {
		config.Name = "circuits"
	}
	if config.UnhealthyRatio <= 0 || config.UnhealthyRatio > 1 {
		config.UnhealthyRatio = 1
	}
	return &CircuitChecker{source: source, config: config}
}

// Name returns the name of this checker.
func (c *CircuitChecker) Name() string {
	return c.config.Name
}

// Check inspects every circuit.
func (c *CircuitChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context cancelled", err)
	}

	states := c.source.CircuitStates()
	if len(states) == 0 {
		return Healthy("no circuits")
	}

	open := make([]string, 0)
	halfOpen := make([]string, 0)
	for id, s := range states {
		switch s {
		case resilience.StateOpen:
			open = append(open, id)
		case resilience.StateHalfOpen:
			halfOpen = append(halfOpen, id)
		}
	}
	slices.Sort(open)
	slices.Sort(halfOpen)

	details := map[string]any{
		"total":     len(states),
		"open":      open,
		"half_open": halfOpen,
	}

	for _, id := range open {
		if slices.Contains(c.config.Critical, id) {
			return Unhealthy("critical circuit open: "+id, fmt.Errorf("%w: %s", ErrCircuitOpen, id)).WithDetails(details)
		}
	}

	if float64(len(open))/float64(len(states)) >= c.config.UnhealthyRatio {
		return Unhealthy(fmt.Sprintf("%d of %d circuits open", len(open), len(states)), ErrCircuitOpen).WithDetails(details)
	}

	if notClosed := len(open) + len(halfOpen); notClosed > 0 {
		return Degraded(fmt.Sprintf("%d of %d circuits not closed", notClosed, len(states))).WithDetails(details)
	}

	return Healthy("all circuits closed").WithDetails(details)
}
