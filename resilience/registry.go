package resilience

import (
	"sort"

	"github.com/puzpuzpuz/xsync/v3"
)

// Registry holds one circuit breaker per partition. Breakers are created
// lazily on first use and never shared between partitions.
type Registry struct {
	breakers      *xsync.MapOf[string, *CircuitBreaker]
	onStateChange func(partition string, from, to State)
}

// NewRegistry creates an empty breaker registry. onStateChange may be nil.
func NewRegistry(onStateChange func(partition string, from, to State)) *Registry {
	return &Registry{
		breakers:      xsync.NewMapOf[string, *CircuitBreaker](),
		onStateChange: onStateChange,
	}
}

// Get returns the breaker for partition, or nil if none exists.
func (r *Registry) Get(partition string) *CircuitBreaker {
	cb, _ := r.breakers.Load(partition)
	return cb
}

// GetOrCreate returns the breaker for partition, creating it from config if
// needed. Name and OnStateChange are set by the registry. Once a breaker
// exists, later configs are ignored.
func (r *Registry) GetOrCreate(partition string, config CircuitBreakerConfig) *CircuitBreaker {
	if cb, ok := r.breakers.Load(partition); ok {
		return cb
	}

	cb, _ := r.breakers.LoadOrCompute(partition, func() *CircuitBreaker {
		config.Name = partition
		config.OnStateChange = r.onStateChange
		return NewCircuitBreaker(config)
	})
	return cb
}

// Reset closes the breaker for partition. It reports whether one existed.
func (r *Registry) Reset(partition string) bool {
	cb, ok := r.breakers.Load(partition)
	if ok {
		cb.Reset()
	}
	return ok
}

// Remove drops the breaker for partition. A later call starts from closed.
func (r *Registry) Remove(partition string) {
	r.breakers.Delete(partition)
}

// States returns a snapshot of every partition's circuit state.
func (r *Registry) States() map[string]State {
	states := make(map[string]State, r.breakers.Size())
	r.breakers.Range(func(partition string, cb *CircuitBreaker) bool {
		states[partition] = cb.State()
		return true
	})
	return states
}

// Partitions returns the known partitions in sorted order.
func (r *Registry) Partitions() []string {
	partitions := make([]string, 0, r.breakers.Size())
	r.breakers.Range(func(partition string, _ *CircuitBreaker) bool {
		partitions = append(partitions, partition)
		return true
	})
	sort.Strings(partitions)
	return partitions
}
