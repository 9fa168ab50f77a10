package policy

import (
	"errors"
	"fmt"
	"time"
)

// Validation errors.
var (
	ErrInvalidTTL              = errors.New("policy: ttl must be positive when caching is enabled")
	ErrInvalidMaxEntries       = errors.New("policy: max entries must be positive when caching is enabled")
	ErrInvalidRetryAttempts    = errors.New("policy: retry max attempts must be at least 1")
	ErrInvalidRetryBackoff     = errors.New("policy: retry backoff must not be negative")
	ErrInvalidFailureThreshold = errors.New("policy: circuit failure threshold must be at least 1")
	ErrInvalidOpenDuration     = errors.New("policy: circuit open duration must be positive")
	ErrInvalidLogLevel         = errors.New("policy: invalid log level")
	ErrInvalidAttemptTimeout   = errors.New("policy: attempt timeout must not be negative")
	ErrInvalidMaxConcurrent    = errors.New("policy: max concurrent must not be negative")
)

// Default values applied by WithDefaults.
const (
	DefaultTTL                     = 5 * time.Minute
	DefaultMaxEntries              = 1000
	DefaultRetryMaxAttempts        = 1
	DefaultRetryBackoff            = 100 * time.Millisecond
	DefaultCircuitFailureThreshold = 5
	DefaultCircuitOpenDuration     = 30 * time.Second
	DefaultLogLevel                = "info"
)

// Policy configures how a single operation is intercepted.
type Policy struct {
	// CacheEnabled turns result caching on for the operation.
	CacheEnabled bool `yaml:"cache_enabled"`

	// TTL is how long a cached result stays valid.
	TTL time.Duration `yaml:"ttl"`

	// MaxEntries caps the number of cached results kept for the operation.
	// The oldest inserted entry is evicted first.
	MaxEntries int `yaml:"max_entries"`

	// RetryMaxAttempts is the total number of attempts, including the first.
	RetryMaxAttempts int `yaml:"retry_max_attempts"`

	// RetryBackoff is the linear backoff unit: the wait after attempt n is
	// RetryBackoff * n.
	RetryBackoff time.Duration `yaml:"retry_backoff"`

	// CircuitFailureThreshold is the number of consecutive failed calls that
	// opens the circuit.
	CircuitFailureThreshold int `yaml:"circuit_failure_threshold"`

	// CircuitOpenDuration is how long the circuit stays open before a probe
	// call is admitted.
	CircuitOpenDuration time.Duration `yaml:"circuit_open_duration"`

	// LogLevel is the minimum level of execution records emitted for the
	// operation: debug|info|warn|error.
	LogLevel string `yaml:"log_level"`

	// AttemptTimeout bounds each individual attempt. Zero disables it.
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`

	// MaxConcurrent bounds in-flight calls for the operation. Zero disables it.
	MaxConcurrent int `yaml:"max_concurrent"`

	// CoalesceMisses lets concurrent cache misses on the same key share a
	// single underlying execution. Only meaningful with CacheEnabled.
	CoalesceMisses bool `yaml:"coalesce_misses"`
}

// Default returns a policy with caching disabled, a single attempt and the
// default circuit thresholds.
func Default() Policy {
	return Policy{}.WithDefaults()
}

// Cached returns the default policy with caching enabled for ttl.
func Cached(ttl time.Duration, maxEntries int) Policy {
	p := Default()
	p.CacheEnabled = true
	p.TTL = ttl
	p.MaxEntries = maxEntries
	return p.WithDefaults()
}

// WithDefaults returns a copy of p with zero-valued fields replaced by their
// defaults. RetryBackoff is only defaulted when retries are configured.
func (p Policy) WithDefaults() Policy {
	if p.TTL <= 0 {
		p.TTL = DefaultTTL
	}
	if p.MaxEntries <= 0 {
		p.MaxEntries = DefaultMaxEntries
	}
	if p.RetryMaxAttempts <= 0 {
		p.RetryMaxAttempts = DefaultRetryMaxAttempts
	}
	if p.RetryBackoff == 0 && p.RetryMaxAttempts > 1 {
		p.RetryBackoff = DefaultRetryBackoff
	}
	if p.CircuitFailureThreshold <= 0 {
		p.CircuitFailureThreshold = DefaultCircuitFailureThreshold
	}
	if p.CircuitOpenDuration <= 0 {
		p.CircuitOpenDuration = DefaultCircuitOpenDuration
	}
	if p.LogLevel == "" {
		p.LogLevel = DefaultLogLevel
	}
	return p
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks that every field is usable. It does not apply defaults.
func (p Policy) Validate() error {
	if p.CacheEnabled {
		if p.TTL <= 0 {
			return ErrInvalidTTL
		}
		if p.MaxEntries <= 0 {
			return ErrInvalidMaxEntries
		}
	}
	if p.RetryMaxAttempts < 1 {
		return ErrInvalidRetryAttempts
	}
	if p.RetryBackoff < 0 {
		return ErrInvalidRetryBackoff
	}
	if p.CircuitFailureThreshold < 1 {
		return ErrInvalidFailureThreshold
	}
	if p.CircuitOpenDuration <= 0 {
		return ErrInvalidOpenDuration
	}
	if !validLogLevels[p.LogLevel] {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, p.LogLevel)
	}
	if p.AttemptTimeout < 0 {
		return ErrInvalidAttemptTimeout
	}
	if p.MaxConcurrent < 0 {
		return ErrInvalidMaxConcurrent
	}
	return nil
}
