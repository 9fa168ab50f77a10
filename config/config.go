// Package config loads the interceptops YAML configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/jonwraymond/interceptops/cache"
	"github.com/jonwraymond/interceptops/observe"
	"github.com/jonwraymond/interceptops/policy"
)

// Errors returned while loading or validating a configuration.
var (
	ErrMissingEnv       = errors.New("config: missing required environment variables")
	ErrMissingService   = errors.New("config: service is required")
	ErrInvalidBackend   = errors.New("config: invalid cache backend")
	ErrInvalidCache     = errors.New("config: invalid cache settings")
	ErrInvalidOperation = errors.New("config: invalid operation policy")
)

// Cache backends.
const (
	BackendMemory = "memory"
	BackendOtter  = "otter"
)

// Config is the top-level configuration.
type Config struct {
	Service     string         `yaml:"service"`
	Version     string         `yaml:"version"`
	Observe     ObserveSection `yaml:"observe"`
	Cache       CacheConfig    `yaml:"cache"`
	MetricsAddr string         `yaml:"metrics_addr"` // empty disables the HTTP endpoint

	// Defaults is the policy every operation starts from.
	Defaults policy.Policy `yaml:"defaults"`

	// Operations holds per-operation policy overrides. Only the fields set
	// in an entry replace the defaults.
	Operations map[string]yaml.Node `yaml:"operations"`
}

// ObserveSection configures telemetry.
type ObserveSection struct {
	Tracing observe.TracingConfig `yaml:"tracing"`
	Metrics observe.MetricsConfig `yaml:"metrics"`
	Logging observe.LoggingConfig `yaml:"logging"`
}

// CacheConfig selects and sizes the cache backend.
//
// The memory backend holds each operation to exactly max_entries and evicts
// the oldest insertion first. The otter backend bounds operations only
// approximately and evicts by access frequency, so selecting it requires
// approximate_bounds: true.
type CacheConfig struct {
	Backend           string        `yaml:"backend"` // memory|otter
	ApproximateBounds bool          `yaml:"approximate_bounds"`
	DefaultMaxEntries int           `yaml:"default_max_entries"`
	MaxTTL            time.Duration `yaml:"max_ttl"` // ceiling on policy TTLs, zero means none
	CleanupInterval   time.Duration `yaml:"cleanup_interval"`
}

// Default returns the configuration used for fields a file leaves out.
func Default() *Config {
	return &Config{
		Service: "interceptops",
		Observe: ObserveSection{
			Tracing: observe.TracingConfig{Exporter: "none", SamplePct: 1.0},
			Metrics: observe.MetricsConfig{Exporter: "none"},
			Logging: observe.LoggingConfig{Enabled: true, Level: "info"},
		},
		Cache: CacheConfig{
			Backend:           BackendMemory,
			DefaultMaxEntries: 1000,
		},
		Defaults: policy.Default(),
	}
}

// Load reads, expands and parses a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse expands environment variables in data and decodes it over the
// defaults. Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	expanded, err := ExpandEnvStrict(string(data))
	if err != nil {
		return nil, err
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration, including every operation policy.
func (c *Config) Validate() error {
	if c.Service == "" {
		return ErrMissingService
	}
	oc := c.ObserveConfig()
	if err := oc.Validate(); err != nil {
		return fmt.Errorf("config: observe: %w", err)
	}

	if !slices.Contains([]string{BackendMemory, BackendOtter}, c.Cache.Backend) {
		return fmt.Errorf("%w: %q", ErrInvalidBackend, c.Cache.Backend)
	}
	if c.Cache.Backend == BackendOtter && !c.Cache.ApproximateBounds {
		return fmt.Errorf("%w: otter bounds are approximate and not FIFO, set approximate_bounds: true to accept", ErrInvalidBackend)
	}
	if c.Cache.DefaultMaxEntries < 0 || c.Cache.MaxTTL < 0 || c.Cache.CleanupInterval < 0 {
		return fmt.Errorf("%w: values must not be negative", ErrInvalidCache)
	}

	if err := c.Defaults.WithDefaults().Validate(); err != nil {
		return fmt.Errorf("config: defaults: %w", err)
	}
	for _, id := range c.OperationIDs() {
		if _, err := c.PolicyFor(id); err != nil {
			return err
		}
	}
	return nil
}

// PolicyFor returns the policy for an operation: the defaults overlaid with
// the operation's entry, normalized with WithDefaults. Operations without an
// entry get the defaults.
func (c *Config) PolicyFor(id string) (policy.Policy, error) {
	p := c.Defaults
	if node, ok := c.Operations[id]; ok {
		if err := decodeStrict(&node, &p); err != nil {
			return policy.Policy{}, fmt.Errorf("%w %q: %w", ErrInvalidOperation, id, err)
		}
	}

	p = p.WithDefaults()
	if err := p.Validate(); err != nil {
		return policy.Policy{}, fmt.Errorf("%w %q: %w", ErrInvalidOperation, id, err)
	}
	return p, nil
}

// OperationIDs returns the IDs with an entry under operations, sorted.
func (c *Config) OperationIDs() []string {
	ids := make([]string, 0, len(c.Operations))
	for id := range c.Operations {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// ObserveConfig returns the observe configuration for this service.
func (c *Config) ObserveConfig() observe.Config {
	return observe.Config{
		ServiceName: c.Service,
		Version:     c.Version,
		Tracing:     c.Observe.Tracing,
		Metrics:     c.Observe.Metrics,
		Logging:     c.Observe.Logging,
	}
}

// NewCache builds the configured cache backend.
func (c CacheConfig) NewCache() (cache.Cache, error) {
	cfg := c.cacheConfig()
	switch c.Backend {
	case BackendMemory, "":
		return cache.NewMemoryCache(cfg), nil
	case BackendOtter:
		return cache.NewOtterCache(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidBackend, c.Backend)
	}
}

func (c CacheConfig) cacheConfig() cache.Config {
	return cache.Config{
		DefaultMaxEntries: c.DefaultMaxEntries,
		MaxTTL:            c.MaxTTL,
		CleanupInterval:   c.CleanupInterval,
	}
}

// decodeStrict decodes node into out, rejecting unknown fields. yaml.Node
// has no strict mode of its own, so the node is re-encoded first.
func decodeStrict(node *yaml.Node, out any) error {
	if node.Kind == 0 || node.ShortTag() == "!!null" {
		return nil
	}
	data, err := yaml.Marshal(node)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(out)
}
