package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/maypok86/otter/v2"
	"github.com/puzpuzpuz/xsync/v3"
)

// otterEntry wraps a cached value with its expiration time.
type otterEntry struct {
	value     any
	expiresAt time.Time
}

// OtterCache is a partitioned cache backed by one otter W-TinyLFU cache per
// partition.
//
// Partition bounds are approximate: otter applies writes asynchronously and
// picks eviction victims by frequency, not insertion order. Use MemoryCache
// where exact FIFO bounds matter.
type OtterCache struct {
	config     Config
	partitions *xsync.MapOf[string, *otter.Cache[string, otterEntry]]
	limits     *xsync.MapOf[string, int]
	now        func() time.Time
}

// NewOtterCache creates an otter-backed cache with the given config.
func NewOtterCache(config Config) *OtterCache {
	return &OtterCache{
		config:     config.withDefaults(),
		partitions: xsync.NewMapOf[string, *otter.Cache[string, otterEntry]](),
		limits:     xsync.NewMapOf[string, int](),
		now:        time.Now,
	}
}

// SetLimit bounds a partition. otter caches cannot be resized, so an
// existing partition is dropped and rebuilt lazily with the new bound.
func (c *OtterCache) SetLimit(name string, maxEntries int) {
	if maxEntries <= 0 {
		maxEntries = c.config.DefaultMaxEntries
	}
	if prev, ok := c.limits.Load(name); ok && prev == maxEntries {
		return
	}
	c.limits.Store(name, maxEntries)
	if old, ok := c.partitions.LoadAndDelete(name); ok {
		old.InvalidateAll()
	}
}

// Get retrieves a value if present and not expired.
func (c *OtterCache) Get(_ context.Context, key Key) (any, bool) {
	p, ok := c.partitions.Load(key.Partition)
	if !ok {
		return nil, false
	}

	e, ok := p.GetIfPresent(key.Digest)
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		p.Invalidate(key.Digest)
		return nil, false
	}
	return e.value, true
}

// Set stores a value with per-entry TTL.
func (c *OtterCache) Set(_ context.Context, key Key, value any, ttl time.Duration) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	ttl = c.config.EffectiveTTL(ttl)
	if ttl <= 0 {
		return nil
	}

	p, err := c.partition(key.Partition)
	if err != nil {
		return err
	}
	p.Set(key.Digest, otterEntry{
		value:     value,
		expiresAt: c.now().Add(ttl),
	})
	return nil
}

// Delete removes a value from the cache.
func (c *OtterCache) Delete(_ context.Context, key Key) error {
	if p, ok := c.partitions.Load(key.Partition); ok {
		p.Invalidate(key.Digest)
	}
	return nil
}

// Purge removes every value of a partition.
func (c *OtterCache) Purge(_ context.Context, name string) error {
	if p, ok := c.partitions.Load(name); ok {
		p.InvalidateAll()
	}
	return nil
}

// Close drops every partition.
func (c *OtterCache) Close() error {
	c.partitions.Range(func(name string, p *otter.Cache[string, otterEntry]) bool {
		p.InvalidateAll()
		c.partitions.Delete(name)
		return true
	})
	return nil
}

func (c *OtterCache) partition(name string) (*otter.Cache[string, otterEntry], error) {
	if p, ok := c.partitions.Load(name); ok {
		return p, nil
	}

	limit, ok := c.limits.Load(name)
	if !ok {
		limit = c.config.DefaultMaxEntries
	}

	opts := &otter.Options[string, otterEntry]{
		MaximumSize: limit,
	}
	if c.config.MaxTTL > 0 {
		opts.ExpiryCalculator = otter.ExpiryWriting[string, otterEntry](c.config.MaxTTL)
	}

	created, err := otter.New[string, otterEntry](opts)
	if err != nil {
		return nil, fmt.Errorf("cache: create partition %q: %w", name, err)
	}

	p, _ := c.partitions.LoadOrStore(name, created)
	return p, nil
}

// Ensure OtterCache implements Cache, Bounded and Purger
var (
	_ Cache   = (*OtterCache)(nil)
	_ Bounded = (*OtterCache)(nil)
	_ Purger  = (*OtterCache)(nil)
)
