package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// MemoryCache is an in-memory cache partitioned by operation.
//
// Each partition keeps its entries in insertion order and evicts the least
// recently inserted entry once its limit is exceeded. Expired entries are
// treated as absent and purged lazily, or by the background sweep when
// Config.CleanupInterval is set.
type MemoryCache struct {
	config     Config
	partitions *xsync.MapOf[string, *partition]
	limits     *xsync.MapOf[string, int]
	seq        atomic.Uint64
	now        func() time.Time

	hits        atomic.Int64
	misses      atomic.Int64
	evictions   atomic.Int64
	expirations atomic.Int64

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

type partition struct {
	mu      sync.RWMutex
	limit   int
	entries map[string]*list.Element
	order   *list.List // front is the oldest insertion
}

type cacheEntry struct {
	digest         string
	value          any
	expiresAt      time.Time
	insertionOrder uint64
}

// NewMemoryCache creates a new in-memory cache with the given config.
func NewMemoryCache(config Config) *MemoryCache {
	c := &MemoryCache{
		config:     config.withDefaults(),
		partitions: xsync.NewMapOf[string, *partition](),
		limits:     xsync.NewMapOf[string, int](),
		now:        time.Now,
	}

	if c.config.CleanupInterval > 0 {
		c.stop = make(chan struct{})
		c.done = make(chan struct{})
		go c.sweepLoop(c.config.CleanupInterval)
	}

	return c
}

// SetLimit bounds the number of entries kept for a partition. An existing
// partition is trimmed immediately, oldest entries first.
func (c *MemoryCache) SetLimit(name string, maxEntries int) {
	if maxEntries <= 0 {
		maxEntries = c.config.DefaultMaxEntries
	}
	c.limits.Store(name, maxEntries)

	if p, ok := c.partitions.Load(name); ok {
		p.mu.Lock()
		p.limit = maxEntries
		c.evictOverflowLocked(p)
		p.mu.Unlock()
	}
}

// Get retrieves a value from the cache. Returns (nil, false) on miss or expiry.
func (c *MemoryCache) Get(_ context.Context, key Key) (any, bool) {
	p, ok := c.partitions.Load(key.Partition)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	p.mu.RLock()
	el, ok := p.entries[key.Digest]
	p.mu.RUnlock()

	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	// Entries are never modified after insertion.
	entry := el.Value.(*cacheEntry)
	if !c.now().Before(entry.expiresAt) {
		p.mu.Lock()
		if current, ok := p.entries[key.Digest]; ok && current == el {
			c.removeLocked(p, el)
			c.expirations.Add(1)
		}
		p.mu.Unlock()
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return entry.value, true
}

// Set stores a value with the given TTL. TTL<=0 means the value is not cached.
// Writing an existing key replaces it and counts as a new insertion.
func (c *MemoryCache) Set(_ context.Context, key Key, value any, ttl time.Duration) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	ttl = c.config.EffectiveTTL(ttl)
	if ttl <= 0 {
		return nil
	}
	if c.closed() {
		return ErrClosed
	}

	entry := &cacheEntry{
		digest:         key.Digest,
		value:          value,
		expiresAt:      c.now().Add(ttl),
		insertionOrder: c.seq.Add(1),
	}

	p := c.partition(key.Partition)
	p.mu.Lock()
	if old, ok := p.entries[key.Digest]; ok {
		c.removeLocked(p, old)
	}
	p.entries[key.Digest] = p.order.PushBack(entry)
	c.evictOverflowLocked(p)
	p.mu.Unlock()

	return nil
}

// Delete removes a value from the cache. Idempotent - no error on miss.
func (c *MemoryCache) Delete(_ context.Context, key Key) error {
	p, ok := c.partitions.Load(key.Partition)
	if !ok {
		return nil
	}

	p.mu.Lock()
	if el, ok := p.entries[key.Digest]; ok {
		c.removeLocked(p, el)
	}
	p.mu.Unlock()
	return nil
}

// Purge removes every entry of a partition. The partition limit is kept.
func (c *MemoryCache) Purge(_ context.Context, name string) error {
	p, ok := c.partitions.Load(name)
	if !ok {
		return nil
	}

	p.mu.Lock()
	p.entries = make(map[string]*list.Element)
	p.order.Init()
	p.mu.Unlock()
	return nil
}

// Len returns the number of entries held for a partition, expired or not.
func (c *MemoryCache) Len(name string) int {
	p, ok := c.partitions.Load(name)
	if !ok {
		return 0
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.order.Len()
}

// Stats returns a snapshot of the cache counters.
func (c *MemoryCache) Stats() Stats {
	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Evictions:   c.evictions.Load(),
		Expirations: c.expirations.Load(),
	}
}

// Close stops the background sweep. It is safe to call more than once.
func (c *MemoryCache) Close() error {
	c.closeOnce.Do(func() {
		if c.stop != nil {
			close(c.stop)
			<-c.done
		}
	})
	return nil
}

func (c *MemoryCache) closed() bool {
	if c.stop == nil {
		return false
	}
	select {
	case <-c.stop:
		return true
	default:
		return false
	}
}

func (c *MemoryCache) partition(name string) *partition {
	p, _ := c.partitions.LoadOrCompute(name, func() *partition {
		limit, ok := c.limits.Load(name)
		if !ok {
			limit = c.config.DefaultMaxEntries
		}
		return &partition{
			limit:   limit,
			entries: make(map[string]*list.Element),
			order:   list.New(),
		}
	})
	return p
}

func (c *MemoryCache) evictOverflowLocked(p *partition) {
	for p.order.Len() > p.limit {
		c.removeLocked(p, p.order.Front())
		c.evictions.Add(1)
	}
}

func (c *MemoryCache) removeLocked(p *partition, el *list.Element) {
	entry := el.Value.(*cacheEntry)
	delete(p.entries, entry.digest)
	p.order.Remove(el)
}

func (c *MemoryCache) sweepLoop(interval time.Duration) {
	defer close(c.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// sweep drops expired entries from every partition, one partition lock at a
// time.
func (c *MemoryCache) sweep() {
	now := c.now()
	c.partitions.Range(func(_ string, p *partition) bool {
		p.mu.Lock()
		for el := p.order.Front(); el != nil; {
			next := el.Next()
			if !now.Before(el.Value.(*cacheEntry).expiresAt) {
				c.removeLocked(p, el)
				c.expirations.Add(1)
			}
			el = next
		}
		p.mu.Unlock()
		return true
	})
}

// Ensure MemoryCache implements Cache, Bounded and Purger
var (
	_ Cache   = (*MemoryCache)(nil)
	_ Bounded = (*MemoryCache)(nil)
	_ Purger  = (*MemoryCache)(nil)
)
