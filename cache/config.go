package cache

import "time"

// Config configures a cache backend.
type Config struct {
	// DefaultMaxEntries bounds partitions that have no explicit limit.
	// Default: 1000
	DefaultMaxEntries int

	// MaxTTL is the maximum allowed TTL. Longer TTLs are clamped to this.
	// If zero, no maximum is enforced.
	MaxTTL time.Duration

	// CleanupInterval is how often expired entries are swept in the
	// background. If zero, expired entries are only purged lazily on read.
	CleanupInterval time.Duration
}

// DefaultConfig returns the default cache configuration.
// DefaultMaxEntries: 1000, no TTL ceiling, no background sweep. Entries live
// for exactly the TTL their policy asks for.
func DefaultConfig() Config {
	return Config{
		DefaultMaxEntries: 1000,
	}
}

func (c Config) withDefaults() Config {
	if c.DefaultMaxEntries <= 0 {
		c.DefaultMaxEntries = 1000
	}
	return c
}

// EffectiveTTL returns the TTL to use, clamped to MaxTTL.
// A non-positive ttl yields zero, meaning the value is not cached.
func (c Config) EffectiveTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	if c.MaxTTL > 0 && ttl > c.MaxTTL {
		return c.MaxTTL
	}
	return ttl
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits        int64
	Misses      int64
	Evictions   int64
	Expirations int64
}
