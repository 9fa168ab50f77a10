package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// MaxKeyLength is the maximum allowed length for a rendered cache key.
const MaxKeyLength = 512

// Sentinel errors for cache operations.
var (
	ErrNilCache   = errors.New("cache: cache is nil")
	ErrInvalidKey = errors.New("cache: key is invalid")
	ErrKeyTooLong = errors.New("cache: key exceeds max length")
	ErrClosed     = errors.New("cache: cache is closed")
	ErrUnkeyable  = errors.New("cache: argument cannot be keyed")
)

// Key identifies one invocation of one operation.
//
// Partition is the operation identity and Digest is derived from the
// invocation arguments. Two invocations with equal arguments produce equal
// keys.
type Key struct {
	Partition string
	Digest    string
}

// String renders the key as <partition>:<digest>.
func (k Key) String() string {
	return k.Partition + ":" + k.Digest
}

// Cache is the interface for caching operation results.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: methods should honor cancellation/deadlines where applicable.
// - Errors: Get never errors; it returns (nil, false) on miss or expiry.
type Cache interface {
	// Get retrieves a cached value. Returns (nil, false) on miss.
	Get(ctx context.Context, key Key) (any, bool)

	// Set stores a value with the given TTL. TTL<=0 means no caching.
	Set(ctx context.Context, key Key, value any, ttl time.Duration) error

	// Delete removes a cached value. Idempotent - no error on miss.
	Delete(ctx context.Context, key Key) error
}

// Bounded is implemented by caches that cap the number of entries per
// partition.
type Bounded interface {
	SetLimit(partition string, maxEntries int)
}

// Purger is implemented by caches that can drop a whole partition.
type Purger interface {
	Purge(ctx context.Context, partition string) error
}

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key Key) error {
	if strings.TrimSpace(key.Partition) == "" {
		return ErrInvalidKey
	}
	if len(key.Partition)+len(key.Digest)+1 > MaxKeyLength {
		return ErrKeyTooLong
	}
	// Reject keys with newlines or carriage returns
	if strings.ContainsAny(key.Partition, "\n\r") || strings.ContainsAny(key.Digest, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}
