// Package cache provides the advisory result cache used by the interception
// pipeline.
//
// It provides deterministic invocation keys (SHA-256 over a type-tagged
// canonical rendering of an argument list), a Cache interface, a partitioned in-memory
// implementation with per-partition FIFO bounds and lazy TTL expiry, and an
// otter-backed implementation for high-cardinality partitions.
//
// A partition is one operation. Bounds, purges and locks are all scoped to a
// partition so unrelated operations never contend.
package cache
