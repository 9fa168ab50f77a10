// Package policy defines the per-operation configuration consumed by the
// interception pipeline: caching, retry, circuit breaking and log verbosity.
//
// A Policy is a plain value. It is fixed when an operation is registered and
// is never mutated afterwards; callers that need a variation build a new one.
package policy
