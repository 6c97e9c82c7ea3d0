// Package cache defines the narrow cache capability (C6) consumed by the
// policy, aggregate, and credential domains: get/set/delete/delete-matching
// over opaque byte values, with three contractual properties — optional,
// TTL-bound, best-effort invalidation (spec §4.7, §9).
package cache

import (
	"context"
	"time"
)

// Cache is implemented by every cache backend the core can use, including
// the no-op default used when no cache is configured. No method may return
// an error to the caller: unreachability degrades to a cache-miss, never a
// fault (spec §9: "Polymorphic cache value decoding ... invalid bytes are
// treated as cache-miss, never as corruption of program state").
type Cache interface {
	// Get returns the stored bytes for key and true, or (nil, false) on a
	// miss or any backend error.
	Get(ctx context.Context, key string) ([]byte, bool)
	// Set stores value under key with the given TTL. Failures are swallowed.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	// Delete removes key. Failures are swallowed.
	Delete(ctx context.Context, key string)
	// DeleteMatching removes every key with the given prefix and reports
	// how many were removed. Used only on write paths (spec §4.7).
	DeleteMatching(ctx context.Context, prefix string) int
}

// Key family prefixes used by the core (spec §4.7).
const (
	KeyPrefixPolicy     = "policy:"
	KeyPrefixCredential = "credential:"
	KeyPrefixAggregate  = "agg:"
)
