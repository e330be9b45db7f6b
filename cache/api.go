// Package cache is a generic sharded in-memory cache with pluggable eviction
// policies, pinning, cost budgets and singleflight loading.
package cache

import "context"

// Cache is a sharded, in-memory key/value cache.
// All methods are safe for concurrent use by multiple goroutines.
//
// Operations are amortized O(1): a map lookup plus constant-time list
// adjustments under a shard lock. Trimming skips pinned entries, so a shard
// whose entries are all pinned may temporarily exceed its capacity.
type Cache[K comparable, V any] interface {
	// Add inserts k→v only if k is not present. Returns false otherwise.
	Add(k K, v V) bool

	// Set inserts or updates k→v and promotes the entry. A replaced value is
	// reported to OnEvict with EvictReplaced, a value written after Close
	// with EvictRejected.
	Set(k K, v V)

	// Get returns the value for k and promotes it on hit.
	Get(k K) (V, bool)

	// Peek returns the value for k without promoting it.
	Peek(k K) (V, bool)

	// Contains reports whether k is resident, without promoting it.
	Contains(k K) bool

	// Remove deletes k if present. The value is reported to OnEvict with
	// EvictRemoved.
	Remove(k K) bool

	// Len returns the number of resident entries across all shards.
	Len() int

	// Purge removes every entry, reporting each to OnEvict with EvictPurged.
	Purge()

	// Close purges the cache and rejects further writes. Idempotent.
	Close() error

	// GetOrLoad returns the value for k, loading it via Options.Loader on
	// miss. Concurrent loads of the same key are coalesced.
	GetOrLoad(ctx context.Context, k K) (V, error)
}
