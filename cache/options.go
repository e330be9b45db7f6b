package cache

import (
	"context"

	"github.com/IvanBrykalov/maprender/policy"
)

// EvictReason explains why an entry left the cache.
type EvictReason int

const (
	// EvictPolicy: chosen by the eviction policy (LRU tail, 2Q A1in overflow).
	EvictPolicy EvictReason = iota
	// EvictCapacity: removed to satisfy the MaxCost budget.
	EvictCapacity
	// EvictReplaced: value overwritten by Set.
	EvictReplaced
	// EvictRemoved: explicit Remove.
	EvictRemoved
	// EvictPurged: Purge or Close.
	EvictPurged
	// EvictRejected: value passed to Set after Close; it never entered the
	// cache.
	EvictRejected
)

func (r EvictReason) String() string {
	switch r {
	case EvictPolicy:
		return "policy"
	case EvictCapacity:
		return "capacity"
	case EvictReplaced:
		return "replaced"
	case EvictRemoved:
		return "removed"
	case EvictRejected:
		return "rejected"
	default:
		return "purged"
	}
}

// Metrics receives cache observability signals. NoopMetrics is the default.
// Evict is reported only for EvictPolicy and EvictCapacity.
type Metrics interface {
	Hit()
	Miss()
	Evict(reason EvictReason)
	Size(entries int, cost int64)
}

// NoopMetrics discards all signals.
type NoopMetrics struct{}

func (NoopMetrics) Hit()                         {}
func (NoopMetrics) Miss()                        {}
func (NoopMetrics) Evict(EvictReason)            {}
func (NoopMetrics) Size(entries int, cost int64) {}

var _ Metrics = NoopMetrics{}

// Options configures a cache. Zero values are safe; New applies defaults:
//   - nil Policy   => LRU
//   - Shards <= 0  => auto (rounded up to power of two)
//   - nil Hasher   => util.Fnv64a
//   - nil Metrics  => NoopMetrics
type Options[K comparable, V any] struct {
	// Capacity is the entry count limit. Required.
	Capacity int

	// Shards is the number of shards, rounded up to a power of two.
	// Use 1 when a strict global LRU order matters.
	Shards int

	// Policy is the eviction policy; nil means LRU.
	Policy policy.Policy[K, V]

	// Hasher picks the shard for a key. Keys that are neither primitive nor
	// implement Hash64() uint64 need one.
	Hasher func(K) uint64

	// Pinned reports keys that must not be evicted. It is called under the
	// shard lock and must not call back into the cache.
	Pinned func(K) bool

	// Cost and MaxCost enable cost-based limits (e.g. bitmap bytes).
	Cost    func(v V) int
	MaxCost int64

	// Loader fetches a value on miss for GetOrLoad.
	Loader func(ctx context.Context, k K) (V, error)

	// OnHit is called under the shard lock for every value Get or Peek
	// returns, so it can take a reference before any eviction can drop the
	// entry. Values produced by GetOrLoad's Loader do not pass through it.
	OnHit func(k K, v V)

	// OnEvict is called under the shard lock for every entry leaving the
	// cache. Keep it cheap.
	OnEvict func(k K, v V, reason EvictReason)
	Metrics Metrics
}
