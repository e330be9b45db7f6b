// Package cache provides a generic, sharded in-memory cache with pluggable
// eviction policies (LRU by default), pinned keys that are never evicted,
// cost-based limits, eviction callbacks and singleflight loading.
//
// The render theme uses it for its match-result caches and the tile
// pipeline for its memory tier and file-system index.
package cache

import (
	"context"
	"errors"
	"math"
	"sync/atomic"

	"github.com/IvanBrykalov/maprender/internal/singleflight"
	"github.com/IvanBrykalov/maprender/internal/util"
	"github.com/IvanBrykalov/maprender/policy/lru"
)

// ErrNoLoader is returned by GetOrLoad when Options.Loader is nil.
var ErrNoLoader = errors.New("cache: no Loader provided")

// ErrClosed is returned by GetOrLoad after Close.
var ErrClosed = errors.New("cache: closed")

type cache[K comparable, V any] struct {
	shards []*shard[K, V]
	hash   func(K) uint64
	closed atomic.Bool

	opt Options[K, V]
	sf  singleflight.Group[K, V]
}

// New constructs a cache. It panics if Capacity <= 0.
func New[K comparable, V any](opt Options[K, V]) Cache[K, V] {
	if opt.Capacity <= 0 {
		panic("cache: Capacity must be > 0")
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Policy == nil {
		opt.Policy = lru.New[K, V]()
	}
	if opt.Hasher == nil {
		opt.Hasher = util.Fnv64a[K]
	}

	sh := opt.Shards
	if sh <= 0 {
		sh = util.ReasonableShardCount()
	} else {
		sh = int(util.NextPow2(uint64(sh)))
	}
	if sh > opt.Capacity {
		// more shards than entries would round every shard up to one slot
		sh = int(util.NextPow2(uint64(opt.Capacity)))
		if sh > opt.Capacity {
			sh /= 2
		}
	}
	opt.Shards = sh

	cs := make([]*shard[K, V], sh)
	perShardCap := (opt.Capacity + sh - 1) / sh
	for i := range cs {
		cs[i] = newShard(perShardCap, opt)
	}
	return &cache[K, V]{shards: cs, hash: opt.Hasher, opt: opt}
}

func (c *cache[K, V]) Add(k K, v V) bool {
	if c.closed.Load() {
		return false
	}
	return c.getShard(k).Add(k, v, c.costOf(v))
}

func (c *cache[K, V]) Set(k K, v V) {
	c.getShard(k).Set(k, v, c.costOf(v))
}

func (c *cache[K, V]) Get(k K) (V, bool) {
	if c.closed.Load() {
		var zero V
		return zero, false
	}
	return c.getShard(k).Get(k, true)
}

func (c *cache[K, V]) Peek(k K) (V, bool) {
	if c.closed.Load() {
		var zero V
		return zero, false
	}
	return c.getShard(k).Get(k, false)
}

func (c *cache[K, V]) Contains(k K) bool {
	if c.closed.Load() {
		return false
	}
	return c.getShard(k).Contains(k)
}

func (c *cache[K, V]) Remove(k K) bool {
	if c.closed.Load() {
		return false
	}
	return c.getShard(k).Remove(k)
}

func (c *cache[K, V]) Len() int {
	total := 0
	for _, s := range c.shards {
		total += s.Len()
	}
	return total
}

func (c *cache[K, V]) Purge() {
	for _, s := range c.shards {
		s.Purge()
	}
}

// Close purges all entries so OnEvict can release their resources, then
// turns every later call into a no-op.
func (c *cache[K, V]) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	for _, s := range c.shards {
		s.Close()
	}
	return nil
}

func (c *cache[K, V]) GetOrLoad(ctx context.Context, k K) (V, error) {
	if v, ok := c.Get(k); ok {
		return v, nil
	}
	var zero V
	if c.closed.Load() {
		return zero, ErrClosed
	}
	if c.opt.Loader == nil {
		return zero, ErrNoLoader
	}

	v, err, _ := c.sf.Do(ctx, k, func() (V, error) {
		if v, ok := c.Get(k); ok {
			return v, nil
		}
		v, err := c.opt.Loader(ctx, k)
		if err == nil {
			c.Set(k, v)
		}
		return v, err
	})
	return v, err
}

func (c *cache[K, V]) getShard(k K) *shard[K, V] {
	return c.shards[util.ShardIndex(c.hash(k), len(c.shards))]
}

// costOf computes the entry cost clamped to the int32 range.
func (c *cache[K, V]) costOf(v V) int32 {
	if c.opt.Cost == nil {
		return 0
	}
	iv := c.opt.Cost(v)
	if iv < 0 {
		iv = 0
	}
	if iv > math.MaxInt32 {
		iv = math.MaxInt32
	}
	return int32(iv)
}
