// Package lru implements the LRU eviction policy.
package lru

import "github.com/IvanBrykalov/maprender/policy"

// lru is plain move-to-front. It never proposes evictions itself; the shard
// trims from the LRU end, skipping pinned nodes.
type lru[K comparable, V any] struct {
	h policy.Hooks[K, V]
}

type lruPolicy[K comparable, V any] struct{}

// New returns a Policy factory that constructs per-shard LRU instances.
func New[K comparable, V any]() policy.Policy[K, V] { return lruPolicy[K, V]{} }

func (lruPolicy[K, V]) New(h policy.Hooks[K, V]) policy.ShardPolicy[K, V] {
	return &lru[K, V]{h: h}
}

func (p *lru[K, V]) OnAdd(n policy.Node[K, V]) (evict policy.Node[K, V]) {
	p.h.PushFront(n)
	return nil
}

func (p *lru[K, V]) OnGet(n policy.Node[K, V])    { p.h.MoveToFront(n) }
func (p *lru[K, V]) OnUpdate(n policy.Node[K, V]) { p.h.MoveToFront(n) }
func (p *lru[K, V]) OnRemove(policy.Node[K, V])   {}
