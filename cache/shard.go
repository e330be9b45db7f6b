package cache

import (
	"sync"

	"github.com/IvanBrykalov/maprender/internal/util"
	"github.com/IvanBrykalov/maprender/policy"
)

// node is one entry, linked into its shard's recency list.
type node[K comparable, V any] struct {
	key K
	val V

	prev *node[K, V]
	next *node[K, V]

	cost int32
}

// Key implements policy.Node.
func (n *node[K, V]) Key() K { return n.key }

// Value implements policy.Node. Only dereference under the shard lock.
func (n *node[K, V]) Value() *V { return &n.val }

// shard is an independent partition with its own lock, map and intrusive
// list (head=MRU, tail=LRU).
type shard[K comparable, V any] struct {
	// ---- guarded by mu ----
	mu      sync.RWMutex
	m       map[K]*node[K, V]
	head    *node[K, V]
	tail    *node[K, V]
	len     int
	cost    int64
	cap     int
	maxCost int64
	closed  bool

	pol policy.ShardPolicy[K, V]
	opt Options[K, V]

	_      util.CacheLinePad
	hits   util.PaddedAtomicInt64
	misses util.PaddedAtomicInt64
	evicts util.PaddedAtomicUint64
}

func newShard[K comparable, V any](capacity int, opt Options[K, V]) *shard[K, V] {
	s := &shard[K, V]{
		m:   make(map[K]*node[K, V], capacity),
		cap: capacity,
		opt: opt,
	}
	if opt.MaxCost > 0 {
		s.maxCost = (opt.MaxCost + int64(opt.Shards) - 1) / int64(opt.Shards)
	}
	s.pol = opt.Policy.New(shardHooks[K, V]{s: s})
	return s
}

// Add inserts a new entry; false if k is already resident.
func (s *shard[K, V]) Add(k K, v V, cost int32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.m[k]; exists || s.closed {
		return false
	}
	s.admitLocked(&node[K, V]{key: k, val: v, cost: cost})
	return true
}

// Set inserts or replaces an entry and promotes it.
func (s *shard[K, V]) Set(k K, v V, cost int32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		if cb := s.opt.OnEvict; cb != nil {
			cb(k, v, EvictRejected)
		}
		return
	}

	if n, ok := s.m[k]; ok {
		old := n.val
		s.cost += int64(cost) - int64(n.cost)
		n.val = v
		n.cost = cost
		s.pol.OnUpdate(n)
		if cb := s.opt.OnEvict; cb != nil {
			cb(k, old, EvictReplaced)
		}
		s.enforceLimitsLocked()
		return
	}
	s.admitLocked(&node[K, V]{key: k, val: v, cost: cost})
}

func (s *shard[K, V]) admitLocked(n *node[K, V]) {
	s.m[n.key] = n
	if ev := s.pol.OnAdd(n); ev != nil {
		s.evictNode(ev.(*node[K, V]), EvictPolicy)
	}
	s.enforceLimitsLocked()
}

// Get returns the value; promote controls whether the policy sees a hit.
func (s *shard[K, V]) Get(k K, promote bool) (V, bool) {
	if !promote {
		s.mu.RLock()
		n, ok := s.m[k]
		var v V
		if ok {
			v = n.val
			if h := s.opt.OnHit; h != nil {
				h(k, v)
			}
		}
		s.mu.RUnlock()
		return v, ok
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.m[k]
	if !ok {
		s.misses.Add(1)
		s.opt.Metrics.Miss()
		var zero V
		return zero, false
	}
	s.pol.OnGet(n)
	s.hits.Add(1)
	s.opt.Metrics.Hit()
	if h := s.opt.OnHit; h != nil {
		h(k, n.val)
	}
	return n.val, true
}

func (s *shard[K, V]) Contains(k K) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.m[k]
	return ok
}

// Remove deletes k; reported to OnEvict but not counted as an eviction.
func (s *shard[K, V]) Remove(k K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.m[k]
	if !ok {
		return false
	}
	s.dropLocked(n, EvictRemoved)
	s.opt.Metrics.Size(s.len, s.cost)
	return true
}

// Purge drops every entry, LRU first.
func (s *shard[K, V]) Purge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked()
}

// Close purges and turns later writes away under the same lock.
func (s *shard[K, V]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.purgeLocked()
}

func (s *shard[K, V]) purgeLocked() {
	for s.tail != nil {
		s.dropLocked(s.tail, EvictPurged)
	}
	s.opt.Metrics.Size(s.len, s.cost)
}

func (s *shard[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.len
}

// -------------------- internals (mu held) --------------------

func (s *shard[K, V]) insertFront(n *node[K, V]) {
	n.prev = nil
	n.next = s.head
	if s.head != nil {
		s.head.prev = n
	}
	s.head = n
	if s.tail == nil {
		s.tail = n
	}
	s.len++
	s.cost += int64(n.cost)
}

func (s *shard[K, V]) moveToFront(n *node[K, V]) {
	if n == s.head {
		return
	}
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if s.tail == n {
		s.tail = n.prev
	}
	n.prev = nil
	n.next = s.head
	if s.head != nil {
		s.head.prev = n
	}
	s.head = n
	if s.tail == nil {
		s.tail = n
	}
}

func (s *shard[K, V]) removeNode(n *node[K, V]) {
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if s.head == n {
		s.head = n.next
	}
	if s.tail == n {
		s.tail = n.prev
	}
	n.prev, n.next = nil, nil
	s.len--
	s.cost -= int64(n.cost)
	if s.cost < 0 {
		s.cost = 0
	}
}

func (s *shard[K, V]) evictable(n *node[K, V]) bool {
	return s.opt.Pinned == nil || !s.opt.Pinned(n.key)
}

// dropLocked unlinks n, forgets it and notifies OnEvict.
func (s *shard[K, V]) dropLocked(n *node[K, V], reason EvictReason) {
	s.pol.OnRemove(n)
	s.removeNode(n)
	delete(s.m, n.key)
	if cb := s.opt.OnEvict; cb != nil {
		cb(n.key, n.val, reason)
	}
}

func (s *shard[K, V]) evictNode(n *node[K, V], reason EvictReason) {
	s.dropLocked(n, reason)
	s.evicts.Add(1)
	s.opt.Metrics.Evict(reason)
}

// victimLocked returns the least recently used evictable node.
func (s *shard[K, V]) victimLocked() *node[K, V] {
	for n := s.tail; n != nil; n = n.prev {
		if s.evictable(n) {
			return n
		}
	}
	return nil
}

// enforceLimitsLocked evicts until count and cost limits hold or only
// pinned entries remain.
func (s *shard[K, V]) enforceLimitsLocked() {
	for s.len > s.cap {
		v := s.victimLocked()
		if v == nil {
			break
		}
		s.evictNode(v, EvictPolicy)
	}
	if s.maxCost > 0 {
		for s.cost > s.maxCost {
			v := s.victimLocked()
			if v == nil {
				break
			}
			s.evictNode(v, EvictCapacity)
		}
	}
	s.opt.Metrics.Size(s.len, s.cost)
}

// -------------------- policy hooks --------------------

type shardHooks[K comparable, V any] struct{ s *shard[K, V] }

func (h shardHooks[K, V]) MoveToFront(x policy.Node[K, V]) { h.s.moveToFront(x.(*node[K, V])) }
func (h shardHooks[K, V]) PushFront(x policy.Node[K, V])   { h.s.insertFront(x.(*node[K, V])) }
func (h shardHooks[K, V]) Remove(x policy.Node[K, V])      { h.s.removeNode(x.(*node[K, V])) }
func (h shardHooks[K, V]) Back() policy.Node[K, V] {
	if h.s.tail == nil {
		return nil
	}
	return h.s.tail
}
func (h shardHooks[K, V]) Len() int { return h.s.len }
func (h shardHooks[K, V]) Evictable(x policy.Node[K, V]) bool {
	return h.s.evictable(x.(*node[K, V]))
}
