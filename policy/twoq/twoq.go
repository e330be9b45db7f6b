// Package twoq implements the 2Q eviction policy. It resists scans, which
// suits tile caches during fast pans: tiles seen once stay in A1in and are
// evicted before tiles that were revisited.
package twoq

import (
	"container/list"

	"github.com/IvanBrykalov/maprender/policy"
)

// twoQ keeps two resident classes:
//   - A1in: first-time entries, tracked in inList (MRU front, LRU back)
//   - Am:   entries hit at least once; ordering lives in the shard list
//
// and a ghost list A1out of keys recently evicted from A1in. A key found in
// A1out on admission skips A1in.
//
// All methods run under the shard lock.
type twoQ[K comparable, V any] struct {
	h policy.Hooks[K, V]

	capIn    int
	capGhost int

	inList *list.List
	inIdx  map[policy.Node[K, V]]*list.Element

	ghostList *list.List
	ghostIdx  map[K]*list.Element
}

// New constructs a 2Q policy factory. capIn and capGhost are per shard;
// about 25% and 50% of the shard capacity are reasonable starting points.
func New[K comparable, V any](capIn, capGhost int) policy.Policy[K, V] {
	if capIn < 1 {
		capIn = 1
	}
	if capGhost < 1 {
		capGhost = 1
	}
	return twoQPolicy[K, V]{capIn: capIn, capGhost: capGhost}
}

type twoQPolicy[K comparable, V any] struct {
	capIn    int
	capGhost int
}

func (p twoQPolicy[K, V]) New(h policy.Hooks[K, V]) policy.ShardPolicy[K, V] {
	return &twoQ[K, V]{
		h:         h,
		capIn:     p.capIn,
		capGhost:  p.capGhost,
		inList:    list.New(),
		inIdx:     make(map[policy.Node[K, V]]*list.Element),
		ghostList: list.New(),
		ghostIdx:  make(map[K]*list.Element),
	}
}

// OnAdd admits n. Ghost hits go straight to Am; everything else enters A1in.
// When A1in overflows, its least recent evictable node is proposed.
func (q *twoQ[K, V]) OnAdd(n policy.Node[K, V]) (evict policy.Node[K, V]) {
	k := n.Key()
	if ge, ok := q.ghostIdx[k]; ok {
		q.ghostList.Remove(ge)
		delete(q.ghostIdx, k)
		q.h.PushFront(n)
		return nil
	}

	q.h.PushFront(n)
	q.inIdx[n] = q.inList.PushFront(n)

	if q.inList.Len() <= q.capIn {
		return nil
	}
	for el := q.inList.Back(); el != nil; el = el.Prev() {
		cand := el.Value.(policy.Node[K, V])
		if cand != n && q.h.Evictable(cand) {
			return cand
		}
	}
	return nil
}

// OnGet promotes an A1in node to Am and moves it to MRU.
func (q *twoQ[K, V]) OnGet(n policy.Node[K, V]) {
	if el, ok := q.inIdx[n]; ok {
		q.inList.Remove(el)
		delete(q.inIdx, n)
	}
	q.h.MoveToFront(n)
}

func (q *twoQ[K, V]) OnUpdate(n policy.Node[K, V]) { q.OnGet(n) }

// OnRemove remembers keys leaving A1in as ghosts. Am removals leave no ghost.
func (q *twoQ[K, V]) OnRemove(n policy.Node[K, V]) {
	el, ok := q.inIdx[n]
	if !ok {
		return
	}
	q.inList.Remove(el)
	delete(q.inIdx, n)

	k := n.Key()
	if old := q.ghostIdx[k]; old != nil {
		q.ghostList.Remove(old)
	}
	q.ghostIdx[k] = q.ghostList.PushFront(k)

	for q.ghostList.Len() > q.capGhost {
		tail := q.ghostList.Back()
		delete(q.ghostIdx, tail.Value.(K))
		q.ghostList.Remove(tail)
	}
}
