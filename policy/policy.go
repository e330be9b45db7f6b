// Package policy defines the contract between a cache shard and its
// eviction strategy.
package policy

// Node is the minimal view of a cache entry a policy needs.
type Node[K comparable, V any] interface {
	Key() K
	Value() *V
}

// Hooks expose the shard's MRU/LRU list to a policy in O(1) steps.
// Every call happens under the shard lock; the shard owns the key map.
type Hooks[K comparable, V any] interface {
	// MoveToFront promotes the node to MRU.
	MoveToFront(Node[K, V])
	// PushFront inserts the node at MRU.
	PushFront(Node[K, V])
	// Remove detaches the node from the list.
	Remove(Node[K, V])
	// Back returns the LRU node, or nil when empty.
	Back() Node[K, V]
	// Len returns the number of resident nodes.
	Len() int
	// Evictable reports whether the node may be evicted right now.
	// Pinned entries (e.g. tiles of the current working set) are not.
	Evictable(Node[K, V]) bool
}

// ShardPolicy is a shard-local policy instance. All methods run under the
// shard lock.
//
//   - OnAdd may return an eviction candidate; it must be Evictable. The shard
//     evicts it and then calls OnRemove for it.
//   - OnGet/OnUpdate usually promote the node.
//   - OnRemove lets the policy drop internal state for the node.
type ShardPolicy[K comparable, V any] interface {
	OnAdd(Node[K, V]) (evict Node[K, V])
	OnGet(Node[K, V])
	OnUpdate(Node[K, V])
	OnRemove(Node[K, V])
}

// Policy creates shard-local policy instances bound to shard hooks.
type Policy[K comparable, V any] interface {
	New(Hooks[K, V]) ShardPolicy[K, V]
}
