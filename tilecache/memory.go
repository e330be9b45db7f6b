package tilecache

import (
	"context"
	"sync/atomic"

	"github.com/IvanBrykalov/maprender/cache"
	"github.com/IvanBrykalov/maprender/tile"
)

// MemoryOptions configures a Memory cache. Zero values are safe:
//   - Capacity <= 0 => 64
//   - Shards <= 0   => 1 (strict global LRU order)
//   - MaxBytes <= 0 => no pixel budget
//   - nil Metrics   => cache.NoopMetrics
type MemoryOptions struct {
	Capacity int
	Shards   int
	// MaxBytes bounds the pixel memory held, on top of the entry count.
	MaxBytes int64
	Metrics  cache.Metrics
}

// Memory is the in-memory tier: an LRU over bitmaps whose working set is
// never evicted.
type Memory struct {
	c        cache.Cache[tile.Job, *tile.Bitmap]
	ws       atomic.Pointer[workingSet[tile.Job]]
	capacity int
	dead     atomic.Bool
}

// NewMemory returns an empty memory cache.
func NewMemory(opt MemoryOptions) *Memory {
	if opt.Capacity <= 0 {
		opt.Capacity = 64
	}
	if opt.Shards <= 0 {
		opt.Shards = 1
	}
	m := &Memory{capacity: opt.Capacity}
	m.c = cache.New(cache.Options[tile.Job, *tile.Bitmap]{
		Capacity: opt.Capacity,
		Shards:   opt.Shards,
		Metrics:  opt.Metrics,
		Cost:     (*tile.Bitmap).Bytes,
		MaxCost:  opt.MaxBytes,
		Pinned:   func(j tile.Job) bool { return m.ws.Load().has(j) },
		// borrow under the shard lock so an eviction cannot free the
		// bitmap between lookup and Retain
		OnHit:   func(_ tile.Job, bm *tile.Bitmap) { bm.Retain() },
		OnEvict: func(_ tile.Job, bm *tile.Bitmap, _ cache.EvictReason) { bm.Release() },
	})
	return m
}

func (m *Memory) ContainsKey(job tile.Job) bool { return m.c.Contains(job) }

func (m *Memory) GetImmediately(job tile.Job) *tile.Bitmap {
	bm, ok := m.c.Get(job)
	if !ok {
		return nil
	}
	return bm
}

func (m *Memory) Get(_ context.Context, job tile.Job) (*tile.Bitmap, error) {
	if bm := m.GetImmediately(job); bm != nil {
		return bm, nil
	}
	return nil, ErrNotCached
}

func (m *Memory) Put(job tile.Job, bm *tile.Bitmap) {
	if m.dead.Load() {
		return
	}
	m.c.Set(job, bm.Retain())
}

// Remove drops job if present.
func (m *Memory) Remove(job tile.Job) bool { return m.c.Remove(job) }

func (m *Memory) SetWorkingSet(jobs []tile.Job) {
	m.ws.Store(newWorkingSet(jobs, func(j tile.Job) tile.Job { return j }))
}

func (m *Memory) Purge() { m.c.Purge() }

func (m *Memory) Destroy() {
	m.dead.Store(true)
	_ = m.c.Close()
}

func (m *Memory) Capacity() int { return m.capacity }

// Len returns the number of cached bitmaps.
func (m *Memory) Len() int { return m.c.Len() }

var _ TileCache = (*Memory)(nil)
