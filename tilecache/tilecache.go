// Package tilecache stores rendered tile bitmaps: a memory tier with a
// pinned working set, a persistent file-system tier and a two-level cache
// combining both.
//
// Bitmaps are reference counted. A cache holds one reference per entry and
// hands out borrowed references: every non-nil bitmap returned by
// GetImmediately or Get must be released by the caller. Put never takes the
// caller's reference; the cache retains its own.
package tilecache

import (
	"context"
	"errors"

	"github.com/IvanBrykalov/maprender/tile"
)

// ErrNotCached is returned by Get on a miss.
var ErrNotCached = errors.New("tilecache: not cached")

// TileCache is implemented by every tier. All methods are safe for
// concurrent use.
type TileCache interface {
	// ContainsKey reports whether job is cached without touching recency.
	ContainsKey(job tile.Job) bool
	// GetImmediately returns a borrowed bitmap or nil. It never blocks on
	// rendering.
	GetImmediately(job tile.Job) *tile.Bitmap
	// Get returns a borrowed bitmap or ErrNotCached. It may block on I/O.
	Get(ctx context.Context, job tile.Job) (*tile.Bitmap, error)
	// Put stores bm under job, evicting the least recently used entry
	// outside the working set when full.
	Put(job tile.Job, bm *tile.Bitmap)
	// SetWorkingSet pins jobs until the next call.
	SetWorkingSet(jobs []tile.Job)
	// Purge drops every entry.
	Purge()
	// Destroy releases every bitmap reference and turns the cache into a
	// permanent miss.
	Destroy()
	// Capacity is the entry budget.
	Capacity() int
}

// workingSet is an immutable set swapped atomically on SetWorkingSet.
type workingSet[K comparable] map[K]struct{}

func newWorkingSet[K comparable](jobs []tile.Job, key func(tile.Job) K) *workingSet[K] {
	ws := make(workingSet[K], len(jobs))
	for _, j := range jobs {
		ws[key(j)] = struct{}{}
	}
	return &ws
}

func (ws *workingSet[K]) has(k K) bool {
	if ws == nil {
		return false
	}
	_, ok := (*ws)[k]
	return ok
}
