// Package queue holds the pending tile jobs, ordered by how close each tile
// is to the centre of the current viewport.
package queue

import (
	"container/heap"
	"context"
	"errors"
	"math"
	"sync"

	"github.com/paulmach/orb"

	"github.com/IvanBrykalov/maprender/internal/logger"
	"github.com/IvanBrykalov/maprender/internal/notify"
	"github.com/IvanBrykalov/maprender/tile"
)

// ErrClosed is returned by Get after Close.
var ErrClosed = errors.New("queue: closed")

// Kind says why a job was queued.
type Kind uint8

const (
	// Visible jobs fill tiles missing from the current view.
	Visible Kind = iota
	// Refresh jobs re-render stale tiles that are still being shown.
	Refresh
	// Precache jobs render tiles around the view into the second cache
	// tier only.
	Precache
)

func (k Kind) String() string {
	switch k {
	case Visible:
		return "visible"
	case Refresh:
		return "refresh"
	default:
		return "precache"
	}
}

// Item is a queued or in-flight job.
type Item struct {
	Job  tile.Job
	Kind Kind

	epoch    uint64
	priority float64
	index    int
}

// Options tunes priorities. Zero values are safe:
//   - ZoomPenalty <= 0     => 2 tile edges per zoom level of difference
//   - PrecachePenalty <= 0 => 8 tile edges
type Options struct {
	ZoomPenalty     float64
	PrecachePenalty float64
}

// JobQueue is a priority queue of unique jobs. A job is accepted once and
// refused again while it is queued or being rendered. All methods are safe
// for concurrent use.
type JobQueue struct {
	opt Options

	mu       sync.Mutex
	items    itemHeap
	queued   map[tile.Job]*Item
	inFlight map[tile.Job]*Item
	epoch    uint64
	center   orb.Point
	zoom     uint8
	closed   bool

	wake notify.Broadcaster
}

// New returns an empty queue centred on (0, 0) at zoom 0.
func New(opt Options) *JobQueue {
	return &JobQueue{
		opt:      opt,
		queued:   make(map[tile.Job]*Item),
		inFlight: make(map[tile.Job]*Item),
	}
}

// SetCenter records the viewport centre used for priorities. It takes
// effect for queued jobs on the next NotifyWorkers.
func (q *JobQueue) SetCenter(center orb.Point, zoom uint8) {
	q.mu.Lock()
	q.center, q.zoom = center, zoom
	q.mu.Unlock()
}

// priorityLocked is the distance in pixels between the tile centre and the
// viewport centre, both at the job's zoom, plus penalties.
func (q *JobQueue) priorityLocked(it *Item) float64 {
	t := it.Job.Tile
	size := float64(t.Size)
	tx, ty := t.Center()
	cx, cy := tile.PointToPixel(q.center, t.Zoom, t.Size)
	p := math.Hypot(tx-cx, ty-cy)

	zp := q.opt.ZoomPenalty
	if zp <= 0 {
		zp = 2 * size
	}
	p += zp * math.Abs(float64(t.Zoom)-float64(q.zoom))
	if it.Kind == Precache {
		pp := q.opt.PrecachePenalty
		if pp <= 0 {
			pp = 8 * size
		}
		p += pp
	}
	return p
}

// Add queues job and wakes waiting workers. It returns false if the
// job is already queued or in flight; a queued Precache job asked for as
// Visible or Refresh is upgraded in place.
func (q *JobQueue) Add(job tile.Job, kind Kind) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	if _, ok := q.inFlight[job]; ok {
		q.mu.Unlock()
		return false
	}
	if it, ok := q.queued[job]; ok {
		if it.Kind == Precache && kind != Precache {
			it.Kind = kind
			it.priority = q.priorityLocked(it)
			heap.Fix(&q.items, it.index)
		}
		q.mu.Unlock()
		return false
	}
	it := &Item{Job: job, Kind: kind, epoch: q.epoch}
	it.priority = q.priorityLocked(it)
	heap.Push(&q.items, it)
	q.queued[job] = it
	q.mu.Unlock()

	q.wake.Broadcast()
	return true
}

// Get blocks until a job is available and moves it in flight. The caller
// must report the outcome with Done.
func (q *JobQueue) Get(ctx context.Context) (*Item, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, ErrClosed
		}
		if q.items.Len() > 0 {
			it := heap.Pop(&q.items).(*Item)
			delete(q.queued, it.Job)
			q.inFlight[it.Job] = it
			q.mu.Unlock()
			return it, nil
		}
		ch := q.wake.C()
		q.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Wanted reports whether the queue was not cleared since it was added.
func (q *JobQueue) Wanted(it *Item) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return it.epoch == q.epoch && !q.closed
}

// Done releases an in-flight item. It reports whether the result is still
// wanted, i.e. the queue was not cleared since the item was added.
func (q *JobQueue) Done(it *Item) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if cur, ok := q.inFlight[it.Job]; ok && cur == it {
		delete(q.inFlight, it.Job)
	}
	return it.epoch == q.epoch && !q.closed
}

// Clear drops every queued job and invalidates in-flight ones: their
// results will be reported unwanted by Done, and the same jobs may be
// queued again right away.
func (q *JobQueue) Clear() {
	q.mu.Lock()
	n := q.items.Len()
	q.items = q.items[:0]
	clear(q.queued)
	clear(q.inFlight)
	q.epoch++
	q.mu.Unlock()
	logger.Get().Debug("job queue cleared", "dropped", n)
}

// Remove drops a queued job.
func (q *JobQueue) Remove(job tile.Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	it, ok := q.queued[job]
	if !ok {
		return false
	}
	heap.Remove(&q.items, it.index)
	delete(q.queued, job)
	return true
}

// NotifyWorkers re-prioritises the queued jobs against the current centre
// and wakes blocked workers.
func (q *JobQueue) NotifyWorkers() {
	q.mu.Lock()
	for _, it := range q.items {
		it.priority = q.priorityLocked(it)
	}
	heap.Init(&q.items)
	q.mu.Unlock()
	q.wake.Broadcast()
}

// Contains reports whether job is queued or in flight.
func (q *JobQueue) Contains(job tile.Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, a := q.queued[job]
	_, b := q.inFlight[job]
	return a || b
}

// Len returns the number of queued jobs.
func (q *JobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// InFlight returns the number of jobs being rendered.
func (q *JobQueue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inFlight)
}

// Close wakes every waiter with ErrClosed. Idempotent.
func (q *JobQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wake.Broadcast()
}

// itemHeap is a min-heap on priority.
type itemHeap []*Item

func (h itemHeap) Len() int           { return len(h) }
func (h itemHeap) Less(i, j int) bool { return h[i].priority < h[j].priority }
func (h itemHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *itemHeap) Push(x any) {
	it := x.(*Item)
	it.index = len(*h)
	*h = append(*h, it)
}

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}
