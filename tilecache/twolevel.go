package tilecache

import (
	"context"

	"github.com/IvanBrykalov/maprender/internal/logger"
	"github.com/IvanBrykalov/maprender/internal/singleflight"
	"github.com/IvanBrykalov/maprender/tile"
)

// TwoLevel puts a fast first tier (memory) in front of a larger second tier
// (file system). Get promotes second-tier hits into the first tier;
// writes go to both.
type TwoLevel struct {
	first  TileCache
	second TileCache
	sf     singleflight.Group[tile.Job, bool]
}

// NewTwoLevel combines first and second.
func NewTwoLevel(first, second TileCache) *TwoLevel {
	return &TwoLevel{first: first, second: second}
}

// First returns the fast tier.
func (t *TwoLevel) First() TileCache { return t.first }

// Second returns the slow tier.
func (t *TwoLevel) Second() TileCache { return t.second }

func (t *TwoLevel) ContainsKey(job tile.Job) bool {
	return t.first.ContainsKey(job) || t.second.ContainsKey(job)
}

// GetImmediately serves the first tier only. Second-tier hits are
// promoted by Get, off the drawing path.
func (t *TwoLevel) GetImmediately(job tile.Job) *tile.Bitmap {
	return t.first.GetImmediately(job)
}

// Get coalesces concurrent second-tier reads of the same job; every caller
// then borrows from the first tier.
func (t *TwoLevel) Get(ctx context.Context, job tile.Job) (*tile.Bitmap, error) {
	if bm := t.first.GetImmediately(job); bm != nil {
		return bm, nil
	}
	_, err, _ := t.sf.Do(ctx, job, func() (bool, error) {
		bm, err := t.second.Get(ctx, job)
		if err != nil {
			return false, err
		}
		t.first.Put(job, bm)
		bm.Release()
		logger.Get().Debug("tile promoted", "job", job.String())
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if bm := t.first.GetImmediately(job); bm != nil {
		return bm, nil
	}
	// evicted from the first tier in between
	return t.second.Get(ctx, job)
}

// Put writes through to both tiers.
func (t *TwoLevel) Put(job tile.Job, bm *tile.Bitmap) {
	t.first.Put(job, bm)
	t.second.Put(job, bm)
}

// PutSecondary writes only to the second tier. Pre-rendered tiles go
// there so they do not push the visible set out of memory.
func (t *TwoLevel) PutSecondary(job tile.Job, bm *tile.Bitmap) {
	t.second.Put(job, bm)
}

func (t *TwoLevel) SetWorkingSet(jobs []tile.Job) {
	t.first.SetWorkingSet(jobs)
	t.second.SetWorkingSet(jobs)
}

func (t *TwoLevel) Purge() {
	t.first.Purge()
	t.second.Purge()
}

func (t *TwoLevel) Destroy() {
	t.first.Destroy()
	t.second.Destroy()
}

// Capacity is the larger tier's budget.
func (t *TwoLevel) Capacity() int { return max(t.first.Capacity(), t.second.Capacity()) }

var _ TileCache = (*TwoLevel)(nil)
