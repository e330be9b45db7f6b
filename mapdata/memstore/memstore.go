// Package memstore is an in-memory mapdata.Store backed by an R-tree. It
// serves demos, benchmarks and tests; production readers decode map files.
package memstore

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"

	"github.com/IvanBrykalov/maprender/mapdata"
	"github.com/IvanBrykalov/maprender/tile"
)

// minExtent pads zero-area features; rtreego rejects empty rectangles.
const minExtent = 1e-7

// feature is one indexed POI or way.
type feature struct {
	seq   int // insertion order, keeps results deterministic
	bound orb.Bound
	poi   *mapdata.PointOfInterest
	way   *mapdata.Way
}

// Bounds implements rtreego.Spatial.
func (f *feature) Bounds() rtreego.Rect { return toRect(f.bound) }

func toRect(b orb.Bound) rtreego.Rect {
	lengths := []float64{
		max(b.Max[0]-b.Min[0], minExtent),
		max(b.Max[1]-b.Min[1], minExtent),
	}
	r, _ := rtreego.NewRect(rtreego.Point{b.Min[0], b.Min[1]}, lengths)
	return r
}

// Store holds features in an R-tree. Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	tree     *rtreego.Rtree
	seq      int
	modified time.Time
	water    []orb.Bound
}

// New returns an empty store.
func New() *Store {
	return &Store{tree: rtreego.NewTree(2, 25, 50), modified: time.Now()}
}

// AddPOI indexes a point of interest.
func (s *Store) AddPOI(p mapdata.PointOfInterest) {
	s.insert(&feature{bound: p.Position.Bound(), poi: &p})
}

// AddWay indexes a way. Ways without coordinates are ignored.
func (s *Store) AddWay(w mapdata.Way) {
	if len(w.Coordinates) == 0 || len(w.Coordinates[0]) == 0 {
		return
	}
	s.insert(&feature{bound: w.Bound(), way: &w})
}

// AddWater marks b as sea area; tiles fully inside it report IsWater.
func (s *Store) AddWater(b orb.Bound) {
	s.mu.Lock()
	s.water = append(s.water, b)
	s.modified = time.Now()
	s.mu.Unlock()
}

func (s *Store) insert(f *feature) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f.seq = s.seq
	s.seq++
	s.tree.Insert(f)
	s.modified = time.Now()
}

// Len returns the number of indexed features.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Size()
}

// Read returns the features intersecting t in insertion order.
func (s *Store) Read(ctx context.Context, t tile.Tile) (*mapdata.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := t.Bound()

	s.mu.RLock()
	hits := s.tree.SearchIntersect(toRect(b))
	res := &mapdata.Result{}
	for _, w := range s.water {
		if w.Contains(b.Min) && w.Contains(b.Max) {
			res.IsWater = true
			break
		}
	}
	s.mu.RUnlock()

	fs := make([]*feature, 0, len(hits))
	for _, h := range hits {
		fs = append(fs, h.(*feature))
	}
	slices.SortFunc(fs, func(a, b *feature) int { return a.seq - b.seq })

	for _, f := range fs {
		if f.poi != nil {
			res.POIs = append(res.POIs, *f.poi)
		} else {
			res.Ways = append(res.Ways, *f.way)
		}
	}
	if len(res.POIs) == 0 && len(res.Ways) == 0 && !res.IsWater {
		return res, mapdata.ErrNoData
	}
	return res, nil
}

// Timestamp returns the time of the last modification of the store.
func (s *Store) Timestamp(tile.Tile) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modified
}

var _ mapdata.Store = (*Store)(nil)
