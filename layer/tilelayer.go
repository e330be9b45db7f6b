package layer

import (
	"context"
	"image"
	"math"
	"sync"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/IvanBrykalov/maprender/queue"
	"github.com/IvanBrykalov/maprender/tile"
	"github.com/IvanBrykalov/maprender/tilecache"
)

// BlitMode selects how ancestor placeholders are scaled.
type BlitMode uint8

const (
	// BlitSpeed scales with nearest-neighbour sampling.
	BlitSpeed BlitMode = iota
	// BlitQuality scales through an affine matrix with bilinear
	// interpolation.
	BlitQuality
)

// StalePolicy reports whether a cached bitmap should be re-rendered. The
// stale bitmap stays on screen until the refresh lands.
type StalePolicy func(job tile.Job, bm *tile.Bitmap, now time.Time) bool

// ExpiredPolicy treats a bitmap as stale once its expiration passed.
func ExpiredPolicy(_ tile.Job, bm *tile.Bitmap, now time.Time) bool { return bm.Expired(now) }

// DataPolicy treats a bitmap as stale once it expired or the map data of
// its tile changed after it was rendered.
func DataPolicy(dataTime func(tile.Tile) time.Time) StalePolicy {
	return func(job tile.Job, bm *tile.Bitmap, now time.Time) bool {
		return bm.Expired(now) || dataTime(job.Tile).After(bm.Timestamp())
	}
}

// TileLayerOptions configures a TileLayer. Zero values are safe:
//   - TextScale <= 0     => 1
//   - AncestorDepth <= 0 => 4
//   - Stale nil          => ExpiredPolicy
//
// Margin, ZoomPlus and ZoomMinus bound pre-caching and are only used when
// Precache is set.
type TileLayerOptions struct {
	ThemeID       string
	TextScale     float32
	HasAlpha      bool
	AncestorDepth int
	Blit          BlitMode
	Stale         StalePolicy

	Precache  bool
	Margin    int
	ZoomPlus  int
	ZoomMinus int
}

// TileLayer shows rendered tiles. Missing tiles are queued for the render
// workers and covered meanwhile by a scaled region of a cached ancestor.
type TileLayer struct {
	Visibility

	cache tilecache.TileCache
	q     *queue.JobQueue
	opt   TileLayerOptions

	mu       sync.Mutex
	template tile.Job
}

// NewTileLayer draws from cache and queues misses on q.
func NewTileLayer(cache tilecache.TileCache, q *queue.JobQueue, opt TileLayerOptions) *TileLayer {
	if opt.TextScale <= 0 {
		opt.TextScale = 1
	}
	if opt.AncestorDepth <= 0 {
		opt.AncestorDepth = 4
	}
	if opt.Stale == nil {
		opt.Stale = ExpiredPolicy
	}
	return &TileLayer{
		cache:    cache,
		q:        q,
		opt:      opt,
		template: tile.Job{ThemeID: opt.ThemeID, TextScale: opt.TextScale, HasAlpha: opt.HasAlpha},
	}
}

// SetTheme switches the theme and text scale of future jobs and drops the
// queued jobs of the old ones.
func (l *TileLayer) SetTheme(id string, textScale float32) {
	if textScale <= 0 {
		textScale = 1
	}
	l.mu.Lock()
	changed := l.template.ThemeID != id || l.template.TextScale != textScale
	l.template.ThemeID, l.template.TextScale = id, textScale
	l.mu.Unlock()
	if changed {
		l.q.Clear()
	}
}

// Job returns the job for t under the current theme.
func (l *TileLayer) Job(t tile.Tile) tile.Job {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.template.WithTile(t)
}

// Draw composes the visible tiles onto dst.
func (l *TileLayer) Draw(ctx context.Context, vp Viewport, dst *image.RGBA) {
	tiles := vp.Tiles(0)
	jobs := make([]tile.Job, len(tiles))
	for i, t := range tiles {
		jobs[i] = l.Job(t)
	}
	l.cache.SetWorkingSet(jobs)
	l.q.SetCenter(vp.Position.Center, vp.Position.Zoom)

	ox, oy := vp.TopLeft()
	now := time.Now()
	for _, j := range jobs {
		if ctx.Err() != nil {
			break
		}
		tx, ty := j.Tile.Origin()
		at := image.Pt(int(math.Round(tx-ox)), int(math.Round(ty-oy)))

		if bm := l.cache.GetImmediately(j); bm != nil {
			r := image.Rectangle{Min: at, Max: at.Add(image.Pt(j.Tile.Size, j.Tile.Size))}
			draw.Draw(dst, r, bm.Image(), image.Point{}, draw.Over)
			if l.opt.Stale(j, bm, now) {
				l.q.Add(j, queue.Refresh)
			}
			bm.Release()
			continue
		}
		l.placeholder(dst, j, at)
		l.q.Add(j, queue.Visible)
	}

	if l.opt.Precache {
		l.precache(vp, jobs)
	}
	l.q.NotifyWorkers()
}

// placeholder blits the region of the nearest cached ancestor that covers
// j. It reports whether one was found.
func (l *TileLayer) placeholder(dst *image.RGBA, j tile.Job, at image.Point) bool {
	size := j.Tile.Size
	for d := 1; d <= l.opt.AncestorDepth; d++ {
		anc, ok := j.Tile.Ancestor(d)
		if !ok {
			return false
		}
		sr, ok := j.Tile.RegionIn(anc)
		if !ok {
			return false
		}
		bm := l.cache.GetImmediately(j.WithTile(anc))
		if bm == nil {
			continue
		}
		switch l.opt.Blit {
		case BlitQuality:
			s := float64(size) / float64(sr.Dx())
			m := f64.Aff3{
				s, 0, float64(at.X) - float64(sr.Min.X)*s,
				0, s, float64(at.Y) - float64(sr.Min.Y)*s,
			}
			draw.ApproxBiLinear.Transform(dst, m, bm.Image(), sr, draw.Over, nil)
		default:
			dr := image.Rectangle{Min: at, Max: at.Add(image.Pt(size, size))}
			draw.NearestNeighbor.Scale(dst, dr, bm.Image(), sr, draw.Over, nil)
		}
		bm.Release()
		return true
	}
	return false
}

// precache queues tiles around the view and on neighbouring zoom levels.
// The workers write them to the second cache tier only.
func (l *TileLayer) precache(vp Viewport, visible []tile.Job) {
	seen := make(map[tile.Tile]struct{}, len(visible))
	for _, j := range visible {
		seen[j.Tile] = struct{}{}
	}
	add := func(ts []tile.Tile) {
		for _, t := range ts {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			if j := l.Job(t); !l.cache.ContainsKey(j) {
				l.q.Add(j, queue.Precache)
			}
		}
	}

	if l.opt.Margin > 0 {
		add(vp.Tiles(l.opt.Margin))
	}
	z := int(vp.Position.Zoom)
	for dz := 1; dz <= l.opt.ZoomPlus && z+dz <= tile.MaxZoom; dz++ {
		add(vp.AtZoom(uint8(z + dz)).Tiles(0))
	}
	for dz := 1; dz <= l.opt.ZoomMinus && z-dz >= 0; dz++ {
		add(vp.AtZoom(uint8(z - dz)).Tiles(0))
	}
}

var _ Layer = (*TileLayer)(nil)
