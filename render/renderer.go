// Package render turns map data into tile bitmaps: it runs the render
// theme over every feature of a tile, collects the resulting drawing
// operations in a RenderContext and replays them onto a Canvas.
package render

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb"

	"github.com/IvanBrykalov/maprender/internal/logger"
	"github.com/IvanBrykalov/maprender/mapdata"
	"github.com/IvanBrykalov/maprender/tag"
	"github.com/IvanBrykalov/maprender/theme"
	"github.com/IvanBrykalov/maprender/tile"
)

var (
	// ErrThemeMismatch is returned when a job names a theme other than the
	// renderer's current one.
	ErrThemeMismatch = errors.New("render: job theme does not match renderer theme")
	// ErrNoTheme is returned by Render before a theme is installed.
	ErrNoTheme = errors.New("render: no theme")
)

// checkEvery is how many features are matched between context checks.
const checkEvery = 256

// Options configures a TileRenderer. Zero values are safe; NewTileRenderer
// applies defaults:
//   - StrokeIncrease <= 0 => 1.5
//   - StrokeZoomMin == 0  => 12
type Options struct {
	// Store supplies the map data. Required.
	Store mapdata.Store
	// Canvas creates the rasterizer for each tile. Required.
	Canvas CanvasFactory
	// HillShader shades relief when the theme asks for it; nil skips it.
	HillShader HillShader

	// Stroke widths grow by StrokeIncrease per zoom level above StrokeZoomMin.
	StrokeIncrease float64
	StrokeZoomMin  uint8

	// TTL marks rendered bitmaps stale after the given duration; zero never.
	TTL time.Duration
}

// TileRenderer renders jobs with the installed theme. It is safe for
// concurrent use; every Render call works on its own RenderContext.
type TileRenderer struct {
	opt   Options
	theme atomic.Pointer[theme.RenderTheme]
}

// NewTileRenderer returns a renderer using th, which may be nil and
// installed later with SetTheme.
func NewTileRenderer(th *theme.RenderTheme, opt Options) (*TileRenderer, error) {
	if opt.Store == nil {
		return nil, errors.New("render: Options.Store is required")
	}
	if opt.Canvas == nil {
		return nil, errors.New("render: Options.Canvas is required")
	}
	if opt.StrokeIncrease <= 0 {
		opt.StrokeIncrease = 1.5
	}
	if opt.StrokeZoomMin == 0 {
		opt.StrokeZoomMin = 12
	}
	r := &TileRenderer{opt: opt}
	if th != nil {
		r.theme.Store(th)
	}
	return r, nil
}

// SetTheme installs th for subsequent renders. Renders already running
// finish with the theme they started with.
func (r *TileRenderer) SetTheme(th *theme.RenderTheme) { r.theme.Store(th) }

// Theme returns the installed theme.
func (r *TileRenderer) Theme() *theme.RenderTheme { return r.theme.Load() }

// Store returns the map data store.
func (r *TileRenderer) Store() mapdata.Store { return r.opt.Store }

// StrokeScale returns the stroke width factor applied at zoom.
func (r *TileRenderer) StrokeScale(zoom uint8) float32 {
	if zoom <= r.opt.StrokeZoomMin {
		return 1
	}
	return float32(math.Pow(r.opt.StrokeIncrease, float64(zoom-r.opt.StrokeZoomMin)))
}

// Render produces the bitmap for job. The caller owns the returned
// reference.
func (r *TileRenderer) Render(ctx context.Context, job tile.Job) (*tile.Bitmap, error) {
	th := r.theme.Load()
	if th == nil {
		return nil, ErrNoTheme
	}
	if job.ThemeID != th.ID() {
		return nil, fmt.Errorf("%w: job %q, renderer %q", ErrThemeMismatch, job.ThemeID, th.ID())
	}
	if err := th.Retain(); err != nil {
		return nil, fmt.Errorf("render %s: %w", job, err)
	}
	defer th.Release()

	res, err := r.read(ctx, job)
	if err != nil {
		return nil, err
	}
	rc, err := r.match(ctx, th, job, res)
	if err != nil {
		return nil, err
	}

	bm := tile.NewBitmap(job.Tile.Size)
	r.draw(bm, th, job, rc)
	if r.opt.TTL > 0 {
		bm.SetExpiration(time.Now().Add(r.opt.TTL))
	}
	return bm, nil
}

// Match runs the theme over the tile's map data without drawing. It is the
// first half of Render, exposed for inspection and tests.
func (r *TileRenderer) Match(ctx context.Context, job tile.Job) (*RenderContext, error) {
	th := r.theme.Load()
	if th == nil {
		return nil, ErrNoTheme
	}
	if err := th.Retain(); err != nil {
		return nil, err
	}
	defer th.Release()
	res, err := r.read(ctx, job)
	if err != nil {
		return nil, err
	}
	return r.match(ctx, th, job, res)
}

// read treats a tile without data as empty.
func (r *TileRenderer) read(ctx context.Context, job tile.Job) (*mapdata.Result, error) {
	res, err := r.opt.Store.Read(ctx, job.Tile)
	switch {
	case errors.Is(err, mapdata.ErrNoData):
		return &mapdata.Result{}, nil
	case err != nil:
		return nil, fmt.Errorf("render %s: read map data: %w", job, err)
	}
	return res, nil
}

func (r *TileRenderer) match(ctx context.Context, th *theme.RenderTheme, job tile.Job, res *mapdata.Result) (*RenderContext, error) {
	zoom := job.Tile.Zoom
	th.ScaleStrokeWidth(r.StrokeScale(zoom), zoom)
	textScale := job.TextScale
	if textScale <= 0 {
		textScale = 1
	}
	th.ScaleTextSize(textScale, zoom)

	rc := NewRenderContext(job, th.Levels())
	if res.IsWater {
		sea := seaWay(th.Pool(), job.Tile)
		rc.SetLayer(sea.Layer)
		th.MatchClosedWay(rc, sea, zoom)
	}
	for i := range res.POIs {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		poi := &res.POIs[i]
		rc.SetLayer(poi.Layer)
		th.MatchNode(rc, poi, zoom)
	}
	for i := range res.Ways {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		way := &res.Ways[i]
		rc.SetLayer(way.Layer)
		th.MatchWay(rc, way, zoom)
	}
	th.MatchHillShadings(rc, zoom)
	return rc, nil
}

func (r *TileRenderer) draw(bm *tile.Bitmap, th *theme.RenderTheme, job tile.Job, rc *RenderContext) {
	cv := r.opt.Canvas(bm.Image())
	if !job.HasAlpha {
		cv.Clear(th.Background())
	}
	rc.Shapes(func(sp ShapePaint) {
		switch sp.Kind {
		case ShapeArea:
			cv.DrawArea(sp.Paths, sp.Fill, sp.Stroke)
		case ShapeLine:
			cv.DrawLine(sp.Paths[0], sp.Stroke)
		case ShapeCircle:
			cv.DrawCircle(sp.Center, sp.Radius, sp.Fill, sp.Stroke)
		}
	})
	if r.opt.HillShader != nil {
		for _, hs := range rc.HillShadings() {
			if err := r.opt.HillShader.Shade(bm.Image(), rc, hs); err != nil {
				logger.Get().Warn("hill shading failed", "job", job.String(), "err", err)
			}
		}
	}
	rc.drawLabels(cv)
}

// seaWay is the synthetic natural=sea area covering a tile the store
// reported as water.
func seaWay(pool *tag.Pool, t tile.Tile) *mapdata.Way {
	b := t.Bound()
	ring := orb.LineString{
		b.Min, {b.Max[0], b.Min[1]}, b.Max, {b.Min[0], b.Max[1]}, b.Min,
	}
	return &mapdata.Way{
		Tags:        []tag.Tag{pool.Tag("natural", "sea")},
		Coordinates: []orb.LineString{ring},
	}
}
