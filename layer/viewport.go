package layer

import (
	"sync"
	"sync/atomic"

	"github.com/paulmach/orb"

	"github.com/IvanBrykalov/maprender/tile"
)

// MapPosition is the map centre and zoom level.
type MapPosition struct {
	Center orb.Point
	Zoom   uint8
}

// Viewport is an immutable snapshot of what the screen shows. The frame
// scheduler takes one per frame so that every layer sees the same view.
type Viewport struct {
	Position MapPosition
	Width    int
	Height   int
	TileSize int
}

// TopLeft returns the world pixel coordinate of the screen's top-left
// corner.
func (v Viewport) TopLeft() (x, y float64) {
	cx, cy := tile.PointToPixel(v.Position.Center, v.Position.Zoom, v.TileSize)
	return cx - float64(v.Width)/2, cy - float64(v.Height)/2
}

// Bound returns the geographic bounding box on screen.
func (v Viewport) Bound() orb.Bound {
	x, y := v.TopLeft()
	tl := tile.PixelToPoint(x, y, v.Position.Zoom, v.TileSize)
	br := tile.PixelToPoint(x+float64(v.Width), y+float64(v.Height), v.Position.Zoom, v.TileSize)
	return orb.Bound{Min: orb.Point{tl[0], br[1]}, Max: orb.Point{br[0], tl[1]}}
}

// AtZoom returns the same screen centred on the same point at zoom.
func (v Viewport) AtZoom(zoom uint8) Viewport {
	v.Position.Zoom = zoom
	return v
}

// Tiles returns the tiles covering the screen grown by margin pixels on
// every side, row by row.
func (v Viewport) Tiles(margin int) []tile.Tile {
	if v.Width <= 0 || v.Height <= 0 || v.TileSize <= 0 {
		return nil
	}
	x, y := v.TopLeft()
	m := float64(margin)
	z := v.Position.Zoom
	tl := tile.AtPixel(x-m, y-m, z, v.TileSize)
	// the right and bottom edges are exclusive
	br := tile.AtPixel(x+float64(v.Width)+m-1e-6, y+float64(v.Height)+m-1e-6, z, v.TileSize)

	out := make([]tile.Tile, 0, int(br.X-tl.X+1)*int(br.Y-tl.Y+1))
	for ty := tl.Y; ty <= br.Y; ty++ {
		for tx := tl.X; tx <= br.X; tx++ {
			out = append(out, tile.Tile{X: tx, Y: ty, Zoom: z, Size: v.TileSize})
		}
	}
	return out
}

// observers is a list of change callbacks.
type observers struct {
	mu  sync.Mutex
	fns []func()
}

func (o *observers) add(fn func()) {
	o.mu.Lock()
	o.fns = append(o.fns, fn)
	o.mu.Unlock()
}

func (o *observers) fire() {
	o.mu.Lock()
	fns := o.fns
	o.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Model is the mutable map view: position, screen size and whether an
// animation is running. Every change notifies observers.
type Model struct {
	mu       sync.RWMutex
	pos      MapPosition
	width    int
	height   int
	tileSize int

	animating atomic.Bool
	obs       observers
}

// NewModel returns a model showing pos on a width×height screen.
func NewModel(pos MapPosition, width, height, tileSize int) *Model {
	if tileSize <= 0 {
		tileSize = 256
	}
	return &Model{pos: pos, width: width, height: height, tileSize: tileSize}
}

// Observe registers fn to run after every change.
func (m *Model) Observe(fn func()) { m.obs.add(fn) }

// SetPosition moves the map. The zoom is clamped to tile.MaxZoom.
func (m *Model) SetPosition(pos MapPosition) {
	pos.Zoom = min(pos.Zoom, tile.MaxZoom)
	m.mu.Lock()
	m.pos = pos
	m.mu.Unlock()
	m.obs.fire()
}

// Position returns the current position.
func (m *Model) Position() MapPosition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pos
}

// SetSize resizes the screen.
func (m *Model) SetSize(width, height int) {
	m.mu.Lock()
	m.width, m.height = width, height
	m.mu.Unlock()
	m.obs.fire()
}

// SetAnimating marks an animation as running. Frames drawn while it runs
// are not published.
func (m *Model) SetAnimating(on bool) {
	if m.animating.Swap(on) != on {
		m.obs.fire()
	}
}

// Animating reports whether an animation is running.
func (m *Model) Animating() bool { return m.animating.Load() }

// Snapshot returns the current viewport.
func (m *Model) Snapshot() Viewport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Viewport{Position: m.pos, Width: m.width, Height: m.height, TileSize: m.tileSize}
}
