// Package tile defines tile addresses, render jobs and the reference-counted
// bitmaps the tile pipeline passes around.
package tile

import (
	"fmt"
	"image"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// MaxZoom is the deepest zoom level a Tile may address.
const MaxZoom = 24

// DefaultSize is the conventional tile edge length in pixels.
const DefaultSize = 256

// InvalidTileError reports a tile address outside its zoom level's grid.
type InvalidTileError struct {
	X, Y uint32
	Zoom uint8
	Size int
}

func (e *InvalidTileError) Error() string {
	return fmt.Sprintf("invalid tile %d/%d/%d (size %d): coordinates must be < 2^zoom, zoom <= %d, size > 0",
		e.Zoom, e.X, e.Y, e.Size, MaxZoom)
}

// Tile is a square raster unit at (X, Y, Zoom) with an edge of Size pixels.
// Invariant: 0 <= X, Y < 2^Zoom.
type Tile struct {
	X, Y uint32
	Zoom uint8
	Size int
}

// New validates and returns a tile.
func New(x, y uint32, zoom uint8, size int) (Tile, error) {
	if zoom > MaxZoom || size <= 0 || uint64(x) >= 1<<zoom || uint64(y) >= 1<<zoom {
		return Tile{}, &InvalidTileError{X: x, Y: y, Zoom: zoom, Size: size}
	}
	return Tile{X: x, Y: y, Zoom: zoom, Size: size}, nil
}

// Max returns the largest valid tile coordinate at zoom.
func Max(zoom uint8) uint32 { return uint32(1<<zoom) - 1 }

func (t Tile) String() string { return fmt.Sprintf("%d/%d/%d@%d", t.Zoom, t.X, t.Y, t.Size) }

// Maptile converts to the orb representation.
func (t Tile) Maptile() maptile.Tile { return maptile.New(t.X, t.Y, maptile.Zoom(t.Zoom)) }

// Bound returns the geographic bounds of the tile.
func (t Tile) Bound() orb.Bound { return t.Maptile().Bound() }

// Parent returns the tile one zoom level up; false at zoom 0.
func (t Tile) Parent() (Tile, bool) {
	if t.Zoom == 0 {
		return Tile{}, false
	}
	p := t.Maptile().Parent()
	return Tile{X: p.X, Y: p.Y, Zoom: uint8(p.Z), Size: t.Size}, true
}

// Ancestor returns the tile levels zoom levels up; false past the root.
func (t Tile) Ancestor(levels int) (Tile, bool) {
	if levels < 0 || levels > int(t.Zoom) {
		return Tile{}, false
	}
	return Tile{X: t.X >> levels, Y: t.Y >> levels, Zoom: t.Zoom - uint8(levels), Size: t.Size}, true
}

// Children returns the four tiles one zoom level down; false at MaxZoom.
func (t Tile) Children() ([4]Tile, bool) {
	if t.Zoom >= MaxZoom {
		return [4]Tile{}, false
	}
	x, y, z := t.X<<1, t.Y<<1, t.Zoom+1
	return [4]Tile{
		{X: x, Y: y, Zoom: z, Size: t.Size},
		{X: x + 1, Y: y, Zoom: z, Size: t.Size},
		{X: x, Y: y + 1, Zoom: z, Size: t.Size},
		{X: x + 1, Y: y + 1, Zoom: z, Size: t.Size},
	}, true
}

// Neighbor returns the tile offset by (dx, dy); false off the grid.
func (t Tile) Neighbor(dx, dy int) (Tile, bool) {
	x, y := int64(t.X)+int64(dx), int64(t.Y)+int64(dy)
	if x < 0 || y < 0 || x > int64(Max(t.Zoom)) || y > int64(Max(t.Zoom)) {
		return Tile{}, false
	}
	return Tile{X: uint32(x), Y: uint32(y), Zoom: t.Zoom, Size: t.Size}, true
}

// Origin returns the world pixel coordinate of the tile's top-left corner.
func (t Tile) Origin() (x, y float64) {
	return float64(t.X) * float64(t.Size), float64(t.Y) * float64(t.Size)
}

// Center returns the world pixel coordinate of the tile's centre.
func (t Tile) Center() (x, y float64) {
	ox, oy := t.Origin()
	half := float64(t.Size) / 2
	return ox + half, oy + half
}

// RegionIn returns the pixel rectangle of ancestor's bitmap that covers t.
// ok is false if ancestor is not an ancestor of t or the region would be
// smaller than one pixel.
func (t Tile) RegionIn(ancestor Tile) (r image.Rectangle, ok bool) {
	if ancestor.Zoom > t.Zoom {
		return image.Rectangle{}, false
	}
	d := t.Zoom - ancestor.Zoom
	if t.X>>d != ancestor.X || t.Y>>d != ancestor.Y {
		return image.Rectangle{}, false
	}
	sub := ancestor.Size >> d
	if sub < 1 {
		return image.Rectangle{}, false
	}
	mask := uint32(1<<d) - 1
	x0 := int(t.X&mask) * sub
	y0 := int(t.Y&mask) * sub
	return image.Rect(x0, y0, x0+sub, y0+sub), true
}
