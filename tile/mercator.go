package tile

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// Web-Mercator latitude limits.
const (
	MaxLatitude = 85.05112877980659
	MinLatitude = -MaxLatitude
)

// MapSize returns the world edge length in pixels at zoom.
func MapSize(zoom uint8, tileSize int) float64 {
	return float64(tileSize) * float64(uint64(1)<<zoom)
}

// PointToPixel projects a lon/lat point to world pixel coordinates.
func PointToPixel(p orb.Point, zoom uint8, tileSize int) (x, y float64) {
	p[1] = math.Max(MinLatitude, math.Min(MaxLatitude, p[1]))
	f := maptile.Fraction(p, maptile.Zoom(zoom))
	return f[0] * float64(tileSize), f[1] * float64(tileSize)
}

// PixelToPoint is the inverse of PointToPixel.
func PixelToPoint(x, y float64, zoom uint8, tileSize int) orb.Point {
	size := MapSize(zoom, tileSize)
	lon := x/size*360 - 180
	n := math.Pi - 2*math.Pi*y/size
	lat := 180 / math.Pi * math.Atan(math.Sinh(n))
	return orb.Point{lon, lat}
}

// AtPixel returns the tile containing the world pixel (x, y), clamped to
// the grid.
func AtPixel(x, y float64, zoom uint8, tileSize int) Tile {
	m := float64(Max(zoom))
	tx := math.Max(0, math.Min(m, math.Floor(x/float64(tileSize))))
	ty := math.Max(0, math.Min(m, math.Floor(y/float64(tileSize))))
	return Tile{X: uint32(tx), Y: uint32(ty), Zoom: zoom, Size: tileSize}
}

// At returns the tile containing p at zoom.
func At(p orb.Point, zoom uint8, tileSize int) Tile {
	x, y := PointToPixel(p, zoom, tileSize)
	return AtPixel(x, y, zoom, tileSize)
}
