package render

import (
	"image"
	"image/color"

	"github.com/paulmach/orb"

	"github.com/IvanBrykalov/maprender/theme"
)

// Canvas rasterizes the drawing operations of one tile. Coordinates are
// tile pixels with the origin at the top-left corner. A Canvas is used by a
// single goroutine.
type Canvas interface {
	// Clear fills the whole tile with c.
	Clear(c color.NRGBA)
	// DrawArea fills the rings (outer first, holes after) and strokes them
	// when stroke is non-nil.
	DrawArea(rings []orb.LineString, fill, stroke *theme.Paint)
	DrawLine(ls orb.LineString, stroke *theme.Paint)
	DrawCircle(center orb.Point, radius float32, fill, stroke *theme.Paint)
	// MeasureText returns the pixel extent of label.
	MeasureText(label theme.Label) (w, h float64)
	DrawText(label theme.Label, at orb.Point)
	// DrawSymbol centres the symbol at at, rotated by angle radians.
	// It reports false if the symbol is unknown.
	DrawSymbol(sym *theme.SymbolRef, at orb.Point, angle float64) bool
}

// CanvasFactory returns a Canvas drawing into dst.
type CanvasFactory func(dst *image.RGBA) Canvas

// HillShader shades relief into dst for the given tile pixel bounds.
type HillShader interface {
	Shade(dst *image.RGBA, rc *RenderContext, hs *theme.HillShading) error
}
