package render

import (
	"cmp"
	"slices"

	"github.com/paulmach/orb"

	"github.com/IvanBrykalov/maprender/mapdata"
	"github.com/IvanBrykalov/maprender/theme"
	"github.com/IvanBrykalov/maprender/tile"
)

// ShapeKind discriminates ShapePaint entries.
type ShapeKind uint8

const (
	ShapeArea ShapeKind = iota
	ShapeLine
	ShapeCircle
)

// ShapePaint is one queued drawing operation in tile pixel coordinates.
type ShapePaint struct {
	Kind   ShapeKind
	Paths  []orb.LineString // area rings or the single line
	Center orb.Point        // circles
	Radius float32
	Fill   *theme.Paint
	Stroke *theme.Paint
}

// LabelKind discriminates LabelItem entries.
type LabelKind uint8

const (
	LabelPoint LabelKind = iota
	LabelPath
	LabelSymbol
	LabelLineSymbol
)

// LabelItem is a caption or symbol placed after all shapes.
type LabelItem struct {
	Kind     LabelKind
	Label    theme.Label
	Symbol   *theme.SymbolRef
	Anchor   orb.Point
	Path     orb.LineString
	Repeat   bool
	Gap      float32
	Priority int
}

// RenderContext collects the output of one match pass over a tile: shapes
// bucketed per (layer, level) and labels. It implements
// theme.RenderCallback and is discarded after rasterization.
type RenderContext struct {
	Job tile.Job

	zoom   uint8
	size   int
	ox, oy float64
	layer  int

	levels      int
	shapes      [][][]ShapePaint // [layer][level]
	labels      []LabelItem
	hillShading []*theme.HillShading
}

// NewRenderContext returns an empty context for job with levels drawing
// levels per layer.
func NewRenderContext(job tile.Job, levels int) *RenderContext {
	if levels < 1 {
		levels = 1
	}
	ox, oy := job.Tile.Origin()
	rc := &RenderContext{
		Job:    job,
		zoom:   job.Tile.Zoom,
		size:   job.Tile.Size,
		ox:     ox,
		oy:     oy,
		levels: levels,
		shapes: make([][][]ShapePaint, mapdata.Layers),
	}
	for i := range rc.shapes {
		rc.shapes[i] = make([][]ShapePaint, levels)
	}
	return rc
}

// SetLayer selects the OSM layer of the feature about to be matched.
func (rc *RenderContext) SetLayer(layer int8) { rc.layer = mapdata.LayerIndex(layer) }

// Project converts a lon/lat point into tile pixel coordinates.
func (rc *RenderContext) Project(p orb.Point) orb.Point {
	x, y := tile.PointToPixel(p, rc.zoom, rc.size)
	return orb.Point{x - rc.ox, y - rc.oy}
}

func (rc *RenderContext) projectLine(ls orb.LineString) orb.LineString {
	out := make(orb.LineString, len(ls))
	for i, p := range ls {
		out[i] = rc.Project(p)
	}
	return out
}

func (rc *RenderContext) add(level int, sp ShapePaint) {
	level = min(max(level, 0), rc.levels-1)
	rc.shapes[rc.layer][level] = append(rc.shapes[rc.layer][level], sp)
}

// wayAnchor is the label position of a way: its LabelPosition if the map
// data has one, the centroid of the outer ring otherwise.
func (rc *RenderContext) wayAnchor(way *mapdata.Way) orb.Point {
	if way.LabelPosition != nil {
		return rc.Project(*way.LabelPosition)
	}
	if len(way.Coordinates) == 0 || len(way.Coordinates[0]) == 0 {
		return orb.Point{}
	}
	return rc.Project(way.Coordinates[0].Bound().Center())
}

func (rc *RenderContext) RenderArea(way *mapdata.Way, fill, stroke *theme.Paint, level int) {
	paths := make([]orb.LineString, len(way.Coordinates))
	for i, ls := range way.Coordinates {
		paths[i] = rc.projectLine(ls)
	}
	rc.add(level, ShapePaint{Kind: ShapeArea, Paths: paths, Fill: fill, Stroke: stroke})
}

func (rc *RenderContext) RenderAreaCaption(way *mapdata.Way, label theme.Label) {
	rc.labels = append(rc.labels, LabelItem{
		Kind: LabelPoint, Label: label, Anchor: rc.wayAnchor(way), Priority: label.Priority,
	})
}

func (rc *RenderContext) RenderAreaSymbol(way *mapdata.Way, sym *theme.SymbolRef, priority int) {
	rc.labels = append(rc.labels, LabelItem{
		Kind: LabelSymbol, Symbol: sym, Anchor: rc.wayAnchor(way), Priority: priority,
	})
}

func (rc *RenderContext) RenderPointOfInterestCaption(poi *mapdata.PointOfInterest, label theme.Label) {
	rc.labels = append(rc.labels, LabelItem{
		Kind: LabelPoint, Label: label, Anchor: rc.Project(poi.Position), Priority: label.Priority,
	})
}

func (rc *RenderContext) RenderPointOfInterestCircle(poi *mapdata.PointOfInterest, radius float32, fill, stroke *theme.Paint, level int) {
	rc.add(level, ShapePaint{
		Kind: ShapeCircle, Center: rc.Project(poi.Position), Radius: radius, Fill: fill, Stroke: stroke,
	})
}

func (rc *RenderContext) RenderPointOfInterestSymbol(poi *mapdata.PointOfInterest, sym *theme.SymbolRef, priority int) {
	rc.labels = append(rc.labels, LabelItem{
		Kind: LabelSymbol, Symbol: sym, Anchor: rc.Project(poi.Position), Priority: priority,
	})
}

func (rc *RenderContext) RenderWay(way *mapdata.Way, stroke *theme.Paint, dy float32, level int) {
	if len(way.Coordinates) == 0 {
		return
	}
	ls := rc.projectLine(way.Coordinates[0])
	if dy != 0 {
		ls = Offset(ls, float64(dy))
	}
	rc.add(level, ShapePaint{Kind: ShapeLine, Paths: []orb.LineString{ls}, Stroke: stroke})
}

func (rc *RenderContext) RenderWaySymbol(way *mapdata.Way, sym *theme.SymbolRef, dy float32, repeat bool, gap float32) {
	if len(way.Coordinates) == 0 {
		return
	}
	ls := rc.projectLine(way.Coordinates[0])
	if dy != 0 {
		ls = Offset(ls, float64(dy))
	}
	rc.labels = append(rc.labels, LabelItem{Kind: LabelLineSymbol, Symbol: sym, Path: ls, Repeat: repeat, Gap: gap})
}

func (rc *RenderContext) RenderWayText(way *mapdata.Way, label theme.Label) {
	if len(way.Coordinates) == 0 {
		return
	}
	ls := rc.projectLine(way.Coordinates[0])
	if label.DY != 0 {
		ls = Offset(ls, float64(label.DY))
	}
	rc.labels = append(rc.labels, LabelItem{Kind: LabelPath, Label: label, Path: ls, Priority: label.Priority})
}

func (rc *RenderContext) RenderHillShading(hs *theme.HillShading) {
	rc.hillShading = append(rc.hillShading, hs)
}

// Shapes calls fn for every queued shape, layer by layer and level by level
// within a layer. Insertion order is kept inside a bucket.
func (rc *RenderContext) Shapes(fn func(ShapePaint)) {
	for _, levels := range rc.shapes {
		for _, bucket := range levels {
			for _, sp := range bucket {
				fn(sp)
			}
		}
	}
}

// Labels returns the labels ordered by descending priority; equal
// priorities keep match order.
func (rc *RenderContext) Labels() []LabelItem {
	slices.SortStableFunc(rc.labels, func(a, b LabelItem) int { return cmp.Compare(b.Priority, a.Priority) })
	return rc.labels
}

// HillShadings returns the hill-shading instructions active for the tile.
func (rc *RenderContext) HillShadings() []*theme.HillShading { return rc.hillShading }

var _ theme.RenderCallback = (*RenderContext)(nil)
