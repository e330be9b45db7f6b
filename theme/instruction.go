package theme

import (
	"sync"

	"github.com/IvanBrykalov/maprender/mapdata"
	"github.com/IvanBrykalov/maprender/tag"
)

// Instruction is a style instruction attached to a rule. RenderNode and
// RenderWay forward to the matching RenderCallback method, or do nothing
// when the instruction does not apply to that element kind.
//
// ScaleStrokeWidth and ScaleTextSize record zoom-specific variants; they may
// run while other goroutines render different zoom levels.
type Instruction interface {
	RenderNode(cb RenderCallback, poi *mapdata.PointOfInterest, zoom uint8)
	RenderWay(cb RenderCallback, way *mapdata.Way, zoom uint8)
	ScaleStrokeWidth(factor float32, zoom uint8)
	ScaleTextSize(factor float32, zoom uint8)
}

// Area fills (and optionally outlines) closed ways.
type Area struct {
	level  int
	fill   *zoomPaints
	stroke *zoomPaints
}

// NewArea returns an area instruction drawn at level. stroke may be nil.
func NewArea(level int, fill, stroke *Paint) *Area {
	return &Area{level: level, fill: newZoomPaints(fill), stroke: newZoomPaints(stroke)}
}

func (a *Area) RenderNode(RenderCallback, *mapdata.PointOfInterest, uint8) {}

func (a *Area) RenderWay(cb RenderCallback, way *mapdata.Way, zoom uint8) {
	cb.RenderArea(way, a.fill.get(zoom), a.stroke.get(zoom), a.level)
}

func (a *Area) ScaleStrokeWidth(f float32, zoom uint8) {
	a.stroke.set(zoom, func(p *Paint) *Paint { return p.withWidth(f) })
}

func (a *Area) ScaleTextSize(float32, uint8) {}

// Level returns the drawing level.
func (a *Area) Level() int { return a.level }

// Line strokes ways.
type Line struct {
	level  int
	dy     float32
	stroke *zoomPaints
}

// NewLine returns a line instruction drawn at level, offset by dy pixels.
func NewLine(level int, stroke *Paint, dy float32) *Line {
	return &Line{level: level, dy: dy, stroke: newZoomPaints(stroke)}
}

func (l *Line) RenderNode(RenderCallback, *mapdata.PointOfInterest, uint8) {}

func (l *Line) RenderWay(cb RenderCallback, way *mapdata.Way, zoom uint8) {
	cb.RenderWay(way, l.stroke.get(zoom), l.dy, l.level)
}

func (l *Line) ScaleStrokeWidth(f float32, zoom uint8) {
	l.stroke.set(zoom, func(p *Paint) *Paint { return p.withWidth(f) })
}

func (l *Line) ScaleTextSize(float32, uint8) {}

// Level returns the drawing level.
func (l *Line) Level() int { return l.level }

// Circle draws a disc on points of interest.
type Circle struct {
	level       int
	radius      float32
	scaleRadius bool
	fill        *zoomPaints
	stroke      *zoomPaints

	mu    sync.RWMutex
	radii map[uint8]float32
}

// NewCircle returns a circle instruction. When scaleRadius is set the radius
// follows the stroke scale factor.
func NewCircle(level int, radius float32, scaleRadius bool, fill, stroke *Paint) *Circle {
	return &Circle{
		level:       level,
		radius:      radius,
		scaleRadius: scaleRadius,
		fill:        newZoomPaints(fill),
		stroke:      newZoomPaints(stroke),
	}
}

func (c *Circle) RenderNode(cb RenderCallback, poi *mapdata.PointOfInterest, zoom uint8) {
	cb.RenderPointOfInterestCircle(poi, c.radiusAt(zoom), c.fill.get(zoom), c.stroke.get(zoom), c.level)
}

func (c *Circle) RenderWay(RenderCallback, *mapdata.Way, uint8) {}

func (c *Circle) ScaleStrokeWidth(f float32, zoom uint8) {
	c.stroke.set(zoom, func(p *Paint) *Paint { return p.withWidth(f) })
	if !c.scaleRadius {
		return
	}
	c.mu.Lock()
	if c.radii == nil {
		c.radii = make(map[uint8]float32)
	}
	c.radii[zoom] = c.radius * f
	c.mu.Unlock()
}

func (c *Circle) ScaleTextSize(float32, uint8) {}

func (c *Circle) radiusAt(zoom uint8) float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if r, ok := c.radii[zoom]; ok {
		return r
	}
	return c.radius
}

// Level returns the drawing level.
func (c *Circle) Level() int { return c.level }

// text is shared by Caption and PathText: the tag whose value is drawn plus
// the text paints.
type text struct {
	pool     *tag.Pool
	key      tag.Code
	dy       float32
	priority int
	position Position
	fill     *zoomPaints
	stroke   *zoomPaints
}

func (t *text) label(tags []tag.Tag, zoom uint8) (Label, bool) {
	v := tag.Get(tags, t.key)
	if v == 0 {
		return Label{}, false
	}
	return Label{
		Text:     t.pool.ValueString(v),
		DY:       t.dy,
		Fill:     t.fill.get(zoom),
		Stroke:   t.stroke.get(zoom),
		Priority: t.priority,
		Position: t.position,
	}, true
}

func (t *text) scaleText(f float32, zoom uint8) {
	scale := func(p *Paint) *Paint { return p.withTextSize(f) }
	t.fill.set(zoom, scale)
	t.stroke.set(zoom, scale)
}

// CaptionOptions configures a Caption or PathText.
type CaptionOptions struct {
	// Key is the tag whose value is drawn, usually "name".
	Key      string
	DY       float32
	Priority int
	Position Position
	Fill     *Paint
	Stroke   *Paint
}

func newText(pool *tag.Pool, o CaptionOptions) text {
	key := o.Key
	if key == "" {
		key = NameKey
	}
	return text{
		pool:     pool,
		key:      pool.Key(key),
		dy:       o.DY,
		priority: o.Priority,
		position: o.Position,
		fill:     newZoomPaints(o.Fill),
		stroke:   newZoomPaints(o.Stroke),
	}
}

// Caption labels points of interest and areas.
type Caption struct{ text }

// NewCaption returns a caption drawing the value of o.Key.
func NewCaption(pool *tag.Pool, o CaptionOptions) *Caption {
	return &Caption{text: newText(pool, o)}
}

func (c *Caption) RenderNode(cb RenderCallback, poi *mapdata.PointOfInterest, zoom uint8) {
	if l, ok := c.label(poi.Tags, zoom); ok {
		cb.RenderPointOfInterestCaption(poi, l)
	}
}

func (c *Caption) RenderWay(cb RenderCallback, way *mapdata.Way, zoom uint8) {
	if l, ok := c.label(way.Tags, zoom); ok {
		cb.RenderAreaCaption(way, l)
	}
}

func (c *Caption) ScaleStrokeWidth(float32, uint8) {}

func (c *Caption) ScaleTextSize(f float32, zoom uint8) { c.scaleText(f, zoom) }

// PathText draws a label along a way.
type PathText struct{ text }

// NewPathText returns a path text drawing the value of o.Key.
func NewPathText(pool *tag.Pool, o CaptionOptions) *PathText {
	return &PathText{text: newText(pool, o)}
}

func (p *PathText) RenderNode(RenderCallback, *mapdata.PointOfInterest, uint8) {}

func (p *PathText) RenderWay(cb RenderCallback, way *mapdata.Way, zoom uint8) {
	if l, ok := p.label(way.Tags, zoom); ok {
		cb.RenderWayText(way, l)
	}
}

func (p *PathText) ScaleStrokeWidth(float32, uint8) {}

func (p *PathText) ScaleTextSize(f float32, zoom uint8) { p.scaleText(f, zoom) }

// Symbol places a bitmap on points of interest and area centres.
type Symbol struct {
	ref      SymbolRef
	priority int
}

func NewSymbol(ref SymbolRef, priority int) *Symbol {
	return &Symbol{ref: ref, priority: priority}
}

func (s *Symbol) RenderNode(cb RenderCallback, poi *mapdata.PointOfInterest, _ uint8) {
	cb.RenderPointOfInterestSymbol(poi, &s.ref, s.priority)
}

func (s *Symbol) RenderWay(cb RenderCallback, way *mapdata.Way, _ uint8) {
	cb.RenderAreaSymbol(way, &s.ref, s.priority)
}

func (s *Symbol) ScaleStrokeWidth(float32, uint8) {}
func (s *Symbol) ScaleTextSize(float32, uint8)    {}

// LineSymbol places a bitmap along a way, once or repeatedly.
type LineSymbol struct {
	ref    SymbolRef
	dy     float32
	repeat bool
	gap    float32
}

func NewLineSymbol(ref SymbolRef, dy float32, repeat bool, gap float32) *LineSymbol {
	return &LineSymbol{ref: ref, dy: dy, repeat: repeat, gap: gap}
}

func (s *LineSymbol) RenderNode(RenderCallback, *mapdata.PointOfInterest, uint8) {}

func (s *LineSymbol) RenderWay(cb RenderCallback, way *mapdata.Way, _ uint8) {
	cb.RenderWaySymbol(way, &s.ref, s.dy, s.repeat, s.gap)
}

func (s *LineSymbol) ScaleStrokeWidth(float32, uint8) {}
func (s *LineSymbol) ScaleTextSize(float32, uint8)    {}

// HillShading asks the renderer to shade relief for the tile. It never fires
// for nodes or ways.
type HillShading struct {
	ZoomMin   uint8
	ZoomMax   uint8
	Magnitude uint8
	Layer     int8
	Always    bool
}

func (h *HillShading) RenderNode(RenderCallback, *mapdata.PointOfInterest, uint8) {}
func (h *HillShading) RenderWay(RenderCallback, *mapdata.Way, uint8)             {}
func (h *HillShading) ScaleStrokeWidth(float32, uint8)                           {}
func (h *HillShading) ScaleTextSize(float32, uint8)                              {}
