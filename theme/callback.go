package theme

import "github.com/IvanBrykalov/maprender/mapdata"

// Position places a label relative to its anchor.
type Position uint8

const (
	PositionCenter Position = iota
	PositionAbove
	PositionBelow
	PositionLeft
	PositionRight
)

// Label is a resolved caption: the text is already looked up in the
// feature's tags.
type Label struct {
	Text     string
	DY       float32
	Fill     *Paint
	Stroke   *Paint
	Priority int
	Position Position
}

// SymbolRef names a bitmap symbol. Loading it is up to the RenderCallback.
type SymbolRef struct {
	Src    string
	Width  int
	Height int
}

// RenderCallback receives the drawing decisions of a match pass. The theme
// only decides which instructions fire and in which order; implementations
// do the drawing.
type RenderCallback interface {
	RenderArea(way *mapdata.Way, fill, stroke *Paint, level int)
	RenderAreaCaption(way *mapdata.Way, label Label)
	RenderAreaSymbol(way *mapdata.Way, sym *SymbolRef, priority int)
	RenderPointOfInterestCaption(poi *mapdata.PointOfInterest, label Label)
	RenderPointOfInterestCircle(poi *mapdata.PointOfInterest, radius float32, fill, stroke *Paint, level int)
	RenderPointOfInterestSymbol(poi *mapdata.PointOfInterest, sym *SymbolRef, priority int)
	RenderWay(way *mapdata.Way, stroke *Paint, dy float32, level int)
	RenderWaySymbol(way *mapdata.Way, sym *SymbolRef, dy float32, repeat bool, gap float32)
	RenderWayText(way *mapdata.Way, label Label)
	RenderHillShading(hs *HillShading)
}
