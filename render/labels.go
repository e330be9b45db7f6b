package render

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/IvanBrykalov/maprender/theme"
)

// placer keeps the boxes of placed labels so that later, lower-priority
// labels do not overlap them.
type placer struct {
	size  float64
	boxes []orb.Bound
}

func (p *placer) fits(b orb.Bound) bool {
	if b.Max[0] < 0 || b.Max[1] < 0 || b.Min[0] > p.size || b.Min[1] > p.size {
		return false
	}
	for _, o := range p.boxes {
		if b.Intersects(o) {
			return false
		}
	}
	return true
}

func (p *placer) place(b orb.Bound) bool {
	if !p.fits(b) {
		return false
	}
	p.boxes = append(p.boxes, b)
	return true
}

func boxAround(c orb.Point, w, h float64) orb.Bound {
	return orb.Bound{
		Min: orb.Point{c[0] - w/2, c[1] - h/2},
		Max: orb.Point{c[0] + w/2, c[1] + h/2},
	}
}

func (rc *RenderContext) drawLabels(cv Canvas) {
	p := &placer{size: float64(rc.size)}
	for _, l := range rc.Labels() {
		switch l.Kind {
		case LabelPoint:
			w, h := cv.MeasureText(l.Label)
			at := labelPosition(l, w, h)
			if p.place(boxAround(at, w, h)) {
				cv.DrawText(l.Label, at)
			}
		case LabelPath:
			w, h := cv.MeasureText(l.Label)
			length := Length(l.Path)
			if length < w {
				continue
			}
			at, _ := Along(l.Path, length/2)
			if p.place(boxAround(at, w, h)) {
				cv.DrawText(l.Label, at)
			}
		case LabelSymbol:
			b := boxAround(l.Anchor, float64(l.Symbol.Width), float64(l.Symbol.Height))
			if p.fits(b) && cv.DrawSymbol(l.Symbol, l.Anchor, 0) {
				p.place(b)
			}
		case LabelLineSymbol:
			rc.drawLineSymbol(cv, l)
		}
	}
}

func labelPosition(l LabelItem, w, h float64) orb.Point {
	at := l.Anchor
	at[1] += float64(l.Label.DY)
	switch l.Label.Position {
	case theme.PositionAbove:
		at[1] -= h
	case theme.PositionBelow:
		at[1] += h
	case theme.PositionLeft:
		at[0] -= w
	case theme.PositionRight:
		at[0] += w
	}
	return at
}

func (rc *RenderContext) drawLineSymbol(cv Canvas, l LabelItem) {
	length := Length(l.Path)
	step := float64(l.Gap) + float64(l.Symbol.Width)
	if step <= 0 || math.IsNaN(step) {
		step = float64(l.Symbol.Width) + 1
	}
	for s := step / 2; s < length; s += step {
		at, angle := Along(l.Path, s)
		cv.DrawSymbol(l.Symbol, at, angle)
		if !l.Repeat {
			return
		}
	}
}
