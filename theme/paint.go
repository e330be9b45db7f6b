package theme

import (
	"image/color"
	"slices"
	"sync"
)

// Style selects how a Paint is applied.
type Style uint8

const (
	Fill Style = iota
	Stroke
)

// Cap is the line end style.
type Cap uint8

const (
	CapRound Cap = iota
	CapButt
	CapSquare
)

// Join is the line corner style.
type Join uint8

const (
	JoinRound Join = iota
	JoinBevel
	JoinMiter
)

// Paint describes a fill or stroke. Instructions never mutate a Paint they
// handed out; scaled variants are fresh copies.
type Paint struct {
	Color    color.NRGBA
	Style    Style
	Width    float32
	Cap      Cap
	Join     Join
	Dash     []float32
	TextSize float32
}

// Transparent reports whether drawing p has no visible effect.
func (p *Paint) Transparent() bool { return p == nil || p.Color.A == 0 }

func (p *Paint) withWidth(f float32) *Paint {
	c := *p
	c.Width = p.Width * f
	if len(p.Dash) > 0 {
		c.Dash = slices.Clone(p.Dash)
		for i := range c.Dash {
			c.Dash[i] *= f
		}
	}
	return &c
}

func (p *Paint) withTextSize(f float32) *Paint {
	c := *p
	c.TextSize = p.TextSize * f
	return &c
}

// zoomPaints memoizes scaled copies of a base Paint per zoom level. Workers
// rendering different zooms read concurrently.
type zoomPaints struct {
	base *Paint
	mu   sync.RWMutex
	m    map[uint8]*Paint
}

func newZoomPaints(base *Paint) *zoomPaints {
	return &zoomPaints{base: base}
}

func (z *zoomPaints) get(zoom uint8) *Paint {
	if z == nil || z.base == nil {
		return nil
	}
	z.mu.RLock()
	p, ok := z.m[zoom]
	z.mu.RUnlock()
	if ok {
		return p
	}
	return z.base
}

func (z *zoomPaints) set(zoom uint8, scale func(*Paint) *Paint) {
	if z == nil || z.base == nil {
		return
	}
	p := scale(z.base)
	z.mu.Lock()
	if z.m == nil {
		z.m = make(map[uint8]*Paint)
	}
	z.m[zoom] = p
	z.mu.Unlock()
}
