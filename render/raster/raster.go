// Package raster is the reference render.Canvas: shapes are rasterized with
// golang.org/x/image/vector, captions drawn with golang.org/x/image/font.
package raster

import (
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/paulmach/orb"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/IvanBrykalov/maprender/render"
	"github.com/IvanBrykalov/maprender/theme"
)

// Options configures canvases. Zero values are safe:
//   - nil Font          => Go Regular
//   - TextSize <= 0     => 12
type Options struct {
	// Symbols maps SymbolRef.Src to its image.
	Symbols map[string]image.Image
	// Font renders captions.
	Font *opentype.Font
	// TextSize is used for paints without a TextSize.
	TextSize float64
}

var (
	regularOnce sync.Once
	regular     *opentype.Font
)

func defaultFont() *opentype.Font {
	regularOnce.Do(func() {
		f, err := opentype.Parse(goregular.TTF)
		if err == nil {
			regular = f
		}
	})
	return regular
}

// NewFactory returns a CanvasFactory sharing opt between canvases.
func NewFactory(opt Options) render.CanvasFactory {
	if opt.Font == nil {
		opt.Font = defaultFont()
	}
	if opt.TextSize <= 0 {
		opt.TextSize = 12
	}
	return func(dst *image.RGBA) render.Canvas { return newCanvas(dst, &opt) }
}

// Canvas draws into an *image.RGBA. Not safe for concurrent use; font
// faces are per canvas for that reason.
type Canvas struct {
	dst   *image.RGBA
	r     *vector.Rasterizer
	opt   *Options
	faces map[float64]font.Face
}

func newCanvas(dst *image.RGBA, opt *Options) *Canvas {
	b := dst.Bounds()
	return &Canvas{
		dst:   dst,
		r:     vector.NewRasterizer(b.Dx(), b.Dy()),
		opt:   opt,
		faces: make(map[float64]font.Face),
	}
}

func (c *Canvas) Clear(col color.NRGBA) {
	draw.Draw(c.dst, c.dst.Bounds(), image.NewUniform(col), image.Point{}, draw.Src)
}

func (c *Canvas) reset() {
	b := c.dst.Bounds()
	c.r.Reset(b.Dx(), b.Dy())
}

func (c *Canvas) paint(p *theme.Paint) {
	c.r.Draw(c.dst, c.dst.Bounds(), image.NewUniform(p.Color), image.Point{})
}

func (c *Canvas) DrawArea(rings []orb.LineString, fill, stroke *theme.Paint) {
	if !fill.Transparent() {
		c.reset()
		for _, ring := range rings {
			if len(ring) < 3 {
				continue
			}
			c.r.MoveTo(float32(ring[0][0]), float32(ring[0][1]))
			for _, p := range ring[1:] {
				c.r.LineTo(float32(p[0]), float32(p[1]))
			}
			c.r.ClosePath()
		}
		c.paint(fill)
	}
	if !stroke.Transparent() {
		c.reset()
		for _, ring := range rings {
			c.addStroke(ring, stroke)
		}
		c.paint(stroke)
	}
}

func (c *Canvas) DrawLine(ls orb.LineString, stroke *theme.Paint) {
	if stroke.Transparent() || len(ls) < 2 {
		return
	}
	c.reset()
	for _, piece := range render.Dash(ls, stroke.Dash) {
		c.addStroke(piece, stroke)
	}
	c.paint(stroke)
}

func (c *Canvas) DrawCircle(center orb.Point, radius float32, fill, stroke *theme.Paint) {
	cx, cy := float32(center[0]), float32(center[1])
	if !fill.Transparent() {
		c.reset()
		addCircle(c.r, cx, cy, radius, false)
		c.paint(fill)
	}
	if !stroke.Transparent() {
		hw := strokeWidth(stroke) / 2
		c.reset()
		addCircle(c.r, cx, cy, radius+hw, false)
		if inner := radius - hw; inner > 0 {
			addCircle(c.r, cx, cy, inner, true)
		}
		c.paint(stroke)
	}
}

func strokeWidth(p *theme.Paint) float32 {
	return max(p.Width, 1)
}

// addStroke outlines ls as one quad per segment plus round joins and caps.
// Every sub-path winds the same way, so overlaps do not cancel out.
func (c *Canvas) addStroke(ls orb.LineString, p *theme.Paint) {
	if len(ls) < 2 {
		return
	}
	hw := float64(strokeWidth(p)) / 2
	pts := ls
	if p.Cap == theme.CapSquare {
		pts = extendEnds(ls, hw)
	}
	for i := 1; i < len(pts); i++ {
		a, b := pts[i-1], pts[i]
		dx, dy := b[0]-a[0], b[1]-a[1]
		n := math.Hypot(dx, dy)
		if n == 0 {
			continue
		}
		nx, ny := -dy/n*hw, dx/n*hw
		c.r.MoveTo(float32(a[0]+nx), float32(a[1]+ny))
		c.r.LineTo(float32(b[0]+nx), float32(b[1]+ny))
		c.r.LineTo(float32(b[0]-nx), float32(b[1]-ny))
		c.r.LineTo(float32(a[0]-nx), float32(a[1]-ny))
		c.r.ClosePath()
	}
	if hw < 1 {
		return
	}
	for i, q := range pts {
		end := i == 0 || i == len(pts)-1
		if (end && p.Cap == theme.CapRound) || (!end && p.Join == theme.JoinRound) {
			addDisc(c.r, q, hw)
		}
	}
}

func extendEnds(ls orb.LineString, d float64) orb.LineString {
	out := append(orb.LineString(nil), ls...)
	ext := func(from, to orb.Point) orb.Point {
		dx, dy := to[0]-from[0], to[1]-from[1]
		n := math.Hypot(dx, dy)
		if n == 0 {
			return to
		}
		return orb.Point{to[0] + dx/n*d, to[1] + dy/n*d}
	}
	out[0] = ext(ls[1], ls[0])
	out[len(out)-1] = ext(ls[len(ls)-2], ls[len(ls)-1])
	return out
}

// addDisc adds a polygonal disc winding like the stroke quads.
func addDisc(r *vector.Rasterizer, c orb.Point, radius float64) {
	const steps = 12
	r.MoveTo(float32(c[0]+radius), float32(c[1]))
	for i := 1; i < steps; i++ {
		a := -2 * math.Pi * float64(i) / steps
		r.LineTo(float32(c[0]+radius*math.Cos(a)), float32(c[1]+radius*math.Sin(a)))
	}
	r.ClosePath()
}

// addCircle adds a circle using cubic Bézier curves.
func addCircle(r *vector.Rasterizer, cx, cy, radius float32, clockwise bool) {
	const k = float32(0.5522847498)
	kr := k * radius

	r.MoveTo(cx, cy-radius)
	if clockwise {
		r.CubeTo(cx-kr, cy-radius, cx-radius, cy-kr, cx-radius, cy)
		r.CubeTo(cx-radius, cy+kr, cx-kr, cy+radius, cx, cy+radius)
		r.CubeTo(cx+kr, cy+radius, cx+radius, cy+kr, cx+radius, cy)
		r.CubeTo(cx+radius, cy-kr, cx+kr, cy-radius, cx, cy-radius)
	} else {
		r.CubeTo(cx+kr, cy-radius, cx+radius, cy-kr, cx+radius, cy)
		r.CubeTo(cx+radius, cy+kr, cx+kr, cy+radius, cx, cy+radius)
		r.CubeTo(cx-kr, cy+radius, cx-radius, cy+kr, cx-radius, cy)
		r.CubeTo(cx-radius, cy-kr, cx-kr, cy-radius, cx, cy-radius)
	}
	r.ClosePath()
}

func (c *Canvas) face(l theme.Label) font.Face {
	size := c.opt.TextSize
	if l.Fill != nil && l.Fill.TextSize > 0 {
		size = float64(l.Fill.TextSize)
	}
	if f, ok := c.faces[size]; ok {
		return f
	}
	var f font.Face = basicfont.Face7x13
	if c.opt.Font != nil {
		if of, err := opentype.NewFace(c.opt.Font, &opentype.FaceOptions{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingFull,
		}); err == nil {
			f = of
		}
	}
	c.faces[size] = f
	return f
}

func (c *Canvas) MeasureText(l theme.Label) (w, h float64) {
	f := c.face(l)
	return float64(font.MeasureString(f, l.Text).Ceil()), float64(f.Metrics().Height.Ceil())
}

// DrawText centres the label on at, with a halo in the stroke colour.
func (c *Canvas) DrawText(l theme.Label, at orb.Point) {
	f := c.face(l)
	w := font.MeasureString(f, l.Text).Ceil()
	m := f.Metrics()
	x := int(math.Round(at[0])) - w/2
	y := int(math.Round(at[1])) - m.Height.Ceil()/2 + m.Ascent.Ceil()

	if !l.Stroke.Transparent() {
		halo := max(1, int(strokeWidth(l.Stroke)/2))
		for _, dx := range []int{-halo, 0, halo} {
			for _, dy := range []int{-halo, 0, halo} {
				if dx != 0 || dy != 0 {
					c.text(f, l.Text, x+dx, y+dy, l.Stroke.Color)
				}
			}
		}
	}
	col := color.NRGBA{A: 0xff}
	if l.Fill != nil {
		col = l.Fill.Color
	}
	c.text(f, l.Text, x, y, col)
}

func (c *Canvas) text(f font.Face, s string, x, y int, col color.NRGBA) {
	d := &font.Drawer{
		Dst:  c.dst,
		Src:  image.NewUniform(col),
		Face: f,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func (c *Canvas) DrawSymbol(sym *theme.SymbolRef, at orb.Point, angle float64) bool {
	img, ok := c.opt.Symbols[sym.Src]
	if !ok {
		return false
	}
	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	if angle == 0 {
		x := int(math.Round(at[0] - w/2))
		y := int(math.Round(at[1] - h/2))
		draw.Draw(c.dst, image.Rect(x, y, x+b.Dx(), y+b.Dy()), img, b.Min, draw.Over)
		return true
	}
	sin, cos := math.Sincos(angle)
	// rotate around the symbol centre, then move it to at
	cx, cy := float64(b.Min.X)+w/2, float64(b.Min.Y)+h/2
	m := f64.Aff3{
		cos, -sin, at[0] - cos*cx + sin*cy,
		sin, cos, at[1] - sin*cx - cos*cy,
	}
	draw.ApproxBiLinear.Transform(c.dst, m, img, b, draw.Over, nil)
	return true
}

var _ render.Canvas = (*Canvas)(nil)
