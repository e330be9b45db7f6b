package render

import (
	"math"

	"github.com/paulmach/orb"
)

// Offset shifts ls sideways by d pixels. Positive d moves it to the left of
// the drawing direction as seen on screen (y down). Vertices use the
// averaged normal of their segments.
func Offset(ls orb.LineString, d float64) orb.LineString {
	if len(ls) < 2 || d == 0 {
		return ls
	}
	normals := make([]orb.Point, len(ls)-1)
	for i := range normals {
		dx, dy := ls[i+1][0]-ls[i][0], ls[i+1][1]-ls[i][1]
		n := math.Hypot(dx, dy)
		if n == 0 {
			continue
		}
		normals[i] = orb.Point{-dy / n, dx / n}
	}
	out := make(orb.LineString, len(ls))
	for i, p := range ls {
		var n orb.Point
		switch i {
		case 0:
			n = normals[0]
		case len(ls) - 1:
			n = normals[i-1]
		default:
			a, b := normals[i-1], normals[i]
			n = orb.Point{(a[0] + b[0]) / 2, (a[1] + b[1]) / 2}
			if l := math.Hypot(n[0], n[1]); l > 1e-9 {
				n = orb.Point{n[0] / l, n[1] / l}
			}
		}
		out[i] = orb.Point{p[0] - n[0]*d, p[1] - n[1]*d}
	}
	return out
}

// Length returns the pixel length of ls.
func Length(ls orb.LineString) float64 {
	var l float64
	for i := 1; i < len(ls); i++ {
		l += math.Hypot(ls[i][0]-ls[i-1][0], ls[i][1]-ls[i-1][1])
	}
	return l
}

// Along returns the point at distance s along ls and the direction angle
// of the segment it falls on.
func Along(ls orb.LineString, s float64) (orb.Point, float64) {
	if len(ls) == 0 {
		return orb.Point{}, 0
	}
	for i := 1; i < len(ls); i++ {
		a, b := ls[i-1], ls[i]
		seg := math.Hypot(b[0]-a[0], b[1]-a[1])
		if s <= seg || i == len(ls)-1 {
			t := 1.0
			if seg > 0 {
				t = min(s/seg, 1)
			}
			return orb.Point{a[0] + (b[0]-a[0])*t, a[1] + (b[1]-a[1])*t}, math.Atan2(b[1]-a[1], b[0]-a[0])
		}
		s -= seg
	}
	return ls[0], 0
}

// Dash splits ls into the "on" pieces of the repeating pattern
// (on, off, on, off, ...). An empty or non-positive pattern returns ls.
func Dash(ls orb.LineString, pattern []float32) []orb.LineString {
	var total float32
	for _, p := range pattern {
		if p < 0 {
			return []orb.LineString{ls}
		}
		total += p
	}
	if len(pattern) == 0 || total <= 0 || len(ls) < 2 {
		return []orb.LineString{ls}
	}

	var out []orb.LineString
	idx, left := 0, float64(pattern[0])
	on := true
	cur := orb.LineString{ls[0]}
	for i := 1; i < len(ls); i++ {
		a, b := ls[i-1], ls[i]
		seg := math.Hypot(b[0]-a[0], b[1]-a[1])
		pos := 0.0
		for seg-pos > left {
			pos += left
			t := pos / seg
			p := orb.Point{a[0] + (b[0]-a[0])*t, a[1] + (b[1]-a[1])*t}
			if on {
				cur = append(cur, p)
				out = append(out, cur)
				cur = nil
			} else {
				cur = orb.LineString{p}
			}
			on = !on
			idx = (idx + 1) % len(pattern)
			left = float64(pattern[idx])
		}
		left -= seg - pos
		if on {
			cur = append(cur, b)
		}
	}
	if on && len(cur) > 1 {
		out = append(out, cur)
	}
	return out
}
