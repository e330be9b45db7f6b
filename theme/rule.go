package theme

import (
	"slices"

	"github.com/IvanBrykalov/maprender/mapdata"
	"github.com/IvanBrykalov/maprender/tag"
)

// RuleKind discriminates the Rule variants.
type RuleKind uint8

const (
	// RulePositive matches through a key matcher and a value matcher.
	RulePositive RuleKind = iota
	// RuleNegative matches through a single negative attribute matcher.
	RuleNegative
	// RuleHillShading never matches features; its instructions are fired
	// per zoom level by RenderTheme.MatchHillShadings.
	RuleHillShading
)

func (k RuleKind) String() string {
	switch k {
	case RulePositive:
		return "positive"
	case RuleNegative:
		return "negative"
	default:
		return "hillshading"
	}
}

// Rule is one node of the theme's rule tree. Rules are created by a Builder
// and immutable once the theme is built.
type Rule struct {
	kind     RuleKind
	category string
	zoomMin  uint8
	zoomMax  uint8
	element  tag.Element
	closed   tag.Closed

	// RulePositive uses keys and values; RuleNegative uses attrs.
	keys   *AttributeMatcher
	values *AttributeMatcher
	attrs  *AttributeMatcher

	instructions []Instruction
	children     []*Rule
}

// Kind returns the rule variant.
func (r *Rule) Kind() RuleKind { return r.kind }

// Category returns the optional category name.
func (r *Rule) Category() string { return r.category }

// Zoom returns the inclusive zoom range.
func (r *Rule) Zoom() (min, max uint8) { return r.zoomMin, r.zoomMax }

// Element returns the (optimized) element selector.
func (r *Rule) Element() tag.Element { return r.element }

// Closed returns the (optimized) closed selector.
func (r *Rule) Closed() tag.Closed { return r.closed }

// Matchers returns the key and value matchers of a positive rule, or the
// attribute matcher twice for a negative rule.
func (r *Rule) Matchers() (keys, values *AttributeMatcher) {
	if r.kind == RuleNegative {
		return r.attrs, r.attrs
	}
	return r.keys, r.values
}

// Instructions returns the attached instructions in document order.
func (r *Rule) Instructions() []Instruction { return r.instructions }

// Children returns the child rules in document order.
func (r *Rule) Children() []*Rule { return r.children }

func (r *Rule) inZoom(zoom uint8) bool { return r.zoomMin <= zoom && zoom <= r.zoomMax }

func (r *Rule) tagsMatch(tags []tag.Tag) bool {
	switch r.kind {
	case RulePositive:
		return r.keys.Matches(tags) && r.values.Matches(tags)
	case RuleNegative:
		return r.attrs.Matches(tags)
	default:
		return false
	}
}

// MatchesNode reports whether the rule's own predicate accepts a node.
func (r *Rule) MatchesNode(tags []tag.Tag, zoom uint8) bool {
	return r.inZoom(zoom) && elementMatches(r.element, tag.ElementNode) && r.tagsMatch(tags)
}

// MatchesWay reports whether the rule's own predicate accepts a way.
func (r *Rule) MatchesWay(tags []tag.Tag, zoom uint8, closed tag.Closed) bool {
	return r.inZoom(zoom) &&
		elementMatches(r.element, tag.ElementWay) &&
		closedMatches(r.closed, closed) &&
		r.tagsMatch(tags)
}

// matchNode fires the rule's instructions when it matches and then visits
// every child. Pre-order: the append order is the invocation order.
func (r *Rule) matchNode(cb RenderCallback, poi *mapdata.PointOfInterest, zoom uint8, out []Instruction) []Instruction {
	if !r.MatchesNode(poi.Tags, zoom) {
		return out
	}
	for _, ins := range r.instructions {
		ins.RenderNode(cb, poi, zoom)
		out = append(out, ins)
	}
	for _, c := range r.children {
		out = c.matchNode(cb, poi, zoom, out)
	}
	return out
}

func (r *Rule) matchWay(cb RenderCallback, way *mapdata.Way, zoom uint8, closed tag.Closed, out []Instruction) []Instruction {
	if !r.MatchesWay(way.Tags, zoom, closed) {
		return out
	}
	for _, ins := range r.instructions {
		ins.RenderWay(cb, way, zoom)
		out = append(out, ins)
	}
	for _, c := range r.children {
		out = c.matchWay(cb, way, zoom, closed, out)
	}
	return out
}

func (r *Rule) matchHillShading(cb RenderCallback, zoom uint8) {
	if r.kind == RuleHillShading && r.inZoom(zoom) {
		for _, ins := range r.instructions {
			if hs, ok := ins.(*HillShading); ok {
				cb.RenderHillShading(hs)
			}
		}
	}
	for _, c := range r.children {
		c.matchHillShading(cb, zoom)
	}
}

func (r *Rule) walk(fn func(*Rule)) {
	fn(r)
	for _, c := range r.children {
		c.walk(fn)
	}
}

// freeze trims the slices; nothing appends afterwards.
func (r *Rule) freeze() {
	r.instructions = slices.Clip(r.instructions)
	r.children = slices.Clip(r.children)
}
