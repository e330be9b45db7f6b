// Package theme implements the render theme: a tree of rules matching
// feature tags per zoom level, the style instructions those rules fire and
// the bounded caches that turn repeated matching into a lookup.
//
// A theme is assembled with a Builder (the XML parser is a separate
// concern) and is immutable once built. Matching is safe for concurrent
// use by render workers.
package theme

import (
	"image/color"
	"sync"
	"sync/atomic"

	"github.com/IvanBrykalov/maprender/cache"
	"github.com/IvanBrykalov/maprender/internal/logger"
	"github.com/IvanBrykalov/maprender/internal/util"
	"github.com/IvanBrykalov/maprender/mapdata"
	"github.com/IvanBrykalov/maprender/policy/twoq"
	"github.com/IvanBrykalov/maprender/tag"
)

// RenderTheme is a built rule tree plus its match caches. It is reference
// counted: the creator holds the first reference, every further consumer
// calls Retain, and the last Release clears the caches and drops the tree.
type RenderTheme struct {
	id         string
	pool       *tag.Pool
	nameKey    tag.Code
	// nameMatched is set when a rule tests the name key; nameValues holds
	// the value codes of value matchers a name could satisfy.
	nameMatched bool
	nameValues  []tag.Code
	levels     int
	background color.NRGBA

	baseStrokeWidth float32
	baseTextSize    float32

	rules atomic.Pointer[[]*Rule]

	scaleMu      sync.Mutex
	strokeScales map[uint8]float32
	textScales   map[uint8]float32

	poiCache cache.Cache[MatchingCacheKey, []Instruction]
	wayCache cache.Cache[MatchingCacheKey, []Instruction]

	refs atomic.Int32
}

func newRenderTheme(opt BuilderOptions, pool *tag.Pool, rules []*Rule, levels int, obs nameUse) *RenderTheme {
	t := &RenderTheme{
		nameMatched:     obs.keyed,
		nameValues:      codeSet(obs.values),
		id:              opt.ID,
		pool:            pool,
		nameKey:         pool.Key(NameKey),
		levels:          levels,
		background:      opt.Background,
		baseStrokeWidth: opt.BaseStrokeWidth,
		baseTextSize:    opt.BaseTextSize,
		strokeScales:    make(map[uint8]float32),
		textScales:      make(map[uint8]float32),
	}
	t.rules.Store(&rules)
	copt := cache.Options[MatchingCacheKey, []Instruction]{
		Capacity: opt.MatchCacheSize,
		Metrics:  opt.Metrics,
	}
	if opt.ScanResistant {
		copt.Shards = util.ReasonableShardCount()
		per := max(1, opt.MatchCacheSize/copt.Shards)
		copt.Policy = twoq.New[MatchingCacheKey, []Instruction](max(1, per/4), max(1, per/2))
	}
	t.poiCache = cache.New(copt)
	t.wayCache = cache.New(copt)
	t.refs.Store(1)
	return t
}

// ID returns the theme identity used in tile jobs.
func (t *RenderTheme) ID() string { return t.id }

// Pool returns the tag pool the theme's matchers were interned in. Map
// readers must intern feature tags in the same pool.
func (t *RenderTheme) Pool() *tag.Pool { return t.pool }

// Levels returns the number of drawing levels used by the theme's
// instructions. Renderers size their per-layer draw lists with it.
func (t *RenderTheme) Levels() int { return t.levels }

// Background returns the map background colour.
func (t *RenderTheme) Background() color.NRGBA { return t.background }

// Rules returns the top-level rules in document order, or nil once the
// theme is destroyed.
func (t *RenderTheme) Rules() []*Rule {
	if p := t.rules.Load(); p != nil {
		return *p
	}
	return nil
}

// Retain adds a reference.
func (t *RenderTheme) Retain() error {
	for {
		n := t.refs.Load()
		if n <= 0 {
			return ErrThemeDestroyed
		}
		if t.refs.CompareAndSwap(n, n+1) {
			return nil
		}
	}
}

// Release drops a reference. The last one destroys the theme.
func (t *RenderTheme) Release() {
	n := t.refs.Add(-1)
	switch {
	case n == 0:
		t.destroy()
	case n < 0:
		panic("theme: Release without matching Retain")
	}
}

// Destroyed reports whether the last reference was released.
func (t *RenderTheme) Destroyed() bool { return t.refs.Load() <= 0 }

func (t *RenderTheme) destroy() {
	t.rules.Store(nil)
	_ = t.poiCache.Close()
	_ = t.wayCache.Close()
	logger.Get().Debug("theme destroyed", "id", t.id)
}

// cacheKey leaves the name tag out unless a rule of this theme could tell
// two names apart.
func (t *RenderTheme) cacheKey(tags []tag.Tag, zoom uint8, closed tag.Closed) MatchingCacheKey {
	name := t.nameKey
	for _, tg := range tags {
		if tg.Key == name && (t.nameMatched || contains(t.nameValues, tg.Value)) {
			name = 0
			break
		}
	}
	return NewMatchingCacheKey(tags, name, zoom, closed)
}

// MatchNode fires the instructions matching poi at zoom on cb and returns
// them in invocation order. The returned slice is shared; do not modify it.
func (t *RenderTheme) MatchNode(cb RenderCallback, poi *mapdata.PointOfInterest, zoom uint8) []Instruction {
	key := t.cacheKey(poi.Tags, zoom, tag.ClosedNo)
	if list, ok := t.poiCache.Get(key); ok {
		for _, ins := range list {
			ins.RenderNode(cb, poi, zoom)
		}
		return list
	}
	var list []Instruction
	for _, r := range t.Rules() {
		list = r.matchNode(cb, poi, zoom, list)
	}
	t.poiCache.Set(key, list)
	return list
}

// MatchClosedWay is MatchWay for ways whose endpoints coincide.
func (t *RenderTheme) MatchClosedWay(cb RenderCallback, way *mapdata.Way, zoom uint8) []Instruction {
	return t.matchWay(cb, way, zoom, tag.ClosedYes)
}

// MatchLinearWay is MatchWay for open ways.
func (t *RenderTheme) MatchLinearWay(cb RenderCallback, way *mapdata.Way, zoom uint8) []Instruction {
	return t.matchWay(cb, way, zoom, tag.ClosedNo)
}

// MatchWay dispatches on way.Closed().
func (t *RenderTheme) MatchWay(cb RenderCallback, way *mapdata.Way, zoom uint8) []Instruction {
	if way.Closed() {
		return t.MatchClosedWay(cb, way, zoom)
	}
	return t.MatchLinearWay(cb, way, zoom)
}

func (t *RenderTheme) matchWay(cb RenderCallback, way *mapdata.Way, zoom uint8, closed tag.Closed) []Instruction {
	key := t.cacheKey(way.Tags, zoom, closed)
	if list, ok := t.wayCache.Get(key); ok {
		for _, ins := range list {
			ins.RenderWay(cb, way, zoom)
		}
		return list
	}
	var list []Instruction
	for _, r := range t.Rules() {
		list = r.matchWay(cb, way, zoom, closed, list)
	}
	t.wayCache.Set(key, list)
	return list
}

// MatchHillShadings fires every hill-shading instruction active at zoom.
func (t *RenderTheme) MatchHillShadings(cb RenderCallback, zoom uint8) {
	for _, r := range t.Rules() {
		r.matchHillShading(cb, zoom)
	}
}

// ScaleStrokeWidth prepares stroke widths for zoom. Repeated calls with the
// same factor are no-ops; the tree is only walked when the factor changes.
func (t *RenderTheme) ScaleStrokeWidth(factor float32, zoom uint8) {
	t.scaleMu.Lock()
	defer t.scaleMu.Unlock()
	if f, ok := t.strokeScales[zoom]; ok && f == factor {
		return
	}
	f := factor * t.baseStrokeWidth
	for _, r := range t.Rules() {
		r.walk(func(r *Rule) {
			for _, ins := range r.instructions {
				ins.ScaleStrokeWidth(f, zoom)
			}
		})
	}
	t.strokeScales[zoom] = factor
}

// ScaleTextSize prepares text sizes for zoom; see ScaleStrokeWidth.
func (t *RenderTheme) ScaleTextSize(factor float32, zoom uint8) {
	t.scaleMu.Lock()
	defer t.scaleMu.Unlock()
	if f, ok := t.textScales[zoom]; ok && f == factor {
		return
	}
	f := factor * t.baseTextSize
	for _, r := range t.Rules() {
		r.walk(func(r *Rule) {
			for _, ins := range r.instructions {
				ins.ScaleTextSize(f, zoom)
			}
		})
	}
	t.textScales[zoom] = factor
}

// MatchCacheLen returns the number of cached POI and way match results.
func (t *RenderTheme) MatchCacheLen() (pois, ways int) {
	return t.poiCache.Len(), t.wayCache.Len()
}
