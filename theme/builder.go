package theme

import (
	"fmt"
	"image/color"
	"math"
	"slices"
	"strings"

	"github.com/IvanBrykalov/maprender/cache"
	"github.com/IvanBrykalov/maprender/internal/logger"
	"github.com/IvanBrykalov/maprender/tag"
)

// MaxZoomLevel is the conventional zoom-max of a rule without upper bound.
const MaxZoomLevel uint8 = math.MaxUint8

const (
	wildcard = "*"
	negation = "~"
	listSep  = "|"
)

// BuilderOptions configures a Builder and the theme it produces.
// Zero values are safe; NewBuilder applies defaults:
//   - nil Pool            => fresh tag.Pool
//   - MatchCacheSize <= 0 => 1024
//   - BaseStrokeWidth <= 0 => 1
//   - BaseTextSize <= 0   => 1
//   - Background zero     => opaque white
type BuilderOptions struct {
	// ID identifies the theme in tile jobs and cache keys.
	ID string

	// Pool interns tag keys and values. Map readers must share it.
	Pool *tag.Pool

	// MatchCacheSize bounds each of the POI and way match caches.
	MatchCacheSize int
	// ScanResistant switches the match caches to 2Q, so tiles full of
	// one-off tag combinations do not flush the common ones.
	ScanResistant bool

	// Categories enables rule categories. Nil enables all; otherwise rules
	// carrying a category not in the set are skipped with their subtree.
	// Rules without category are always kept.
	Categories map[string]bool

	BaseStrokeWidth float32
	BaseTextSize    float32
	Background      color.NRGBA

	// Metrics observes the match caches.
	Metrics cache.Metrics
}

// RuleSpec is one rule definition as a theme file states it.
type RuleSpec struct {
	Element tag.Element
	// Keys and Values are "|"-separated alternatives. "*" matches
	// anything; a "~" among the values makes the rule negative.
	Keys     string
	Values   string
	Closed   tag.Closed
	ZoomMin  uint8
	ZoomMax  uint8
	Category string
}

// Builder assembles a RenderTheme from rule definitions in document order.
// The first error poisons the builder: every later call returns it and no
// theme is produced. A Builder is not safe for concurrent use.
type Builder struct {
	opt  BuilderOptions
	pool *tag.Pool

	// arena interns equal matchers for the lifetime of one build.
	arena map[string]*AttributeMatcher

	names nameUse

	stack  []*Rule
	skip   int
	rules  []*Rule
	levels int

	warnings []string
	err      error
	built    bool
}

// NewBuilder returns an empty builder.
func NewBuilder(opt BuilderOptions) *Builder {
	if opt.Pool == nil {
		opt.Pool = tag.NewPool()
	}
	if opt.MatchCacheSize <= 0 {
		opt.MatchCacheSize = 1024
	}
	if opt.BaseStrokeWidth <= 0 {
		opt.BaseStrokeWidth = 1
	}
	if opt.BaseTextSize <= 0 {
		opt.BaseTextSize = 1
	}
	if opt.Background == (color.NRGBA{}) {
		opt.Background = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	}
	return &Builder{
		opt:   opt,
		pool:  opt.Pool,
		arena: make(map[string]*AttributeMatcher),
	}
}

// Pool returns the tag pool in use.
func (b *Builder) Pool() *tag.Pool { return b.pool }

// NextLevel allocates the next drawing level. Instructions are drawn in
// level order within a layer.
func (b *Builder) NextLevel() int {
	l := b.levels
	b.levels++
	return l
}

// Warnings returns the diagnostics collected so far, e.g. unreachable rules.
func (b *Builder) Warnings() []string { return b.warnings }

// Err returns the error that poisoned the builder, if any.
func (b *Builder) Err() error { return b.err }

func (b *Builder) check() error {
	if b.built {
		return ErrBuilt
	}
	return b.err
}

func (b *Builder) fail(err error) error {
	if b.err == nil {
		b.err = err
	}
	return err
}

func (b *Builder) warn(msg string) {
	b.warnings = append(b.warnings, msg)
	logger.Get().Warn("unreachable rule", "theme", b.opt.ID, "depth", len(b.stack), "reason", msg)
}

// BuildRule validates spec and builds a detached rule optimized against
// ancestors (outermost first). It does not attach the rule anywhere.
func (b *Builder) BuildRule(spec RuleSpec, ancestors []*Rule) (*Rule, error) {
	if spec.ZoomMin > spec.ZoomMax {
		return nil, &RuleError{
			Field:  "zoom",
			Value:  fmt.Sprintf("%d>%d", spec.ZoomMin, spec.ZoomMax),
			Reason: "zoom-min greater than zoom-max",
		}
	}
	keys, err := splitList("k", spec.Keys)
	if err != nil {
		return nil, err
	}
	values, err := splitList("v", spec.Values)
	if err != nil {
		return nil, err
	}
	if spec.Element == tag.ElementNode && spec.Closed != tag.ClosedAny {
		return nil, &RuleError{Field: "closed", Value: spec.Closed.String(), Reason: "closed applies to ways only"}
	}

	r := &Rule{
		category: spec.Category,
		zoomMin:  spec.ZoomMin,
		zoomMax:  spec.ZoomMax,
		element:  optimizeElement(spec.Element, ancestors, b.warn),
		closed:   optimizeClosed(spec.Closed, ancestors, b.warn),
	}

	if i := slices.Index(values, negation); i >= 0 {
		values = slices.Delete(values, i, i+1)
		r.kind = RuleNegative
		r.attrs = b.intern(NewNegativeMatcher(b.keyCodes(keys), b.valueCodes(values)))
		b.names.observe(r.attrs, b.pool.Key(NameKey))
		return r, nil
	}

	r.kind = RulePositive
	km := anyMatcher
	if slices.Index(keys, wildcard) < 0 {
		km = b.intern(NewKeyMatcher(b.keyCodes(keys)...))
	}
	vm := anyMatcher
	if slices.Index(values, wildcard) < 0 {
		vm = b.intern(NewValueMatcher(b.valueCodes(values)...))
	}
	b.names.observe(km, b.pool.Key(NameKey))
	b.names.observe(vm, b.pool.Key(NameKey))
	r.keys = optimizeAttribute(km, ancestors, func(a *Rule) *AttributeMatcher { return a.keys })
	r.values = optimizeAttribute(vm, ancestors, func(a *Rule) *AttributeMatcher { return a.values })
	return r, nil
}

// BeginRule opens a rule nested in the currently open one.
func (b *Builder) BeginRule(spec RuleSpec) error {
	if err := b.check(); err != nil {
		return err
	}
	if b.skip > 0 || !b.categoryEnabled(spec.Category) {
		b.skip++
		return nil
	}
	r, err := b.BuildRule(spec, b.stack)
	if err != nil {
		return b.fail(err)
	}
	b.attach(r)
	b.stack = append(b.stack, r)
	return nil
}

// EndRule closes the innermost open rule.
func (b *Builder) EndRule() error {
	if err := b.check(); err != nil {
		return err
	}
	if b.skip > 0 {
		b.skip--
		return nil
	}
	if len(b.stack) == 0 {
		return b.fail(ErrNoOpenRule)
	}
	b.stack = b.stack[:len(b.stack)-1]
	return nil
}

// AddInstruction attaches ins to the innermost open rule.
func (b *Builder) AddInstruction(ins Instruction) error {
	if err := b.check(); err != nil {
		return err
	}
	if b.skip > 0 {
		return nil
	}
	if len(b.stack) == 0 {
		return b.fail(ErrNoOpenRule)
	}
	r := b.stack[len(b.stack)-1]
	r.instructions = append(r.instructions, ins)
	return nil
}

// AddHillShading adds a hill-shading rule at the current position. It fires
// only through RenderTheme.MatchHillShadings.
func (b *Builder) AddHillShading(hs *HillShading) error {
	if err := b.check(); err != nil {
		return err
	}
	if b.skip > 0 {
		return nil
	}
	if hs.ZoomMin > hs.ZoomMax {
		return b.fail(&RuleError{
			Field:  "hillshading zoom",
			Value:  fmt.Sprintf("%d>%d", hs.ZoomMin, hs.ZoomMax),
			Reason: "zoom-min greater than zoom-max",
		})
	}
	b.attach(&Rule{
		kind:         RuleHillShading,
		zoomMin:      hs.ZoomMin,
		zoomMax:      hs.ZoomMax,
		instructions: []Instruction{hs},
	})
	return nil
}

// Build freezes the rule tree and returns the theme holding one reference.
func (b *Builder) Build() (*RenderTheme, error) {
	if err := b.check(); err != nil {
		return nil, err
	}
	if len(b.stack) > 0 || b.skip > 0 {
		return nil, b.fail(ErrUnclosedRule)
	}
	for _, r := range b.rules {
		r.walk((*Rule).freeze)
	}
	b.built = true
	b.arena = nil

	t := newRenderTheme(b.opt, b.pool, b.rules, b.levels, b.names)
	logger.Get().Info("theme built",
		"id", b.opt.ID, "rules", len(b.rules), "levels", b.levels, "warnings", len(b.warnings))
	return t, nil
}

// nameUse records how the rules of a theme can observe the name tag.
type nameUse struct {
	keyed  bool       // some matcher lists the name key
	values []tag.Code // value codes a name tag could match
}

func (u *nameUse) observe(m *AttributeMatcher, name tag.Code) {
	switch m.kind {
	case MatchKey, MatchNegative:
		u.keyed = u.keyed || contains(m.keys, name)
	case MatchValue:
		u.values = append(u.values, m.values...)
	}
}

func (b *Builder) attach(r *Rule) {
	if n := len(b.stack); n > 0 {
		p := b.stack[n-1]
		p.children = append(p.children, r)
		return
	}
	b.rules = append(b.rules, r)
}

func (b *Builder) categoryEnabled(c string) bool {
	return c == "" || b.opt.Categories == nil || b.opt.Categories[c]
}

func (b *Builder) intern(m *AttributeMatcher) *AttributeMatcher {
	k := m.internKey()
	if x, ok := b.arena[k]; ok {
		return x
	}
	b.arena[k] = m
	return m
}

func (b *Builder) keyCodes(ss []string) []tag.Code {
	cs := make([]tag.Code, len(ss))
	for i, s := range ss {
		cs[i] = b.pool.Key(s)
	}
	return cs
}

func (b *Builder) valueCodes(ss []string) []tag.Code {
	cs := make([]tag.Code, len(ss))
	for i, s := range ss {
		cs[i] = b.pool.Value(s)
	}
	return cs
}

func splitList(field, s string) ([]string, error) {
	if s == "" {
		return nil, &RuleError{Field: field, Reason: "missing"}
	}
	parts := strings.Split(s, listSep)
	for _, p := range parts {
		if p == "" {
			return nil, &RuleError{Field: field, Value: s, Reason: "empty alternative"}
		}
	}
	return parts, nil
}
