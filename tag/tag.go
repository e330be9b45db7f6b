// Package tag models cartographic feature tags as interned key/value codes.
//
// Map readers and the render theme share one Pool so that tag comparison on
// the rendering hot path is integer comparison, never string comparison.
package tag

import (
	"strings"
	"sync"
)

// Code is an interned key or value. Zero means "absent".
type Code uint32

// Tag is an interned key=value pair. Equality is by codes.
type Tag struct {
	Key   Code
	Value Code
}

// Element is the kind of map element a rule applies to.
type Element uint8

const (
	ElementAny Element = iota
	ElementNode
	ElementWay
)

func (e Element) String() string {
	switch e {
	case ElementNode:
		return "node"
	case ElementWay:
		return "way"
	default:
		return "any"
	}
}

// Closed describes whether a way's endpoints coincide.
type Closed uint8

const (
	ClosedAny Closed = iota
	ClosedYes
	ClosedNo
)

func (c Closed) String() string {
	switch c {
	case ClosedYes:
		return "yes"
	case ClosedNo:
		return "no"
	default:
		return "any"
	}
}

// Pool interns tag keys and values. Keys and values live in separate code
// spaces. Safe for concurrent use.
type Pool struct {
	mu     sync.RWMutex
	keys   map[string]Code
	values map[string]Code
	rkeys  []string
	rvals  []string
}

// NewPool returns an empty pool. Code 0 is reserved in both spaces.
func NewPool() *Pool {
	return &Pool{
		keys:   make(map[string]Code),
		values: make(map[string]Code),
		rkeys:  []string{""},
		rvals:  []string{""},
	}
}

// Key returns the code for key, interning it on first use.
func (p *Pool) Key(key string) Code { return p.intern(key, p.keys, &p.rkeys) }

// Value returns the code for value, interning it on first use.
func (p *Pool) Value(value string) Code { return p.intern(value, p.values, &p.rvals) }

// LookupKey returns the code for key without interning it.
func (p *Pool) LookupKey(key string) (Code, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.keys[key]
	return c, ok
}

// Tag interns key and value and returns the pair.
func (p *Pool) Tag(key, value string) Tag {
	return Tag{Key: p.Key(key), Value: p.Value(value)}
}

// Parse interns a "key=value" string. A missing '=' yields an empty value.
func (p *Pool) Parse(kv string) Tag {
	k, v, _ := strings.Cut(kv, "=")
	return p.Tag(k, v)
}

// KeyString returns the string for a key code; "" for unknown codes.
func (p *Pool) KeyString(c Code) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if int(c) >= len(p.rkeys) {
		return ""
	}
	return p.rkeys[c]
}

// ValueString returns the string for a value code; "" for unknown codes.
func (p *Pool) ValueString(c Code) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if int(c) >= len(p.rvals) {
		return ""
	}
	return p.rvals[c]
}

// String formats t as "key=value".
func (p *Pool) String(t Tag) string {
	return p.KeyString(t.Key) + "=" + p.ValueString(t.Value)
}

func (p *Pool) intern(s string, m map[string]Code, rev *[]string) Code {
	p.mu.RLock()
	c, ok := m[s]
	p.mu.RUnlock()
	if ok {
		return c
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := m[s]; ok {
		return c
	}
	c = Code(len(*rev))
	*rev = append(*rev, s)
	m[s] = c
	return c
}

// Get returns the value code for key in tags, or 0.
func Get(tags []Tag, key Code) Code {
	for _, t := range tags {
		if t.Key == key {
			return t.Value
		}
	}
	return 0
}

// Has reports whether tags contain key.
func Has(tags []Tag, key Code) bool {
	for _, t := range tags {
		if t.Key == key {
			return true
		}
	}
	return false
}
