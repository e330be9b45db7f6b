package theme

import (
	"slices"
	"strconv"
	"strings"

	"github.com/IvanBrykalov/maprender/tag"
)

// MatcherKind discriminates the AttributeMatcher variants.
type MatcherKind uint8

const (
	MatchAny MatcherKind = iota
	MatchKey
	MatchValue
	MatchNegative
)

func (k MatcherKind) String() string {
	switch k {
	case MatchKey:
		return "key"
	case MatchValue:
		return "value"
	case MatchNegative:
		return "negative"
	default:
		return "any"
	}
}

// AttributeMatcher tests a tag list. Code sets are sorted and immutable.
//
//   - MatchAny: always true.
//   - MatchKey: some tag's key is in keys.
//   - MatchValue: some tag's value is in values.
//   - MatchNegative: no tag carries an excluded key, or a tag with an
//     excluded key carries an excluded value.
type AttributeMatcher struct {
	kind   MatcherKind
	keys   []tag.Code
	values []tag.Code
}

var anyMatcher = &AttributeMatcher{kind: MatchAny}

// AnyMatcher returns the always-true singleton.
func AnyMatcher() *AttributeMatcher { return anyMatcher }

// NewKeyMatcher matches tags whose key is one of keys.
func NewKeyMatcher(keys ...tag.Code) *AttributeMatcher {
	return &AttributeMatcher{kind: MatchKey, keys: codeSet(keys)}
}

// NewValueMatcher matches tags whose value is one of values.
func NewValueMatcher(values ...tag.Code) *AttributeMatcher {
	return &AttributeMatcher{kind: MatchValue, values: codeSet(values)}
}

// NewNegativeMatcher builds the negative matcher over excluded keys and values.
func NewNegativeMatcher(keys, values []tag.Code) *AttributeMatcher {
	return &AttributeMatcher{kind: MatchNegative, keys: codeSet(keys), values: codeSet(values)}
}

func codeSet(cs []tag.Code) []tag.Code {
	out := slices.Clone(cs)
	slices.Sort(out)
	return slices.Clip(slices.Compact(out))
}

// Kind returns the variant.
func (m *AttributeMatcher) Kind() MatcherKind { return m.kind }

// Matches reports whether tags satisfy the matcher.
func (m *AttributeMatcher) Matches(tags []tag.Tag) bool {
	switch m.kind {
	case MatchAny:
		return true
	case MatchKey:
		for _, t := range tags {
			if contains(m.keys, t.Key) {
				return true
			}
		}
		return false
	case MatchValue:
		for _, t := range tags {
			if contains(m.values, t.Value) {
				return true
			}
		}
		return false
	default:
		present := false
		for _, t := range tags {
			if contains(m.keys, t.Key) {
				if contains(m.values, t.Value) {
					return true
				}
				present = true
			}
		}
		return !present
	}
}

// IsCoveredBy reports whether every tag list m matches is also matched by
// other. Used only while building; conservative (false when unsure).
func (m *AttributeMatcher) IsCoveredBy(other *AttributeMatcher) bool {
	if m == other || other.kind == MatchAny {
		return true
	}
	if m.kind != other.kind {
		return false
	}
	switch m.kind {
	case MatchKey:
		return subset(m.keys, other.keys)
	case MatchValue:
		return subset(m.values, other.values)
	case MatchNegative:
		return slices.Equal(m.keys, other.keys) && slices.Equal(m.values, other.values)
	default:
		return false
	}
}

// String is a debug representation, e.g. "key[3|7]".
func (m *AttributeMatcher) String() string {
	var sb strings.Builder
	sb.WriteString(m.kind.String())
	if m.kind == MatchAny {
		return sb.String()
	}
	sb.WriteByte('[')
	writeCodes(&sb, m.keys)
	sb.WriteByte(';')
	writeCodes(&sb, m.values)
	sb.WriteByte(']')
	return sb.String()
}

// internKey identifies equal matchers inside a builder arena.
func (m *AttributeMatcher) internKey() string { return m.String() }

func writeCodes(sb *strings.Builder, cs []tag.Code) {
	for i, c := range cs {
		if i > 0 {
			sb.WriteByte('|')
		}
		sb.WriteString(strconv.FormatUint(uint64(c), 10))
	}
}

// contains is a linear scan for the short sets themes use, binary search
// otherwise.
func contains(set []tag.Code, c tag.Code) bool {
	if len(set) <= 8 {
		for _, s := range set {
			if s == c {
				return true
			}
		}
		return false
	}
	_, ok := slices.BinarySearch(set, c)
	return ok
}

func subset(a, b []tag.Code) bool {
	for _, c := range a {
		if !contains(b, c) {
			return false
		}
	}
	return true
}

// elementMatches reports whether a rule element selector accepts e.
func elementMatches(sel, e tag.Element) bool { return sel == tag.ElementAny || sel == e }

// elementCoveredBy reports whether every element sel accepts, other accepts.
func elementCoveredBy(sel, other tag.Element) bool { return other == tag.ElementAny || sel == other }

func closedMatches(sel, c tag.Closed) bool { return sel == tag.ClosedAny || sel == c }

func closedCoveredBy(sel, other tag.Closed) bool { return other == tag.ClosedAny || sel == other }
