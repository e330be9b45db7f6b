package theme

import (
	"fmt"

	"github.com/IvanBrykalov/maprender/tag"
)

// A rule is only evaluated after all its ancestors matched, so a check an
// ancestor already guarantees can be skipped at match time. The optimizer
// replaces such checks with Any. A check that no ancestor can ever allow is
// reported through warn, but the rule is kept.

// optimizeAttribute simplifies a positive rule's key or value matcher
// against the positive ancestors' matcher selected by pick. Tag lists carry
// several tags, so two different key sets are never mutually exclusive and
// no diagnostic is raised here.
func optimizeAttribute(m *AttributeMatcher, ancestors []*Rule, pick func(*Rule) *AttributeMatcher) *AttributeMatcher {
	if m.kind == MatchAny || m.kind == MatchNegative {
		return m
	}
	for _, a := range ancestors {
		if a.kind != RulePositive {
			continue
		}
		am := pick(a)
		if am.IsCoveredBy(m) {
			return anyMatcher
		}
	}
	return m
}

func optimizeElement(e tag.Element, ancestors []*Rule, warn func(string)) tag.Element {
	if e == tag.ElementAny {
		return e
	}
	for _, a := range ancestors {
		if elementCoveredBy(a.element, e) {
			return tag.ElementAny
		}
		if !elementCoveredBy(e, a.element) {
			warn(fmt.Sprintf("element %s under ancestor element %s", e, a.element))
		}
	}
	return e
}

func optimizeClosed(c tag.Closed, ancestors []*Rule, warn func(string)) tag.Closed {
	if c == tag.ClosedAny {
		return c
	}
	for _, a := range ancestors {
		if closedCoveredBy(a.closed, c) {
			return tag.ClosedAny
		}
		if !closedCoveredBy(c, a.closed) {
			warn(fmt.Sprintf("closed=%s under ancestor closed=%s", c, a.closed))
		}
	}
	return c
}
