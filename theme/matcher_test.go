package theme

import (
	"testing"

	"github.com/IvanBrykalov/maprender/tag"
)

func TestAttributeMatcher_Matches(t *testing.T) {
	t.Parallel()

	p := tag.NewPool()
	primary := p.Tag("highway", "primary")
	river := p.Tag("waterway", "river")

	km := NewKeyMatcher(p.Key("highway"), p.Key("railway"))
	vm := NewValueMatcher(p.Value("primary"))

	cases := []struct {
		name string
		m    *AttributeMatcher
		tags []tag.Tag
		want bool
	}{
		{"any/empty", AnyMatcher(), nil, true},
		{"key/hit", km, []tag.Tag{river, primary}, true},
		{"key/miss", km, []tag.Tag{river}, false},
		{"key/empty", km, nil, false},
		{"value/hit", vm, []tag.Tag{primary}, true},
		{"value/miss", vm, []tag.Tag{river}, false},
	}
	for _, tc := range cases {
		if got := tc.m.Matches(tc.tags); got != tc.want {
			t.Errorf("%s: Matches = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestNegativeMatcher_Semantics(t *testing.T) {
	t.Parallel()

	p := tag.NewPool()
	m := NewNegativeMatcher(
		[]tag.Code{p.Key("access")},
		[]tag.Code{p.Value("yes"), p.Value("public")},
	)

	if !m.Matches([]tag.Tag{p.Tag("highway", "track")}) {
		t.Fatal("no excluded key present: must match")
	}
	if !m.Matches([]tag.Tag{p.Tag("access", "public")}) {
		t.Fatal("excluded key with excluded value: must match")
	}
	if m.Matches([]tag.Tag{p.Tag("access", "private")}) {
		t.Fatal("excluded key with other value: must not match")
	}
}

func TestAttributeMatcher_IsCoveredBy(t *testing.T) {
	t.Parallel()

	p := tag.NewPool()
	hw, rw := p.Key("highway"), p.Key("railway")
	small := NewKeyMatcher(hw)
	large := NewKeyMatcher(hw, rw)

	if !small.IsCoveredBy(large) {
		t.Fatal("{highway} must be covered by {highway,railway}")
	}
	if large.IsCoveredBy(small) {
		t.Fatal("{highway,railway} must not be covered by {highway}")
	}
	if !large.IsCoveredBy(AnyMatcher()) {
		t.Fatal("everything is covered by Any")
	}
	if AnyMatcher().IsCoveredBy(small) {
		t.Fatal("Any is not covered by a key matcher")
	}
	if small.IsCoveredBy(NewValueMatcher(p.Value("highway"))) {
		t.Fatal("key and value matchers never cover each other")
	}
}

func TestContains_LargeSet(t *testing.T) {
	t.Parallel()

	set := make([]tag.Code, 0, 20)
	for i := tag.Code(1); i <= 40; i += 2 {
		set = append(set, i)
	}
	for i := tag.Code(0); i <= 41; i++ {
		if got, want := contains(set, i), i%2 == 1; got != want {
			t.Fatalf("contains(%d) = %v, want %v", i, got, want)
		}
	}
}
