//go:build go1.18

package cache

import (
	"strings"
	"testing"
)

// FuzzCache_SetGetRemove checks core invariants under arbitrary keys.
func FuzzCache_SetGetRemove(f *testing.F) {
	f.Add("", "")
	f.Add("highway=primary", "Line")
	f.Add("αβγ", "δ")
	f.Add("long", strings.Repeat("x", 1024))

	f.Fuzz(func(t *testing.T, k, v string) {
		const limit = 1 << 12
		if len(k) > limit {
			k = k[:limit]
		}
		if len(v) > limit {
			v = v[:limit]
		}

		c := New[string, string](Options[string, string]{Capacity: 16})
		t.Cleanup(func() { _ = c.Close() })

		c.Set(k, v)
		if got, ok := c.Get(k); !ok || got != v {
			t.Fatalf("after Set/Get: want %q, got %q ok=%v", v, got, ok)
		}
		if c.Add(k, "other") {
			t.Fatalf("Add duplicate returned true")
		}
		if got, ok := c.Peek(k); !ok || got != v {
			t.Fatalf("after duplicate Add: want %q, got %q ok=%v", v, got, ok)
		}
		if !c.Remove(k) {
			t.Fatalf("Remove must return true")
		}
		if c.Contains(k) {
			t.Fatalf("key must be absent after Remove")
		}
		if !c.Add(k, v) {
			t.Fatalf("Add after Remove must return true")
		}
	})
}
