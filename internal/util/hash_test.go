package util

import "testing"

type hashed struct{ v uint64 }

func (h hashed) Hash64() uint64 { return h.v }

func TestFnv64a_Hash64Preferred(t *testing.T) {
	t.Parallel()
	if got := Fnv64a(hashed{v: 42}); got != 42 {
		t.Fatalf("Hash64 not used: %d", got)
	}
}

func TestFnv64a_StringMatchesBytes(t *testing.T) {
	t.Parallel()
	if HashString("tile") != HashBytes([]byte("tile")) {
		t.Fatal("string and byte hashing must agree")
	}
	if Fnv64a("tile") != HashString("tile") {
		t.Fatal("Fnv64a(string) must use HashString")
	}
}

func TestMixString_LengthDelimited(t *testing.T) {
	t.Parallel()
	a := MixString(MixString(Seed, "ab"), "c")
	b := MixString(MixString(Seed, "a"), "bc")
	if a == b {
		t.Fatal("tuple hashes must not collide on re-split strings")
	}
}

func TestFnv64a_UnsupportedPanics(t *testing.T) {
	t.Parallel()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for unsupported key type")
		}
	}()
	type opaque struct{ a, b int }
	Fnv64a(opaque{1, 2})
}

func TestNextPow2(t *testing.T) {
	t.Parallel()
	cases := map[uint64]uint64{0: 1, 1: 1, 2: 2, 3: 4, 5: 8, 1024: 1024, 1025: 2048}
	for in, want := range cases {
		if got := NextPow2(in); got != want {
			t.Fatalf("NextPow2(%d) = %d, want %d", in, got, want)
		}
	}
}
