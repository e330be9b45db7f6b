package tile

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"math"
	"math/rand"
	"testing"

	"github.com/paulmach/orb"
)

func TestNew_Validates(t *testing.T) {
	t.Parallel()

	if _, err := New(3, 3, 2, 256); err != nil {
		t.Fatalf("valid tile rejected: %v", err)
	}
	for _, tc := range []struct {
		x, y uint32
		z    uint8
		size int
	}{
		{4, 0, 2, 256},
		{0, 4, 2, 256},
		{1, 0, 0, 256},
		{0, 0, MaxZoom + 1, 256},
		{0, 0, 3, 0},
	} {
		_, err := New(tc.x, tc.y, tc.z, tc.size)
		var ite *InvalidTileError
		if !errors.As(err, &ite) {
			t.Fatalf("%+v: want InvalidTileError, got %v", tc, err)
		}
	}
}

func TestAncestorAndRegion(t *testing.T) {
	t.Parallel()

	child := Tile{X: 13, Y: 6, Zoom: 4, Size: 256}
	p, ok := child.Parent()
	if !ok || p != (Tile{X: 6, Y: 3, Zoom: 3, Size: 256}) {
		t.Fatalf("Parent = %v", p)
	}
	a, ok := child.Ancestor(2)
	if !ok || a != (Tile{X: 3, Y: 1, Zoom: 2, Size: 256}) {
		t.Fatalf("Ancestor(2) = %v", a)
	}
	r, ok := child.RegionIn(a)
	// 13&3=1, 6&3=2, quarter of 256 = 64
	if !ok || r != image.Rect(64, 128, 128, 192) {
		t.Fatalf("RegionIn = %v ok=%v", r, ok)
	}
	if _, ok := child.RegionIn(Tile{X: 0, Y: 0, Zoom: 2, Size: 256}); ok {
		t.Fatal("unrelated tile is not an ancestor")
	}
	if _, ok := (Tile{Size: 256}).Parent(); ok {
		t.Fatal("root has no parent")
	}
}

func TestChildrenAndNeighbor(t *testing.T) {
	t.Parallel()

	tl := Tile{X: 1, Y: 1, Zoom: 1, Size: 256}
	kids, ok := tl.Children()
	if !ok {
		t.Fatal("children expected")
	}
	for _, k := range kids {
		if p, _ := k.Parent(); p != tl {
			t.Fatalf("child %v has parent %v", k, p)
		}
	}
	if _, ok := tl.Neighbor(1, 0); ok {
		t.Fatal("x=2 is off the zoom-1 grid")
	}
	if n, ok := tl.Neighbor(-1, -1); !ok || n.X != 0 || n.Y != 0 {
		t.Fatalf("Neighbor(-1,-1) = %v %v", n, ok)
	}
}

func TestMercatorRoundTrip(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewSource(3))
	for i := 0; i < 500; i++ {
		p := orb.Point{r.Float64()*360 - 180, r.Float64()*170 - 85}
		z := uint8(r.Intn(18))
		x, y := PointToPixel(p, z, 256)
		q := PixelToPoint(x, y, z, 256)
		if math.Abs(p[0]-q[0]) > 1e-6 || math.Abs(p[1]-q[1]) > 1e-6 {
			t.Fatalf("round trip %v -> %v", p, q)
		}
		tl := At(p, z, 256)
		if _, err := New(tl.X, tl.Y, tl.Zoom, tl.Size); err != nil {
			t.Fatalf("At produced invalid tile %v", tl)
		}
	}
}

func TestTileBoundContainsCenter(t *testing.T) {
	t.Parallel()

	tl := Tile{X: 2200, Y: 1343, Zoom: 12, Size: 256}
	cx, cy := tl.Center()
	if !tl.Bound().Contains(PixelToPoint(cx, cy, tl.Zoom, tl.Size)) {
		t.Fatal("tile bound must contain its centre")
	}
}

func TestJobIdentity(t *testing.T) {
	t.Parallel()

	a := Job{Tile: Tile{X: 1, Y: 2, Zoom: 3, Size: 256}, ThemeID: "osm", TextScale: 1}
	b := a
	if a != b || a.Hash64() != b.Hash64() {
		t.Fatal("equal jobs must be equal and hash equal")
	}
	variants := []Job{
		a.WithTile(Tile{X: 2, Y: 1, Zoom: 3, Size: 256}),
		{Tile: a.Tile, ThemeID: "osm2", TextScale: 1},
		{Tile: a.Tile, ThemeID: "osm", TextScale: 1.5},
		{Tile: a.Tile, ThemeID: "osm", TextScale: 1, HasAlpha: true},
	}
	for _, v := range variants {
		if v == a || v.Hash64() == a.Hash64() {
			t.Fatalf("job %v must differ from %v", v, a)
		}
	}
	if a.FileName() != b.FileName() {
		t.Fatal("file names must be stable")
	}
}

func TestBitmapRefcount(t *testing.T) {
	t.Parallel()

	b := NewBitmap(16)
	if b.Refs() != 1 {
		t.Fatalf("new bitmap refs = %d", b.Refs())
	}
	b.Retain()
	b.Release()
	if b.Refs() != 1 {
		t.Fatal("retain/release must balance")
	}
	b.Release()
	if b.Refs() != 0 {
		t.Fatal("last release must reach zero")
	}
	defer func() {
		if recover() == nil {
			t.Fatal("Retain after final Release must panic")
		}
	}()
	b.Retain()
}

func TestBitmapPNGRoundTrip(t *testing.T) {
	t.Parallel()

	b := NewBitmap(8)
	defer b.Release()
	b.Image().Set(3, 4, color.RGBA{R: 200, A: 255})

	var buf bytes.Buffer
	if err := b.EncodePNG(&buf); err != nil {
		t.Fatal(err)
	}
	got, err := DecodePNG(&buf)
	if err != nil {
		t.Fatal(err)
	}
	defer got.Release()
	if got.Size() != 8 || got.Image().RGBAAt(3, 4).R != 200 {
		t.Fatal("pixels lost in PNG round trip")
	}
}
