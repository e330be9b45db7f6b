package layer

import (
	"context"
	"image"
	"image/color"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/maprender/queue"
	"github.com/IvanBrykalov/maprender/tile"
	"github.com/IvanBrykalov/maprender/tilecache"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		time.Sleep(time.Millisecond)
	}
}

// view is 30×30 pixels centred on world pixel (48, 48) at zoom 3 with
// 16-pixel tiles: it shows tiles x,y in [2, 3], drawn at offset -1.
func view() Viewport {
	return Viewport{
		Position: MapPosition{Center: tile.PixelToPoint(48, 48, 3, 16), Zoom: 3},
		Width:    30,
		Height:   30,
		TileSize: 16,
	}
}

func solid(c color.RGBA) *tile.Bitmap {
	bm := tile.NewBitmap(16)
	img := bm.Image()
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return bm
}

var (
	red   = color.RGBA{R: 0xff, A: 0xff}
	green = color.RGBA{G: 0xff, A: 0xff}
)

func TestViewport_Tiles(t *testing.T) {
	t.Parallel()

	vp := Viewport{
		Position: MapPosition{Center: tile.PixelToPoint(8*256+128, 8*256+128, 4, 256), Zoom: 4},
		Width:    512,
		Height:   512,
		TileSize: 256,
	}
	if n := len(vp.Tiles(0)); n != 9 {
		t.Fatalf("visible tiles = %d, want 9", n)
	}
	if n := len(vp.Tiles(256)); n != 25 {
		t.Fatalf("tiles with margin = %d, want 25", n)
	}
	b := vp.Bound()
	if !b.Contains(vp.Position.Center) {
		t.Fatalf("bound %v must contain the centre", b)
	}

	corner := Viewport{Position: MapPosition{Zoom: 1}, Width: 1024, Height: 1024, TileSize: 256}
	for _, tl := range corner.Tiles(512) {
		if tl.X > tile.Max(1) || tl.Y > tile.Max(1) {
			t.Fatalf("tile %v outside the grid", tl)
		}
	}
	if len(corner.Tiles(0)) != 4 {
		t.Fatal("whole world at zoom 1 is 4 tiles")
	}
	if (Viewport{}).Tiles(0) != nil {
		t.Fatal("empty viewport has no tiles")
	}
}

func TestLayers_SafeGet(t *testing.T) {
	t.Parallel()

	var ls Layers
	var fired atomic.Int32
	ls.Observe(func() { fired.Add(1) })

	a, b := &fillLayer{c: red}, &fillLayer{c: green}
	ls.Add(a)
	ls.Insert(0, b)
	if got, ok := ls.SafeGet(0); !ok || got != b {
		t.Fatal("Insert(0) must put the layer at the bottom")
	}
	if !ls.Remove(b) || ls.Remove(b) {
		t.Fatal("Remove must succeed exactly once")
	}
	if _, ok := ls.SafeGet(1); ok {
		t.Fatal("index past the end must report absence")
	}
	if _, ok := ls.SafeGet(-1); ok {
		t.Fatal("negative index must report absence")
	}
	if fired.Load() != 3 {
		t.Fatalf("observers fired %d times, want 3", fired.Load())
	}
}

func newTileLayer(t *testing.T, opt TileLayerOptions) (*TileLayer, *tilecache.Memory, *queue.JobQueue) {
	t.Helper()
	c := tilecache.NewMemory(tilecache.MemoryOptions{Capacity: 64})
	t.Cleanup(c.Destroy)
	q := queue.New(queue.Options{})
	opt.ThemeID = "t"
	return NewTileLayer(c, q, opt), c, q
}

func drainKinds(q *queue.JobQueue) map[tile.Tile]queue.Kind {
	out := map[tile.Tile]queue.Kind{}
	for q.Len() > 0 {
		it, _ := q.Get(context.Background())
		out[it.Job.Tile] = it.Kind
		q.Done(it)
	}
	return out
}

func TestTileLayer_AncestorPlaceholder(t *testing.T) {
	t.Parallel()

	for _, mode := range []BlitMode{BlitSpeed, BlitQuality} {
		l, c, q := newTileLayer(t, TileLayerOptions{Blit: mode})
		anc := solid(red)
		c.Put(l.Job(tile.Tile{X: 1, Y: 1, Zoom: 2, Size: 16}), anc)
		anc.Release()

		dst := image.NewRGBA(image.Rect(0, 0, 30, 30))
		l.Draw(context.Background(), view(), dst)

		for _, p := range []image.Point{{5, 5}, {25, 25}, {20, 3}} {
			if got := dst.RGBAAt(p.X, p.Y); got != red {
				t.Fatalf("mode %d: pixel %v = %v, want placeholder red", mode, p, got)
			}
		}
		kinds := drainKinds(q)
		if len(kinds) != 4 {
			t.Fatalf("mode %d: queued %d jobs, want the 4 visible tiles", mode, len(kinds))
		}
		for tl, k := range kinds {
			if k != queue.Visible || tl.Zoom != 3 {
				t.Fatalf("mode %d: unexpected job %v kind %v", mode, tl, k)
			}
		}
	}
}

func TestTileLayer_StaleWhileRevalidate(t *testing.T) {
	t.Parallel()

	l, c, q := newTileLayer(t, TileLayerOptions{})
	stale := tile.Tile{X: 2, Y: 2, Zoom: 3, Size: 16}
	bm := solid(green)
	bm.SetExpiration(time.Now().Add(-time.Minute))
	c.Put(l.Job(stale), bm)
	bm.Release()

	dst := image.NewRGBA(image.Rect(0, 0, 30, 30))
	l.Draw(context.Background(), view(), dst)

	if got := dst.RGBAAt(5, 5); got != green {
		t.Fatalf("stale tile must stay on screen, got %v", got)
	}
	if got := dst.RGBAAt(25, 25); got == green {
		t.Fatal("missing tile must not show the neighbour")
	}
	kinds := drainKinds(q)
	if kinds[stale] != queue.Refresh {
		t.Fatalf("stale tile kind = %v, want refresh", kinds[stale])
	}
	if len(kinds) != 4 {
		t.Fatalf("queued %d, want 4", len(kinds))
	}
}

func TestTileLayer_FreshHitIsNotQueued(t *testing.T) {
	t.Parallel()

	l, c, q := newTileLayer(t, TileLayerOptions{})
	for x := uint32(2); x <= 3; x++ {
		for y := uint32(2); y <= 3; y++ {
			bm := solid(green)
			c.Put(l.Job(tile.Tile{X: x, Y: y, Zoom: 3, Size: 16}), bm)
			bm.Release()
		}
	}
	l.Draw(context.Background(), view(), image.NewRGBA(image.Rect(0, 0, 30, 30)))
	if q.Len() != 0 {
		t.Fatalf("fully cached view queued %d jobs", q.Len())
	}
}

func TestTileLayer_Precache(t *testing.T) {
	t.Parallel()

	l, _, q := newTileLayer(t, TileLayerOptions{Precache: true, Margin: 16, ZoomPlus: 1, ZoomMinus: 1})
	l.Draw(context.Background(), view(), image.NewRGBA(image.Rect(0, 0, 30, 30)))

	var visible, pre int
	for tl, k := range drainKinds(q) {
		switch k {
		case queue.Visible:
			visible++
			if tl.Zoom != 3 {
				t.Fatalf("visible job at zoom %d", tl.Zoom)
			}
		case queue.Precache:
			pre++
		}
	}
	// margin ring 16-4, zoom 4 covers 2×2, zoom 2 covers 3×3
	if visible != 4 || pre != 12+4+9 {
		t.Fatalf("visible %d precache %d, want 4 and 25", visible, pre)
	}
}

func TestTileLayer_SetThemeClearsQueue(t *testing.T) {
	t.Parallel()

	l, _, q := newTileLayer(t, TileLayerOptions{})
	l.Draw(context.Background(), view(), image.NewRGBA(image.Rect(0, 0, 30, 30)))
	if q.Len() == 0 {
		t.Fatal("draw must queue misses")
	}
	l.SetTheme("other", 1)
	if q.Len() != 0 {
		t.Fatal("theme switch must drop queued jobs")
	}
	if l.Job(tile.Tile{}).ThemeID != "other" {
		t.Fatal("new jobs must use the new theme")
	}
}

type fillLayer struct {
	Visibility
	c     color.RGBA
	draws atomic.Int32
}

func (f *fillLayer) Draw(_ context.Context, _ Viewport, dst *image.RGBA) {
	f.draws.Add(1)
	for i := 0; i < len(dst.Pix); i += 4 {
		dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2], dst.Pix[i+3] = f.c.R, f.c.G, f.c.B, f.c.A
	}
}

func startManager(t *testing.T, pace time.Duration) (*Manager, *Model, *Layers, *FrameBuffer, *errgroup.Group) {
	t.Helper()
	model := NewModel(MapPosition{Zoom: 3}, 8, 8, 16)
	layers := &Layers{}
	fb := &FrameBuffer{}
	m := NewManager(model, layers, fb, ManagerOptions{FramePace: pace})
	g := &errgroup.Group{}
	g.Go(func() error { return m.Run(context.Background()) })
	t.Cleanup(func() {
		m.Stop()
		if err := g.Wait(); err != nil {
			t.Error(err)
		}
	})
	return m, model, layers, fb, g
}

func TestManager_CommitsFrame(t *testing.T) {
	t.Parallel()

	_, _, layers, fb, _ := startManager(t, time.Millisecond)
	hidden := &fillLayer{c: red}
	hidden.SetVisible(false)
	layers.Add(&fillLayer{c: green})
	layers.Add(hidden)

	waitFor(t, func() bool { return fb.Frames() >= 1 })
	snap := fb.Snapshot()
	if got := snap.RGBAAt(4, 4); got != green {
		t.Fatalf("published pixel = %v, want green", got)
	}
	if hidden.draws.Load() != 0 {
		t.Fatal("hidden layer must not be drawn")
	}
}

func TestManager_AnimationSuppressesCommit(t *testing.T) {
	t.Parallel()

	m, model, layers, fb, _ := startManager(t, time.Millisecond)
	layers.Add(&fillLayer{c: green})
	waitFor(t, func() bool { return fb.Frames() >= 1 })

	model.SetAnimating(true)
	// let any frame that started before the animation finish
	d0 := m.Drawn()
	waitFor(t, func() bool { return m.Drawn() >= d0+2 })
	frames := fb.Frames()
	drawn := m.Drawn()
	model.SetPosition(MapPosition{Zoom: 4})
	waitFor(t, func() bool { return m.Drawn() >= drawn+3 })
	if fb.Frames() != frames {
		t.Fatal("frames drawn during an animation must not be published")
	}

	model.SetAnimating(false)
	waitFor(t, func() bool { return fb.Frames() > frames })
}

func TestManager_PacesFrames(t *testing.T) {
	t.Parallel()

	m, _, layers, _, _ := startManager(t, 40*time.Millisecond)
	layers.Add(&fillLayer{c: green})

	start := time.Now()
	for time.Since(start) < 200*time.Millisecond {
		m.RedrawLayers()
		time.Sleep(time.Millisecond)
	}
	if n := m.Drawn(); n > 8 {
		t.Fatalf("drew %d frames in 200ms at a 40ms pace", n)
	}
}

func TestManager_PauseProceedStop(t *testing.T) {
	t.Parallel()

	m, _, layers, fb, g := startManager(t, time.Millisecond)
	layers.Add(&fillLayer{c: green})
	waitFor(t, func() bool { return fb.Frames() >= 1 })

	m.Pause()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.AwaitPaused(ctx); err != nil {
		t.Fatal(err)
	}
	drawn := m.Drawn()
	m.RedrawLayers()
	time.Sleep(20 * time.Millisecond)
	if m.Drawn() != drawn {
		t.Fatal("paused scheduler must not draw")
	}

	m.Proceed()
	waitFor(t, func() bool { return m.Drawn() > drawn })
	if m.State() != Waiting && m.State() != Drawing {
		t.Fatalf("unexpected state %v", m.State())
	}

	m.Stop()
	m.Stop()
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

func TestManager_RunReturnsWhenContextEnds(t *testing.T) {
	t.Parallel()

	model := NewModel(MapPosition{Zoom: 3}, 8, 8, 16)
	layers := &Layers{}
	m := NewManager(model, layers, &FrameBuffer{}, ManagerOptions{FramePace: 30 * time.Millisecond})
	layers.Add(&fillLayer{c: green})
	model.SetAnimating(true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	waitFor(t, func() bool { return m.Drawn() >= 1 })
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run still looping after cancel, %d frames drawn", m.Drawn())
	}
}
