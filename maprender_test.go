package maprender

import (
	"context"
	"errors"
	"image/color"
	"os"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/maprender/layer"
	"github.com/IvanBrykalov/maprender/mapdata"
	"github.com/IvanBrykalov/maprender/mapdata/memstore"
	"github.com/IvanBrykalov/maprender/tag"
	"github.com/IvanBrykalov/maprender/theme"
)

var forest = color.RGBA{G: 200, A: 255}

func forestMap(t *testing.T) (*theme.RenderTheme, *memstore.Store) {
	t.Helper()
	b := theme.NewBuilder(theme.BuilderOptions{ID: "forest"})
	if err := b.BeginRule(theme.RuleSpec{Element: tag.ElementWay, Keys: "landuse", Values: "forest", ZoomMax: 20}); err != nil {
		t.Fatal(err)
	}
	if err := b.AddInstruction(theme.NewArea(b.NextLevel(), &theme.Paint{Color: color.NRGBA{G: 200, A: 255}}, nil)); err != nil {
		t.Fatal(err)
	}
	if err := b.EndRule(); err != nil {
		t.Fatal(err)
	}
	th, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(th.Release)

	st := memstore.New()
	st.AddWay(mapdata.Way{
		Tags: []tag.Tag{th.Pool().Tag("landuse", "forest")},
		Coordinates: []orb.LineString{{
			{13.3, 52.4}, {13.5, 52.4}, {13.5, 52.6}, {13.3, 52.6}, {13.3, 52.4},
		}},
	})
	return th, st
}

func TestMap_RendersForest(t *testing.T) {
	t.Parallel()

	th, st := forestMap(t)
	reg := prometheus.NewRegistry()
	dir := t.TempDir()
	m, err := New(Options{
		Store:      st,
		Theme:      th,
		Width:      300,
		Height:     200,
		Position:   layer.MapPosition{Center: orb.Point{13.4, 52.5}, Zoom: 14},
		CacheDir:   dir,
		Workers:    2,
		FramePace:  5 * time.Millisecond,
		Registerer: reg,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for {
		if snap := m.FrameBuffer.Snapshot(); snap != nil && snap.RGBAAt(150, 100) == forest && snap.RGBAAt(5, 5) == forest {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("forest never reached the published frame")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(); err != nil {
		t.Fatal("Close must be idempotent")
	}
	if err := m.Start(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("Start after Close err = %v", err)
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) == 0 {
		t.Fatal("rendered tiles must persist in the cache dir")
	}
	if n := testutil.CollectAndCount(reg, "maprender_render_render_seconds"); n != 1 {
		t.Fatalf("render histogram series = %d, want 1", n)
	}
}

func TestMap_StartAndCloseConcurrently(t *testing.T) {
	t.Parallel()

	th, st := forestMap(t)
	for range 10 {
		m, err := New(Options{Store: st, Theme: th, Width: 64, Height: 64, Workers: 1})
		if err != nil {
			t.Fatal(err)
		}
		var g errgroup.Group
		g.Go(func() error {
			if err := m.Start(context.Background()); err != nil && !errors.Is(err, ErrClosed) {
				return err
			}
			return nil
		})
		for range 2 {
			g.Go(m.Close)
		}
		if err := g.Wait(); err != nil {
			t.Fatal(err)
		}
		if err := m.Start(context.Background()); !errors.Is(err, ErrClosed) {
			t.Fatalf("Start after Close err = %v", err)
		}
	}
}

func TestMap_StopsWhenContextEnds(t *testing.T) {
	t.Parallel()

	th, st := forestMap(t)
	m, err := New(Options{Store: st, Theme: th, Width: 64, Height: 64, Workers: 2})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := m.Start(ctx); err != nil {
		t.Fatal(err)
	}
	m.Model.SetAnimating(true)
	cancel()

	done := make(chan error, 1)
	go func() { done <- m.Close() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Close hung after the context ended")
	}
}

func TestNew_Validates(t *testing.T) {
	t.Parallel()

	if _, err := New(Options{}); err == nil {
		t.Fatal("missing store and theme must fail")
	}
}

func TestSetLogger(t *testing.T) {
	SetLogger(nil)
	if Logger() == nil {
		t.Fatal("Logger must never be nil")
	}
}
