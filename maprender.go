// Package maprender renders offline vector maps into cached tiles and
// composes them into frames.
//
// The pieces live in sub-packages: theme matches feature tags against a
// rule tree, render rasterizes one tile, tilecache stores bitmaps, queue and
// worker turn missing tiles into rendered ones and layer schedules frames.
// Map wires them together for the common case.
package maprender

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/maprender/cache"
	"github.com/IvanBrykalov/maprender/layer"
	"github.com/IvanBrykalov/maprender/mapdata"
	pmet "github.com/IvanBrykalov/maprender/metrics/prom"
	"github.com/IvanBrykalov/maprender/queue"
	"github.com/IvanBrykalov/maprender/render"
	"github.com/IvanBrykalov/maprender/render/raster"
	"github.com/IvanBrykalov/maprender/theme"
	"github.com/IvanBrykalov/maprender/tile"
	"github.com/IvanBrykalov/maprender/tilecache"
	"github.com/IvanBrykalov/maprender/worker"
)

// ErrClosed is returned by Start after Close.
var ErrClosed = errors.New("maprender: map closed")

// Options configures a Map. Zero values are safe; New applies defaults:
//   - TileSize <= 0    => 256
//   - MemoryTiles <= 0 => twice the tiles a Width×Height screen can touch
//   - FileTiles <= 0   => 1024 (only with CacheDir)
//   - Canvas nil       => raster canvas with the Go Regular font
//   - Registerer nil   => no metrics
type Options struct {
	// Store supplies the map data. Required.
	Store mapdata.Store
	// Theme styles the map. Required; the caller keeps ownership.
	Theme *theme.RenderTheme

	Width, Height int
	TileSize      int
	Position      layer.MapPosition
	TextScale     float32

	// CacheDir enables the persistent second cache tier.
	CacheDir    string
	MemoryTiles int
	FileTiles   int

	Workers    int
	FramePace  time.Duration
	Canvas     render.CanvasFactory
	HillShader render.HillShader
	TTL        time.Duration

	Blit      layer.BlitMode
	Precache  bool
	Margin    int
	ZoomPlus  int
	ZoomMinus int

	Registerer prometheus.Registerer
	Namespace  string
}

// Map is a complete rendering pipeline: model and layers in front, the
// frame scheduler and render workers behind.
type Map struct {
	Model       *layer.Model
	Layers      *layer.Layers
	FrameBuffer *layer.FrameBuffer
	Manager     *layer.Manager
	TileLayer   *layer.TileLayer
	Queue       *queue.JobQueue
	Cache       tilecache.TileCache
	Renderer    *render.TileRenderer
	Pool        *worker.Pool

	mu     sync.Mutex
	g      *errgroup.Group
	cancel context.CancelFunc
	closed bool
}

// New wires a Map. Call Start to run it and Close to release it.
func New(opt Options) (*Map, error) {
	if opt.Store == nil || opt.Theme == nil {
		return nil, errors.New("maprender: Options.Store and Options.Theme are required")
	}
	if opt.TileSize <= 0 {
		opt.TileSize = 256
	}
	if opt.MemoryTiles <= 0 {
		opt.MemoryTiles = 2 * (opt.Width/opt.TileSize + 2) * (opt.Height/opt.TileSize + 2)
	}
	if opt.Canvas == nil {
		opt.Canvas = raster.NewFactory(raster.Options{})
	}
	if opt.Namespace == "" {
		opt.Namespace = "maprender"
	}

	var memMetrics, fileMetrics cache.Metrics
	var poolMetrics worker.Metrics
	if opt.Registerer != nil {
		memMetrics = pmet.New(opt.Registerer, opt.Namespace, "tiles", prometheus.Labels{"tier": "memory"})
		poolMetrics = pmet.NewPool(opt.Registerer, opt.Namespace, "render", nil)
		if opt.CacheDir != "" {
			fileMetrics = pmet.New(opt.Registerer, opt.Namespace, "tiles", prometheus.Labels{"tier": "file"})
		}
	}

	var tc tilecache.TileCache = tilecache.NewMemory(tilecache.MemoryOptions{
		Capacity: opt.MemoryTiles,
		Metrics:  memMetrics,
	})
	if opt.CacheDir != "" {
		fs := tilecache.NewFileSystem(tilecache.FileSystemOptions{
			Dir:      opt.CacheDir,
			Capacity: opt.FileTiles,
			Metrics:  fileMetrics,
		})
		tc = tilecache.NewTwoLevel(tc, fs)
	}

	r, err := render.NewTileRenderer(opt.Theme, render.Options{
		Store:      opt.Store,
		Canvas:     opt.Canvas,
		HillShader: opt.HillShader,
		TTL:        opt.TTL,
	})
	if err != nil {
		tc.Destroy()
		return nil, fmt.Errorf("maprender: %w", err)
	}

	m := &Map{
		Model:       layer.NewModel(opt.Position, opt.Width, opt.Height, opt.TileSize),
		Layers:      &layer.Layers{},
		FrameBuffer: &layer.FrameBuffer{},
		Queue:       queue.New(queue.Options{}),
		Cache:       tc,
		Renderer:    r,
	}
	m.TileLayer = layer.NewTileLayer(tc, m.Queue, layer.TileLayerOptions{
		ThemeID:   opt.Theme.ID(),
		TextScale: opt.TextScale,
		Blit:      opt.Blit,
		Stale:     layer.DataPolicy(opt.Store.Timestamp),
		Precache:  opt.Precache,
		Margin:    opt.Margin,
		ZoomPlus:  opt.ZoomPlus,
		ZoomMinus: opt.ZoomMinus,
	})
	m.Manager = layer.NewManager(m.Model, m.Layers, m.FrameBuffer, layer.ManagerOptions{
		FramePace:  opt.FramePace,
		Background: opt.Theme.Background(),
	})
	m.Pool = worker.NewPool(m.Queue, r, tc, worker.Options{
		Workers:    opt.Workers,
		Metrics:    poolMetrics,
		OnRendered: func(_ tile.Job) { m.Manager.RedrawLayers() },
	})
	m.Layers.Add(m.TileLayer)
	return m, nil
}

// Start runs the frame scheduler and the render workers until Close or
// until ctx ends.
func (m *Map) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	ctx, cancel := context.WithCancel(ctx)
	if err := m.Pool.Start(ctx); err != nil {
		cancel()
		return err
	}
	m.cancel = cancel
	m.g = &errgroup.Group{}
	m.g.Go(func() error { return m.Manager.Run(ctx) })
	m.Manager.RedrawLayers()
	return nil
}

// SetTheme renders future tiles with th. Tiles of the old theme stay
// cached under its ID.
func (m *Map) SetTheme(th *theme.RenderTheme, textScale float32) {
	m.Renderer.SetTheme(th)
	m.TileLayer.SetTheme(th.ID(), textScale)
	m.Manager.RedrawLayers()
}

// Close stops the pipeline and releases every cached bitmap. Files of the
// persistent tier are kept. Idempotent.
func (m *Map) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	g, cancel := m.g, m.cancel
	m.mu.Unlock()

	m.Manager.Stop()
	m.Queue.Close()
	err := m.Pool.Stop()
	if g != nil {
		err = errors.Join(err, g.Wait())
	}
	if cancel != nil {
		cancel()
	}
	m.Cache.Destroy()
	return err
}
