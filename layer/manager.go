package layer

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync/atomic"
	"time"

	"golang.org/x/image/draw"

	"github.com/IvanBrykalov/maprender/internal/logger"
	"github.com/IvanBrykalov/maprender/internal/pausable"
)

// ManagerState is what the frame scheduler is doing.
type ManagerState int32

const (
	Waiting ManagerState = iota
	Drawing
)

func (s ManagerState) String() string {
	if s == Drawing {
		return "drawing"
	}
	return "waiting"
}

// ManagerOptions configures a Manager. Zero values are safe:
//   - FramePace <= 0  => 33ms
//   - Background nil  => transparent
type ManagerOptions struct {
	FramePace  time.Duration
	Background color.Color
}

// Manager is the frame scheduler. A single goroutine (Run) waits for a
// redraw request, snapshots the viewport, draws the visible layers and
// publishes the frame, at most once per FramePace.
type Manager struct {
	model  *Model
	layers *Layers
	fb     *FrameBuffer
	opt    ManagerOptions
	bg     *image.Uniform

	pz    *pausable.Pausable
	dirty atomic.Bool
	wake  chan struct{}
	state atomic.Int32
	drawn atomic.Uint64
}

// NewManager redraws whenever model or layers change.
func NewManager(model *Model, layers *Layers, fb *FrameBuffer, opt ManagerOptions) *Manager {
	if opt.FramePace <= 0 {
		opt.FramePace = 33 * time.Millisecond
	}
	if opt.Background == nil {
		opt.Background = color.Transparent
	}
	m := &Manager{
		model:  model,
		layers: layers,
		fb:     fb,
		opt:    opt,
		bg:     image.NewUniform(opt.Background),
		pz:     pausable.New(),
		wake:   make(chan struct{}, 1),
	}
	model.Observe(m.RedrawLayers)
	layers.Observe(m.RedrawLayers)
	return m
}

// RedrawLayers requests a frame. Safe from any goroutine.
func (m *Manager) RedrawLayers() {
	m.dirty.Store(true)
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// State reports whether a frame is being drawn.
func (m *Manager) State() ManagerState { return ManagerState(m.state.Load()) }

// Drawn returns the number of frames drawn, committed or not.
func (m *Manager) Drawn() uint64 { return m.drawn.Load() }

// Run is the scheduler loop. It returns nil after Stop or when ctx ends.
func (m *Manager) Run(ctx context.Context) error {
	logger.Get().Info("frame scheduler started", "pace", m.opt.FramePace)
	defer logger.Get().Info("frame scheduler stopped")
	for {
		runCtx, err := m.pz.Checkpoint(ctx)
		if err != nil {
			if errors.Is(err, pausable.ErrStopped) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		if !m.dirty.Load() {
			m.state.Store(int32(Waiting))
			select {
			case <-m.wake:
			case <-runCtx.Done():
				continue
			case <-ctx.Done():
				return nil
			}
		}
		if !m.dirty.Swap(false) {
			continue
		}

		m.state.Store(int32(Drawing))
		start := time.Now()
		m.frame(ctx)
		m.state.Store(int32(Waiting))

		if rest := m.opt.FramePace - time.Since(start); rest > 0 {
			t := time.NewTimer(rest)
			select {
			case <-t.C:
			case <-runCtx.Done():
			case <-ctx.Done():
			}
			t.Stop()
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// frame draws one frame and publishes it unless an animation is running.
func (m *Manager) frame(ctx context.Context) {
	vp := m.model.Snapshot()
	if vp.Width <= 0 || vp.Height <= 0 {
		return
	}
	dst := m.fb.Back(vp.Width, vp.Height)
	draw.Draw(dst, dst.Rect, m.bg, image.Point{}, draw.Src)
	m.layers.draw(func(l Layer) { l.Draw(ctx, vp, dst) })
	m.drawn.Add(1)

	if m.model.Animating() {
		m.dirty.Store(true)
		return
	}
	m.fb.Commit()
}

// Pause parks the scheduler after the frame in progress.
func (m *Manager) Pause() { m.pz.Pause() }

// Proceed resumes a paused scheduler.
func (m *Manager) Proceed() { m.pz.Proceed() }

// AwaitPaused blocks until the scheduler is parked.
func (m *Manager) AwaitPaused(ctx context.Context) error { return m.pz.AwaitPaused(ctx) }

// Stop ends Run. Idempotent.
func (m *Manager) Stop() { m.pz.Stop() }
