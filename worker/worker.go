// Package worker runs a fixed pool of render goroutines that drain the job
// queue into the tile cache.
package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/maprender/internal/logger"
	"github.com/IvanBrykalov/maprender/internal/pausable"
	"github.com/IvanBrykalov/maprender/queue"
	"github.com/IvanBrykalov/maprender/tile"
	"github.com/IvanBrykalov/maprender/tilecache"
)

// ErrStarted is returned by a second Start.
var ErrStarted = errors.New("worker: pool already started")

// Renderer turns a job into a bitmap holding one reference for the caller.
type Renderer interface {
	Render(ctx context.Context, job tile.Job) (*tile.Bitmap, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, job tile.Job) (*tile.Bitmap, error)

func (f RendererFunc) Render(ctx context.Context, job tile.Job) (*tile.Bitmap, error) {
	return f(ctx, job)
}

// secondaryPutter is implemented by caches with a slower second tier that
// pre-rendered tiles should go to.
type secondaryPutter interface {
	PutSecondary(job tile.Job, bm *tile.Bitmap)
}

// Options configures a Pool. Zero values are safe:
//   - Workers <= 0 => runtime.NumCPU()
//   - Metrics nil  => NoopMetrics
type Options struct {
	Workers int
	Metrics Metrics
	// OnRendered runs after a wanted bitmap is cached, typically to request
	// a redraw.
	OnRendered func(job tile.Job)
}

// Pool renders jobs from one queue. Each job taken from the queue is
// rendered at most once; visible jobs already held by a slower cache tier
// are promoted instead.
type Pool struct {
	q     *queue.JobQueue
	r     Renderer
	cache tilecache.TileCache
	opt   Options

	workers []*pausable.Pausable

	startOnce sync.Once
	stopOnce  sync.Once
	started   bool
	g         *errgroup.Group
	cancel    context.CancelFunc
	err       error
}

// NewPool wires a pool; call Start to launch the goroutines.
func NewPool(q *queue.JobQueue, r Renderer, cache tilecache.TileCache, opt Options) *Pool {
	if opt.Workers <= 0 {
		opt.Workers = runtime.NumCPU()
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	p := &Pool{q: q, r: r, cache: cache, opt: opt}
	for range opt.Workers {
		p.workers = append(p.workers, pausable.New())
	}
	return p
}

// Workers returns the pool size.
func (p *Pool) Workers() int { return len(p.workers) }

// Start launches the workers. They run until Stop or until ctx ends.
func (p *Pool) Start(ctx context.Context) error {
	err := ErrStarted
	p.startOnce.Do(func() {
		err = nil
		ctx, p.cancel = context.WithCancel(ctx)
		p.g, ctx = errgroup.WithContext(ctx)
		p.started = true
		for i, pz := range p.workers {
			p.g.Go(func() error { return p.run(ctx, i, pz) })
		}
		logger.Get().Info("render pool started", "workers", len(p.workers))
	})
	return err
}

func (p *Pool) run(ctx context.Context, id int, pz *pausable.Pausable) error {
	for {
		runCtx, err := pz.Checkpoint(ctx)
		if err != nil {
			if errors.Is(err, pausable.ErrStopped) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		// Waiting for work ends on pause; a render in progress does not.
		wctx, cancel := context.WithCancel(ctx)
		stop := context.AfterFunc(runCtx, cancel)
		it, err := p.q.Get(wctx)
		stop()
		cancel()
		switch {
		case errors.Is(err, queue.ErrClosed), ctx.Err() != nil:
			return nil
		case err != nil:
			continue
		}
		p.process(ctx, id, it)
	}
}

func (p *Pool) process(ctx context.Context, id int, it *queue.Item) {
	log := logger.Get()
	if it.Kind == queue.Visible && p.promote(ctx, it) {
		log.Debug("tile loaded from cache", "worker", id, "job", it.Job.String())
		return
	}
	start := time.Now()
	bm, err := p.r.Render(ctx, it.Job)
	if err != nil {
		p.q.Done(it)
		if ctx.Err() == nil {
			p.opt.Metrics.Failed()
			log.Warn("render failed", "worker", id, "job", it.Job.String(), "err", err)
		}
		return
	}
	defer bm.Release()

	if !p.q.Wanted(it) {
		p.q.Done(it)
		p.opt.Metrics.Discarded()
		log.Debug("render discarded", "worker", id, "job", it.Job.String())
		return
	}
	if s, ok := p.cache.(secondaryPutter); ok && it.Kind == queue.Precache {
		s.PutSecondary(it.Job, bm)
	} else {
		p.cache.Put(it.Job, bm)
	}
	p.q.Done(it)

	p.opt.Metrics.Rendered(time.Since(start))
	p.opt.Metrics.Queue(p.q.Len())
	if p.opt.OnRendered != nil {
		p.opt.OnRendered(it.Job)
	}
}

// promote serves a visible job from a slower cache tier instead of
// rendering it. Tiers that are not in memory yet are only read here.
func (p *Pool) promote(ctx context.Context, it *queue.Item) bool {
	bm, err := p.cache.Get(ctx, it.Job)
	if err != nil {
		return false
	}
	bm.Release()
	p.q.Done(it)
	if p.opt.OnRendered != nil {
		p.opt.OnRendered(it.Job)
	}
	return true
}

// Pause asks every worker to park before its next job.
func (p *Pool) Pause() {
	for _, pz := range p.workers {
		pz.Pause()
	}
}

// Proceed resumes paused workers.
func (p *Pool) Proceed() {
	for _, pz := range p.workers {
		pz.Proceed()
	}
}

// AwaitPaused blocks until every worker is parked.
func (p *Pool) AwaitPaused(ctx context.Context) error {
	for _, pz := range p.workers {
		if err := pz.AwaitPaused(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Stop ends every worker and waits for them. In-progress renders finish
// first. Idempotent.
func (p *Pool) Stop() error {
	p.stopOnce.Do(func() {
		for _, pz := range p.workers {
			pz.Stop()
		}
		p.startOnce.Do(func() {})
		if p.started {
			p.err = p.g.Wait()
			p.cancel()
		}
		logger.Get().Info("render pool stopped")
	})
	return p.err
}
