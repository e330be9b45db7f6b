// Package pausable implements the Running/Paused/Stopped life cycle shared by
// long-running goroutines (render workers, the frame scheduler).
//
// The controlled goroutine calls Checkpoint at the top of each iteration.
// Pause is a rendezvous: AwaitPaused returns only once the goroutine is
// parked inside Checkpoint, so the pipeline can be quiesced without
// tearing the goroutine down.
package pausable

import (
	"context"
	"errors"
	"sync"

	"github.com/IvanBrykalov/maprender/internal/notify"
)

// ErrStopped is returned by Checkpoint after Stop.
var ErrStopped = errors.New("pausable: stopped")

// State is the life-cycle state of a controlled goroutine.
type State int32

const (
	Running State = iota
	Paused
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

// Pausable drives one goroutine through Running/Paused/Stopped.
// All methods are safe for concurrent use.
type Pausable struct {
	mu        sync.Mutex
	state     State
	wantPause bool
	changed   notify.Broadcaster

	// run is cancelled whenever a pause or stop is requested so that the
	// goroutine can leave blocking waits and reach its next Checkpoint.
	run       context.Context
	cancelRun context.CancelFunc
}

// New returns a Pausable in the Running state.
func New() *Pausable {
	p := &Pausable{}
	p.run, p.cancelRun = context.WithCancel(context.Background())
	return p
}

// State reports the current state.
func (p *Pausable) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Pause asks the goroutine to park at its next Checkpoint.
func (p *Pausable) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Stopped || p.wantPause {
		return
	}
	p.wantPause = true
	p.cancelRun()
	p.changed.Broadcast()
}

// Proceed releases a paused (or pause-requested) goroutine.
func (p *Pausable) Proceed() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Stopped || !p.wantPause {
		return
	}
	p.wantPause = false
	p.run, p.cancelRun = context.WithCancel(context.Background())
	p.changed.Broadcast()
}

// AwaitPaused blocks until the goroutine is parked or stopped, or ctx ends.
func (p *Pausable) AwaitPaused(ctx context.Context) error {
	for {
		p.mu.Lock()
		if p.state == Paused || p.state == Stopped {
			p.mu.Unlock()
			return nil
		}
		ch := p.changed.C()
		p.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stop moves to Stopped. Idempotent.
func (p *Pausable) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Stopped {
		return
	}
	p.state = Stopped
	p.cancelRun()
	p.changed.Broadcast()
}

// Checkpoint parks the caller while a pause is requested. It returns a
// context that is cancelled as soon as the next pause or stop is requested;
// use it for blocking waits inside the iteration. ErrStopped is returned
// once Stop was called, ctx.Err() if ctx ends first.
func (p *Pausable) Checkpoint(ctx context.Context) (context.Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	for p.wantPause && p.state != Stopped {
		if p.state != Paused {
			p.state = Paused
			p.changed.Broadcast()
		}
		ch := p.changed.C()
		p.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			p.mu.Lock()
			if p.state == Paused {
				p.state = Running
			}
			p.mu.Unlock()
			return nil, ctx.Err()
		}
		p.mu.Lock()
	}
	defer p.mu.Unlock()
	if p.state == Stopped {
		return nil, ErrStopped
	}
	if p.state == Paused {
		p.state = Running
		p.changed.Broadcast()
	}
	return p.run, nil
}
