// Package layer composes map frames: tile layers drawn from the tile cache,
// an ordered layer list and the paced frame scheduler that publishes
// finished frames.
package layer

import (
	"context"
	"image"
	"slices"
	"sync"
	"sync/atomic"
)

// Layer draws itself onto a frame. Draw runs on the frame scheduler only
// and must not block on rendering.
type Layer interface {
	Draw(ctx context.Context, vp Viewport, dst *image.RGBA)
	Visible() bool
}

// Visibility is embeddable show/hide state.
type Visibility struct {
	hidden atomic.Bool
}

// Visible reports whether the layer is drawn.
func (v *Visibility) Visible() bool { return !v.hidden.Load() }

// SetVisible shows or hides the layer.
func (v *Visibility) SetVisible(on bool) { v.hidden.Store(!on) }

// Layers is the ordered layer list. Mutations wait for the frame in
// progress; reads by index report absence instead of failing.
type Layers struct {
	mu   sync.RWMutex
	list []Layer
	obs  observers
}

// Observe registers fn to run after every mutation.
func (l *Layers) Observe(fn func()) { l.obs.add(fn) }

// Add appends layer on top.
func (l *Layers) Add(layer Layer) {
	l.mu.Lock()
	l.list = append(l.list, layer)
	l.mu.Unlock()
	l.obs.fire()
}

// Insert puts layer at index i, clamped to [0, Len].
func (l *Layers) Insert(i int, layer Layer) {
	l.mu.Lock()
	i = max(0, min(i, len(l.list)))
	l.list = slices.Insert(l.list, i, layer)
	l.mu.Unlock()
	l.obs.fire()
}

// Remove drops the first occurrence of layer.
func (l *Layers) Remove(layer Layer) bool {
	l.mu.Lock()
	i := slices.Index(l.list, layer)
	if i >= 0 {
		l.list = slices.Delete(l.list, i, i+1)
	}
	l.mu.Unlock()
	if i < 0 {
		return false
	}
	l.obs.fire()
	return true
}

// Len returns the number of layers.
func (l *Layers) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.list)
}

// SafeGet returns the layer at i, or false if i is out of range, which
// happens when the list shrank since the caller read Len.
func (l *Layers) SafeGet(i int) (Layer, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i < 0 || i >= len(l.list) {
		return nil, false
	}
	return l.list[i], true
}

// draw calls fn for every visible layer bottom-up with the list locked.
func (l *Layers) draw(fn func(Layer)) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, layer := range l.list {
		if layer.Visible() {
			fn(layer)
		}
	}
}
