// Package singleflight coalesces concurrent loads of the same key.
package singleflight

import (
	"context"
	"sync"
)

// Group runs fn at most once per key among concurrent callers; the others
// wait for the leader's result. The zero value is ready to use.
//
// A follower whose ctx ends returns ctx.Err() without affecting the leader.
// The leader's fn is not cancelled; thread ctx into fn if that matters.
type Group[K comparable, V any] struct {
	mu sync.Mutex
	m  map[K]*call[V]
}

type call[V any] struct {
	done chan struct{} // closed after val/err are published
	val  V
	err  error
	dups int
}

// Do executes fn for key unless a call for key is already in flight, in
// which case it waits for that call. shared reports whether the result was
// delivered to more than one caller.
func (g *Group[K, V]) Do(ctx context.Context, key K, fn func() (V, error)) (v V, err error, shared bool) {
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[K]*call[V])
	}
	if c, ok := g.m[key]; ok {
		c.dups++
		g.mu.Unlock()

		select {
		case <-c.done:
			return c.val, c.err, true
		case <-ctx.Done():
			var zero V
			return zero, ctx.Err(), true
		}
	}

	c := &call[V]{done: make(chan struct{})}
	g.m[key] = c
	g.mu.Unlock()

	c.val, c.err = fn()
	close(c.done)

	g.mu.Lock()
	delete(g.m, key)
	shared = c.dups > 0
	g.mu.Unlock()

	return c.val, c.err, shared
}

// InFlight reports whether a call for key is currently running.
func (g *Group[K, V]) InFlight(key K) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.m[key]
	return ok
}
