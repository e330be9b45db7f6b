// Package notify provides a broadcast wake-up primitive that, unlike
// sync.Cond, can be combined with context cancellation in a select.
package notify

import "sync"

// Broadcaster hands out a channel that is closed on the next Broadcast.
// Waiters grab the channel under their own lock, release it, then select.
// The zero value is ready to use.
type Broadcaster struct {
	mu sync.Mutex
	ch chan struct{}
}

// C returns the channel closed by the next Broadcast.
func (b *Broadcaster) C() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ch == nil {
		b.ch = make(chan struct{})
	}
	return b.ch
}

// Broadcast wakes every goroutine currently waiting on a channel from C.
func (b *Broadcaster) Broadcast() {
	b.mu.Lock()
	if b.ch != nil {
		close(b.ch)
		b.ch = nil
	}
	b.mu.Unlock()
}
