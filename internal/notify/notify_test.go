package notify

import (
	"sync"
	"testing"
	"time"
)

func TestBroadcastWakesAll(t *testing.T) {
	t.Parallel()

	var b Broadcaster
	const n = 8
	var wg sync.WaitGroup
	ready := make(chan struct{}, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			c := b.C()
			ready <- struct{}{}
			<-c
		}()
	}
	for i := 0; i < n; i++ {
		<-ready
	}
	b.Broadcast()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("waiters not woken")
	}
}

func TestChannelIsFreshAfterBroadcast(t *testing.T) {
	t.Parallel()

	var b Broadcaster
	c1 := b.C()
	b.Broadcast()
	c2 := b.C()
	select {
	case <-c2:
		t.Fatal("new channel must be open")
	default:
	}
	select {
	case <-c1:
	default:
		t.Fatal("old channel must be closed")
	}
}
