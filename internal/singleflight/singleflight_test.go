package singleflight

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDo_Coalesces(t *testing.T) {
	t.Parallel()

	var g Group[string, int]
	var calls atomic.Int32
	release := make(chan struct{})

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)
	results := make([]int, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			v, err, _ := g.Do(context.Background(), "k", func() (int, error) {
				calls.Add(1)
				<-release
				return 7, nil
			})
			if err != nil {
				t.Errorf("Do: %v", err)
			}
			results[i] = v
		}(i)
	}

	for !g.InFlight("k") {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("fn ran %d times, want 1", got)
	}
	for i, v := range results {
		if v != 7 {
			t.Fatalf("caller %d got %d", i, v)
		}
	}
}

func TestDo_FollowerContext(t *testing.T) {
	t.Parallel()

	var g Group[int, int]
	started := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_, _, _ = g.Do(context.Background(), 1, func() (int, error) {
			close(started)
			<-release
			return 1, nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err, shared := g.Do(ctx, 1, func() (int, error) { return 2, nil })
	if !errors.Is(err, context.Canceled) || !shared {
		t.Fatalf("follower: err=%v shared=%v", err, shared)
	}
	close(release)
}
