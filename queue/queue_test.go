package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/maprender/tile"
)

func job(x, y uint32, z uint8) tile.Job {
	return tile.Job{Tile: tile.Tile{X: x, Y: y, Zoom: z, Size: 256}, ThemeID: "t", TextScale: 1}
}

func TestAdd_Dedup(t *testing.T) {
	t.Parallel()

	q := New(Options{})
	if !q.Add(job(1, 1, 3), Visible) {
		t.Fatal("first Add must be accepted")
	}
	if q.Add(job(1, 1, 3), Visible) {
		t.Fatal("queued job must be refused")
	}

	it, err := q.Get(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if q.Add(job(1, 1, 3), Visible) {
		t.Fatal("in-flight job must be refused")
	}
	if !q.Done(it) {
		t.Fatal("result must be wanted")
	}
	if !q.Add(job(1, 1, 3), Visible) {
		t.Fatal("finished job may be queued again")
	}
}

func TestAdd_ConcurrentProducers(t *testing.T) {
	t.Parallel()

	q := New(Options{})
	const producers = 16
	var g errgroup.Group
	accepted := make(chan bool, producers*10)
	for range producers {
		g.Go(func() error {
			for x := range uint32(10) {
				accepted <- q.Add(job(x, 0, 4), Visible)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	close(accepted)

	n := 0
	for ok := range accepted {
		if ok {
			n++
		}
	}
	if n != 10 || q.Len() != 10 {
		t.Fatalf("accepted %d, Len %d, want 10 each", n, q.Len())
	}
}

func TestGet_NearestFirst(t *testing.T) {
	t.Parallel()

	q := New(Options{})
	// centre of tile 4/8/8
	q.SetCenter(tile.PixelToPoint(8*256+128, 8*256+128, 4, 256), 4)

	q.Add(job(0, 0, 4), Visible)
	q.Add(job(9, 8, 4), Visible)
	q.Add(job(8, 8, 4), Visible)
	q.Add(job(12, 12, 4), Visible)

	want := []uint32{8, 9, 12, 0}
	for i, x := range want {
		it, err := q.Get(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if it.Job.Tile.X != x {
			t.Fatalf("pop %d: x = %d, want %d", i, it.Job.Tile.X, x)
		}
		q.Done(it)
	}
}

func TestPrecache_AfterVisible(t *testing.T) {
	t.Parallel()

	q := New(Options{})
	q.SetCenter(tile.PixelToPoint(8*256+128, 8*256+128, 4, 256), 4)

	q.Add(job(8, 8, 4), Precache)
	q.Add(job(10, 8, 4), Visible)

	it, _ := q.Get(context.Background())
	if it.Job.Tile.X != 10 {
		t.Fatalf("visible job must win over a nearer precache job, got x=%d", it.Job.Tile.X)
	}
	q.Done(it)

	// upgrade in place
	q.Add(job(11, 8, 4), Precache)
	if q.Add(job(11, 8, 4), Refresh) {
		t.Fatal("upgrade must not add a second instance")
	}
	if q.Len() != 2 {
		t.Fatalf("Len = %d, want 2", q.Len())
	}
	it, _ = q.Get(context.Background())
	if it.Job.Tile.X != 11 || it.Kind != Refresh {
		t.Fatalf("got %v kind %v, want upgraded x=11 refresh", it.Job, it.Kind)
	}
}

func TestNotifyWorkers_Reprioritises(t *testing.T) {
	t.Parallel()

	q := New(Options{})
	q.SetCenter(tile.PixelToPoint(128, 128, 4, 256), 4)
	q.Add(job(0, 0, 4), Visible)
	q.Add(job(15, 15, 4), Visible)

	q.SetCenter(tile.PixelToPoint(15*256+128, 15*256+128, 4, 256), 4)
	q.NotifyWorkers()

	it, _ := q.Get(context.Background())
	if it.Job.Tile.X != 15 {
		t.Fatalf("got x=%d, want the tile under the new centre", it.Job.Tile.X)
	}
}

func TestZoomPenalty(t *testing.T) {
	t.Parallel()

	q := New(Options{})
	c := orb.Point{13.4, 52.5}
	q.SetCenter(c, 10)
	q.Add(tile.Job{Tile: tile.At(c, 12, 256)}, Visible)
	q.Add(tile.Job{Tile: tile.At(c, 10, 256)}, Visible)

	it, _ := q.Get(context.Background())
	if it.Job.Tile.Zoom != 10 {
		t.Fatalf("zoom %d popped first, want 10", it.Job.Tile.Zoom)
	}
}

func TestGet_BlocksUntilAdd(t *testing.T) {
	t.Parallel()

	q := New(Options{})
	got := make(chan *Item, 1)
	go func() {
		it, err := q.Get(context.Background())
		if err == nil {
			got <- it
		}
	}()

	select {
	case <-got:
		t.Fatal("Get must block on an empty queue")
	case <-time.After(20 * time.Millisecond):
	}
	q.Add(job(1, 2, 3), Visible)
	q.NotifyWorkers()
	select {
	case it := <-got:
		if it.Job != job(1, 2, 3) {
			t.Fatalf("got %v", it.Job)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter not woken")
	}
}

func TestGet_ContextAndClose(t *testing.T) {
	t.Parallel()

	q := New(Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := q.Get(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := q.Get(context.Background())
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	q.Close()
	if err := <-done; !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
	if q.Add(job(0, 0, 0), Visible) {
		t.Fatal("closed queue must refuse jobs")
	}
}

func TestClear_InvalidatesInFlight(t *testing.T) {
	t.Parallel()

	q := New(Options{})
	q.Add(job(1, 1, 3), Visible)
	q.Add(job(2, 1, 3), Visible)
	it, _ := q.Get(context.Background())

	q.Clear()
	if q.Len() != 0 || q.InFlight() != 0 {
		t.Fatalf("Len %d InFlight %d after Clear", q.Len(), q.InFlight())
	}
	if !q.Add(it.Job, Visible) {
		t.Fatal("job cleared while in flight must be accepted again")
	}
	if q.Wanted(it) || q.Done(it) {
		t.Fatal("stale result must be unwanted")
	}
	if !q.Contains(it.Job) {
		t.Fatal("Done on a stale item must not drop the re-added job")
	}
}

func TestRemove(t *testing.T) {
	t.Parallel()

	q := New(Options{})
	for x := range uint32(5) {
		q.Add(job(x, 0, 3), Visible)
	}
	if !q.Remove(job(2, 0, 3)) || q.Remove(job(2, 0, 3)) {
		t.Fatal("Remove must succeed exactly once")
	}
	seen := map[uint32]bool{}
	for q.Len() > 0 {
		it, _ := q.Get(context.Background())
		seen[it.Job.Tile.X] = true
	}
	if seen[2] || len(seen) != 4 {
		t.Fatalf("popped %v", seen)
	}
}
