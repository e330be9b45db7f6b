package prom

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/IvanBrykalov/maprender/cache"
)

func TestAdapter_CacheSignals(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	a := New(reg, "maprender", "tiles", prometheus.Labels{"tier": "memory"})

	a.Hit()
	a.Hit()
	a.Miss()
	a.Evict(cache.EvictPolicy)
	a.Evict(cache.EvictCapacity)
	a.Evict(cache.EvictPolicy)
	a.Size(7, 1024)

	if got := testutil.ToFloat64(a.hits); got != 2 {
		t.Fatalf("hits = %v, want 2", got)
	}
	if got := testutil.ToFloat64(a.misses); got != 1 {
		t.Fatalf("misses = %v, want 1", got)
	}
	if got := testutil.ToFloat64(a.evicts.WithLabelValues("policy")); got != 2 {
		t.Fatalf("policy evictions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(a.sizeEnt); got != 7 {
		t.Fatalf("entries = %v, want 7", got)
	}
	if n := testutil.CollectAndCount(reg); n != 6 {
		t.Fatalf("collected %d series, want 6", n)
	}
}

func TestAdapter_WiredIntoCache(t *testing.T) {
	t.Parallel()

	a := New(prometheus.NewRegistry(), "maprender", "match", nil)
	c := cache.New[string, int](cache.Options[string, int]{Capacity: 1, Shards: 1, Metrics: a})
	defer c.Close()

	c.Set("a", 1)
	c.Get("a")
	c.Get("b")
	c.Set("b", 2)

	if testutil.ToFloat64(a.hits) != 1 || testutil.ToFloat64(a.misses) != 1 {
		t.Fatal("cache signals must reach the adapter")
	}
	if testutil.ToFloat64(a.evicts.WithLabelValues("policy")) != 1 {
		t.Fatal("capacity-1 cache must evict one entry by policy")
	}
}

func TestPool_Signals(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	p := NewPool(reg, "maprender", "render", nil)

	p.Rendered(3 * time.Millisecond)
	p.Rendered(5 * time.Millisecond)
	p.Failed()
	p.Discarded()
	p.Queue(12)

	if testutil.ToFloat64(p.failed) != 1 || testutil.ToFloat64(p.discarded) != 1 {
		t.Fatal("counters not updated")
	}
	if got := testutil.ToFloat64(p.queue); got != 12 {
		t.Fatalf("queue = %v, want 12", got)
	}
	if n := testutil.CollectAndCount(p.rendered); n != 1 {
		t.Fatalf("histogram series = %d, want 1", n)
	}
}
