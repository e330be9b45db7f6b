package cache

import (
	"math/rand"
	"runtime"
	"strconv"
	"sync"
	"testing"
	"time"
)

// Mixed concurrent Set/Get/Peek/Remove with a pin predicate and an
// eviction callback. Meant to run under -race.
func TestRace_Basic(t *testing.T) {
	var mu sync.Mutex
	evicted := 0
	c := New[string, []byte](Options[string, []byte]{
		Capacity: 8_192,
		Shards:   32,
		Pinned:   func(k string) bool { return len(k) > 0 && k[len(k)-1] == '7' },
		OnEvict: func(string, []byte, EvictReason) {
			mu.Lock()
			evicted++
			mu.Unlock()
		},
	})
	t.Cleanup(func() { _ = c.Close() })

	workers := 4 * runtime.GOMAXPROCS(0)
	keyspace := 50_000
	deadline := time.Now().Add(500 * time.Millisecond)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(id int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)*9973))
			for time.Now().Before(deadline) {
				k := "k:" + strconv.Itoa(r.Intn(keyspace))
				switch n := r.Intn(100); {
				case n < 5:
					c.Remove(k)
				case n < 10:
					c.Peek(k)
				case n < 25:
					c.Set(k, []byte("x"))
				default:
					c.Get(k)
				}
			}
		}(w)
	}
	wg.Wait()
}
