package cache

import (
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/IvanBrykalov/maprender/internal/util"
)

// xyz mimics a tile address; it is hashed with a custom Hasher.
type xyz struct {
	x, y uint32
	z    uint8
}

func hashXYZ(k xyz) uint64 {
	h := util.MixUint64(util.Seed, uint64(k.x)<<32|uint64(k.y))
	return util.MixUint64(h, uint64(k.z))
}

// benchmarkMix runs a read/write mix against a warm cache from GOMAXPROCS
// goroutines over a hot keyspace of 64k tile addresses.
func benchmarkMix(b *testing.B, readsPct int, pinned func(xyz) bool) {
	c := New[xyz, int](Options[xyz, int]{
		Capacity: 32_768,
		Hasher:   hashXYZ,
		Pinned:   pinned,
	})
	b.Cleanup(func() { _ = c.Close() })

	for i := 0; i < 16_384; i++ {
		c.Set(xyz{x: uint32(i & 255), y: uint32(i >> 8), z: 14}, i)
	}

	b.ReportAllocs()
	b.ResetTimer()

	var seed int64 = 1
	const keyMask = (1 << 16) - 1

	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(atomic.AddInt64(&seed, 1)))
		i := 0
		for pb.Next() {
			j := i & keyMask
			k := xyz{x: uint32(j & 255), y: uint32(j >> 8), z: 14}
			if r.Intn(100) < readsPct {
				c.Get(k)
			} else {
				c.Set(k, j)
			}
			i++
		}
	})
}

func BenchmarkCache_90r10w(b *testing.B) { benchmarkMix(b, 90, nil) }
func BenchmarkCache_50r50w(b *testing.B) { benchmarkMix(b, 50, nil) }

// A working set of 64 pinned tiles forces victim scans past pinned nodes.
func BenchmarkCache_Pinned_50r50w(b *testing.B) {
	benchmarkMix(b, 50, func(k xyz) bool { return k.y == 0 && k.x < 64 })
}
