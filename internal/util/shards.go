package util

import (
	"math/bits"
	"runtime"
)

// ReasonableShardCount is two shards per P rounded up to a power of two,
// at most 256.
func ReasonableShardCount() int {
	return min(int(NextPow2(uint64(2*max(1, runtime.GOMAXPROCS(0))))), 256)
}

// ShardIndex maps a hash to one of shards buckets: a mask for powers of
// two, modulo otherwise.
func ShardIndex(hash uint64, shards int) int {
	switch {
	case shards <= 1:
		return 0
	case IsPowerOfTwo(uint64(shards)):
		return int(hash & uint64(shards-1))
	default:
		return int(hash % uint64(shards))
	}
}

// IsPowerOfTwo reports whether x is a power of two (> 0).
func IsPowerOfTwo(x uint64) bool { return x != 0 && x&(x-1) == 0 }

// NextPow2 returns the smallest power of two >= x. 0 maps to 1 and values
// above 1<<63 clamp to 1<<63.
func NextPow2(x uint64) uint64 {
	if x <= 1 {
		return 1
	}
	n := bits.Len64(x - 1)
	if n >= 64 {
		return 1 << 63
	}
	return 1 << n
}
