// Package util contains internal helpers (hashing, sharding, padding).
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

import (
	"fmt"
	"math"
)

// Hasher hashes keys of type K for shard selection and stable file names.
type Hasher[K any] func(K) uint64

// Fnv64a hashes common key types using 64-bit FNV-1a.
// Supported: string, []byte, all int/uint widths, uintptr, and any type
// implementing Hash64() uint64 or fmt.Stringer (in that order of preference).
// Unsupported key types panic so that poor hashing never goes unnoticed.
func Fnv64a[K comparable](k K) uint64 {
	switch v := any(k).(type) {
	case interface{ Hash64() uint64 }:
		return v.Hash64()
	case string:
		return HashString(v)
	case []byte:
		return HashBytes(v)
	case uint8:
		return HashUint64(uint64(v))
	case uint16:
		return HashUint64(uint64(v))
	case uint32:
		return HashUint64(uint64(v))
	case uint64:
		return HashUint64(v)
	case uint:
		return HashUint64(uint64(v))
	case uintptr:
		return HashUint64(uint64(v))
	case int8:
		return HashUint64(uint64(uint8(v)))
	case int16:
		return HashUint64(uint64(uint16(v)))
	case int32:
		return HashUint64(uint64(uint32(v)))
	case int64:
		return HashUint64(uint64(v))
	case int:
		return HashUint64(uint64(v))
	case fmt.Stringer:
		return HashString(v.String())
	default:
		panic(fmt.Sprintf("util.Fnv64a: unsupported key type %T; implement Hash64 or provide a Hasher", k))
	}
}

const (
	fnvOffset64 = 1469598103934665603
	fnvPrime64  = 1099511628211
)

// Seed is the FNV-1a offset basis; use it to start a Mix chain.
const Seed uint64 = fnvOffset64

// HashBytes returns the FNV-1a hash of b.
func HashBytes(b []byte) uint64 {
	h := uint64(fnvOffset64)
	for _, c := range b {
		h ^= uint64(c)
		h *= fnvPrime64
	}
	return h
}

// HashString returns the FNV-1a hash of s without allocating.
func HashString(s string) uint64 {
	h := uint64(fnvOffset64)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= fnvPrime64
	}
	return h
}

// HashUint64 hashes the 8 little-endian bytes of u.
func HashUint64(u uint64) uint64 { return MixUint64(fnvOffset64, u) }

// MixUint64 folds the 8 little-endian bytes of u into the running hash h.
// Chaining MixUint64 calls from Seed yields a stable hash of a tuple.
func MixUint64(h, u uint64) uint64 {
	for i := 0; i < 8; i++ {
		h ^= uint64(byte(u))
		h *= fnvPrime64
		u >>= 8
	}
	return h
}

// MixString folds s into the running hash h.
func MixString(h uint64, s string) uint64 {
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= fnvPrime64
	}
	// length terminator keeps ("ab","c") distinct from ("a","bc")
	return MixUint64(h, uint64(len(s)))
}

// MixFloat32 folds the IEEE-754 bits of f into the running hash h.
func MixFloat32(h uint64, f float32) uint64 {
	return MixUint64(h, uint64(math.Float32bits(f)))
}
