package util

import (
	"sync/atomic"
	"unsafe"
)

// CacheLineSize is 64 bytes on every platform we care about.
const CacheLineSize = 64

// CacheLinePad separates groups of hot fields into distinct cache lines.
type CacheLinePad struct{ _ [CacheLineSize]byte }

// PaddedAtomicInt64 is an atomic int64 occupying a full cache line, so
// counters bumped by different goroutines do not false-share.
type PaddedAtomicInt64 struct {
	atomic.Int64
	_ [CacheLineSize - 8]byte
}

// PaddedAtomicUint64 is the uint64 counterpart.
type PaddedAtomicUint64 struct {
	atomic.Uint64
	_ [CacheLineSize - 8]byte
}

var (
	_ [CacheLineSize - int(unsafe.Sizeof(PaddedAtomicInt64{}))]byte
	_ [CacheLineSize - int(unsafe.Sizeof(PaddedAtomicUint64{}))]byte
)
