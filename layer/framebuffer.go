package layer

import (
	"image"
	"sync"
	"sync/atomic"
)

// FrameBuffer is a double buffer. The frame scheduler draws into the back
// image and publishes it with Commit; readers see the front image only.
type FrameBuffer struct {
	mu     sync.RWMutex
	front  *image.RGBA
	back   *image.RGBA
	frames atomic.Uint64
}

// Back returns the back image sized width×height, reallocating on resize.
// Only the frame scheduler may call it.
func (fb *FrameBuffer) Back(width, height int) *image.RGBA {
	if fb.back == nil || fb.back.Rect.Dx() != width || fb.back.Rect.Dy() != height {
		fb.back = image.NewRGBA(image.Rect(0, 0, width, height))
	}
	return fb.back
}

// Commit publishes the back image and recycles the old front as the next
// back.
func (fb *FrameBuffer) Commit() {
	fb.mu.Lock()
	fb.front, fb.back = fb.back, fb.front
	fb.mu.Unlock()
	fb.frames.Add(1)
}

// View calls fn with the published frame, or nil before the first commit.
// fn must not keep img.
func (fb *FrameBuffer) View(fn func(img *image.RGBA)) {
	fb.mu.RLock()
	defer fb.mu.RUnlock()
	fn(fb.front)
}

// Snapshot returns a copy of the published frame, or nil.
func (fb *FrameBuffer) Snapshot() *image.RGBA {
	var out *image.RGBA
	fb.View(func(img *image.RGBA) {
		if img == nil {
			return
		}
		out = image.NewRGBA(img.Rect)
		copy(out.Pix, img.Pix)
	})
	return out
}

// Frames returns the number of committed frames.
func (fb *FrameBuffer) Frames() uint64 { return fb.frames.Load() }
