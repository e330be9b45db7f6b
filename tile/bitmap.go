package tile

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// Bitmap is a reference-counted tile raster. The creator holds the first
// reference; every borrower calls Retain and later Release. The pixels are
// recycled exactly when the count drops to zero.
type Bitmap struct {
	img  *image.RGBA
	refs atomic.Int32

	mu        sync.RWMutex
	timestamp time.Time
	expires   time.Time
}

var pixelPools sync.Map // edge length -> *sync.Pool of *image.RGBA

func pixelPool(size int) *sync.Pool {
	if p, ok := pixelPools.Load(size); ok {
		return p.(*sync.Pool)
	}
	p, _ := pixelPools.LoadOrStore(size, &sync.Pool{
		New: func() any { return image.NewRGBA(image.Rect(0, 0, size, size)) },
	})
	return p.(*sync.Pool)
}

// NewBitmap returns a cleared size×size bitmap with one reference.
func NewBitmap(size int) *Bitmap {
	img := pixelPool(size).Get().(*image.RGBA)
	clear(img.Pix)
	return wrap(img)
}

// FromImage copies src into a new square bitmap with one reference.
func FromImage(src image.Image) *Bitmap {
	b := src.Bounds()
	size := max(b.Dx(), b.Dy())
	bm := NewBitmap(size)
	draw.Draw(bm.img, bm.img.Bounds(), src, b.Min, draw.Src)
	return bm
}

func wrap(img *image.RGBA) *Bitmap {
	bm := &Bitmap{img: img, timestamp: time.Now()}
	bm.refs.Store(1)
	return bm
}

// Image returns the backing raster. Only valid while holding a reference.
func (b *Bitmap) Image() *image.RGBA { return b.img }

// Size returns the edge length in pixels.
func (b *Bitmap) Size() int { return b.img.Rect.Dx() }

// Bytes returns the pixel memory footprint.
func (b *Bitmap) Bytes() int { return len(b.img.Pix) }

// Retain adds a reference and returns b.
func (b *Bitmap) Retain() *Bitmap {
	if b.refs.Add(1) <= 1 {
		panic("tile: Retain on released bitmap")
	}
	return b
}

// Release drops a reference; the last one recycles the pixels.
func (b *Bitmap) Release() {
	switch n := b.refs.Add(-1); {
	case n == 0:
		img := b.img
		pixelPool(img.Rect.Dx()).Put(img)
	case n < 0:
		panic("tile: Release of released bitmap")
	}
}

// Refs returns the current reference count.
func (b *Bitmap) Refs() int32 { return b.refs.Load() }

// Timestamp is when the content was rendered.
func (b *Bitmap) Timestamp() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.timestamp
}

// SetTimestamp overrides the render time (e.g. file modification time).
func (b *Bitmap) SetTimestamp(t time.Time) {
	b.mu.Lock()
	b.timestamp = t
	b.mu.Unlock()
}

// SetExpiration marks the content stale after t. Zero means never.
func (b *Bitmap) SetExpiration(t time.Time) {
	b.mu.Lock()
	b.expires = t
	b.mu.Unlock()
}

// Expired reports whether an expiration is set and has passed at now.
func (b *Bitmap) Expired(now time.Time) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return !b.expires.IsZero() && now.After(b.expires)
}

// EncodePNG writes the raster as PNG.
func (b *Bitmap) EncodePNG(w io.Writer) error {
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(w, b.img); err != nil {
		return fmt.Errorf("tile: encode png: %w", err)
	}
	return nil
}

// DecodePNG reads a PNG into a new bitmap with one reference.
func DecodePNG(r io.Reader) (*Bitmap, error) {
	img, err := png.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("tile: decode png: %w", err)
	}
	if b := img.Bounds(); b.Dx() != b.Dy() || b.Dx() == 0 {
		return nil, fmt.Errorf("tile: decode png: not a square tile (%dx%d)", b.Dx(), b.Dy())
	}
	return FromImage(img), nil
}
