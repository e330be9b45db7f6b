package tile

import (
	"fmt"
	"strconv"

	"github.com/IvanBrykalov/maprender/internal/util"
)

// Job identifies one tile rendered under one theme and text scale. It is a
// pure value: equal jobs produce identical bitmaps, so Job keys both the
// tile caches and the job queue.
type Job struct {
	Tile      Tile
	ThemeID   string
	TextScale float32
	HasAlpha  bool
}

// Hash64 is a stable FNV-1a hash over every field. It is used for shard
// selection and as the file name in the file-system cache, so it must not
// change between releases.
func (j Job) Hash64() uint64 {
	h := util.MixUint64(util.Seed, uint64(j.Tile.X)<<32|uint64(j.Tile.Y))
	h = util.MixUint64(h, uint64(j.Tile.Zoom)<<32|uint64(uint32(j.Tile.Size)))
	h = util.MixString(h, j.ThemeID)
	h = util.MixFloat32(h, j.TextScale)
	if j.HasAlpha {
		h = util.MixUint64(h, 1)
	}
	return h
}

// FileName is the stable cache file name for the job.
func (j Job) FileName() string {
	return strconv.FormatUint(j.Hash64(), 16) + ".png"
}

func (j Job) String() string {
	return fmt.Sprintf("%s theme=%s text=%.2f", j.Tile, j.ThemeID, j.TextScale)
}

// WithTile returns a copy of j addressing t.
func (j Job) WithTile(t Tile) Job {
	j.Tile = t
	return j
}
