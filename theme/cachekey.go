package theme

import (
	"cmp"
	"encoding/binary"
	"slices"

	"github.com/IvanBrykalov/maprender/internal/util"
	"github.com/IvanBrykalov/maprender/tag"
)

// NameKey is the tag excluded from match cache keys: captions read it at
// draw time. Themes whose rules can observe it keep it in the key.
const NameKey = "name"

// MatchingCacheKey identifies a match result: the feature's tags without
// the name tag, the zoom level and the closed state. It is comparable and
// usable as a map or cache key.
type MatchingCacheKey struct {
	tags   string // sorted, deduplicated (key,value) codes, 8 bytes each
	zoom   uint8
	closed tag.Closed
}

// NewMatchingCacheKey builds the canonical key. Tags keyed by name are left
// out; pass 0 to keep every tag. Tag order and duplicates do not matter.
func NewMatchingCacheKey(tags []tag.Tag, name tag.Code, zoom uint8, closed tag.Closed) MatchingCacheKey {
	var buf [16]tag.Tag
	ts := buf[:0]
	for _, t := range tags {
		if t.Key != name {
			ts = append(ts, t)
		}
	}
	slices.SortFunc(ts, func(a, b tag.Tag) int {
		if a.Key != b.Key {
			return cmp.Compare(a.Key, b.Key)
		}
		return cmp.Compare(a.Value, b.Value)
	})
	ts = slices.Compact(ts)

	b := make([]byte, 0, 8*len(ts))
	for _, t := range ts {
		b = binary.LittleEndian.AppendUint32(b, uint32(t.Key))
		b = binary.LittleEndian.AppendUint32(b, uint32(t.Value))
	}
	return MatchingCacheKey{tags: string(b), zoom: zoom, closed: closed}
}

// Zoom returns the key's zoom level.
func (k MatchingCacheKey) Zoom() uint8 { return k.zoom }

// Closed returns the key's closed state.
func (k MatchingCacheKey) Closed() tag.Closed { return k.closed }

// Len returns the number of distinct tags in the key.
func (k MatchingCacheKey) Len() int { return len(k.tags) / 8 }

// Hash64 spreads keys across cache shards.
func (k MatchingCacheKey) Hash64() uint64 {
	h := util.MixString(util.Seed, k.tags)
	return util.MixUint64(h, uint64(k.zoom)<<8|uint64(k.closed))
}
