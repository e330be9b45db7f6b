// Package mapdata describes the tagged geometry the renderer consumes and
// the Store interface map-data readers implement.
package mapdata

import (
	"context"
	"errors"
	"time"

	"github.com/paulmach/orb"

	"github.com/IvanBrykalov/maprender/tag"
	"github.com/IvanBrykalov/maprender/tile"
)

// Layers is the number of OSM drawing layers, -5..+5.
const Layers = 11

// ErrNoData is returned by a Store that has nothing for a tile.
var ErrNoData = errors.New("mapdata: no data for tile")

// LayerIndex maps an OSM layer value to a draw-list index in [0, Layers).
func LayerIndex(layer int8) int {
	i := int(layer) + Layers/2
	if i < 0 {
		return 0
	}
	if i >= Layers {
		return Layers - 1
	}
	return i
}

// PointOfInterest is a tagged node.
type PointOfInterest struct {
	Layer    int8
	Tags     []tag.Tag
	Position orb.Point
}

// Way is a tagged polyline or polygon. Coordinates[0] is the outer line;
// further entries are inner rings.
type Way struct {
	Layer         int8
	Tags          []tag.Tag
	Coordinates   []orb.LineString
	LabelPosition *orb.Point
}

// Closed reports whether the outer line has at least three points and
// coinciding endpoints.
func (w *Way) Closed() bool {
	if len(w.Coordinates) == 0 {
		return false
	}
	ls := w.Coordinates[0]
	return len(ls) > 2 && ls[0].Equal(ls[len(ls)-1])
}

// Bound returns the bounds of the outer line.
func (w *Way) Bound() orb.Bound {
	if len(w.Coordinates) == 0 {
		return orb.Bound{}
	}
	return w.Coordinates[0].Bound()
}

// Result holds everything a Store returned for one tile.
type Result struct {
	POIs    []PointOfInterest
	Ways    []Way
	IsWater bool
}

// Store supplies map data per tile. Implementations must be safe for
// concurrent use by render workers.
type Store interface {
	// Read returns the features intersecting t.
	Read(ctx context.Context, t tile.Tile) (*Result, error)
	// Timestamp returns when the data covering t last changed; tiles
	// rendered before it are stale.
	Timestamp(t tile.Tile) time.Time
}
