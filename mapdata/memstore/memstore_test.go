package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/IvanBrykalov/maprender/mapdata"
	"github.com/IvanBrykalov/maprender/tag"
	"github.com/IvanBrykalov/maprender/tile"
)

func TestStore_ReadIntersecting(t *testing.T) {
	t.Parallel()

	pool := tag.NewPool()
	s := New()
	berlin := orb.Point{13.4, 52.52}
	s.AddPOI(mapdata.PointOfInterest{Tags: []tag.Tag{pool.Tag("amenity", "cafe")}, Position: berlin})
	s.AddWay(mapdata.Way{
		Tags:        []tag.Tag{pool.Tag("highway", "primary")},
		Coordinates: []orb.LineString{{{13.39, 52.51}, {13.41, 52.53}}},
	})
	s.AddPOI(mapdata.PointOfInterest{Position: orb.Point{-70, -30}})

	tl := tile.At(berlin, 12, 256)
	res, err := s.Read(context.Background(), tl)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.POIs) != 1 || len(res.Ways) != 1 {
		t.Fatalf("got %d POIs %d ways", len(res.POIs), len(res.Ways))
	}
	if s.Len() != 3 {
		t.Fatalf("Len = %d", s.Len())
	}
}

func TestStore_NoDataAndWater(t *testing.T) {
	t.Parallel()

	s := New()
	tl := tile.Tile{X: 0, Y: 0, Zoom: 10, Size: 256}
	if _, err := s.Read(context.Background(), tl); !errors.Is(err, mapdata.ErrNoData) {
		t.Fatalf("want ErrNoData, got %v", err)
	}

	before := s.Timestamp(tl)
	time.Sleep(time.Millisecond)
	s.AddWater(orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}})
	res, err := s.Read(context.Background(), tl)
	if err != nil || !res.IsWater {
		t.Fatalf("water tile: res=%+v err=%v", res, err)
	}
	if !s.Timestamp(tl).After(before) {
		t.Fatal("modification must advance the timestamp")
	}
}

func TestStore_ReadHonoursContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Read(ctx, tile.Tile{Size: 256}); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v", err)
	}
}
