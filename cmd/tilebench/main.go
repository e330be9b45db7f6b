// Command tilebench pans a synthetic map through the whole pipeline and
// exposes optional pprof/Prometheus endpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"image/color"
	"log"
	"log/slog"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"runtime"
	"time"

	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/IvanBrykalov/maprender"
	"github.com/IvanBrykalov/maprender/layer"
	"github.com/IvanBrykalov/maprender/mapdata"
	"github.com/IvanBrykalov/maprender/mapdata/memstore"
	"github.com/IvanBrykalov/maprender/tag"
	"github.com/IvanBrykalov/maprender/theme"
)

func main() {
	// ---- Flags ----
	var (
		width    = flag.Int("width", 1024, "screen width (px)")
		height   = flag.Int("height", 768, "screen height (px)")
		zoom     = flag.Int("zoom", 14, "zoom level")
		workers  = flag.Int("workers", runtime.GOMAXPROCS(0), "render workers")
		duration = flag.Duration("duration", 10*time.Second, "benchmark duration")
		step     = flag.Duration("step", 50*time.Millisecond, "time between pans")
		features = flag.Int("features", 20_000, "synthetic ways")
		seed     = flag.Int64("seed", time.Now().UnixNano(), "random seed")
		cacheDir = flag.String("cache", "", "file cache dir; empty = memory only")
		precache = flag.Bool("precache", false, "pre-render margin and neighbour zooms")
		quality  = flag.Bool("quality", false, "bilinear placeholder blits")
		verbose  = flag.Bool("v", false, "debug logging")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", ":8080", "serve Prometheus metrics at addr")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	maprender.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	// ---- pprof server (on DefaultServeMux) ----
	if *pprofAddr != "" {
		go func() {
			log.Printf("pprof: serving at %s", *pprofAddr)
			log.Println(http.ListenAndServe(*pprofAddr, nil))
		}()
	}

	// ---- Prometheus metrics (on DefaultServeMux) ----
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Printf("metrics: serving at %s", *metricsAddr)
		log.Println(http.ListenAndServe(*metricsAddr, nil))
	}()

	// ---- Build theme and data ----
	th, err := buildTheme()
	if err != nil {
		log.Fatalf("theme: %v", err)
	}
	defer th.Release()

	r := rand.New(rand.NewSource(*seed))
	center := orb.Point{13.4, 52.5}
	st := synthesize(r, th.Pool(), center, *features)

	blit := layer.BlitSpeed
	if *quality {
		blit = layer.BlitQuality
	}
	m, err := maprender.New(maprender.Options{
		Store:      st,
		Theme:      th,
		Width:      *width,
		Height:     *height,
		Position:   layer.MapPosition{Center: center, Zoom: uint8(*zoom)},
		CacheDir:   *cacheDir,
		Workers:    *workers,
		Blit:       blit,
		Precache:   *precache,
		Margin:     256,
		ZoomPlus:   1,
		ZoomMinus:  1,
		Registerer: prometheus.DefaultRegisterer,
	})
	if err != nil {
		log.Fatalf("map: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()
	if err := m.Start(ctx); err != nil {
		log.Fatalf("start: %v", err)
	}

	// ---- Random walk ----
	start := time.Now()
	pans := 0
	tick := time.NewTicker(*step)
	defer tick.Stop()
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-tick.C:
		}
		pos := m.Model.Position()
		d := 0.02 / float64(uint(1)<<max(0, *zoom-10))
		pos.Center[0] += (r.Float64() - 0.5) * d
		pos.Center[1] += (r.Float64() - 0.5) * d
		m.Model.SetPosition(pos)
		pans++
	}
	elapsed := time.Since(start)

	// ---- Report ----
	frames, drawn := m.FrameBuffer.Frames(), m.Manager.Drawn()
	queued := m.Queue.Len()
	if err := m.Close(); err != nil {
		log.Printf("close: %v", err)
	}
	fmt.Printf("size=%dx%d zoom=%d workers=%d features=%d dur=%v seed=%d\n",
		*width, *height, *zoom, *workers, *features, elapsed, *seed)
	fmt.Printf("pans=%d frames=%d (%.1f fps) drawn=%d queued-at-end=%d\n",
		pans, frames, float64(frames)/elapsed.Seconds(), drawn, queued)
	pois, ways := th.MatchCacheLen()
	fmt.Printf("theme match cache: pois=%d ways=%d\n", pois, ways)
}

func buildTheme() (*theme.RenderTheme, error) {
	b := theme.NewBuilder(theme.BuilderOptions{ID: "bench"})
	rules := []struct {
		spec theme.RuleSpec
		ins  func() theme.Instruction
	}{
		{theme.RuleSpec{Element: tag.ElementWay, Keys: "landuse", Values: "forest|wood", Closed: tag.ClosedYes, ZoomMax: 22},
			func() theme.Instruction {
				return theme.NewArea(b.NextLevel(), &theme.Paint{Color: color.NRGBA{R: 0xad, G: 0xd1, B: 0x9e, A: 0xff}}, nil)
			}},
		{theme.RuleSpec{Element: tag.ElementWay, Keys: "highway", Values: "primary|secondary", ZoomMax: 22},
			func() theme.Instruction {
				return theme.NewLine(b.NextLevel(), &theme.Paint{Color: color.NRGBA{R: 0xf7, G: 0xc5, B: 0x6b, A: 0xff}, Style: theme.Stroke, Width: 3, Cap: theme.CapRound}, 0)
			}},
		{theme.RuleSpec{Element: tag.ElementWay, Keys: "highway", Values: "residential|track", ZoomMin: 13, ZoomMax: 22},
			func() theme.Instruction {
				return theme.NewLine(b.NextLevel(), &theme.Paint{Color: color.NRGBA{R: 0x99, G: 0x99, B: 0x99, A: 0xff}, Style: theme.Stroke, Width: 1}, 0)
			}},
		{theme.RuleSpec{Element: tag.ElementNode, Keys: "place", Values: "*", ZoomMax: 22},
			func() theme.Instruction { return theme.NewCaption(b.Pool(), theme.CaptionOptions{Priority: 10}) }},
	}
	for _, r := range rules {
		if err := b.BeginRule(r.spec); err != nil {
			return nil, err
		}
		if err := b.AddInstruction(r.ins()); err != nil {
			return nil, err
		}
		if err := b.EndRule(); err != nil {
			return nil, err
		}
	}
	return b.Build()
}

// synthesize scatters forests, roads and places around center.
func synthesize(r *rand.Rand, p *tag.Pool, center orb.Point, n int) *memstore.Store {
	st := memstore.New()
	jitter := func(scale float64) orb.Point {
		return orb.Point{center[0] + (r.Float64()-0.5)*scale, center[1] + (r.Float64()-0.5)*scale}
	}
	highways := []string{"primary", "secondary", "residential", "track"}
	for i := range n {
		o := jitter(0.5)
		switch i % 3 {
		case 0:
			d := 0.002 + r.Float64()*0.01
			st.AddWay(mapdata.Way{
				Tags: []tag.Tag{p.Tag("landuse", "forest")},
				Coordinates: []orb.LineString{{
					o, {o[0] + d, o[1]}, {o[0] + d, o[1] + d}, {o[0], o[1] + d}, o,
				}},
			})
		case 1:
			ls := orb.LineString{o}
			for range 4 {
				last := ls[len(ls)-1]
				ls = append(ls, orb.Point{last[0] + (r.Float64()-0.5)*0.01, last[1] + (r.Float64()-0.5)*0.01})
			}
			st.AddWay(mapdata.Way{
				Tags:        []tag.Tag{p.Tag("highway", highways[r.Intn(len(highways))])},
				Coordinates: []orb.LineString{ls},
			})
		default:
			st.AddPOI(mapdata.PointOfInterest{
				Tags:     []tag.Tag{p.Tag("place", "village"), p.Tag("name", fmt.Sprintf("V%d", i))},
				Position: o,
			})
		}
	}
	return st
}
