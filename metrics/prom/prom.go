// Package prom exports cache and render pool metrics to Prometheus.
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/IvanBrykalov/maprender/cache"
	"github.com/IvanBrykalov/maprender/worker"
)

// Adapter implements cache.Metrics and exports Prometheus counters/gauges.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
// One Adapter serves one cache (tile tier or theme match cache).
type Adapter struct {
	hits     prometheus.Counter
	misses   prometheus.Counter
	evicts   *prometheus.CounterVec
	sizeEnt  prometheus.Gauge
	sizeCost prometheus.Gauge
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "hits_total",
			Help:        "Cache hits",
			ConstLabels: constLabels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "misses_total",
			Help:        "Cache misses",
			ConstLabels: constLabels,
		}),
		evicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "evictions_total",
				Help:        "Cache evictions by reason",
				ConstLabels: constLabels,
			},
			[]string{"reason"},
		),
		sizeEnt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "size_entries",
			Help:        "Number of resident entries",
			ConstLabels: constLabels,
		}),
		sizeCost: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "size_cost",
			Help:        "Total resident cost",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(a.hits, a.misses, a.evicts, a.sizeEnt, a.sizeCost)
	return a
}

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

// Evict increments the eviction counter with a reason label.
func (a *Adapter) Evict(r cache.EvictReason) {
	a.evicts.WithLabelValues(r.String()).Inc()
}

// Size updates gauges for the number of entries and total cost.
func (a *Adapter) Size(entries int, cost int64) {
	a.sizeEnt.Set(float64(entries))
	a.sizeCost.Set(float64(cost))
}

var _ cache.Metrics = (*Adapter)(nil)

// Pool implements worker.Metrics.
type Pool struct {
	rendered  prometheus.Histogram
	failed    prometheus.Counter
	discarded prometheus.Counter
	queue     prometheus.Gauge
}

// NewPool registers render pool metrics; arguments as for New.
func NewPool(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Pool {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	p := &Pool{
		rendered: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "render_seconds",
			Help:        "Time to render and cache one tile",
			ConstLabels: constLabels,
			Buckets:     prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "render_failures_total",
			Help:        "Renders that returned an error",
			ConstLabels: constLabels,
		}),
		discarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "render_discarded_total",
			Help:        "Renders dropped because the queue was cleared",
			ConstLabels: constLabels,
		}),
		queue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "queue_jobs",
			Help:        "Jobs waiting to be rendered",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(p.rendered, p.failed, p.discarded, p.queue)
	return p
}

func (p *Pool) Rendered(d time.Duration) { p.rendered.Observe(d.Seconds()) }
func (p *Pool) Failed()                  { p.failed.Inc() }
func (p *Pool) Discarded()               { p.discarded.Inc() }
func (p *Pool) Queue(n int)              { p.queue.Set(float64(n)) }

var _ worker.Metrics = (*Pool)(nil)
