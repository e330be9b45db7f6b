package worker

import "time"

// Metrics receives render pool signals. Implementations must be safe for
// concurrent use; keep them cheap, they run on the worker goroutines.
type Metrics interface {
	// Rendered is called once per bitmap written to the cache.
	Rendered(d time.Duration)
	// Failed is called when the renderer returned an error.
	Failed()
	// Discarded is called for results nobody wants any more.
	Discarded()
	// Queue reports the number of queued jobs after each job.
	Queue(n int)
}

// NoopMetrics discards all signals.
type NoopMetrics struct{}

func (NoopMetrics) Rendered(time.Duration) {}
func (NoopMetrics) Failed()                {}
func (NoopMetrics) Discarded()             {}
func (NoopMetrics) Queue(int)              {}

var _ Metrics = NoopMetrics{}
