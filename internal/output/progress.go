package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/torosent/studybench/internal/benchmark"
	"github.com/torosent/studybench/internal/metrics"
)

// ProgressReporter prints the manifest summary of every iteration and a
// single self-overwriting progress line while its frames are retrieved.
// Increment may be called from any goroutine; Begin and Finish are called
// by the orchestrator only.
type ProgressReporter struct {
	collector *metrics.Collector
	interval  time.Duration
	writer    io.Writer

	active    int32
	completed atomic.Int64
	total     int
	iteration int
	done      chan struct{}
	finished  chan struct{}
	start     time.Time
}

// NewProgressReporter creates a progress reporter that updates at the given
// interval. The collector is optional and adds failure counts to the line.
func NewProgressReporter(collector *metrics.Collector, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &ProgressReporter{
		collector: collector,
		interval:  interval,
		writer:    writer,
	}
}

// Begin prints the manifest line and starts the ticker if there is work.
func (p *ProgressReporter) Begin(info benchmark.ManifestInfo) {
	fmt.Fprintf(p.writer, "Found %d instances, %d frames, using %d threads\n", info.Instances, info.Frames, info.Threads)
	if info.Frames == 0 {
		return
	}
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	p.completed.Store(0)
	p.total = info.Frames
	p.iteration = info.Iteration
	p.start = time.Now()
	p.done = make(chan struct{})
	p.finished = make(chan struct{})
	go p.run(p.done, p.finished)
}

// Increment counts one retrieved frame.
func (p *ProgressReporter) Increment() {
	p.completed.Add(1)
}

// Completed returns the frames counted since the last Begin.
func (p *ProgressReporter) Completed() int64 {
	return p.completed.Load()
}

// Finish stops the ticker and terminates the progress line.
func (p *ProgressReporter) Finish() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		<-p.finished
		fmt.Fprintln(p.writer, p.line())
	}
}

func (p *ProgressReporter) run(done <-chan struct{}, finished chan<- struct{}) {
	defer close(finished)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			fmt.Fprint(p.writer, p.line())
		case <-done:
			return
		}
	}
}

func (p *ProgressReporter) line() string {
	completed := p.completed.Load()
	pct := 0.0
	if p.total > 0 {
		pct = float64(completed) / float64(p.total) * 100
	}
	line := fmt.Sprintf("\rIteration %d: %d/%d frames (%.0f%%) | Elapsed: %s",
		p.iteration, completed, p.total, pct, time.Since(p.start).Truncate(time.Millisecond))
	if p.collector != nil {
		stats := p.collector.Stats(p.collector.Elapsed())
		line += fmt.Sprintf(" | Failures: %d | RPS: %.1f", stats.Failures, stats.RequestsPerSec)
	}
	return line
}
