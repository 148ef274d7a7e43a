package benchmark

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/torosent/studybench/internal/metrics"
	"github.com/torosent/studybench/internal/tracing"
)

// Names of the per-iteration metrics.
const (
	MetricQueryLatency         = "query_latency"
	MetricFirstResponseLatency = "first_response_latency"
	MetricFirstFrameLatency    = "first_frame_latency"
	MetricTotalLatency         = "total_latency"
	MetricTransferRate         = "transfer_rate"
	MetricFrameRate            = "frame_rate"
)

// transferRateDivisor turns bytes per millisecond into the MB/s figure the
// tool has always reported (1024*1024/1000).
const transferRateDivisor = 1048.576

// IterationResult holds the values derived from one iteration.
type IterationResult struct {
	Iteration int
	Instances int
	Frames    int
	Threads   int
	// Skipped is set when the manifest listed no instances; nothing else is filled in.
	Skipped bool

	QueryLatency         time.Duration
	FirstResponseLatency time.Duration
	FirstFrameLatency    time.Duration
	// MilestoneErr is ErrMissingMilestone when no frame request succeeded, in
	// which case both first-* latencies are meaningless.
	MilestoneErr   error
	TotalLatency   time.Duration
	TotalBytesRead int64
	TransferRate   float64 // MB/s
	FrameRate      float64 // frames/s
	CacheHits      int
	CacheMisses    int
	FailedFrames   int
}

// FirstResponse returns the time to first byte of the earliest frame response.
func (r IterationResult) FirstResponse() (time.Duration, error) {
	if r.MilestoneErr != nil {
		return 0, r.MilestoneErr
	}
	return r.FirstResponseLatency, nil
}

// FirstFrame returns the latency of the first fully read frame.
func (r IterationResult) FirstFrame() (time.Duration, error) {
	if r.MilestoneErr != nil {
		return 0, r.MilestoneErr
	}
	return r.FirstFrameLatency, nil
}

// Aggregates are the six metric series shared by all iterations of a run.
type Aggregates struct {
	QueryLatency         *metrics.Series
	FirstResponseLatency *metrics.Series
	FirstFrameLatency    *metrics.Series
	TotalLatency         *metrics.Series
	TransferRate         *metrics.Series
	FrameRate            *metrics.Series
}

// NewAggregates sizes every series to iterations.
func NewAggregates(iterations int) Aggregates {
	return Aggregates{
		QueryLatency:         metrics.NewSeries(MetricQueryLatency, "ms", iterations),
		FirstResponseLatency: metrics.NewSeries(MetricFirstResponseLatency, "ms", iterations),
		FirstFrameLatency:    metrics.NewSeries(MetricFirstFrameLatency, "ms", iterations),
		TotalLatency:         metrics.NewSeries(MetricTotalLatency, "ms", iterations),
		TransferRate:         metrics.NewSeries(MetricTransferRate, "MB/s", iterations),
		FrameRate:            metrics.NewSeries(MetricFrameRate, "frames/s", iterations),
	}
}

// All returns the series in report order.
func (a Aggregates) All() []*metrics.Series {
	return []*metrics.Series{
		a.QueryLatency,
		a.FirstResponseLatency,
		a.FirstFrameLatency,
		a.TotalLatency,
		a.TransferRate,
		a.FrameRate,
	}
}

// Summaries summarizes every series in report order.
func (a Aggregates) Summaries(percentiles ...float64) []metrics.Summary {
	all := a.All()
	out := make([]metrics.Summary, 0, len(all))
	for _, s := range all {
		out = append(out, s.Summarize(percentiles...))
	}
	return out
}

// RunResult summarizes a whole run.
type RunResult struct {
	Iterations   int // iterations that completed, skipped ones included
	Skipped      int
	FailedFrames int
	Duration     time.Duration
}

// Benchmark drives repeated retrieve-study iterations.
type Benchmark struct {
	opt        Options
	scheduler  *Scheduler
	aggregates Aggregates
}

// New creates a Benchmark. Options.Requester is required.
func New(opt Options) *Benchmark {
	opt.normalize()
	return &Benchmark{
		opt:        opt,
		scheduler:  NewScheduler(opt),
		aggregates: NewAggregates(opt.Iterations),
	}
}

// Aggregates returns the run's metric series.
func (b *Benchmark) Aggregates() Aggregates { return b.aggregates }

// Run executes the configured number of iterations strictly one after
// another. It stops at the first iteration error or when ctx is done; the
// aggregates of completed iterations stay available.
func (b *Benchmark) Run(ctx context.Context) (RunResult, error) {
	start := time.Now()
	var res RunResult
	for i := 0; i < b.opt.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			res.Duration = time.Since(start)
			return res, err
		}
		it, err := b.RunIteration(ctx, i)
		if err != nil {
			res.Duration = time.Since(start)
			return res, err
		}
		res.Iterations++
		res.FailedFrames += it.FailedFrames
		if it.Skipped {
			res.Skipped++
		}
	}
	res.Duration = time.Since(start)
	return res, nil
}

// RunIteration queries the manifest, retrieves every frame concurrently,
// folds the outcome into the aggregates and hands it to the reporters.
func (b *Benchmark) RunIteration(ctx context.Context, iteration int) (result IterationResult, err error) {
	ctx, span := tracing.StartSpan(ctx, b.opt.Tracer, "iteration", attribute.Int("benchmark.iteration", iteration))
	defer func() { tracing.EndSpan(span, err) }()

	result.Iteration = iteration
	milestones := NewMilestones()

	// Total latency includes the manifest query.
	start := time.Now()
	var buf bytes.Buffer
	queryCtx, querySpan := tracing.StartSpan(ctx, b.opt.Tracer, "query instances")
	query, err := b.opt.Requester.QueryInstances(queryCtx, &buf)
	tracing.EndSpan(querySpan, err)
	if err != nil {
		return result, &ManifestQueryError{Iteration: iteration, Err: err}
	}
	instances, err := b.opt.ParseManifest(buf.Bytes())
	if err != nil {
		return result, &ManifestQueryError{Iteration: iteration, Err: err}
	}

	tasks := BuildTasks(instances)
	info := ManifestInfo{
		Iteration: iteration,
		Instances: len(instances),
		Frames:    len(tasks),
		Threads:   WorkerCount(b.opt.MaxThreads, len(tasks)),
	}
	result.Instances = info.Instances
	result.Frames = info.Frames
	result.Threads = info.Threads
	result.QueryLatency = query.TotalLatency()

	b.opt.Progress.Begin(info)
	if len(instances) == 0 {
		b.opt.Progress.Finish()
		result.Skipped = true
		return result, nil
	}

	outcomes := b.scheduler.Run(ctx, tasks, milestones)
	result.TotalLatency = time.Since(start)
	b.opt.Progress.Finish()

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("iteration %d interrupted: %w", iteration, err)
	}

	b.fold(&result, query, outcomes, milestones)

	if err := b.record(result); err != nil {
		return result, fmt.Errorf("iteration %d: %w", iteration, err)
	}

	for _, reporter := range b.opt.Reporters {
		if reporter == nil {
			continue
		}
		if err := reporter.ReportIteration(result); err != nil {
			return result, fmt.Errorf("iteration %d: report: %w", iteration, err)
		}
	}
	return result, nil
}

// fold accumulates bytes and cache counters of successful tasks, logs the
// failed ones, and derives the rates and milestone latencies.
func (b *Benchmark) fold(result *IterationResult, query RequestOutcome, outcomes []TaskResult, milestones *Milestones) {
	result.TotalBytesRead = query.BytesRead
	for _, o := range outcomes {
		if !o.Succeeded() {
			result.FailedFrames++
			if b.opt.FailureLogger != nil {
				b.opt.FailureLogger.LogFailure(o.Err)
			}
			continue
		}
		result.TotalBytesRead += o.Outcome.BytesRead
		switch o.Outcome.Cache {
		case CacheHit:
			result.CacheHits++
		case CacheMiss:
			result.CacheMisses++
		}
	}

	result.TransferRate = TransferRate(result.TotalBytesRead, result.TotalLatency)
	result.FrameRate = FrameRate(result.Frames, result.TotalLatency)

	firstResponse, errResponse := milestones.FirstResponse.Value()
	firstFrame, errFrame := milestones.FirstFrame.Value()
	if err := errors.Join(errResponse, errFrame); err != nil {
		result.MilestoneErr = ErrMissingMilestone
		return
	}
	result.FirstResponseLatency = firstResponse.ResponseLatency()
	result.FirstFrameLatency = firstFrame.TotalLatency()
}

func (b *Benchmark) record(result IterationResult) error {
	a := b.aggregates
	if err := a.QueryLatency.AddValue(Millis(result.QueryLatency)); err != nil {
		return err
	}
	if result.MilestoneErr == nil {
		if err := a.FirstResponseLatency.AddValue(Millis(result.FirstResponseLatency)); err != nil {
			return err
		}
		if err := a.FirstFrameLatency.AddValue(Millis(result.FirstFrameLatency)); err != nil {
			return err
		}
	}
	if err := a.TotalLatency.AddValue(Millis(result.TotalLatency)); err != nil {
		return err
	}
	if err := a.TransferRate.AddValue(result.TransferRate); err != nil {
		return err
	}
	return a.FrameRate.AddValue(result.FrameRate)
}

// TransferRate computes bytes / milliseconds / 1048.576. It returns 0 for a
// non-positive duration.
func TransferRate(bytesRead int64, total time.Duration) float64 {
	ms := Millis(total)
	if ms <= 0 {
		return 0
	}
	return float64(bytesRead) / ms / transferRateDivisor
}

// FrameRate computes frames per second over total. It returns 0 for a
// non-positive duration.
func FrameRate(frames int, total time.Duration) float64 {
	ms := Millis(total)
	if ms <= 0 {
		return 0
	}
	return float64(frames) / (ms / 1000.0)
}

// Millis converts a duration to fractional milliseconds.
func Millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
