package benchmark

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/studybench/internal/manifest"
)

// BuildTasks creates one task per frame (1-based) of every schedulable
// instance, in manifest order. Instances missing a series or instance UID are
// skipped.
func BuildTasks(instances []manifest.StudyInstance) []FrameTask {
	tasks := make([]FrameTask, 0, manifest.TotalFrames(instances))
	for _, inst := range instances {
		if !inst.Schedulable() {
			continue
		}
		for frame := 1; frame <= inst.FrameCount; frame++ {
			tasks = append(tasks, FrameTask{
				SeriesID:   inst.SeriesID,
				InstanceID: inst.InstanceID,
				Frame:      frame,
			})
		}
	}
	return tasks
}

// WorkerCount returns the pool size for an iteration: min(maxThreads, frames).
func WorkerCount(maxThreads, frames int) int {
	if frames <= 0 {
		return 0
	}
	if maxThreads <= 0 {
		maxThreads = 1
	}
	if frames < maxThreads {
		return frames
	}
	return maxThreads
}

// Scheduler runs the frame tasks of one iteration on a bounded worker pool.
type Scheduler struct {
	requester  Requester
	maxThreads int
	arrival    arrivalController
	progress   Progress
	tracer     trace.Tracer
}

// NewScheduler creates a Scheduler from normalized options.
func NewScheduler(opt Options) *Scheduler {
	opt.normalize()
	return &Scheduler{
		requester:  opt.Requester,
		maxThreads: opt.MaxThreads,
		arrival:    newArrivalController(opt),
		progress:   opt.Progress,
		tracer:     opt.Tracer,
	}
}

// Run executes every task and blocks until all of them are terminal. The
// returned slice is index-aligned with tasks. A failing task never cancels
// its siblings. The pool is created for this call only and all of its
// goroutines have exited when Run returns.
func (s *Scheduler) Run(ctx context.Context, tasks []FrameTask, milestones *Milestones) []TaskResult {
	results := make([]TaskResult, len(tasks))
	workers := WorkerCount(s.maxThreads, len(tasks))
	if workers == 0 {
		return results
	}

	unit := frameUnit{
		requester:  s.requester,
		milestones: milestones,
		progress:   s.progress,
		tracer:     s.tracer,
	}

	queue := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for idx := range queue {
				results[idx] = s.execute(ctx, unit, tasks[idx])
			}
		}()
	}

	for idx := range tasks {
		queue <- idx
	}
	close(queue)
	wg.Wait()

	return results
}

// execute runs one task unless the run was cancelled first. Tasks still
// queued at cancellation fail with the context error and never reach the
// requester.
func (s *Scheduler) execute(ctx context.Context, unit frameUnit, task FrameTask) TaskResult {
	if err := ctx.Err(); err != nil {
		return TaskResult{Task: task, Err: &FrameRequestError{Task: task, Err: err}}
	}
	if s.arrival != nil {
		if err := s.arrival.Wait(ctx); err != nil {
			return TaskResult{Task: task, Err: &FrameRequestError{Task: task, Err: err}}
		}
		if err := ctx.Err(); err != nil {
			return TaskResult{Task: task, Err: &FrameRequestError{Task: task, Err: err}}
		}
	}
	return unit.run(ctx, task)
}
