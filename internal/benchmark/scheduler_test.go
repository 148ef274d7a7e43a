package benchmark

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/torosent/studybench/internal/manifest"
)

func TestBuildTasks(t *testing.T) {
	instances := []manifest.StudyInstance{
		{SeriesID: "s1", InstanceID: "i1", FrameCount: 3},
		{SeriesID: "", InstanceID: "i2", FrameCount: 2}, // malformed, skipped
		{SeriesID: "s3", InstanceID: "i3", FrameCount: 0},
		{SeriesID: "s4", InstanceID: "i4", FrameCount: 1},
	}

	tasks := BuildTasks(instances)
	want := []FrameTask{
		{SeriesID: "s1", InstanceID: "i1", Frame: 1},
		{SeriesID: "s1", InstanceID: "i1", Frame: 2},
		{SeriesID: "s1", InstanceID: "i1", Frame: 3},
		{SeriesID: "s4", InstanceID: "i4", Frame: 1},
	}
	if len(tasks) != len(want) {
		t.Fatalf("got %d tasks, want %d: %+v", len(tasks), len(want), tasks)
	}
	for i := range want {
		if tasks[i] != want[i] {
			t.Errorf("task[%d] = %+v, want %+v", i, tasks[i], want[i])
		}
	}
}

func TestWorkerCount(t *testing.T) {
	tests := []struct {
		maxThreads, frames, want int
	}{
		{10, 3, 3},
		{4, 100, 4},
		{4, 4, 4},
		{0, 5, 1},
		{8, 0, 0},
	}
	for _, tt := range tests {
		if got := WorkerCount(tt.maxThreads, tt.frames); got != tt.want {
			t.Errorf("WorkerCount(%d, %d) = %d, want %d", tt.maxThreads, tt.frames, got, tt.want)
		}
	}
}

func frameTasks(n int) []FrameTask {
	tasks := make([]FrameTask, n)
	for i := range tasks {
		tasks[i] = FrameTask{SeriesID: "s", InstanceID: "i", Frame: i + 1}
	}
	return tasks
}

func TestSchedulerBoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int64
	req := &fakeRequester{
		frameBytes: 10,
		onFrame: func(ctx context.Context, task FrameTask) error {
			cur := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				old := peak.Load()
				if cur <= old || peak.CompareAndSwap(old, cur) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			return nil
		},
	}
	progress := &recordingProgress{}
	s := NewScheduler(Options{Requester: req, MaxThreads: 4, Progress: progress})

	tasks := frameTasks(40)
	results := s.Run(context.Background(), tasks, NewMilestones())

	if len(results) != len(tasks) {
		t.Fatalf("got %d results, want %d", len(results), len(tasks))
	}
	for i, r := range results {
		if !r.Succeeded() {
			t.Errorf("task %d failed: %v", i, r.Err)
		}
		if r.Task != tasks[i] {
			t.Errorf("result %d is for %+v, want %+v", i, r.Task, tasks[i])
		}
	}
	if p := peak.Load(); p > 4 {
		t.Errorf("peak concurrency = %d, want <= 4", p)
	}
	if got := progress.increment.Load(); got != 40 {
		t.Errorf("progress increments = %d, want 40", got)
	}
	if inFlight.Load() != 0 {
		t.Errorf("requests still in flight after Run returned")
	}
}

func TestSchedulerPartialFailure(t *testing.T) {
	req := &fakeRequester{
		frameBytes: 10,
		onFrame: func(ctx context.Context, task FrameTask) error {
			if task.Frame%2 == 0 {
				return errFrame
			}
			return nil
		},
	}
	progress := &recordingProgress{}
	s := NewScheduler(Options{Requester: req, MaxThreads: 3, Progress: progress})
	milestones := NewMilestones()

	results := s.Run(context.Background(), frameTasks(6), milestones)

	failed := 0
	for _, r := range results {
		if r.Succeeded() {
			continue
		}
		failed++
		var frameErr *FrameRequestError
		if !errors.As(r.Err, &frameErr) {
			t.Fatalf("error %v is not a *FrameRequestError", r.Err)
		}
		if frameErr.Task.Frame%2 != 0 {
			t.Errorf("frame %d should have succeeded", frameErr.Task.Frame)
		}
		if !errors.Is(r.Err, errFrame) {
			t.Errorf("error %v does not wrap the request error", r.Err)
		}
	}
	if failed != 3 {
		t.Errorf("failed = %d, want 3", failed)
	}
	if got := req.frames.Load(); got != 6 {
		t.Errorf("requests issued = %d, want 6", got)
	}
	if got := progress.increment.Load(); got != 3 {
		t.Errorf("progress increments = %d, want 3", got)
	}
	if _, err := milestones.FirstFrame.Value(); err != nil {
		t.Errorf("FirstFrame milestone missing: %v", err)
	}
}

func TestSchedulerRecoversPanics(t *testing.T) {
	req := &fakeRequester{
		onFrame: func(ctx context.Context, task FrameTask) error {
			if task.Frame == 1 {
				panic("decoder exploded")
			}
			return nil
		},
	}
	s := NewScheduler(Options{Requester: req, MaxThreads: 2})
	results := s.Run(context.Background(), frameTasks(3), NewMilestones())

	var frameErr *FrameRequestError
	if !errors.As(results[0].Err, &frameErr) {
		t.Fatalf("results[0].Err = %v, want *FrameRequestError", results[0].Err)
	}
	if !results[1].Succeeded() || !results[2].Succeeded() {
		t.Errorf("siblings of the panicking task should succeed: %+v", results)
	}
}

func TestSchedulerNoTasks(t *testing.T) {
	s := NewScheduler(Options{Requester: &fakeRequester{}, MaxThreads: 2})
	if results := s.Run(context.Background(), nil, NewMilestones()); len(results) != 0 {
		t.Fatalf("got %d results for no tasks", len(results))
	}
}

func TestSchedulerSkipsRequestsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var afterCancel atomic.Int64
	req := &fakeRequester{
		onFrame: func(ctx context.Context, task FrameTask) error {
			if task.Frame == 1 {
				cancel()
				return ctx.Err()
			}
			afterCancel.Add(1)
			return nil
		},
	}
	s := NewScheduler(Options{Requester: req, MaxThreads: 1})
	results := s.Run(ctx, frameTasks(50), NewMilestones())

	if len(results) != 50 {
		t.Fatalf("got %d results, want 50", len(results))
	}
	if n := req.frames.Load(); n != 1 {
		t.Errorf("requester called %d times, want 1", n)
	}
	if n := afterCancel.Load(); n != 0 {
		t.Errorf("%d frames requested after cancellation", n)
	}
	for i, r := range results {
		if !errors.Is(r.Err, context.Canceled) {
			t.Fatalf("results[%d].Err = %v, want context.Canceled", i, r.Err)
		}
		if r.Task.Frame != i+1 {
			t.Errorf("results[%d].Task.Frame = %d, want %d", i, r.Task.Frame, i+1)
		}
	}
}

func TestSchedulerPacedSkipsRequestsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := &fakeRequester{
		onFrame: func(ctx context.Context, task FrameTask) error {
			if task.Frame == 2 {
				cancel()
			}
			return nil
		},
	}
	s := NewScheduler(Options{Requester: req, MaxThreads: 1, RatePerSecond: 1000})
	results := s.Run(ctx, frameTasks(20), NewMilestones())

	if n := req.frames.Load(); n != 2 {
		t.Errorf("requester called %d times, want 2", n)
	}
	for i := 2; i < len(results); i++ {
		if !errors.Is(results[i].Err, context.Canceled) {
			t.Fatalf("results[%d].Err = %v, want context.Canceled", i, results[i].Err)
		}
	}
}
