package benchmark

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

const twoInstanceManifest = `[
  {"0020000E": {"vr": "UI", "Value": ["1.2.3.1"]}, "00080018": {"vr": "UI", "Value": ["1.2.3.1.1"]}, "00280008": {"vr": "IS", "Value": [2]}},
  {"0020000E": {"vr": "UI", "Value": ["1.2.3.2"]}, "00080018": {"vr": "UI", "Value": ["1.2.3.2.1"]}}
]`

// fakeRequester serves a fixed manifest and delegates frames to onFrame.
type fakeRequester struct {
	manifest   string
	queryErr   error
	frameBytes int64
	onFrame    func(ctx context.Context, task FrameTask) error

	frames atomic.Int64
}

func (f *fakeRequester) QueryInstances(ctx context.Context, w io.Writer) (RequestOutcome, error) {
	start := time.Now()
	if f.queryErr != nil {
		return RequestOutcome{}, f.queryErr
	}
	n, err := io.WriteString(w, f.manifest)
	end := time.Now()
	return RequestOutcome{StartTime: start, ResponseTime: end, EndTime: end, BytesRead: int64(n)}, err
}

func (f *fakeRequester) RetrieveFrame(ctx context.Context, task FrameTask, w io.Writer) (RequestOutcome, error) {
	f.frames.Add(1)
	start := time.Now()
	if f.onFrame != nil {
		if err := f.onFrame(ctx, task); err != nil {
			return RequestOutcome{}, err
		}
	}
	end := time.Now()
	return RequestOutcome{
		StartTime:    start,
		ResponseTime: start.Add(end.Sub(start) / 2),
		EndTime:      end,
		BytesRead:    f.frameBytes,
		Cache:        CacheHit,
	}, nil
}

var errFrame = errors.New("frame unavailable")

type recordingProgress struct {
	mu        sync.Mutex
	begun     []ManifestInfo
	finished  int
	increment atomic.Int64
}

func (p *recordingProgress) Begin(info ManifestInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.begun = append(p.begun, info)
}

func (p *recordingProgress) Increment() { p.increment.Add(1) }

func (p *recordingProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finished++
}

type collectingReporter struct {
	results []IterationResult
}

func (c *collectingReporter) ReportIteration(r IterationResult) error {
	c.results = append(c.results, r)
	return nil
}

type countingFailureLogger struct {
	mu   sync.Mutex
	errs []error
}

func (c *countingFailureLogger) LogFailure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, err)
}
