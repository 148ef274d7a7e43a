package main

import (
	"context"
	"errors"
	"io"

	"github.com/torosent/studybench/internal/benchmark"
	"github.com/torosent/studybench/internal/dicomweb"
	"github.com/torosent/studybench/internal/metrics"
)

// recordingRequester feeds every frame request into the run-wide collector.
type recordingRequester struct {
	next      benchmark.Requester
	collector *metrics.Collector
}

func (r *recordingRequester) QueryInstances(ctx context.Context, w io.Writer) (benchmark.RequestOutcome, error) {
	return r.next.QueryInstances(ctx, w)
}

func (r *recordingRequester) RetrieveFrame(ctx context.Context, task benchmark.FrameTask, w io.Writer) (benchmark.RequestOutcome, error) {
	outcome, err := r.next.RetrieveFrame(ctx, task, w)
	sample := metrics.FrameSample{
		Latency:    outcome.TotalLatency(),
		Bytes:      outcome.BytesRead,
		CacheHit:   outcome.Cache == benchmark.CacheHit,
		CacheMiss:  outcome.Cache == benchmark.CacheMiss,
		Err:        err,
		StatusCode: statusCodeFromError(err),
	}
	r.collector.RecordFrame(sample)
	return outcome, err
}

// statusCodeFromError returns the HTTP status carried by err, or 0.
func statusCodeFromError(err error) int {
	var statusErr *dicomweb.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}
