package metrics_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/torosent/studybench/internal/metrics"
)

// wrappedFrameErr mirrors how the benchmark wraps each requester failure.
type wrappedFrameErr struct{ err error }

func (e *wrappedFrameErr) Error() string { return "frame 1: " + e.err.Error() }
func (e *wrappedFrameErr) Unwrap() error { return e.err }

type decodeFailure struct{}

func (decodeFailure) Error() string { return "bad multipart boundary" }

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestErrorCategory(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		want   string
	}{
		{"nil", nil, 0, ""},
		{"status", &wrappedFrameErr{errors.New("HTTP 503")}, 503, "HTTP error response"},
		{"deadline through url.Error", &url.Error{Op: "Get", URL: "http://x", Err: context.DeadlineExceeded}, 0, "Context deadline exceeded"},
		{"canceled wrapped", &wrappedFrameErr{fmt.Errorf("read: %w", context.Canceled)}, 0, "Context canceled"},
		{"truncated body", fmt.Errorf("frame body: %w", io.ErrUnexpectedEOF), 0, "Truncated response"},
		{"network timeout", &url.Error{Op: "Get", URL: "http://x", Err: timeoutErr{}}, 0, "Network timeout"},
		{"dial failure", &wrappedFrameErr{&url.Error{Op: "Get", URL: "http://x", Err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}}}, 0, "Network error"},
		{"bad url", &url.Error{Op: "Get", URL: "::", Err: errors.New("missing protocol scheme")}, 0, "Request URL error"},
		{"innermost cause", &wrappedFrameErr{fmt.Errorf("decode: %w", decodeFailure{})}, 0, "Decode Failure (metrics_test)"},
		{"plain error", &wrappedFrameErr{fmt.Errorf("wrap: %w", errors.New("boom"))}, 0, "Other error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := metrics.ErrorCategory(tt.err, tt.status); got != tt.want {
				t.Errorf("ErrorCategory() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCollectorGroupsWrappedErrorsByCause(t *testing.T) {
	c := metrics.NewCollector()
	c.RecordFrame(metrics.FrameSample{Err: &wrappedFrameErr{fmt.Errorf("get: %w", context.DeadlineExceeded)}})
	c.RecordFrame(metrics.FrameSample{Err: &wrappedFrameErr{context.DeadlineExceeded}})
	c.RecordFrame(metrics.FrameSample{Err: &wrappedFrameErr{errors.New("HTTP 429")}, StatusCode: 429})

	stats := c.Stats(time.Second)
	if stats.Errors["Context deadline exceeded"] != 2 {
		t.Errorf("deadline bucket = %d, want 2 (errors %v)", stats.Errors["Context deadline exceeded"], stats.Errors)
	}
	if stats.Errors["HTTP error response"] != 1 {
		t.Errorf("HTTP bucket = %d, want 1 (errors %v)", stats.Errors["HTTP error response"], stats.Errors)
	}
}
