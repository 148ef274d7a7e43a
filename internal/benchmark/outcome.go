package benchmark

import (
	"strings"
	"time"
)

// CacheStatus is the cache verdict reported by the server for one request.
type CacheStatus int

const (
	CacheUnknown CacheStatus = iota
	CacheHit
	CacheMiss
)

// ParseCacheStatus maps a cache header value ("HIT", "miss", ...) to a CacheStatus.
func ParseCacheStatus(value string) CacheStatus {
	v := strings.ToUpper(strings.TrimSpace(value))
	switch {
	case strings.HasPrefix(v, "HIT"):
		return CacheHit
	case strings.HasPrefix(v, "MISS"):
		return CacheMiss
	default:
		return CacheUnknown
	}
}

func (c CacheStatus) String() string {
	switch c {
	case CacheHit:
		return "hit"
	case CacheMiss:
		return "miss"
	default:
		return "unknown"
	}
}

// RequestOutcome is the timing record of one completed network request.
type RequestOutcome struct {
	StartTime    time.Time
	ResponseTime time.Time // first response byte received
	EndTime      time.Time // body fully read
	BytesRead    int64
	Cache        CacheStatus
}

// ResponseLatency is the time to first byte.
func (o RequestOutcome) ResponseLatency() time.Duration {
	return o.ResponseTime.Sub(o.StartTime)
}

// TotalLatency is the time until the body was fully read.
func (o RequestOutcome) TotalLatency() time.Duration {
	return o.EndTime.Sub(o.StartTime)
}

// FrameTask identifies one frame retrieval. Frame is 1-based.
type FrameTask struct {
	SeriesID   string
	InstanceID string
	Frame      int
}

// TaskResult is the terminal state of one FrameTask: either an Outcome or an Err.
type TaskResult struct {
	Task    FrameTask
	Outcome RequestOutcome
	Err     error
}

// Succeeded reports whether the task produced an outcome.
func (r TaskResult) Succeeded() bool { return r.Err == nil }
