package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// FrameSample is one frame request as seen by the Collector.
type FrameSample struct {
	Latency    time.Duration
	Bytes      int64
	CacheHit   bool
	CacheMiss  bool
	Err        error
	StatusCode int // HTTP status of a failed request, 0 if none was received
}

// Collector records per-frame request metrics across the whole run in a
// thread-safe manner.
type Collector struct {
	mu           sync.Mutex
	hist         *hdrhistogram.Histogram
	successes    int64
	failures     int64
	bytes        int64
	cacheHits    int64
	cacheMisses  int64
	minLatency   time.Duration
	maxLatency   time.Duration
	sumLatency   time.Duration
	errorsByType map[string]int64
	statusCodes  map[string]int64
	start        time.Time
}

// Stats represents aggregated frame request metrics.
type Stats struct {
	Total          int64         `json:"total"`
	Successes      int64         `json:"successes"`
	Failures       int64         `json:"failures"`
	BytesRead      int64         `json:"bytes_read"`
	CacheHits      int64         `json:"cache_hits"`
	CacheMisses    int64         `json:"cache_misses"`
	MinLatency     time.Duration `json:"-"`
	MaxLatency     time.Duration `json:"-"`
	MeanLatency    time.Duration `json:"-"`
	P50Latency     time.Duration `json:"-"`
	P90Latency     time.Duration `json:"-"`
	P99Latency     time.Duration `json:"-"`
	Duration       time.Duration `json:"-"`
	RequestsPerSec float64       `json:"requests_per_sec"`

	// JSON-friendly millisecond fields.
	MinLatencyMs  float64        `json:"min_latency_ms"`
	MaxLatencyMs  float64        `json:"max_latency_ms"`
	MeanLatencyMs float64        `json:"mean_latency_ms"`
	P50LatencyMs  float64        `json:"p50_latency_ms"`
	P90LatencyMs  float64        `json:"p90_latency_ms"`
	P99LatencyMs  float64        `json:"p99_latency_ms"`
	DurationMs    float64        `json:"duration_ms"`
	Errors        map[string]int `json:"errors,omitempty"`
	StatusCodes   map[string]int `json:"status_codes,omitempty"`
}

func NewCollector() *Collector {
	// Track latencies from 1µs up to 60s with 3 significant figures.
	h := hdrhistogram.New(1, 60_000_000, 3)
	return &Collector{
		hist:         h,
		errorsByType: make(map[string]int64),
		statusCodes:  make(map[string]int64),
		start:        time.Now(),
	}
}

// Start resets the reference time used for the requests-per-second rate.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = time.Now()
}

// Elapsed returns the time since Start (or construction).
func (c *Collector) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.start)
}

// RecordFrame records a single frame request.
func (c *Collector) RecordFrame(sample FrameSample) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sample.Err != nil {
		c.failures++
		c.errorsByType[ErrorCategory(sample.Err, sample.StatusCode)]++
		if sample.StatusCode > 0 {
			c.statusCodes[strconv.Itoa(sample.StatusCode)]++
		}
		return
	}

	c.successes++
	c.bytes += sample.Bytes
	if sample.CacheHit {
		c.cacheHits++
	}
	if sample.CacheMiss {
		c.cacheMisses++
	}

	latency := sample.Latency
	if latency > 0 {
		us := latency.Microseconds()
		if us < c.hist.LowestTrackableValue() {
			us = c.hist.LowestTrackableValue()
		}
		if us > c.hist.HighestTrackableValue() {
			us = c.hist.HighestTrackableValue()
		}
		_ = c.hist.RecordValue(us)
	}
	c.sumLatency += latency

	if c.minLatency == 0 || latency < c.minLatency {
		c.minLatency = latency
	}
	if latency > c.maxLatency {
		c.maxLatency = latency
	}
}

// Stats computes and returns current aggregated statistics. Latency figures
// cover successful requests only.
func (c *Collector) Stats(elapsed time.Duration) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.successes + c.failures
	stats := Stats{
		Total:       total,
		Successes:   c.successes,
		Failures:    c.failures,
		BytesRead:   c.bytes,
		CacheHits:   c.cacheHits,
		CacheMisses: c.cacheMisses,
		MinLatency:  c.minLatency,
		MaxLatency:  c.maxLatency,
	}

	if c.successes > 0 {
		stats.MeanLatency = time.Duration(int64(c.sumLatency) / c.successes)
	}

	if c.hist.TotalCount() > 0 {
		stats.P50Latency = time.Duration(c.hist.ValueAtQuantile(50)) * time.Microsecond
		stats.P90Latency = time.Duration(c.hist.ValueAtQuantile(90)) * time.Microsecond
		stats.P99Latency = time.Duration(c.hist.ValueAtQuantile(99)) * time.Microsecond
	}

	stats.MinLatencyMs = float64(stats.MinLatency) / float64(time.Millisecond)
	stats.MaxLatencyMs = float64(stats.MaxLatency) / float64(time.Millisecond)
	stats.MeanLatencyMs = float64(stats.MeanLatency) / float64(time.Millisecond)
	stats.P50LatencyMs = float64(stats.P50Latency) / float64(time.Millisecond)
	stats.P90LatencyMs = float64(stats.P90Latency) / float64(time.Millisecond)
	stats.P99LatencyMs = float64(stats.P99Latency) / float64(time.Millisecond)

	stats.Duration = elapsed
	stats.DurationMs = float64(elapsed) / float64(time.Millisecond)
	if elapsed > 0 && total > 0 {
		stats.RequestsPerSec = float64(total) / elapsed.Seconds()
	}

	if len(c.errorsByType) > 0 {
		stats.Errors = make(map[string]int, len(c.errorsByType))
		for k, v := range c.errorsByType {
			stats.Errors[k] = int(v)
		}
	}
	if len(c.statusCodes) > 0 {
		stats.StatusCodes = make(map[string]int, len(c.statusCodes))
		for k, v := range c.statusCodes {
			stats.StatusCodes[k] = int(v)
		}
	}

	return stats
}

// FailureRate returns failures over total frame requests, 0 when nothing was recorded.
func (s Stats) FailureRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Failures) / float64(s.Total)
}
