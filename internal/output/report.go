package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/torosent/studybench/internal/benchmark"
	"github.com/torosent/studybench/internal/metrics"
	"github.com/torosent/studybench/internal/threshold"
)

const notAvailable = "n/a"

// IterationRecord is the JSON and CSV form of one iteration.
type IterationRecord struct {
	Iteration            int      `json:"iteration"`
	Instances            int      `json:"instances"`
	Frames               int      `json:"frames"`
	Threads              int      `json:"threads"`
	Skipped              bool     `json:"skipped,omitempty"`
	QueryLatencyMs       float64  `json:"query_latency_ms"`
	FirstResponseLatency *float64 `json:"first_response_latency_ms"`
	FirstFrameLatency    *float64 `json:"first_frame_latency_ms"`
	TotalLatencyMs       float64  `json:"total_latency_ms"`
	TotalBytesRead       int64    `json:"total_bytes_read"`
	TransferRate         float64  `json:"mb_per_second"`
	FrameRate            float64  `json:"frames_per_second"`
	CacheHits            int      `json:"cache_hits"`
	CacheMisses          int      `json:"cache_misses"`
	FailedFrames         int      `json:"failed_frames"`
}

// NewIterationRecord converts an iteration result. First-* latencies are nil
// when no frame of the iteration succeeded.
func NewIterationRecord(r benchmark.IterationResult) IterationRecord {
	rec := IterationRecord{
		Iteration:      r.Iteration,
		Instances:      r.Instances,
		Frames:         r.Frames,
		Threads:        r.Threads,
		Skipped:        r.Skipped,
		QueryLatencyMs: benchmark.Millis(r.QueryLatency),
		TotalLatencyMs: benchmark.Millis(r.TotalLatency),
		TotalBytesRead: r.TotalBytesRead,
		TransferRate:   r.TransferRate,
		FrameRate:      r.FrameRate,
		CacheHits:      r.CacheHits,
		CacheMisses:    r.CacheMisses,
		FailedFrames:   r.FailedFrames,
	}
	if d, err := r.FirstResponse(); err == nil {
		ms := benchmark.Millis(d)
		rec.FirstResponseLatency = &ms
	}
	if d, err := r.FirstFrame(); err == nil {
		ms := benchmark.Millis(d)
		rec.FirstFrameLatency = &ms
	}
	return rec
}

// Report is everything printed at the end of a run.
type Report struct {
	RunID      string            `json:"run_id"`
	Target     string            `json:"target"`
	StartedAt  time.Time         `json:"started_at"`
	Duration   time.Duration     `json:"-"`
	DurationMs float64           `json:"duration_ms"`
	Config     map[string]any    `json:"config,omitempty"`
	Iterations []IterationRecord `json:"iterations"`
	Aggregates []metrics.Summary `json:"aggregates"`
	Frames     metrics.Stats     `json:"frames"`
	Thresholds []ThresholdRecord `json:"thresholds,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// ThresholdRecord is the reported outcome of one threshold.
type ThresholdRecord struct {
	Threshold string  `json:"threshold"`
	Actual    float64 `json:"actual"`
	Pass      bool    `json:"pass"`
	Message   string  `json:"message,omitempty"`
}

// NewThresholdRecords converts evaluation results in order.
func NewThresholdRecords(results []threshold.Result) []ThresholdRecord {
	if len(results) == 0 {
		return nil
	}
	records := make([]ThresholdRecord, len(results))
	for i, r := range results {
		records[i] = ThresholdRecord{
			Threshold: r.Threshold.Raw,
			Actual:    r.Actual,
			Pass:      r.Pass,
			Message:   r.Message,
		}
	}
	return records
}

// ConsoleReporter prints one line per iteration.
type ConsoleReporter struct {
	w io.Writer
}

// NewConsoleReporter writes iteration lines to w.
func NewConsoleReporter(w io.Writer) *ConsoleReporter {
	return &ConsoleReporter{w: w}
}

// ReportIteration implements benchmark.Reporter.
func (c *ConsoleReporter) ReportIteration(r benchmark.IterationResult) error {
	rec := NewIterationRecord(r)
	_, err := fmt.Fprintf(c.w,
		"Iteration %d: query %.1f ms | first byte %s | first frame %s | total %.1f ms | %d bytes | %.2f MB/s | %.2f frames/s | cache %d hit / %d miss | failed %d\n",
		rec.Iteration,
		rec.QueryLatencyMs,
		formatOptionalMs(rec.FirstResponseLatency),
		formatOptionalMs(rec.FirstFrameLatency),
		rec.TotalLatencyMs,
		rec.TotalBytesRead,
		rec.TransferRate,
		rec.FrameRate,
		rec.CacheHits,
		rec.CacheMisses,
		rec.FailedFrames,
	)
	return err
}

func formatOptionalMs(v *float64) string {
	if v == nil {
		return notAvailable
	}
	return fmt.Sprintf("%.1f ms", *v)
}

// Recorder keeps every reported iteration for the final report.
type Recorder struct {
	mu      sync.Mutex
	records []IterationRecord
}

// ReportIteration implements benchmark.Reporter.
func (r *Recorder) ReportIteration(result benchmark.IterationResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, NewIterationRecord(result))
	return nil
}

// Records returns the recorded iterations in report order.
func (r *Recorder) Records() []IterationRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]IterationRecord(nil), r.records...)
}

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, report Report) {
	fmt.Fprintln(w, "\n--- Retrieve Study Results ---")
	if report.RunID != "" {
		fmt.Fprintf(w, "Run ID:            %s\n", report.RunID)
	}
	if report.Target != "" {
		fmt.Fprintf(w, "Study:             %s\n", report.Target)
	}
	fmt.Fprintf(w, "Iterations:        %d\n", len(report.Iterations))
	fmt.Fprintf(w, "Duration:          %s\n", report.Duration.Truncate(time.Millisecond))

	fmt.Fprintln(w, "\nPer-iteration aggregates:")
	printAggregates(w, report.Aggregates)

	stats := report.Frames
	fmt.Fprintln(w, "\nFrame requests:")
	fmt.Fprintf(w, "  Total:           %d\n", stats.Total)
	fmt.Fprintf(w, "  Successful:      %d\n", stats.Successes)
	fmt.Fprintf(w, "  Failed:          %d\n", stats.Failures)
	fmt.Fprintf(w, "  Bytes read:      %d\n", stats.BytesRead)
	fmt.Fprintf(w, "  Cache:           %d hit / %d miss\n", stats.CacheHits, stats.CacheMisses)
	fmt.Fprintf(w, "  Requests/sec:    %.2f\n", stats.RequestsPerSec)
	if stats.Successes > 0 {
		fmt.Fprintln(w, "  Latency:")
		fmt.Fprintf(w, "    Min:           %s\n", stats.MinLatency)
		fmt.Fprintf(w, "    Max:           %s\n", stats.MaxLatency)
		fmt.Fprintf(w, "    Mean:          %s\n", stats.MeanLatency)
		fmt.Fprintf(w, "    P50:           %s\n", stats.P50Latency)
		fmt.Fprintf(w, "    P90:           %s\n", stats.P90Latency)
		fmt.Fprintf(w, "    P99:           %s\n", stats.P99Latency)
	}
	if len(stats.Errors) > 0 {
		fmt.Fprintln(w, "\nFailure Breakdown:")
		names := make([]string, 0, len(stats.Errors))
		for name := range stats.Errors {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			if stats.Errors[names[i]] == stats.Errors[names[j]] {
				return names[i] < names[j]
			}
			return stats.Errors[names[i]] > stats.Errors[names[j]]
		})
		for _, name := range names {
			fmt.Fprintf(w, "  %s: %d\n", name, stats.Errors[name])
		}
	}
	if len(stats.StatusCodes) > 0 {
		fmt.Fprintln(w, "\nStatus Buckets:")
		for _, row := range metrics.FlattenStatusBuckets(stats.StatusCodes) {
			fmt.Fprintf(w, "  HTTP %s: %d\n", row.Code, row.Count)
		}
	}
	if len(report.Thresholds) > 0 {
		fmt.Fprintln(w, "\nThresholds:")
		for _, t := range report.Thresholds {
			fmt.Fprintf(w, "  %s\n", t.Message)
		}
	}
	if report.Error != "" {
		fmt.Fprintf(w, "\nRun stopped early: %s\n", report.Error)
	}
}

func printAggregates(w io.Writer, summaries []metrics.Summary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	header := []string{"METRIC", "UNIT", "COUNT", "MIN", "MEAN", "P50", "P90", "P95", "P99", "MAX", "STDDEV"}
	fmt.Fprintln(tw, strings.Join(header, "\t")+"\t")
	for _, s := range summaries {
		if s.Count == 0 {
			fmt.Fprintf(tw, "%s\t%s\t0\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
				s.Name, s.Unit, notAvailable, notAvailable, notAvailable, notAvailable, notAvailable, notAvailable, notAvailable, notAvailable)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\t%.2f\t%s\t%s\t%s\t%s\t%.2f\t%.2f\t\n",
			s.Name, s.Unit, s.Count, s.Min, s.Mean,
			percentileCell(s, 50), percentileCell(s, 90), percentileCell(s, 95), percentileCell(s, 99),
			s.Max, s.StdDev)
	}
	_ = tw.Flush()
}

func percentileCell(s metrics.Summary, p float64) string {
	if v, ok := s.Percentile(p); ok {
		return fmt.Sprintf("%.2f", v)
	}
	return notAvailable
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, report Report) error {
	report.DurationMs = float64(report.Duration) / float64(time.Millisecond)
	if report.Iterations == nil {
		report.Iterations = []IterationRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
