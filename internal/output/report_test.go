package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/torosent/studybench/internal/benchmark"
	"github.com/torosent/studybench/internal/metrics"
)

func sampleReport(t *testing.T) Report {
	t.Helper()
	agg := benchmark.NewAggregates(2)
	for _, s := range agg.All() {
		if s.Name() == benchmark.MetricFirstFrameLatency {
			continue // never observed
		}
		for _, v := range []float64{10, 30} {
			if err := s.AddValue(v); err != nil {
				t.Fatal(err)
			}
		}
	}
	collector := metrics.NewCollector()
	collector.RecordFrame(metrics.FrameSample{Latency: 40 * time.Millisecond, Bytes: 1000, CacheHit: true})
	collector.RecordFrame(metrics.FrameSample{Err: &benchmark.FrameRequestError{}, StatusCode: 503})

	rec := Recorder{}
	_ = rec.ReportIteration(sampleIteration(0))
	_ = rec.ReportIteration(sampleIteration(1))

	return Report{
		RunID:      "01HZX8Y2J5R6C9D0E1F2G3H4J5",
		Target:     "projects/p/locations/l/datasets/d/dicomStores/s/studies/1.2.3",
		Duration:   2500 * time.Millisecond,
		Iterations: rec.Records(),
		Aggregates: agg.Summaries(),
		Frames:     collector.Stats(time.Second),
	}
}

func TestPrintReportBasic(t *testing.T) {
	var buf bytes.Buffer
	PrintReport(&buf, sampleReport(t))

	output := buf.String()
	for _, want := range []string{
		"Retrieve Study Results",
		"Run ID:            01HZX8Y2J5R6C9D0E1F2G3H4J5",
		"Iterations:        2",
		"total_latency",
		"first_frame_latency",
		"Failure Breakdown:",
		"HTTP 503: 1",
		"Cache:           1 hit / 0 miss",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("report missing %q:\n%s", want, output)
		}
	}
	if !strings.Contains(output, notAvailable) {
		t.Errorf("empty series should render %q", notAvailable)
	}
}

func TestPrintJSONReport(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintJSONReport(&buf, sampleReport(t)); err != nil {
		t.Fatalf("PrintJSONReport() error = %v", err)
	}

	var decoded struct {
		RunID      string            `json:"run_id"`
		DurationMs float64           `json:"duration_ms"`
		Iterations []map[string]any  `json:"iterations"`
		Aggregates []metrics.Summary `json:"aggregates"`
		Frames     map[string]any    `json:"frames"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if decoded.RunID != "01HZX8Y2J5R6C9D0E1F2G3H4J5" {
		t.Errorf("run_id = %q", decoded.RunID)
	}
	if decoded.DurationMs != 2500 {
		t.Errorf("duration_ms = %v, want 2500", decoded.DurationMs)
	}
	if len(decoded.Iterations) != 2 {
		t.Fatalf("iterations = %d, want 2", len(decoded.Iterations))
	}
	if len(decoded.Aggregates) != 6 {
		t.Fatalf("aggregates = %d, want 6", len(decoded.Aggregates))
	}
	if p50, ok := decoded.Aggregates[0].Percentile(50); !ok || p50 != 10 {
		t.Errorf("query_latency p50 = %v (%v), want 10", p50, ok)
	}
	if decoded.Frames["failures"] != float64(1) {
		t.Errorf("frames.failures = %v, want 1", decoded.Frames["failures"])
	}
}

func TestConsoleReporterMissingMilestone(t *testing.T) {
	var buf bytes.Buffer
	reporter := NewConsoleReporter(&buf)

	it := sampleIteration(3)
	it.MilestoneErr = benchmark.ErrMissingMilestone
	it.FailedFrames = 3
	if err := reporter.ReportIteration(it); err != nil {
		t.Fatalf("ReportIteration() error = %v", err)
	}

	line := buf.String()
	if !strings.HasPrefix(line, "Iteration 3: query 20.0 ms | first byte n/a | first frame n/a") {
		t.Errorf("line = %q", line)
	}
	if !strings.Contains(line, "failed 3") {
		t.Errorf("line missing failures: %q", line)
	}
}

func TestNewIterationRecord(t *testing.T) {
	rec := NewIterationRecord(sampleIteration(0))
	if rec.FirstResponseLatency == nil || *rec.FirstResponseLatency != 5 {
		t.Errorf("FirstResponseLatency = %v, want 5", rec.FirstResponseLatency)
	}
	if rec.FirstFrameLatency == nil || *rec.FirstFrameLatency != 7.5 {
		t.Errorf("FirstFrameLatency = %v, want 7.5", rec.FirstFrameLatency)
	}
	if rec.TotalLatencyMs != 1000 {
		t.Errorf("TotalLatencyMs = %v, want 1000", rec.TotalLatencyMs)
	}
}

func TestPrintReportThresholds(t *testing.T) {
	report := sampleReport(t)
	report.Thresholds = []ThresholdRecord{
		{Threshold: "total_latency:p95 < 500", Actual: 30, Pass: true, Message: "✓ total_latency:p95 < 500: 30.00 < 500.00"},
		{Threshold: "frame_failed:count == 0", Actual: 1, Pass: false, Message: "✗ frame_failed:count == 0: 1.00 == 0.00"},
	}
	report.Error = "iteration 1: query instances: HTTP 503"

	var buf bytes.Buffer
	PrintReport(&buf, report)
	output := buf.String()
	for _, want := range []string{
		"Thresholds:",
		"✓ total_latency:p95 < 500",
		"✗ frame_failed:count == 0",
		"Run stopped early: iteration 1: query instances: HTTP 503",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("report missing %q:\n%s", want, output)
		}
	}
}
