package threshold

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/torosent/studybench/internal/metrics"
)

// Metric names that thresholds may reference.
const (
	MetricQueryLatency         = "query_latency"
	MetricFirstResponseLatency = "first_response_latency"
	MetricFirstFrameLatency    = "first_frame_latency"
	MetricTotalLatency         = "total_latency"
	MetricTransferRate         = "transfer_rate"
	MetricFrameRate            = "frame_rate"
	MetricFrameFailed          = "frame_failed"
)

var thresholdPattern = regexp.MustCompile(`^([a-z_]+):([a-z0-9]+)\s*([<>=!]+)\s*([0-9.]+)$`)

// Threshold represents a performance assertion that can pass or fail.
type Threshold struct {
	Metric    string  // e.g., "total_latency", "frame_failed"
	Aggregate string  // e.g., "p95", "p99", "avg", "max", "rate"
	Operator  string  // e.g., "<", "<=", ">", ">=", "=="
	Value     float64 // The threshold value to compare against
	Raw       string  // Original threshold string for display
}

// Result represents the outcome of evaluating a threshold.
type Result struct {
	Threshold Threshold
	Actual    float64
	Pass      bool
	Message   string
}

// Snapshot is the data a run exposes to threshold evaluation: the
// per-iteration summaries keyed by metric name and the frame request totals.
type Snapshot struct {
	Summaries map[string]metrics.Summary
	Frames    metrics.Stats
}

// NewSnapshot indexes summaries by their metric name.
func NewSnapshot(summaries []metrics.Summary, frames metrics.Stats) Snapshot {
	idx := make(map[string]metrics.Summary, len(summaries))
	for _, s := range summaries {
		idx[s.Name] = s
	}
	return Snapshot{Summaries: idx, Frames: frames}
}

// Evaluator evaluates thresholds against collected metrics.
type Evaluator struct {
	thresholds []Threshold
}

// NewEvaluator creates a new threshold evaluator.
func NewEvaluator(thresholds []Threshold) *Evaluator {
	return &Evaluator{
		thresholds: thresholds,
	}
}

// Evaluate checks all thresholds against the provided snapshot.
func (e *Evaluator) Evaluate(snap Snapshot) []Result {
	if len(e.thresholds) == 0 {
		return nil
	}

	results := make([]Result, 0, len(e.thresholds))
	for _, t := range e.thresholds {
		results = append(results, e.evaluateOne(t, snap))
	}
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Pass {
			return false
		}
	}
	return true
}

func (e *Evaluator) evaluateOne(t Threshold, snap Snapshot) Result {
	actual, err := extractMetricValue(t, snap)
	if err != nil {
		return Result{
			Threshold: t,
			Actual:    0,
			Pass:      false,
			Message:   fmt.Sprintf("error: %v", err),
		}
	}

	pass := compareValues(actual, t.Operator, t.Value)
	status := "✓"
	if !pass {
		status = "✗"
	}

	message := fmt.Sprintf("%s %s: %.2f %s %.2f", status, t.Raw, actual, t.Operator, t.Value)
	return Result{
		Threshold: t,
		Actual:    actual,
		Pass:      pass,
		Message:   message,
	}
}

// Parse parses a threshold string into a Threshold struct.
// Supported formats:
// - "total_latency:p95 < 5000"     (per-iteration latency percentile in ms)
// - "query_latency:avg < 200"      (mean manifest query latency in ms)
// - "transfer_rate:min > 50"       (slowest iteration, MB/s)
// - "frame_rate:p50 >= 100"        (frames per second)
// - "frame_failed:rate < 0.01"     (failed frame requests as decimal)
// - "frame_failed:count == 0"      (failed frame requests)
func Parse(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, fmt.Errorf("empty threshold string")
	}

	matches := thresholdPattern.FindStringSubmatch(s)
	if matches == nil {
		return Threshold{}, fmt.Errorf("invalid threshold format: %q (expected format: metric:aggregate operator value, e.g., 'total_latency:p95 < 5000')", s)
	}

	metric := matches[1]
	aggregate := matches[2]
	operator := matches[3]
	valueStr := matches[4]

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value %q: %v", valueStr, err)
	}

	if !isValidMetric(metric) {
		return Threshold{}, fmt.Errorf("unsupported metric: %q (supported: %s)", metric, strings.Join(validMetrics, ", "))
	}

	if !isValidAggregate(aggregate) {
		return Threshold{}, fmt.Errorf("unsupported aggregate: %q (supported: p50, p90, p95, p99, avg, mean, min, max, rate, count)", aggregate)
	}

	if !isValidOperator(operator) {
		return Threshold{}, fmt.Errorf("unsupported operator: %q (supported: <, <=, >, >=, ==)", operator)
	}

	return Threshold{
		Metric:    metric,
		Aggregate: aggregate,
		Operator:  operator,
		Value:     value,
		Raw:       s,
	}, nil
}

// ParseMultiple parses multiple threshold strings.
func ParseMultiple(thresholds []string) ([]Threshold, error) {
	if len(thresholds) == 0 {
		return nil, nil
	}

	result := make([]Threshold, 0, len(thresholds))
	var errors []string

	for i, s := range thresholds {
		t, err := Parse(s)
		if err != nil {
			errors = append(errors, fmt.Sprintf("threshold[%d]: %v", i, err))
			continue
		}
		result = append(result, t)
	}

	if len(errors) > 0 {
		return nil, fmt.Errorf("threshold parsing errors: %s", strings.Join(errors, "; "))
	}

	return result, nil
}

var validMetrics = []string{
	MetricQueryLatency,
	MetricFirstResponseLatency,
	MetricFirstFrameLatency,
	MetricTotalLatency,
	MetricTransferRate,
	MetricFrameRate,
	MetricFrameFailed,
}

func isValidMetric(metric string) bool {
	for _, v := range validMetrics {
		if metric == v {
			return true
		}
	}
	return false
}

func isValidAggregate(aggregate string) bool {
	valid := []string{"p50", "p90", "p95", "p99", "avg", "mean", "min", "max", "rate", "count"}
	for _, v := range valid {
		if aggregate == v {
			return true
		}
	}
	return false
}

func isValidOperator(operator string) bool {
	valid := []string{"<", "<=", ">", ">=", "=="}
	for _, v := range valid {
		if operator == v {
			return true
		}
	}
	return false
}

func extractMetricValue(t Threshold, snap Snapshot) (float64, error) {
	if t.Metric == MetricFrameFailed {
		return extractFailureMetric(t.Aggregate, snap.Frames)
	}
	if !isValidMetric(t.Metric) {
		return 0, fmt.Errorf("unknown metric: %s", t.Metric)
	}
	summary, ok := snap.Summaries[t.Metric]
	if !ok || summary.Count == 0 {
		return 0, fmt.Errorf("no observations recorded for %s", t.Metric)
	}
	return extractSeriesMetric(t.Metric, t.Aggregate, summary)
}

func extractSeriesMetric(metric, aggregate string, summary metrics.Summary) (float64, error) {
	switch aggregate {
	case "p50", "p90", "p95", "p99":
		p, _ := strconv.ParseFloat(strings.TrimPrefix(aggregate, "p"), 64)
		v, ok := summary.Percentile(p)
		if !ok {
			return 0, fmt.Errorf("percentile %s not computed for %s", aggregate, metric)
		}
		return v, nil
	case "avg", "mean":
		return summary.Mean, nil
	case "min":
		return summary.Min, nil
	case "max":
		return summary.Max, nil
	case "count":
		return float64(summary.Count), nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for %s", aggregate, metric)
	}
}

func extractFailureMetric(aggregate string, stats metrics.Stats) (float64, error) {
	switch aggregate {
	case "count":
		return float64(stats.Failures), nil
	case "rate":
		return stats.FailureRate(), nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for frame_failed (use 'count' or 'rate')", aggregate)
	}
}

func compareValues(actual float64, operator string, expected float64) bool {
	// Handle floating point comparison with small epsilon
	epsilon := 1e-9

	switch operator {
	case "<":
		return actual < expected
	case "<=":
		return actual <= expected || math.Abs(actual-expected) < epsilon
	case ">":
		return actual > expected
	case ">=":
		return actual >= expected || math.Abs(actual-expected) < epsilon
	case "==":
		return math.Abs(actual-expected) < epsilon
	default:
		return false
	}
}
