package metrics

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ErrCapacityExceeded is returned when a Series receives more observations
// than it was sized for. It means the iteration count and the number of
// AddValue calls disagree.
var ErrCapacityExceeded = errors.New("metric series capacity exceeded")

// DefaultPercentiles are reported when Summarize is called without arguments.
var DefaultPercentiles = []float64{50, 90, 95, 99}

// Series accumulates a bounded number of scalar observations for one metric.
// It is not safe for concurrent use; a single goroutine appends between iterations.
type Series struct {
	name     string
	unit     string
	capacity int
	values   []float64
}

// Summary describes the observations appended to a Series so far.
type Summary struct {
	Name        string             `json:"name"`
	Unit        string             `json:"unit,omitempty"`
	Count       int                `json:"count"`
	Min         float64            `json:"min"`
	Max         float64            `json:"max"`
	Mean        float64            `json:"mean"`
	StdDev      float64            `json:"stddev"`
	Percentiles map[string]float64 `json:"percentiles,omitempty"`
}

// NewSeries creates a Series that accepts at most capacity observations.
func NewSeries(name, unit string, capacity int) *Series {
	if capacity < 0 {
		capacity = 0
	}
	return &Series{
		name:     name,
		unit:     unit,
		capacity: capacity,
		values:   make([]float64, 0, capacity),
	}
}

// Name returns the metric name.
func (s *Series) Name() string { return s.name }

// Unit returns the display unit, e.g. "ms".
func (s *Series) Unit() string { return s.unit }

// Capacity returns the declared maximum number of observations.
func (s *Series) Capacity() int { return s.capacity }

// Count returns the number of observations appended so far.
func (s *Series) Count() int { return len(s.values) }

// AddValue appends one observation.
func (s *Series) AddValue(v float64) error {
	if len(s.values) >= s.capacity {
		return fmt.Errorf("%w: %s already holds %d of %d values", ErrCapacityExceeded, s.name, len(s.values), s.capacity)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("metric %s: value %v is not finite", s.name, v)
	}
	s.values = append(s.values, v)
	return nil
}

// Values returns a copy of the observations in insertion order.
func (s *Series) Values() []float64 {
	return append([]float64(nil), s.values...)
}

// Summarize computes count, min, max, mean, standard deviation and the
// requested percentiles (0-100) over the observations appended so far.
// An empty series yields a zero Summary with Count 0.
func (s *Series) Summarize(percentiles ...float64) Summary {
	if len(percentiles) == 0 {
		percentiles = DefaultPercentiles
	}
	summary := Summary{
		Name:  s.name,
		Unit:  s.unit,
		Count: len(s.values),
	}
	if summary.Count == 0 {
		return summary
	}

	sorted := make([]float64, len(s.values))
	copy(sorted, s.values)
	sort.Float64s(sorted)

	summary.Min = sorted[0]
	summary.Max = sorted[len(sorted)-1]
	summary.Mean = stat.Mean(sorted, nil)
	// Rounding in the mean can drift past the bounds when all values are equal.
	summary.Mean = math.Min(math.Max(summary.Mean, summary.Min), summary.Max)
	if len(sorted) > 1 {
		summary.StdDev = stat.StdDev(sorted, nil)
	}

	summary.Percentiles = make(map[string]float64, len(percentiles))
	for _, p := range percentiles {
		if p < 0 || p > 100 {
			continue
		}
		summary.Percentiles[PercentileKey(p)] = stat.Quantile(p/100, stat.Empirical, sorted, nil)
	}
	return summary
}

// Percentile returns the p-th percentile from the summary, or false if it
// was not computed.
func (s Summary) Percentile(p float64) (float64, bool) {
	v, ok := s.Percentiles[PercentileKey(p)]
	return v, ok
}

// PercentileKey formats a percentile as used in Summary.Percentiles, e.g. "p95".
func PercentileKey(p float64) string {
	return fmt.Sprintf("p%g", p)
}
