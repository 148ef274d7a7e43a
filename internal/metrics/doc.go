// Package metrics provides the numeric bookkeeping for studybench.
//
// Two kinds of accumulators live here.
//
// # Series
//
// A [Series] holds the per-iteration observations of one benchmark metric
// (query latency, total latency, transfer rate, ...). It is sized to the
// configured iteration count and refuses further values with
// [ErrCapacityExceeded]:
//
//	s := metrics.NewSeries("total_latency", "ms", iterations)
//	if err := s.AddValue(totalMs); err != nil {
//		return err
//	}
//	summary := s.Summarize(50, 90, 99)
//
// Series is not safe for concurrent use. The orchestrator appends to it from a
// single goroutine after each iteration has joined its workers.
//
// # Collector
//
// The [Collector] records every frame request of the run into an HDR
// histogram and keeps byte, cache and failure counters:
//
//	collector := metrics.NewCollector()
//	collector.RecordFrame(metrics.FrameSample{Latency: d, Bytes: n})
//	stats := collector.Stats(collector.Elapsed())
//
// RecordFrame is safe to call from any number of goroutines.
package metrics
