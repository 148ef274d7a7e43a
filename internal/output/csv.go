package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/torosent/studybench/internal/benchmark"
)

// CSVHeader lists the columns of the per-iteration CSV, in order.
var CSVHeader = []string{
	"ITERATION",
	"QUERYING_INSTANCES_LATENCY",
	"FIRST_BYTE_RECEIVED_LATENCY",
	"READING_FIRST_FRAME_LATENCY",
	"READING_WHOLE_STUDY_LATENCY",
	"TOTAL_BYTES_READ",
	"MB_READ_PER_SECOND",
	"FRAMES_READ_PER_SECOND",
}

// csvSeparator keeps rows byte-compatible with sheets produced by earlier
// releases, which separate cells with a comma and a space.
const csvSeparator = ", "

// CSVSink writes one row per reported iteration. The header is written once,
// when the sink is created, however many iterations follow. Every row is
// flushed immediately so a crashed run keeps its completed iterations.
type CSVSink struct {
	mu     sync.Mutex
	w      *bufio.Writer
	closer io.Closer
}

// NewCSVSink writes the header to w and returns a sink for the rows. If w is
// an io.Closer it is closed by Close.
func NewCSVSink(w io.Writer) (*CSVSink, error) {
	s := &CSVSink{w: bufio.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	if err := s.writeLine(CSVHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	if err := s.w.Flush(); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	return s, nil
}

// CreateCSVSink creates (or truncates) the file at path.
func CreateCSVSink(path string) (*CSVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create csv output: %w", err)
	}
	sink, err := NewCSVSink(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return sink, nil
}

// ReportIteration implements benchmark.Reporter. Skipped iterations produce
// no row; a missing milestone leaves its cell empty.
func (s *CSVSink) ReportIteration(r benchmark.IterationResult) error {
	if r.Skipped {
		return nil
	}
	rec := NewIterationRecord(r)
	row := []string{
		strconv.Itoa(rec.Iteration),
		formatFloat(rec.QueryLatencyMs),
		formatOptionalFloat(rec.FirstResponseLatency),
		formatOptionalFloat(rec.FirstFrameLatency),
		formatFloat(rec.TotalLatencyMs),
		strconv.FormatInt(rec.TotalBytesRead, 10),
		formatFloat(rec.TransferRate),
		formatFloat(rec.FrameRate),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeLine(row); err != nil {
		return err
	}
	return s.w.Flush()
}

func (s *CSVSink) writeLine(fields []string) error {
	if _, err := s.w.WriteString(strings.Join(fields, csvSeparator)); err != nil {
		return err
	}
	return s.w.WriteByte('\n')
}

// Close flushes buffered rows and closes the underlying writer.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.w.Flush(); err != nil {
		return err
	}
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptionalFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
