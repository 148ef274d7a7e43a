// Package dicomwebtest provides an in-memory DICOMweb store that answers the
// two requests studybench issues: the QIDO-RS instance search of one study
// and WADO-RS single-frame retrieval.
package dicomwebtest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// Instance is one stored instance and its frame count.
type Instance struct {
	SeriesUID   string
	InstanceUID string
	Frames      int
}

// Store serves a single study. Configure the exported fields before the
// first request; the counters are safe to read concurrently.
type Store struct {
	Study     string
	Instances []Instance

	// Token, when set, must arrive as "Authorization: Bearer <Token>".
	Token string
	// FrameSize is the payload length of every frame.
	FrameSize int
	// Latency delays every response before the first byte is written.
	Latency time.Duration
	// CacheHeader is sent as X-Cache on frame responses when set.
	CacheHeader string
	// QueryStatus, when non-zero, is returned for the instance search.
	QueryStatus int
	// FailFrame returns the error status of a frame request, or 0 to serve it.
	FailFrame func(seriesUID, instanceUID string, frame int) int

	queries      atomic.Int64
	frames       atomic.Int64
	unauthorized atomic.Int64
}

// NewSyntheticStore creates a study with the given number of instances of
// framesPerInstance frames each, all in one series.
func NewSyntheticStore(study string, instances, framesPerInstance int) *Store {
	s := &Store{Study: study, FrameSize: 1024}
	series := study + ".1"
	for i := 1; i <= instances; i++ {
		s.Instances = append(s.Instances, Instance{
			SeriesUID:   series,
			InstanceUID: fmt.Sprintf("%s.%d", series, i),
			Frames:      framesPerInstance,
		})
	}
	return s
}

// Queries returns the number of instance searches served.
func (s *Store) Queries() int64 { return s.queries.Load() }

// FrameRequests returns the number of frame requests received, failed ones included.
func (s *Store) FrameRequests() int64 { return s.frames.Load() }

// Unauthorized returns the number of requests rejected for a bad token.
func (s *Store) Unauthorized() int64 { return s.unauthorized.Load() }

// Manifest renders the DICOM JSON answer of the instance search.
func (s *Store) Manifest() []byte {
	entries := make([]map[string]any, 0, len(s.Instances))
	for _, inst := range s.Instances {
		entries = append(entries, map[string]any{
			"0020000E": map[string]any{"vr": "UI", "Value": []string{inst.SeriesUID}},
			"00080018": map[string]any{"vr": "UI", "Value": []string{inst.InstanceUID}},
			"00280008": map[string]any{"vr": "IS", "Value": []int{inst.Frames}},
		})
	}
	data, _ := json.Marshal(entries)
	return data
}

func (s *Store) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.Token != "" && r.Header.Get("Authorization") != "Bearer "+s.Token {
		s.unauthorized.Add(1)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	// .../dicomWeb/studies/{study}/instances
	// .../dicomWeb/studies/{study}/series/{series}/instances/{instance}/frames/{n}
	idx := strings.Index(r.URL.Path, "/studies/")
	if idx < 0 {
		http.NotFound(w, r)
		return
	}
	parts := strings.Split(strings.Trim(r.URL.Path[idx:], "/"), "/")
	if len(parts) < 3 || parts[1] != s.Study {
		http.NotFound(w, r)
		return
	}

	switch {
	case len(parts) == 3 && parts[2] == "instances":
		s.serveInstances(w)
	case len(parts) == 8 && parts[2] == "series" && parts[4] == "instances" && parts[6] == "frames":
		frame, err := strconv.Atoi(parts[7])
		if err != nil {
			http.Error(w, "invalid frame number", http.StatusBadRequest)
			return
		}
		s.serveFrame(w, parts[3], parts[5], frame)
	default:
		http.NotFound(w, r)
	}
}

func (s *Store) serveInstances(w http.ResponseWriter) {
	s.queries.Add(1)
	s.wait()
	if s.QueryStatus != 0 {
		http.Error(w, "instance search failed", s.QueryStatus)
		return
	}
	if len(s.Instances) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/dicom+json")
	_, _ = w.Write(s.Manifest())
}

func (s *Store) serveFrame(w http.ResponseWriter, seriesUID, instanceUID string, frame int) {
	s.frames.Add(1)
	s.wait()
	if !s.hasFrame(seriesUID, instanceUID, frame) {
		http.Error(w, "frame not found", http.StatusNotFound)
		return
	}
	if s.FailFrame != nil {
		if status := s.FailFrame(seriesUID, instanceUID, frame); status != 0 {
			http.Error(w, "frame unavailable", status)
			return
		}
	}
	if s.CacheHeader != "" {
		w.Header().Set("X-Cache", s.CacheHeader)
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(bytes.Repeat([]byte{0x5a}, s.FrameSize))
}

func (s *Store) hasFrame(seriesUID, instanceUID string, frame int) bool {
	for _, inst := range s.Instances {
		if inst.SeriesUID == seriesUID && inst.InstanceUID == instanceUID {
			return frame >= 1 && frame <= inst.Frames
		}
	}
	return false
}

func (s *Store) wait() {
	if s.Latency > 0 {
		time.Sleep(s.Latency)
	}
}
