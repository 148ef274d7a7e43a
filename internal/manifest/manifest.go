// Package manifest parses the instance list returned by a DICOMweb QIDO-RS
// "search for instances" request.
package manifest

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// DICOM JSON tags read from each instance object.
const (
	TagSeriesInstanceUID = "0020000E"
	TagSOPInstanceUID    = "00080018"
	TagNumberOfFrames    = "00280008"
)

// ErrInvalidManifest is returned when the payload is not a JSON array of objects.
var ErrInvalidManifest = errors.New("invalid instance manifest")

// StudyInstance identifies one DICOM instance of a study. An empty SeriesID or
// InstanceID marks a malformed entry that is never scheduled.
type StudyInstance struct {
	SeriesID   string
	InstanceID string
	FrameCount int
}

// Schedulable reports whether both identifiers are present.
func (i StudyInstance) Schedulable() bool {
	return i.SeriesID != "" && i.InstanceID != ""
}

// Parse decodes a DICOM JSON instance list. An empty payload (QIDO answers
// 204 No Content when nothing matches) yields an empty list.
func Parse(data []byte) ([]StudyInstance, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: malformed JSON", ErrInvalidManifest)
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, fmt.Errorf("%w: expected array, got %s", ErrInvalidManifest, root.Type)
	}

	entries := root.Array()
	instances := make([]StudyInstance, 0, len(entries))
	for idx, entry := range entries {
		if !entry.IsObject() {
			return nil, fmt.Errorf("%w: entry %d is %s, not an object", ErrInvalidManifest, idx, entry.Type)
		}
		instances = append(instances, StudyInstance{
			SeriesID:   firstString(entry, TagSeriesInstanceUID),
			InstanceID: firstString(entry, TagSOPInstanceUID),
			FrameCount: frameCount(entry),
		})
	}
	return instances, nil
}

// TotalFrames sums the frame counts of schedulable instances.
func TotalFrames(instances []StudyInstance) int {
	total := 0
	for _, inst := range instances {
		if inst.Schedulable() {
			total += inst.FrameCount
		}
	}
	return total
}

func firstString(entry gjson.Result, tag string) string {
	return entry.Get(tag + ".Value.0").String()
}

// frameCount reads NumberOfFrames. Single-frame objects usually omit the
// attribute, so a missing or unusable value counts as one frame.
func frameCount(entry gjson.Result) int {
	value := entry.Get(TagNumberOfFrames + ".Value.0")
	if !value.Exists() {
		return 1
	}
	var n int64
	switch value.Type {
	case gjson.Number:
		n = value.Int()
	case gjson.String:
		// IS values may arrive as strings.
		if _, err := fmt.Sscanf(value.Str, "%d", &n); err != nil {
			return 1
		}
	default:
		return 1
	}
	if n < 0 {
		return 0
	}
	return int(n)
}
