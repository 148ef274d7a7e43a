package dicomweb

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// StudyPath locates one study inside a DICOM store.
type StudyPath struct {
	Endpoint   string // API base URL, e.g. https://healthcare.googleapis.com/v1
	Project    string
	Location   string
	Dataset    string
	DICOMStore string
	Study      string
}

// Validate reports missing path components.
func (p StudyPath) Validate() error {
	var missing []string
	for _, part := range []struct{ name, value string }{
		{"endpoint", p.Endpoint},
		{"project", p.Project},
		{"location", p.Location},
		{"dataset", p.Dataset},
		{"dicom store", p.DICOMStore},
		{"study", p.Study},
	} {
		if strings.TrimSpace(part.value) == "" {
			missing = append(missing, part.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("study path: missing %s", strings.Join(missing, ", "))
	}
	if _, err := url.Parse(p.Endpoint); err != nil {
		return fmt.Errorf("study path: endpoint: %w", err)
	}
	return nil
}

// DICOMWebURL is the root of the store's DICOMweb service.
func (p StudyPath) DICOMWebURL() string {
	return strings.TrimRight(p.Endpoint, "/") + "/" + strings.Join([]string{
		"projects", url.PathEscape(p.Project),
		"locations", url.PathEscape(p.Location),
		"datasets", url.PathEscape(p.Dataset),
		"dicomStores", url.PathEscape(p.DICOMStore),
		"dicomWeb",
	}, "/")
}

// StudyURL is the WADO/QIDO root of the study.
func (p StudyPath) StudyURL() string {
	return p.DICOMWebURL() + "/studies/" + url.PathEscape(p.Study)
}

// InstancesURL is the QIDO-RS search for every instance of the study.
func (p StudyPath) InstancesURL() string {
	return p.StudyURL() + "/instances"
}

var errMissingUID = errors.New("series and instance UIDs are required")

// FrameURL is the WADO-RS URL of one 1-based frame.
func (p StudyPath) FrameURL(seriesUID, instanceUID string, frame int) (string, error) {
	if seriesUID == "" || instanceUID == "" {
		return "", errMissingUID
	}
	if frame < 1 {
		return "", fmt.Errorf("frame number must be >= 1, got %d", frame)
	}
	return fmt.Sprintf("%s/series/%s/instances/%s/frames/%d",
		p.StudyURL(), url.PathEscape(seriesUID), url.PathEscape(instanceUID), frame), nil
}
