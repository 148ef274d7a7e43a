package dicomweb

import "fmt"

// StatusError is returned for responses with status >= 400. Body holds at most
// the first kilobyte of the response, trimmed.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}
