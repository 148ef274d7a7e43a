package benchmark

import (
	"errors"
	"fmt"
)

// ErrMissingMilestone is returned when a milestone is read but no frame
// request of the iteration ever succeeded.
var ErrMissingMilestone = errors.New("no successful frame request: milestone not recorded")

// ManifestQueryError aborts an iteration before any frame is scheduled.
type ManifestQueryError struct {
	Iteration int
	Err       error
}

func (e *ManifestQueryError) Error() string {
	return fmt.Sprintf("iteration %d: query instances: %v", e.Iteration, e.Err)
}

func (e *ManifestQueryError) Unwrap() error { return e.Err }

// FrameRequestError is the failure of a single frame task. It never aborts
// sibling tasks or the iteration.
type FrameRequestError struct {
	Task FrameTask
	Err  error
}

func (e *FrameRequestError) Error() string {
	return fmt.Sprintf("retrieve frame %d of instance %s (series %s): %v",
		e.Task.Frame, e.Task.InstanceID, e.Task.SeriesID, e.Err)
}

func (e *FrameRequestError) Unwrap() error { return e.Err }
