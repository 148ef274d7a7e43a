package benchmark

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/studybench/internal/tracing"
)

// Milestones groups the two first-occurrence trackers of one iteration.
type Milestones struct {
	FirstResponse *Milestone
	FirstFrame    *Milestone
}

// NewMilestones returns empty trackers for a new iteration.
func NewMilestones() *Milestones {
	return &Milestones{
		FirstResponse: NewFirstResponseMilestone(),
		FirstFrame:    NewFirstFrameMilestone(),
	}
}

// frameUnit retrieves one frame, discarding the payload. A successful outcome
// is offered to both milestones and signalled to progress. Failures, panics
// included, come back as *FrameRequestError and are never retried here.
type frameUnit struct {
	requester  Requester
	milestones *Milestones
	progress   Progress
	tracer     trace.Tracer
}

func (u frameUnit) run(ctx context.Context, task FrameTask) (result TaskResult) {
	result.Task = task

	ctx, span := tracing.StartSpan(ctx, u.tracer, "retrieve frame",
		attribute.String("dicom.series_uid", task.SeriesID),
		attribute.String("dicom.instance_uid", task.InstanceID),
		attribute.Int("dicom.frame", task.Frame),
	)
	defer func() {
		if r := recover(); r != nil {
			result.Outcome = RequestOutcome{}
			result.Err = &FrameRequestError{Task: task, Err: fmt.Errorf("panic: %v", r)}
		}
		tracing.EndSpan(span, result.Err, attribute.Int64("dicom.bytes_read", result.Outcome.BytesRead))
	}()

	outcome, err := u.requester.RetrieveFrame(ctx, task, io.Discard)
	if err != nil {
		result.Err = &FrameRequestError{Task: task, Err: err}
		return result
	}

	u.milestones.FirstResponse.Offer(outcome)
	u.milestones.FirstFrame.Offer(outcome)
	u.progress.Increment()

	result.Outcome = outcome
	return result
}
