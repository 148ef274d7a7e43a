package benchmark

import (
	"sync/atomic"
	"time"
)

// Milestone retains the RequestOutcome with the smallest value of one timing
// field among all outcomes offered to it. Offer is lock-free and safe for
// concurrent use; a published value is only ever replaced by a strictly
// earlier one.
type Milestone struct {
	name  string
	field func(RequestOutcome) time.Time
	best  atomic.Pointer[RequestOutcome]
}

// NewFirstResponseMilestone tracks the earliest first-byte time.
func NewFirstResponseMilestone() *Milestone {
	return &Milestone{
		name:  "first response",
		field: func(o RequestOutcome) time.Time { return o.ResponseTime },
	}
}

// NewFirstFrameMilestone tracks the earliest fully-read time.
func NewFirstFrameMilestone() *Milestone {
	return &Milestone{
		name:  "first frame",
		field: func(o RequestOutcome) time.Time { return o.EndTime },
	}
}

// Offer publishes candidate if it is earlier than the current best.
func (m *Milestone) Offer(candidate RequestOutcome) {
	next := &candidate
	at := m.field(candidate)
	for {
		current := m.best.Load()
		if current != nil && !at.Before(m.field(*current)) {
			return
		}
		if m.best.CompareAndSwap(current, next) {
			return
		}
	}
}

// Value returns the retained outcome, or ErrMissingMilestone if nothing was offered.
func (m *Milestone) Value() (RequestOutcome, error) {
	best := m.best.Load()
	if best == nil {
		return RequestOutcome{}, ErrMissingMilestone
	}
	return *best, nil
}

func (m *Milestone) String() string { return m.name }
