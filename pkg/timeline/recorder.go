package timeline

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"fairlead/pkg/logger"
	"fairlead/pkg/models"
	"fairlead/pkg/store"
)

// Recorder appends audit events to a submission's timeline. Events get a
// UnixNano timestamp plus a process-wide atomic sequence number, so
// concurrent appends on the same submission still produce a total order
// even when the clock ties.
type Recorder struct {
	seq uint64
}

// NewRecorder returns a Recorder ready for concurrent use.
func NewRecorder() *Recorder { return &Recorder{} }

// Append records one event. Fails only when the submission does not
// exist (store.ErrNotFound).
func (r *Recorder) Append(submissionID, action, description, performedBy string) (models.TimelineEvent, error) {
	ev := models.TimelineEvent{
		ID:           uuid.NewString(),
		SubmissionID: submissionID,
		Action:       action,
		Description:  description,
		PerformedBy:  performedBy,
		TS:           time.Now().UTC().UnixNano(),
		Seq:          atomic.AddUint64(&r.seq, 1),
	}
	if err := store.AppendTimelineEvent(ev); err != nil {
		return models.TimelineEvent{}, err
	}
	logger.Debug("timeline_appended", "submission", submissionID, "action", action, "seq", ev.Seq)
	return ev, nil
}

// Next prepares an event without persisting it, for callers that commit
// the event atomically with other writes (submission creation).
func (r *Recorder) Next(submissionID, action, description, performedBy string) models.TimelineEvent {
	return models.TimelineEvent{
		ID:           uuid.NewString(),
		SubmissionID: submissionID,
		Action:       action,
		Description:  description,
		PerformedBy:  performedBy,
		TS:           time.Now().UTC().UnixNano(),
		Seq:          atomic.AddUint64(&r.seq, 1),
	}
}

// List returns a submission's events in ascending (ts, seq) order.
func (r *Recorder) List(submissionID string) ([]models.TimelineEvent, error) {
	return store.ListTimelineEvents(submissionID)
}
