package models

// TimelineEvent is one append-only audit entry on a submission. Events
// are totally ordered by (TS, Seq); Seq breaks ties when two events land
// on the same nanosecond.
type TimelineEvent struct {
	ID           string `json:"id"`
	SubmissionID string `json:"submission_id"`
	Action       string `json:"action"`
	Description  string `json:"description,omitempty"`
	PerformedBy  string `json:"performed_by,omitempty"`
	TS           int64  `json:"ts"`
	Seq          uint64 `json:"seq"`
}

// Well-known timeline actions. Action is a free-form tag; these are the
// ones the service itself emits.
const (
	ActionSubmitted    = "submitted"
	ActionStatusUpdate = "status_update"
	ActionNotified     = "notified"
)
