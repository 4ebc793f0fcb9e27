package models

// NotificationLog records one delivery attempt on one channel. Created
// only by the dispatcher; immutable after creation except for the
// delivered flag and timestamp.
type NotificationLog struct {
	ID           string  `json:"id"`
	SubmissionID string  `json:"submission_id"`
	Channel      Channel `json:"channel"`
	Recipient    string  `json:"recipient"`
	Message      string  `json:"message,omitempty"`
	// Sent timestamp (ns); set when the attempt was made, delivered or not
	SentTS      int64  `json:"sent_ts"`
	Delivered   bool   `json:"delivered"`
	DeliveredTS int64  `json:"delivered_ts,omitempty"`
	Error       string `json:"error,omitempty"`
}
