package models

// SubmissionStatus is the lifecycle state of a regulatory submission.
// Transitions advance one step at a time through the chain
// pending -> sent -> acknowledged -> responded -> closed and never move
// backwards.
type SubmissionStatus string

const (
	StatusPending      SubmissionStatus = "pending"
	StatusSent         SubmissionStatus = "sent"
	StatusAcknowledged SubmissionStatus = "acknowledged"
	StatusResponded    SubmissionStatus = "responded"
	StatusClosed       SubmissionStatus = "closed"
)

// statusOrder maps each status to its position in the lifecycle chain.
var statusOrder = map[SubmissionStatus]int{
	StatusPending:      0,
	StatusSent:         1,
	StatusAcknowledged: 2,
	StatusResponded:    3,
	StatusClosed:       4,
}

// ValidStatus reports whether s is a known lifecycle status.
func ValidStatus(s SubmissionStatus) bool {
	_, ok := statusOrder[s]
	return ok
}

// CanTransition reports whether moving from -> to is a permitted forward
// step. Skipping states is not allowed: pending cannot jump straight to
// acknowledged.
func CanTransition(from, to SubmissionStatus) bool {
	fo, ok1 := statusOrder[from]
	to2, ok2 := statusOrder[to]
	if !ok1 || !ok2 {
		return false
	}
	return to2 == fo+1
}

// Priority classifies submission urgency.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ValidPriority reports whether p is a known priority.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Document is a file reference attached to a submission. The checksum is
// computed over the document content at attach time and never changes.
type Document struct {
	Name       string `json:"name"`
	MediaType  string `json:"media_type,omitempty"`
	SizeBytes  int64  `json:"size_bytes,omitempty"`
	StorageRef string `json:"storage_ref,omitempty"`
	Checksum   string `json:"checksum"`
	UploadedTS int64  `json:"uploaded_ts,omitempty"`
}

// EncryptedPayload holds the sealed submission body. All fields are
// base64; WrappedKey is the per-submission DEK wrapped under the master
// key, never the raw key. Set once at creation and immutable after.
type EncryptedPayload struct {
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
	WrappedKey string `json:"wrapped_key"`
	Checksum   string `json:"checksum,omitempty"`
}

// Submission is a document submission to an external authority.
type Submission struct {
	ID          string           `json:"id"`
	AuthorityID string           `json:"authority_id"`
	SubmitterID string           `json:"submitter_id"`
	Subject     string           `json:"subject"`
	Description string           `json:"description,omitempty"`
	Priority    Priority         `json:"priority"`
	Status      SubmissionStatus `json:"status"`
	Documents   []Document       `json:"documents,omitempty"`
	Payload     EncryptedPayload `json:"payload"`
	// Created timestamp (ns)
	CreatedTS int64 `json:"created_ts"`
	// Set when the authority acknowledges / responds
	AcknowledgedTS int64 `json:"acknowledged_ts,omitempty"`
	RespondedTS    int64 `json:"responded_ts,omitempty"`
}

// SubmissionDraft is the caller-supplied input for creating a submission.
// The plaintext payload never appears on the stored Submission.
type SubmissionDraft struct {
	AuthorityID string     `json:"authority_id"`
	SubmitterID string     `json:"submitter_id"`
	Subject     string     `json:"subject"`
	Description string     `json:"description,omitempty"`
	Priority    Priority   `json:"priority,omitempty"`
	Payload     []byte     `json:"payload,omitempty"`
	Documents   []Document `json:"documents,omitempty"`
}
