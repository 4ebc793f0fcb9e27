package store

import (
	"sync"

	"fairlead/pkg/models"
)

// ChangeKind tags a store change notification.
type ChangeKind string

const (
	ChangeSubmissionCreated ChangeKind = "submission_created"
	ChangeStatusUpdated     ChangeKind = "status_updated"
	ChangeSubmissionPurged  ChangeKind = "submission_purged"
	ChangeRotationSaved     ChangeKind = "rotation_saved"
)

// Change describes a mutation the store performed. Subscribers should
// re-query the store rather than trust the event as full state.
type Change struct {
	Kind         ChangeKind
	SubmissionID string
	RotationID   string
	OldStatus    models.SubmissionStatus
	NewStatus    models.SubmissionStatus
	PerformedBy  string
}

var (
	obsMu     sync.RWMutex
	observers []func(Change)
)

// Subscribe registers a change observer. Observers are invoked
// synchronously after the write is durable; they must not block.
func Subscribe(fn func(Change)) {
	obsMu.Lock()
	defer obsMu.Unlock()
	observers = append(observers, fn)
}

// ResetObservers drops all registered observers. Intended for tests.
func ResetObservers() {
	obsMu.Lock()
	defer obsMu.Unlock()
	observers = nil
}

func emit(c Change) {
	obsMu.RLock()
	obs := observers
	obsMu.RUnlock()
	for _, fn := range obs {
		fn(c)
	}
}
