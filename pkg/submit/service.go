// Package submit orchestrates the submission flow: encrypt the payload,
// persist atomically, notify the authority and record the timeline. It
// owns no storage of its own; the store is the single shared mutable
// state.
package submit

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fairlead/pkg/logger"
	"fairlead/pkg/models"
	"fairlead/pkg/notify"
	"fairlead/pkg/security"
	"fairlead/pkg/store"
	"fairlead/pkg/timeline"
	"fairlead/pkg/validation"
)

// Service wires the submission pipeline together.
type Service struct {
	kek        []byte
	recorder   *timeline.Recorder
	dispatcher *notify.Dispatcher
}

// New builds a Service. kek must be a 32-byte master key; per-submission
// DEKs are wrapped under it before persistence.
func New(kek []byte, recorder *timeline.Recorder, dispatcher *notify.Dispatcher) (*Service, error) {
	if len(kek) != security.KeySize {
		return nil, fmt.Errorf("%w: master key must be %d bytes", security.ErrKeyMismatch, security.KeySize)
	}
	s := &Service{kek: kek, recorder: recorder, dispatcher: dispatcher}
	// Status updates append their timeline entry through the store's
	// change feed rather than a direct call from the update path.
	store.Subscribe(s.onChange)
	return s, nil
}

func (s *Service) onChange(c store.Change) {
	if c.Kind != store.ChangeStatusUpdated {
		return
	}
	desc := fmt.Sprintf("status changed from %s to %s", c.OldStatus, c.NewStatus)
	if _, err := s.recorder.Append(c.SubmissionID, models.ActionStatusUpdate, desc, c.PerformedBy); err != nil {
		logger.Error("timeline_append_failed", "submission", c.SubmissionID, "error", err)
	}
}

// Submit encrypts the draft payload, persists the submission with its
// `submitted` timeline event in one atomic write, then dispatches
// notifications. Either the whole submission exists afterwards or
// nothing was persisted.
func (s *Service) Submit(ctx context.Context, draft models.SubmissionDraft) (models.Submission, []models.NotificationLog, error) {
	if err := validation.ValidateDraft(draft); err != nil {
		return models.Submission{}, nil, err
	}
	authority, err := store.GetAuthority(draft.AuthorityID)
	if err != nil {
		return models.Submission{}, nil, err
	}

	dek, err := security.GenerateKey()
	if err != nil {
		return models.Submission{}, nil, err
	}
	env, err := security.Encrypt(draft.Payload, dek)
	if err != nil {
		return models.Submission{}, nil, err
	}
	wrapped, err := security.WrapKey(s.kek, dek)
	if err != nil {
		return models.Submission{}, nil, err
	}
	// The raw DEK leaves scope here; only the wrapped form persists.
	for i := range dek {
		dek[i] = 0
	}

	priority := draft.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	now := time.Now().UTC().UnixNano()
	for i := range draft.Documents {
		if draft.Documents[i].UploadedTS == 0 {
			draft.Documents[i].UploadedTS = now
		}
	}
	sub := models.Submission{
		ID:          uuid.NewString(),
		AuthorityID: draft.AuthorityID,
		SubmitterID: draft.SubmitterID,
		Subject:     draft.Subject,
		Description: draft.Description,
		Priority:    priority,
		Status:      models.StatusPending,
		Documents:   draft.Documents,
		Payload: models.EncryptedPayload{
			Nonce:      base64.StdEncoding.EncodeToString(env.Nonce),
			Ciphertext: base64.StdEncoding.EncodeToString(env.Ciphertext),
			WrappedKey: base64.StdEncoding.EncodeToString(wrapped),
			Checksum:   security.Checksum(draft.Payload),
		},
		CreatedTS: now,
	}

	first := s.recorder.Next(sub.ID, models.ActionSubmitted,
		fmt.Sprintf("submitted to authority %s", authority.Name), draft.SubmitterID)
	if err := store.CreateSubmission(sub, first); err != nil {
		return models.Submission{}, nil, err
	}

	logs, err := s.dispatcher.Dispatch(ctx, sub, authority)
	if err != nil {
		// The submission stands; dispatch bookkeeping failure is not a
		// reason to report creation as failed.
		logger.Error("dispatch_failed", "submission", sub.ID, "error", err)
	}
	return sub, logs, nil
}

// UpdateStatus applies a forward lifecycle transition. The matching
// timeline entry is appended by the change-feed subscriber.
func (s *Service) UpdateStatus(_ context.Context, id string, next models.SubmissionStatus, performedBy string) (models.Submission, error) {
	return store.UpdateSubmissionStatus(id, next, performedBy)
}

// Payload unwraps the submission's DEK and returns the decrypted
// payload. Integrity failures are audit-logged distinctly from ordinary
// lookup errors.
func (s *Service) Payload(_ context.Context, id string) ([]byte, error) {
	sub, err := store.GetSubmission(id)
	if err != nil {
		return nil, err
	}
	nonce, err := base64.StdEncoding.DecodeString(sub.Payload.Nonce)
	if err != nil {
		return nil, fmt.Errorf("corrupt payload encoding: %w", err)
	}
	ct, err := base64.StdEncoding.DecodeString(sub.Payload.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("corrupt payload encoding: %w", err)
	}
	wrapped, err := base64.StdEncoding.DecodeString(sub.Payload.WrappedKey)
	if err != nil {
		return nil, fmt.Errorf("corrupt payload encoding: %w", err)
	}
	dek, err := security.UnwrapKey(s.kek, wrapped)
	if err != nil {
		logger.AuditEvent("payload_unwrap_failed", "submission", id, "error", err.Error())
		return nil, err
	}
	defer func() {
		for i := range dek {
			dek[i] = 0
		}
	}()
	pt, err := security.Decrypt(security.Envelope{Nonce: nonce, Ciphertext: ct}, dek)
	if err != nil {
		logger.AuditEvent("payload_integrity_failure", "submission", id, "error", err.Error())
		return nil, err
	}
	return pt, nil
}
