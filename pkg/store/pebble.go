package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"fairlead/pkg/logger"
	"fairlead/pkg/models"
)

// Key layout:
//
//	submission:<id>:meta                      Submission JSON
//	submission:<id>:ev:<%020d ts>-<%06d seq>  TimelineEvent JSON
//	submission:<id>:nl:<log id>               NotificationLog JSON
//	idx:subcreated:<%020d ts>:<id>            created-time index (purge, list)
//	authority:<id>                            Authority JSON
//	rotation:<id>:meta                        RotationAssignment JSON
//	idx:rotsub:<subject id>:<rotation id>     subject index
//
// The ':' separator sorts below all id characters we generate, so the
// half-open range [prefix, prefix+1) covers exactly one record family.

var (
	db     *pebble.DB
	dbPath string
)

// idLocks serializes operations on the same record id. Different ids
// land on different stripes and never contend on a global lock.
var idLocks [64]sync.Mutex

func lockFor(id string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &idLocks[h.Sum32()%uint32(len(idLocks))]
}

// Open opens (or creates) a Pebble database at the given path and keeps
// a package handle for use by the rest of the service.
func Open(path string) error {
	var err error
	logger.Info("opening_pebble_db", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return err
	}
	dbPath = path
	logger.Info("pebble_opened", "path", path)
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool { return db != nil }

func submissionMetaKey(id string) []byte {
	return []byte("submission:" + id + ":meta")
}

func submissionPrefix(id string) []byte {
	return []byte("submission:" + id + ":")
}

func eventKey(id string, ts int64, seq uint64) []byte {
	return []byte(fmt.Sprintf("submission:%s:ev:%020d-%06d", id, ts, seq))
}

func notifKey(subID, logID string) []byte {
	return []byte("submission:" + subID + ":nl:" + logID)
}

func createdIdxKey(ts int64, id string) []byte {
	return []byte(fmt.Sprintf("idx:subcreated:%020d:%s", ts, id))
}

// prefixEnd returns the smallest key greater than every key with the
// given prefix.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

// CreateSubmission persists a new submission together with its first
// timeline event in a single batch, so readers never observe a
// submission without its `submitted` entry or with a partial document
// list. Fails with ErrAlreadyExists when the id is taken.
func CreateSubmission(sub models.Submission, first models.TimelineEvent) error {
	if db == nil {
		return ErrNotOpen
	}
	mu := lockFor(sub.ID)
	mu.Lock()
	defer mu.Unlock()

	metaKey := submissionMetaKey(sub.ID)
	if _, closer, err := db.Get(metaKey); err == nil {
		if closer != nil {
			_ = closer.Close()
		}
		return fmt.Errorf("%w: submission %s", ErrAlreadyExists, sub.ID)
	} else if !errors.Is(err, pebble.ErrNotFound) {
		return err
	}

	mb, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("failed to marshal submission: %w", err)
	}
	eb, err := json.Marshal(first)
	if err != nil {
		return fmt.Errorf("failed to marshal timeline event: %w", err)
	}

	batch := db.NewBatch()
	defer batch.Close()
	if err := batch.Set(metaKey, mb, nil); err != nil {
		return err
	}
	if err := batch.Set(createdIdxKey(sub.CreatedTS, sub.ID), []byte(sub.ID), nil); err != nil {
		return err
	}
	if err := batch.Set(eventKey(sub.ID, first.TS, first.Seq), eb, nil); err != nil {
		return err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		logger.Error("create_submission_failed", "id", sub.ID, "error", err)
		return err
	}
	logger.Info("submission_created", "id", sub.ID, "authority", sub.AuthorityID)
	submissionsCreated.Inc()
	emit(Change{Kind: ChangeSubmissionCreated, SubmissionID: sub.ID, NewStatus: sub.Status})
	return nil
}

// GetSubmission returns the stored submission for id.
func GetSubmission(id string) (models.Submission, error) {
	var sub models.Submission
	if db == nil {
		return sub, ErrNotOpen
	}
	v, closer, err := db.Get(submissionMetaKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return sub, fmt.Errorf("%w: submission %s", ErrNotFound, id)
		}
		return sub, err
	}
	defer closer.Close()
	if err := json.Unmarshal(v, &sub); err != nil {
		return sub, fmt.Errorf("invalid submission record: %w", err)
	}
	return sub, nil
}

// SubmissionFilter narrows ListSubmissions. Zero values match everything.
type SubmissionFilter struct {
	Status      models.SubmissionStatus
	AuthorityID string
}

// ListSubmissions returns submissions ordered by creation time,
// descending. An unmatched filter yields an empty slice, not an error.
func ListSubmissions(f SubmissionFilter) ([]models.Submission, error) {
	if db == nil {
		return nil, ErrNotOpen
	}
	prefix := []byte("idx:subcreated:")
	iter, err := db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixEnd(prefix)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	out := make([]models.Submission, 0)
	for ok := iter.Last(); ok; ok = iter.Prev() {
		id := string(iter.Value())
		sub, err := GetSubmission(id)
		if err != nil {
			// index points at a record purged mid-scan; skip
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		if f.Status != "" && sub.Status != f.Status {
			continue
		}
		if f.AuthorityID != "" && sub.AuthorityID != f.AuthorityID {
			continue
		}
		out = append(out, sub)
	}
	return out, iter.Error()
}

// UpdateSubmissionStatus applies a forward lifecycle transition and
// stamps acknowledged/responded times. Operations on the same id
// serialize; the last writer wins but no partial record is ever visible.
func UpdateSubmissionStatus(id string, next models.SubmissionStatus, performedBy string) (models.Submission, error) {
	var sub models.Submission
	if db == nil {
		return sub, ErrNotOpen
	}
	if !models.ValidStatus(next) {
		return sub, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, next)
	}
	mu := lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	sub, err := GetSubmission(id)
	if err != nil {
		return sub, err
	}
	old := sub.Status
	if !models.CanTransition(old, next) {
		return sub, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, old, next)
	}
	sub.Status = next
	now := time.Now().UTC().UnixNano()
	switch next {
	case models.StatusAcknowledged:
		sub.AcknowledgedTS = now
	case models.StatusResponded:
		sub.RespondedTS = now
	}
	b, err := json.Marshal(sub)
	if err != nil {
		return sub, fmt.Errorf("failed to marshal submission: %w", err)
	}
	if err := db.Set(submissionMetaKey(id), b, pebble.Sync); err != nil {
		logger.Error("update_status_failed", "id", id, "error", err)
		return sub, err
	}
	logger.Info("submission_status_updated", "id", id, "from", old, "to", next)
	statusUpdates.Inc()
	emit(Change{Kind: ChangeStatusUpdated, SubmissionID: id, OldStatus: old, NewStatus: next, PerformedBy: performedBy})
	return sub, nil
}

// AppendTimelineEvent writes a timeline event under its (ts, seq) key.
// Fails with ErrNotFound when the submission does not exist.
func AppendTimelineEvent(ev models.TimelineEvent) error {
	if db == nil {
		return ErrNotOpen
	}
	if _, err := GetSubmission(ev.SubmissionID); err != nil {
		return err
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal timeline event: %w", err)
	}
	if err := db.Set(eventKey(ev.SubmissionID, ev.TS, ev.Seq), b, pebble.Sync); err != nil {
		logger.Error("append_event_failed", "submission", ev.SubmissionID, "error", err)
		return err
	}
	timelineAppends.Inc()
	return nil
}

// ListTimelineEvents returns a submission's events ascending by
// (ts, seq); the key encoding makes iteration order the total order.
func ListTimelineEvents(subID string) ([]models.TimelineEvent, error) {
	if db == nil {
		return nil, ErrNotOpen
	}
	prefix := []byte("submission:" + subID + ":ev:")
	iter, err := db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixEnd(prefix)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	out := make([]models.TimelineEvent, 0)
	for iter.First(); iter.Valid(); iter.Next() {
		var ev models.TimelineEvent
		if err := json.Unmarshal(iter.Value(), &ev); err != nil {
			return nil, fmt.Errorf("invalid timeline record: %w", err)
		}
		out = append(out, ev)
	}
	return out, iter.Error()
}

// SaveNotificationLog persists one dispatch attempt record.
func SaveNotificationLog(nl models.NotificationLog) error {
	if db == nil {
		return ErrNotOpen
	}
	b, err := json.Marshal(nl)
	if err != nil {
		return fmt.Errorf("failed to marshal notification log: %w", err)
	}
	if err := db.Set(notifKey(nl.SubmissionID, nl.ID), b, pebble.Sync); err != nil {
		logger.Error("save_notification_failed", "submission", nl.SubmissionID, "channel", nl.Channel, "error", err)
		return err
	}
	return nil
}

// MarkNotificationDelivered flips the delivered flag on an existing log
// entry. The record is otherwise immutable.
func MarkNotificationDelivered(subID, logID string, at int64) error {
	if db == nil {
		return ErrNotOpen
	}
	key := notifKey(subID, logID)
	v, closer, err := db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return fmt.Errorf("%w: notification %s", ErrNotFound, logID)
		}
		return err
	}
	var nl models.NotificationLog
	uerr := json.Unmarshal(v, &nl)
	_ = closer.Close()
	if uerr != nil {
		return fmt.Errorf("invalid notification record: %w", uerr)
	}
	nl.Delivered = true
	nl.DeliveredTS = at
	b, err := json.Marshal(nl)
	if err != nil {
		return err
	}
	return db.Set(key, b, pebble.Sync)
}

// ListNotificationLogs returns all dispatch attempts for a submission.
func ListNotificationLogs(subID string) ([]models.NotificationLog, error) {
	if db == nil {
		return nil, ErrNotOpen
	}
	prefix := []byte("submission:" + subID + ":nl:")
	iter, err := db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixEnd(prefix)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	out := make([]models.NotificationLog, 0)
	for iter.First(); iter.Valid(); iter.Next() {
		var nl models.NotificationLog
		if err := json.Unmarshal(iter.Value(), &nl); err != nil {
			return nil, fmt.Errorf("invalid notification record: %w", err)
		}
		out = append(out, nl)
	}
	return out, iter.Error()
}

// PurgeSubmissionsBefore deletes every submission created strictly
// before cutoff, cascading over its timeline and notification keys in
// one range per record. Each record's deletion is atomic; concurrent
// readers either see the whole submission or none of it. Returns the
// number of submissions deleted.
func PurgeSubmissionsBefore(cutoff time.Time) (int, error) {
	if db == nil {
		return 0, ErrNotOpen
	}
	prefix := []byte("idx:subcreated:")
	// idx keys sort by padded ts; everything below the cutoff key is due.
	upper := []byte(fmt.Sprintf("idx:subcreated:%020d", cutoff.UTC().UnixNano()))
	iter, err := db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return 0, err
	}

	type victim struct {
		id  string
		idx []byte
	}
	var victims []victim
	for iter.First(); iter.Valid(); iter.Next() {
		victims = append(victims, victim{
			id:  string(iter.Value()),
			idx: append([]byte(nil), iter.Key()...),
		})
	}
	if err := iter.Error(); err != nil {
		_ = iter.Close()
		return 0, err
	}
	_ = iter.Close()

	count := 0
	for _, v := range victims {
		mu := lockFor(v.id)
		mu.Lock()
		batch := db.NewBatch()
		p := submissionPrefix(v.id)
		if err := batch.DeleteRange(p, prefixEnd(p), nil); err != nil {
			batch.Close()
			mu.Unlock()
			return count, err
		}
		if err := batch.Delete(v.idx, nil); err != nil {
			batch.Close()
			mu.Unlock()
			return count, err
		}
		err := batch.Commit(pebble.Sync)
		batch.Close()
		mu.Unlock()
		if err != nil {
			logger.Error("purge_submission_failed", "id", v.id, "error", err)
			return count, err
		}
		count++
		retentionPurged.Inc()
		logger.AuditEvent("retention_purged_submission", "id", v.id)
		emit(Change{Kind: ChangeSubmissionPurged, SubmissionID: v.id})
	}
	return count, nil
}

// CountSubmissionsBefore reports how many submissions a purge at the
// given cutoff would delete, without deleting anything.
func CountSubmissionsBefore(cutoff time.Time) (int, error) {
	if db == nil {
		return 0, ErrNotOpen
	}
	prefix := []byte("idx:subcreated:")
	upper := []byte(fmt.Sprintf("idx:subcreated:%020d", cutoff.UTC().UnixNano()))
	iter, err := db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	n := 0
	for iter.First(); iter.Valid(); iter.Next() {
		n++
	}
	return n, iter.Error()
}

// SaveAuthority stores an authority contact record.
func SaveAuthority(a models.Authority) error {
	if db == nil {
		return ErrNotOpen
	}
	b, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal authority: %w", err)
	}
	return db.Set([]byte("authority:"+a.ID), b, pebble.Sync)
}

// GetAuthority returns an authority by id.
func GetAuthority(id string) (models.Authority, error) {
	var a models.Authority
	if db == nil {
		return a, ErrNotOpen
	}
	v, closer, err := db.Get([]byte("authority:" + id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return a, fmt.Errorf("%w: authority %s", ErrNotFound, id)
		}
		return a, err
	}
	defer closer.Close()
	if err := json.Unmarshal(v, &a); err != nil {
		return a, fmt.Errorf("invalid authority record: %w", err)
	}
	return a, nil
}

// ListAuthorities returns all stored authorities.
func ListAuthorities() ([]models.Authority, error) {
	if db == nil {
		return nil, ErrNotOpen
	}
	prefix := []byte("authority:")
	iter, err := db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixEnd(prefix)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	out := make([]models.Authority, 0)
	for iter.First(); iter.Valid(); iter.Next() {
		var a models.Authority
		if err := json.Unmarshal(iter.Value(), &a); err != nil {
			continue
		}
		out = append(out, a)
	}
	return out, iter.Error()
}

// SaveRotation stores a rotation assignment and its subject index entry.
func SaveRotation(r models.RotationAssignment) error {
	if db == nil {
		return ErrNotOpen
	}
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal rotation: %w", err)
	}
	batch := db.NewBatch()
	defer batch.Close()
	if err := batch.Set([]byte("rotation:"+r.ID+":meta"), b, nil); err != nil {
		return err
	}
	if err := batch.Set([]byte("idx:rotsub:"+r.SubjectID+":"+r.ID), []byte(r.ID), nil); err != nil {
		return err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		logger.Error("save_rotation_failed", "id", r.ID, "error", err)
		return err
	}
	emit(Change{Kind: ChangeRotationSaved, RotationID: r.ID})
	return nil
}

// GetRotation returns a rotation assignment by id.
func GetRotation(id string) (models.RotationAssignment, error) {
	var r models.RotationAssignment
	if db == nil {
		return r, ErrNotOpen
	}
	v, closer, err := db.Get([]byte("rotation:" + id + ":meta"))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return r, fmt.Errorf("%w: rotation %s", ErrNotFound, id)
		}
		return r, err
	}
	defer closer.Close()
	if err := json.Unmarshal(v, &r); err != nil {
		return r, fmt.Errorf("invalid rotation record: %w", err)
	}
	return r, nil
}

// ListRotationsBySubject returns all assignments for one crew member.
func ListRotationsBySubject(subjectID string) ([]models.RotationAssignment, error) {
	if db == nil {
		return nil, ErrNotOpen
	}
	prefix := []byte("idx:rotsub:" + subjectID + ":")
	iter, err := db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixEnd(prefix)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	out := make([]models.RotationAssignment, 0)
	for iter.First(); iter.Valid(); iter.Next() {
		r, err := GetRotation(string(iter.Value()))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, r)
	}
	return out, iter.Error()
}

// UpdateRotationStatus replaces the status on an assignment.
func UpdateRotationStatus(id string, status models.RotationStatus) (models.RotationAssignment, error) {
	var r models.RotationAssignment
	if db == nil {
		return r, ErrNotOpen
	}
	if !models.ValidRotationStatus(status) {
		return r, fmt.Errorf("%w: unknown rotation status %q", ErrInvalidTransition, status)
	}
	mu := lockFor(id)
	mu.Lock()
	defer mu.Unlock()
	r, err := GetRotation(id)
	if err != nil {
		return r, err
	}
	r.Status = status
	b, err := json.Marshal(r)
	if err != nil {
		return r, err
	}
	if err := db.Set([]byte("rotation:"+id+":meta"), b, pebble.Sync); err != nil {
		return r, err
	}
	logger.Info("rotation_status_updated", "id", id, "status", status)
	return r, nil
}

// Stats is a compact view for the admin surface.
type Stats struct {
	Submissions int `json:"submissions"`
	Authorities int `json:"authorities"`
	Rotations   int `json:"rotations"`
}

// CountStats walks the index keyspaces and returns record counts.
func CountStats() (Stats, error) {
	var s Stats
	if db == nil {
		return s, ErrNotOpen
	}
	count := func(prefix []byte) (int, error) {
		iter, err := db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: prefixEnd(prefix)})
		if err != nil {
			return 0, err
		}
		defer iter.Close()
		n := 0
		for iter.First(); iter.Valid(); iter.Next() {
			n++
		}
		return n, iter.Error()
	}
	var err error
	if s.Submissions, err = count([]byte("idx:subcreated:")); err != nil {
		return s, err
	}
	if s.Authorities, err = count([]byte("authority:")); err != nil {
		return s, err
	}
	if s.Rotations, err = count([]byte("idx:rotsub:")); err != nil {
		return s, err
	}
	return s, nil
}
