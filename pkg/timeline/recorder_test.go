package timeline

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"fairlead/pkg/models"
	"fairlead/pkg/store"
)

func setup(t *testing.T) *Recorder {
	t.Helper()
	store.ResetObservers()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	r := NewRecorder()
	now := time.Now().UTC().UnixNano()
	sub := models.Submission{
		ID:          "sub-1",
		AuthorityID: "auth-1",
		SubmitterID: "user-1",
		Subject:     "Class renewal",
		Status:      models.StatusPending,
		CreatedTS:   now,
	}
	if err := store.CreateSubmission(sub, r.Next("sub-1", models.ActionSubmitted, "submitted", "user-1")); err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}
	return r
}

func TestAppendAndList(t *testing.T) {
	r := setup(t)

	if _, err := r.Append("sub-1", models.ActionStatusUpdate, "status changed from pending to sent", "ops"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	evs, err := r.List("sub-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(evs) != 2 {
		t.Fatalf("len = %d, want 2", len(evs))
	}
	if evs[0].Action != models.ActionSubmitted || evs[1].Action != models.ActionStatusUpdate {
		t.Fatalf("wrong order: %s, %s", evs[0].Action, evs[1].Action)
	}
}

func TestAppendUnknownSubmission(t *testing.T) {
	r := setup(t)
	if _, err := r.Append("ghost", models.ActionNotified, "x", "ops"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

// Concurrent appends must not lose events, and listing must come back in
// a total (ts, seq) order even when timestamps collide.
func TestConcurrentAppendsKeepTotalOrder(t *testing.T) {
	r := setup(t)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := r.Append("sub-1", models.ActionStatusUpdate, fmt.Sprintf("update %d", i), "ops"); err != nil {
				t.Errorf("Append %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	evs, err := r.List("sub-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(evs) != n+1 {
		t.Fatalf("lost events: got %d, want %d", len(evs), n+1)
	}

	seen := map[uint64]bool{}
	for i := 1; i < len(evs); i++ {
		prev, cur := evs[i-1], evs[i]
		if cur.TS < prev.TS || (cur.TS == prev.TS && cur.Seq < prev.Seq) {
			t.Fatalf("order violated at %d: (%d,%d) after (%d,%d)", i, cur.TS, cur.Seq, prev.TS, prev.Seq)
		}
		if seen[cur.Seq] {
			t.Fatalf("duplicate seq %d", cur.Seq)
		}
		seen[cur.Seq] = true
	}
}
