package retention

import (
	"testing"
	"time"

	"fairlead/pkg/config"
	"fairlead/pkg/models"
	"fairlead/pkg/store"
)

func seed(t *testing.T, id string, age time.Duration) {
	t.Helper()
	ts := time.Now().UTC().Add(-age).UnixNano()
	sub := models.Submission{
		ID:          id,
		AuthorityID: "auth-1",
		SubmitterID: "user-1",
		Subject:     "old report",
		Status:      models.StatusClosed,
		CreatedTS:   ts,
	}
	first := models.TimelineEvent{ID: "ev-" + id, SubmissionID: id, Action: models.ActionSubmitted, TS: ts, Seq: 1}
	if err := store.CreateSubmission(sub, first); err != nil {
		t.Fatalf("CreateSubmission %s: %v", id, err)
	}
}

func openStore(t *testing.T) {
	t.Helper()
	store.ResetObservers()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
}

func TestRunImmediate(t *testing.T) {
	openStore(t)
	seed(t, "ancient", 100*24*time.Hour)
	seed(t, "recent", 10*24*time.Hour)

	cfg := &config.Config{}
	cfg.Retention.Period = "90d"
	SetConfig(cfg)

	res, err := RunImmediate()
	if err != nil {
		t.Fatalf("RunImmediate: %v", err)
	}
	if res.Purged != 1 || res.DryRun {
		t.Fatalf("unexpected result: %+v", res)
	}

	if _, err := store.GetSubmission("recent"); err != nil {
		t.Fatalf("recent submission lost: %v", err)
	}

	// idempotent
	res, err = RunImmediate()
	if err != nil || res.Purged != 0 {
		t.Fatalf("second run = %+v, %v; want 0 purged", res, err)
	}
}

func TestDryRunDeletesNothing(t *testing.T) {
	openStore(t)
	seed(t, "ancient", 100*24*time.Hour)

	cfg := &config.Config{}
	cfg.Retention.Period = "90d"
	cfg.Retention.DryRun = true
	SetConfig(cfg)

	res, err := RunImmediate()
	if err != nil {
		t.Fatalf("RunImmediate: %v", err)
	}
	if !res.DryRun || res.Purged != 1 {
		t.Fatalf("dry run should report 1 candidate: %+v", res)
	}
	if _, err := store.GetSubmission("ancient"); err != nil {
		t.Fatalf("dry run deleted data: %v", err)
	}
}

func TestMinPeriodGuard(t *testing.T) {
	openStore(t)
	cfg := &config.Config{}
	cfg.Retention.Period = "1d"
	cfg.Retention.MinPeriod = "7d"
	SetConfig(cfg)

	if _, err := RunImmediate(); err == nil {
		t.Fatalf("period below min_period must be rejected")
	}
}

func TestInvalidPeriod(t *testing.T) {
	openStore(t)
	cfg := &config.Config{}
	cfg.Retention.Period = "soon"
	SetConfig(cfg)
	if _, err := RunImmediate(); err == nil {
		t.Fatalf("invalid period must be rejected")
	}
}
