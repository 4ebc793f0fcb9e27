package notify

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"fairlead/pkg/models"
	"fairlead/pkg/store"
)

type fakeTransport struct {
	mu    sync.Mutex
	sent  []string
	fail  bool
	delay time.Duration
}

func (f *fakeTransport) Send(ctx context.Context, channel models.Channel, recipient, message string) (bool, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	f.mu.Lock()
	f.sent = append(f.sent, recipient)
	f.mu.Unlock()
	if f.fail {
		return false, fmt.Errorf("gateway unreachable")
	}
	return true, nil
}

func setup(t *testing.T) models.Submission {
	t.Helper()
	store.ResetObservers()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	now := time.Now().UTC().UnixNano()
	sub := models.Submission{
		ID:          "sub-1",
		AuthorityID: "auth-1",
		SubmitterID: "user-1",
		Subject:     "Annual DP Trial Report",
		Priority:    models.PriorityHigh,
		Status:      models.StatusPending,
		CreatedTS:   now,
	}
	first := models.TimelineEvent{ID: "ev-1", SubmissionID: sub.ID, Action: models.ActionSubmitted, TS: now, Seq: 1}
	if err := store.CreateSubmission(sub, first); err != nil {
		t.Fatalf("CreateSubmission: %v", err)
	}
	return sub
}

func TestDispatchAllChannels(t *testing.T) {
	sub := setup(t)
	email := &fakeTransport{}
	wa := &fakeTransport{}
	d := NewDispatcher(map[models.Channel]Transport{
		models.ChannelEmail:    email,
		models.ChannelWhatsApp: wa,
	}, Options{})

	authority := models.Authority{ID: "auth-1", Name: "PSC", Email: "psc@example.org", WhatsApp: "+31600000000"}
	logs, err := d.Dispatch(context.Background(), sub, authority)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("len(logs) = %d, want 2", len(logs))
	}
	for _, nl := range logs {
		if !nl.Delivered {
			t.Fatalf("channel %s not delivered: %+v", nl.Channel, nl)
		}
		if nl.SubmissionID != sub.ID || nl.SentTS == 0 {
			t.Fatalf("bad log record: %+v", nl)
		}
	}

	stored, err := store.ListNotificationLogs(sub.ID)
	if err != nil {
		t.Fatalf("ListNotificationLogs: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("persisted %d logs, want 2", len(stored))
	}
}

// A broken channel must not affect the others, and the failure must
// still produce an attempt record.
func TestDispatchIsolatesFailures(t *testing.T) {
	sub := setup(t)
	email := &fakeTransport{}
	wa := &fakeTransport{fail: true}
	d := NewDispatcher(map[models.Channel]Transport{
		models.ChannelEmail:    email,
		models.ChannelWhatsApp: wa,
	}, Options{})

	authority := models.Authority{ID: "auth-1", Name: "PSC", Email: "psc@example.org", WhatsApp: "+31600000000"}
	logs, err := d.Dispatch(context.Background(), sub, authority)
	if err != nil {
		t.Fatalf("Dispatch should not fail for per-channel errors: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("len(logs) = %d, want 2", len(logs))
	}

	byChannel := map[models.Channel]models.NotificationLog{}
	for _, nl := range logs {
		byChannel[nl.Channel] = nl
	}
	if !byChannel[models.ChannelEmail].Delivered {
		t.Fatalf("email should be delivered: %+v", byChannel[models.ChannelEmail])
	}
	waLog := byChannel[models.ChannelWhatsApp]
	if waLog.Delivered || waLog.Error == "" {
		t.Fatalf("whatsapp failure not recorded: %+v", waLog)
	}
}

func TestDispatchNoContacts(t *testing.T) {
	sub := setup(t)
	d := NewDispatcher(nil, Options{})
	logs, err := d.Dispatch(context.Background(), sub, models.Authority{ID: "auth-1", Name: "Silent"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(logs) != 0 {
		t.Fatalf("expected no attempts, got %+v", logs)
	}
}

// Channels without a configured transport fall back to the log-only
// transport and record a failed attempt instead of panicking.
func TestDispatchUnconfiguredChannel(t *testing.T) {
	sub := setup(t)
	d := NewDispatcher(map[models.Channel]Transport{}, Options{})
	logs, err := d.Dispatch(context.Background(), sub, models.Authority{ID: "auth-1", Name: "PSC", SMS: "+31611111111"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(logs) != 1 || logs[0].Delivered || logs[0].Error == "" {
		t.Fatalf("expected one failed attempt, got %+v", logs)
	}
}

func TestDispatchTimeout(t *testing.T) {
	sub := setup(t)
	slow := &fakeTransport{delay: 200 * time.Millisecond}
	d := NewDispatcher(map[models.Channel]Transport{models.ChannelEmail: slow}, Options{Timeout: 20 * time.Millisecond})

	logs, err := d.Dispatch(context.Background(), sub, models.Authority{ID: "auth-1", Name: "PSC", Email: "psc@example.org"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(logs) != 1 || logs[0].Delivered || logs[0].Error == "" {
		t.Fatalf("expected a timed-out attempt, got %+v", logs)
	}
}
