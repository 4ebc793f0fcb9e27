package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"fairlead/pkg/logger"
	"fairlead/pkg/models"
	"fairlead/pkg/store"
)

// Dispatcher fans a submission notice out to every configured contact
// channel on an authority. Channels are independent failure domains: a
// broken whatsapp gateway never blocks the email attempt. One
// NotificationLog row is recorded per attempted channel regardless of
// outcome.
type Dispatcher struct {
	transports map[models.Channel]Transport
	limiter    *rate.Limiter
	timeout    time.Duration
}

// Options tunes the dispatcher.
type Options struct {
	// RPS/Burst bound the aggregate outbound send rate; zero means 10/20.
	RPS   float64
	Burst int
	// Timeout bounds each individual transport call.
	Timeout time.Duration
}

// NewDispatcher wires transports per channel. Channels without an entry
// fall back to LogTransport so attempts are still recorded.
func NewDispatcher(transports map[models.Channel]Transport, opts Options) *Dispatcher {
	rps := opts.RPS
	if rps <= 0 {
		rps = 10
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 20
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		transports: transports,
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		timeout:    timeout,
	}
}

// Dispatch attempts delivery on every configured channel of the
// authority and returns the attempt log. An authority with no channels
// yields an empty slice and no error. Per-channel failures surface as
// delivered=false records; Dispatch itself only errors when not a
// single attempt could be recorded.
func (d *Dispatcher) Dispatch(ctx context.Context, sub models.Submission, authority models.Authority) ([]models.NotificationLog, error) {
	contacts := authority.Contacts()
	logs := make([]models.NotificationLog, len(contacts))
	if len(contacts) == 0 {
		return logs[:0], nil
	}

	message := fmt.Sprintf("New submission %q (%s priority) from %s, ref %s",
		sub.Subject, sub.Priority, sub.SubmitterID, sub.ID)

	var wg sync.WaitGroup
	for i, c := range contacts {
		wg.Add(1)
		go func(i int, c models.Contact) {
			defer wg.Done()
			logs[i] = d.attempt(ctx, sub.ID, c, message)
		}(i, c)
	}
	wg.Wait()

	recorded := 0
	var lastErr error
	for _, nl := range logs {
		if err := store.SaveNotificationLog(nl); err != nil {
			// Best-effort persistence: log, keep going, fail only if every
			// record was lost.
			logger.Error("notification_log_save_failed", "submission", sub.ID, "channel", nl.Channel, "error", err)
			lastErr = err
			continue
		}
		recorded++
		notificationsDispatched.WithLabelValues(string(nl.Channel), deliveredLabel(nl.Delivered)).Inc()
	}
	if recorded == 0 && lastErr != nil {
		return logs, fmt.Errorf("failed to record any dispatch attempt: %w", lastErr)
	}
	return logs, nil
}

func (d *Dispatcher) attempt(ctx context.Context, submissionID string, c models.Contact, message string) models.NotificationLog {
	nl := models.NotificationLog{
		ID:           uuid.NewString(),
		SubmissionID: submissionID,
		Channel:      c.Channel,
		Recipient:    c.Recipient,
		Message:      message,
		SentTS:       time.Now().UTC().UnixNano(),
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.limiter.Wait(sendCtx); err != nil {
		nl.Error = err.Error()
		return nl
	}

	tr, ok := d.transports[c.Channel]
	if !ok {
		tr = LogTransport{}
	}
	delivered, err := tr.Send(sendCtx, c.Channel, c.Recipient, message)
	if err != nil {
		logger.Warn("notification_send_failed", "submission", submissionID, "channel", c.Channel, "error", err)
		nl.Error = err.Error()
		return nl
	}
	nl.Delivered = delivered
	if delivered {
		nl.DeliveredTS = time.Now().UTC().UnixNano()
	}
	return nl
}

func deliveredLabel(ok bool) string {
	if ok {
		return "delivered"
	}
	return "failed"
}
