package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"fairlead/pkg/logger"
	"fairlead/pkg/models"
)

// Transport delivers one message on one channel. Implementations return
// delivered=true only when the downstream accepted the message; any
// transport failure is an error value, never a panic.
type Transport interface {
	Send(ctx context.Context, channel models.Channel, recipient, message string) (bool, error)
}

// WebhookTransport posts messages as JSON to a per-channel gateway URL.
// This is the production transport: the actual email/whatsapp/sms
// bridging happens behind the webhook.
type WebhookTransport struct {
	URL    string
	Client *http.Client
}

// NewWebhookTransport builds a transport with a bounded client timeout
// so a stuck gateway cannot hang the dispatcher.
func NewWebhookTransport(url string, timeout time.Duration) *WebhookTransport {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookTransport{URL: url, Client: &http.Client{Timeout: timeout}}
}

type webhookPayload struct {
	Channel   models.Channel `json:"channel"`
	Recipient string         `json:"recipient"`
	Message   string         `json:"message"`
}

func (t *WebhookTransport) Send(ctx context.Context, channel models.Channel, recipient, message string) (bool, error) {
	body, err := json.Marshal(webhookPayload{Channel: channel, Recipient: recipient, Message: message})
	if err != nil {
		return false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.Client.Do(req)
	if err != nil {
		return false, fmt.Errorf("webhook send failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return true, nil
}

// LogTransport records sends to the service log without delivering
// anywhere. Used when a channel has no gateway configured, so dispatch
// still produces an attempt record.
type LogTransport struct{}

func (LogTransport) Send(_ context.Context, channel models.Channel, recipient, message string) (bool, error) {
	logger.Info("notification_logged_only", "channel", channel, "recipient", recipient, "len", len(message))
	return false, fmt.Errorf("no gateway configured for channel %s", channel)
}
