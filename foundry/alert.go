package foundry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Alert describes a critical safety event raised by the crisis manager.
type Alert struct {
	// SessionID identifies the session triggering the alert.
	SessionID string

	// Draft is the content of the flagged draft.
	Draft string

	// Reason is the reviewer feedback that triggered the crisis route.
	Reason string
}

// Alerter is the fire-and-forget notification sink invoked on crisis
// detection. The workflow never depends on its return value; delivery
// failures are logged by the caller and swallowed.
type Alerter interface {
	Alert(ctx context.Context, alert Alert) error
}

// WebhookAlerter posts crisis alerts to a chat webhook (Discord-style:
// a JSON body with a single "content" field, 204 on success).
type WebhookAlerter struct {
	url    string
	client *http.Client
}

// NewWebhookAlerter creates an alerter posting to the given webhook
// URL. The HTTP client uses a short timeout so a slow webhook cannot
// stall crisis handling.
func NewWebhookAlerter(url string) *WebhookAlerter {
	return &WebhookAlerter{
		url:    url,
		client: &http.Client{Timeout: 3 * time.Second},
	}
}

// Alert implements the Alerter interface.
func (w *WebhookAlerter) Alert(ctx context.Context, alert Alert) error {
	snippet := alert.Draft
	if len(snippet) > 100 {
		snippet = snippet[:100]
	}

	payload := map[string]string{
		"content": fmt.Sprintf(
			"**CRITICAL SAFETY ALERT**\n\n**Session ID:** `%s`\n**Reason:** %s\n**Draft Snippet:** _%s..._",
			alert.SessionID, alert.Reason, snippet),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver alert: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("alert webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// NopAlerter discards all alerts. Used in tests and in deployments
// without a configured webhook.
type NopAlerter struct{}

// Alert implements the Alerter interface.
func (NopAlerter) Alert(context.Context, Alert) error { return nil }
