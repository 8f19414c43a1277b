package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/tutorlink/tutorlink-api/pkg/httpclient"
	"github.com/tutorlink/tutorlink-api/pkg/retry"
)

// WebhookDispatcher delivers JSON payloads to a configured webhook endpoint
// with bounded retries. Delivery is best-effort: callers log and swallow
// returned errors.
type WebhookDispatcher struct {
	url        string
	httpClient httpclient.Client
}

// NewWebhookDispatcher creates a dispatcher for the given webhook URL
func NewWebhookDispatcher(url string, httpClient httpclient.Client) *WebhookDispatcher {
	return &WebhookDispatcher{
		url:        url,
		httpClient: httpClient,
	}
}

// Dispatch posts the payload as JSON to the webhook endpoint
func (d *WebhookDispatcher) Dispatch(ctx context.Context, payload any) error {
	if d.url == "" {
		// No webhook configured, skip silently
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	return retry.Do(ctx, retry.NotifyConfig(), "webhookDispatch", func() error {
		resp, err := d.httpClient.Post(d.url, "application/json", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("webhook request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("webhook returned status %d", resp.StatusCode)
		}
		return nil
	})
}
