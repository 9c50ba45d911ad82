package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// CompletionNotice is what notify sends downstream once a session reaches
// its final stage (completed or failed).
type CompletionNotice struct {
	SessionID string `json:"session_id"`
	ProjectID string `json:"project_id"`
	Stage     string `json:"stage"`
	Summary   string `json:"summary"`
}

// DownstreamNotifier tells whatever system is waiting on this session's
// output that it finished (or failed). notify depends on this interface
// rather than a specific webhook shape.
type DownstreamNotifier interface {
	Notify(ctx context.Context, notice CompletionNotice) error
}

// WebhookNotifier posts a CompletionNotice as JSON to a configured URL.
type WebhookNotifier struct {
	URL    string
	client *http.Client
}

// NewWebhookNotifier constructs a WebhookNotifier that posts to url.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{URL: url, client: http.DefaultClient}
}

// Notify implements DownstreamNotifier.
func (w *WebhookNotifier) Notify(ctx context.Context, notice CompletionNotice) error {
	body, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("marshal completion notice: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s returned status %d", w.URL, resp.StatusCode)
	}
	return nil
}
