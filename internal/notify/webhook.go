package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Envelope is the JSON body posted by WebhookGateway.
type Envelope struct {
	ParticipantID string  `json:"participant_id"`
	Kind          Kind    `json:"kind"`
	Text          string  `json:"text"`
	Payload       Payload `json:"payload"`
}

// WebhookGateway delivers notifications by POSTing an Envelope to a URL.
// The receiving service owns the actual chat transport.
//
// Status handling:
//   - 2xx: delivered
//   - 404, 410: ErrUnreachable (recipient unknown or gone)
//   - anything else: a delivery error
type WebhookGateway struct {
	url    string
	client *http.Client
}

// NewWebhookGateway returns a gateway posting to url with the given timeout.
// A zero timeout means 10 seconds.
func NewWebhookGateway(url string, timeout time.Duration) *WebhookGateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookGateway{url: url, client: &http.Client{Timeout: timeout}}
}

// Notify posts the payload and classifies the response.
func (g *WebhookGateway) Notify(ctx context.Context, participantID string, p Payload) error {
	body, err := json.Marshal(Envelope{
		ParticipantID: participantID,
		Kind:          p.Kind(),
		Text:          Render(p),
		Payload:       p,
	})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return fmt.Errorf("webhook %d for %s: %w", resp.StatusCode, participantID, ErrUnreachable)
	default:
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
}
