package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Webhook posts a small JSON document to an arbitrary endpoint, for users
// who wire alerts into their own systems rather than a chat channel.
type Webhook struct {
	URL    string
	Client *http.Client
}

func NewWebhook(url string) *Webhook {
	if url == "" {
		return nil
	}
	return &Webhook{
		URL:    url,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

type webhookPayload struct {
	Type      string `json:"type"`
	TargetID  string `json:"target_id"`
	TargetURL string `json:"target_url"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func (w *Webhook) Send(ctx context.Context, ev Event) error {
	if w == nil || w.URL == "" {
		return errors.New("webhook disabled")
	}
	body, _ := json.Marshal(webhookPayload{
		Type:      ev.Alert.Type,
		TargetID:  string(ev.Alert.TargetID),
		TargetURL: ev.TargetURL,
		Message:   ev.Alert.Message,
		Timestamp: timestamp(ev),
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}
