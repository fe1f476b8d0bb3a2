package provisioning

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
)

// ContactAttempt is the outbound contact-attempt sync payload.
type ContactAttempt struct {
	ClientID      string    `json:"client_id"`
	Channel       string    `json:"channel"`
	Direction     string    `json:"direction"`
	Result        string    `json:"result"`
	Notes         string    `json:"notes,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
	SetNextAction bool      `json:"set_next_action,omitempty"`
}

// RecordAttempt mirrors a contact attempt to the external product.
// Fire-and-log: failures are logged and swallowed, never propagated.
func (c *Client) RecordAttempt(ctx context.Context, attempt ContactAttempt) {
	if c == nil {
		return
	}

	body, err := json.Marshal(attempt)
	if err != nil {
		c.log.Warn("contact attempt sync encode failed", "error", err)
		return
	}

	url := c.baseURL + "/api/contact-attempts"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		c.log.Warn("contact attempt sync request build failed", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("contact attempt sync failed", "error", err, "client_id", attempt.ClientID)
		return
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		c.log.Warn("contact attempt sync rejected",
			"status", resp.StatusCode,
			"body", strings.TrimSpace(string(data)),
			"client_id", attempt.ClientID,
		)
	}
}
