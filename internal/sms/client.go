// Package sms provides the outbound SMS gateway client used as the
// secondary, best-effort channel for meeting reminders.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"salesops_backend/platform/config"
	"salesops_backend/platform/logger"
	"salesops_backend/platform/phone"
)

type Client struct {
	baseURL string
	token   string
	region  string
	http    *http.Client
	log     *logger.Logger
}

type sendRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

// NewClient builds the SMS client. Returns nil when the gateway is not
// configured; a nil Client silently drops sends.
func NewClient(cfg config.SMSConfig, log *logger.Logger) *Client {
	if !cfg.IsSMSEnabled() {
		return nil
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.GetSMSAPIURL(), "/"),
		token:   cfg.GetSMSAPIToken(),
		region:  cfg.GetSMSDefaultRegion(),
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

// SendMessage delivers a single SMS. The recipient number is normalized
// to E.164 before sending.
func (c *Client) SendMessage(ctx context.Context, phoneNumber string, message string) error {
	if c == nil {
		return nil
	}

	normalized := phone.NormalizeE164(phoneNumber, c.region)

	payload := sendRequest{
		To:      normalized,
		Message: message,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal sms payload: %w", err)
	}

	url := fmt.Sprintf("%s/v1/messages", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sms request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	c.log.Info("sms sent", "phone", normalized)
	return nil
}
