// Package provisioning holds the outbound clients toward the external
// product: trial account creation, workflow status mirroring, and
// contact-attempt sync.
package provisioning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"salesops_backend/platform/apperr"
	"salesops_backend/platform/config"
	"salesops_backend/platform/logger"
)

// CreateTrialRequest is the provisioning API request body.
type CreateTrialRequest struct {
	Email        string `json:"email"`
	BusinessName string `json:"business_name"`
	ContactName  string `json:"contact_name,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Website      string `json:"website,omitempty"`
	LeadID       string `json:"lead_id"`
	SDRUserID    string `json:"sdr_user_id"`
	Source       string `json:"source"`
}

// CreateTrialResponse is the provisioning API response body.
type CreateTrialResponse struct {
	Success       bool   `json:"success"`
	UserID        string `json:"user_id"`
	Email         string `json:"email"`
	Credits       int    `json:"credits"`
	LoginURL      string `json:"login_url"`
	AlreadyExists bool   `json:"already_exists"`
}

// Client is the HTTP client for the external product's provisioning API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient creates a provisioning client. Returns nil when the API is
// not configured; callers must treat a nil client as disabled.
func NewClient(cfg config.ProvisioningConfig, log *logger.Logger) *Client {
	if !cfg.IsProvisioningEnabled() {
		return nil
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.GetProvisioningBaseURL(), "/"),
		apiKey:     cfg.GetProvisioningAPIKey(),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        log,
	}
}

// CreateTrialAccount provisions a trial account in the external product.
// A non-2xx status or an undecodable body is surfaced as an upstream
// error carrying the provider's message verbatim.
func (c *Client) CreateTrialAccount(ctx context.Context, reqBody CreateTrialRequest) (*CreateTrialResponse, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "encode provisioning request", err)
	}

	url := c.baseURL + "/api/trials"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "build provisioning request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("provisioning request failed", "error", err)
		return nil, apperr.Wrap(apperr.KindUpstream, "provisioning request failed", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "read provisioning response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Error("provisioning rejected", "status", resp.StatusCode, "body", string(data))
		return nil, apperr.Upstream(providerMessage(data, resp.StatusCode))
	}

	var decoded CreateTrialResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "malformed provisioning response", err)
	}
	if !decoded.Success {
		return nil, apperr.Upstream(providerMessage(data, resp.StatusCode))
	}

	return &decoded, nil
}

// providerMessage extracts the provider's own error text so it can be
// surfaced verbatim; falls back to the raw body or the status code.
func providerMessage(body []byte, status int) string {
	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Error != "" {
			return envelope.Error
		}
		if envelope.Message != "" {
			return envelope.Message
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return fmt.Sprintf("provisioning API returned status %d", status)
}
