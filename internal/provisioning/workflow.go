package provisioning

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"salesops_backend/platform/config"
	"salesops_backend/platform/logger"
)

// SyncResult is the structured outcome of a workflow sync attempt.
// A failed sync never rolls back the local transition, so failures are
// reported as data, not as an error return.
type SyncResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// WorkflowSync mirrors local pipeline status changes into the external
// product's activation tracker.
type WorkflowSync struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *logger.Logger
}

// NewWorkflowSync creates a workflow sync client. Returns nil when the
// sync endpoint is not configured; a nil sync silently succeeds.
func NewWorkflowSync(cfg config.WorkflowSyncConfig, log *logger.Logger) *WorkflowSync {
	if !cfg.IsWorkflowSyncEnabled() {
		return nil
	}

	return &WorkflowSync{
		baseURL:    strings.TrimRight(cfg.GetWorkflowSyncURL(), "/"),
		apiKey:     cfg.GetWorkflowSyncAPIKey(),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

// externalStatus maps the local status vocabulary to the tracker's.
var externalStatus = map[string]string{
	"queued":      "pending",
	"in_progress": "working",
	"scheduled":   "call_booked",
	"attended":    "call_held",
	"no_show":     "call_missed",
	"activated":   "live",
	"killed":      "closed_lost",
}

// externalKillReason maps local kill reasons to the tracker's close codes.
var externalKillReason = map[string]string{
	"stalled_install":       "no_install",
	"repeated_no_show":      "unresponsive",
	"excessive_reschedules": "unresponsive",
	"manual":                "disqualified",
}

type workflowSyncRequest struct {
	ExternalAccountID string `json:"external_account_id"`
	Status            string `json:"status"`
	CloseReason       string `json:"close_reason,omitempty"`
}

// SyncStatus pushes a status (and optional kill reason) to the external
// tracker. It never returns an error: failures come back in the result.
func (w *WorkflowSync) SyncStatus(ctx context.Context, externalAccountID, status, killReason string) SyncResult {
	if w == nil {
		return SyncResult{Success: true}
	}

	mapped, ok := externalStatus[status]
	if !ok {
		return SyncResult{Success: false, Error: "unmapped status: " + status}
	}

	payload := workflowSyncRequest{
		ExternalAccountID: externalAccountID,
		Status:            mapped,
	}
	if killReason != "" {
		payload.CloseReason = externalKillReason[killReason]
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return SyncResult{Success: false, Error: err.Error()}
	}

	url := w.baseURL + "/api/activation-status"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return SyncResult{Success: false, Error: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.apiKey)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		w.log.Warn("workflow sync failed", "error", err, "account", externalAccountID)
		return SyncResult{Success: false, Error: err.Error()}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		message := strings.TrimSpace(string(data))
		w.log.Warn("workflow sync rejected", "status", resp.StatusCode, "body", message)
		return SyncResult{Success: false, Error: message}
	}

	return SyncResult{Success: true}
}
