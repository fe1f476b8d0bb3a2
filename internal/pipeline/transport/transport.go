// Package transport defines the request/response shapes of the trial
// pipeline HTTP surface.
package transport

import (
	"time"

	"github.com/google/uuid"
)

// StartTrialRequest is the body for POST /pipelines/trials.
type StartTrialRequest struct {
	CRMLeadID    string `json:"crmLeadId" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	BusinessName string `json:"businessName" validate:"required"`
	ContactName  string `json:"contactName"`
	Phone        string `json:"phone"`
	Website      string `json:"website"`
	SDRCode      string `json:"sdrCode" validate:"required"`
	Source       string `json:"source" validate:"required"`
}

// RecordMilestoneRequest is the body for POST /pipelines/:id/milestones.
type RecordMilestoneRequest struct {
	Milestone string `json:"milestone" validate:"required,oneof=password_set_at first_login_at calculator_modified_at embed_copied_at first_lead_received_at converted_at"`
}

// ContactAttemptRequest is the body for POST /pipelines/:id/contact-attempts.
type ContactAttemptRequest struct {
	Channel   string `json:"channel" validate:"required,oneof=call email sms"`
	Direction string `json:"direction" validate:"required,oneof=inbound outbound"`
	Result    string `json:"result" validate:"required"`
	Notes     string `json:"notes"`
	SDRCode   string `json:"sdrCode"`
}

// KillRequest is the body for POST /pipelines/:id/kill.
type KillRequest struct {
	Notes string `json:"notes"`
}

// PipelineResponse is the API view of a trial pipeline.
type PipelineResponse struct {
	ID                   uuid.UUID  `json:"id"`
	CRMLeadID            string     `json:"crmLeadId"`
	ExternalAccountID    *string    `json:"externalAccountId,omitempty"`
	OwnerSDRID           uuid.UUID  `json:"ownerSdrId"`
	ActivatorUserID      *uuid.UUID `json:"activatorUserId,omitempty"`
	FirstTouchCode       string     `json:"firstTouchCode"`
	LastTouchCode        string     `json:"lastTouchCode"`
	FollowupVariant      string     `json:"followupVariant"`
	Status               string     `json:"status"`
	KillReason           *string    `json:"killReason,omitempty"`
	BadgeKey             *string    `json:"badgeKey,omitempty"`
	NextFollowUpAt       *time.Time `json:"nextFollowUpAt,omitempty"`
	TrialStartedAt       time.Time  `json:"trialStartedAt"`
	PasswordSetAt        *time.Time `json:"passwordSetAt,omitempty"`
	FirstLoginAt         *time.Time `json:"firstLoginAt,omitempty"`
	CalculatorModifiedAt *time.Time `json:"calculatorModifiedAt,omitempty"`
	EmbedCopiedAt        *time.Time `json:"embedCopiedAt,omitempty"`
	FirstLeadReceivedAt  *time.Time `json:"firstLeadReceivedAt,omitempty"`
	ConvertedAt          *time.Time `json:"convertedAt,omitempty"`
	KilledAt             *time.Time `json:"killedAt,omitempty"`
	NoShowCount          int        `json:"noShowCount"`
	RescheduleCount      int        `json:"rescheduleCount"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

// StartTrialResponse is returned by POST /pipelines/trials.
type StartTrialResponse struct {
	Pipeline PipelineResponse `json:"pipeline"`
	LoginURL string           `json:"loginUrl,omitempty"`
	Created  bool             `json:"created"`
}

// EventResponse is the API view of one audit event.
type EventResponse struct {
	ID          uuid.UUID      `json:"id"`
	EventType   string         `json:"eventType"`
	ActorUserID *uuid.UUID     `json:"actorUserId,omitempty"`
	Metadata    map[string]any `json:"metadata"`
	OccurredAt  time.Time      `json:"occurredAt"`
}
