// Package events declares the application's domain events and re-exports
// the platform event bus types for convenience.
package events

import (
	"time"

	"salesops_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// NewBaseEvent creates a base event stamped with the current time.
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Trial Pipeline Domain Events
// =============================================================================

// TrialStarted is published when a trial pipeline is created (or
// re-provisioned for an existing lead).
type TrialStarted struct {
	BaseEvent
	PipelineID        uuid.UUID `json:"pipelineId"`
	CRMLeadID         string    `json:"crmLeadId"`
	ExternalAccountID string    `json:"externalAccountId,omitempty"`
	OwnerSDRID        uuid.UUID `json:"ownerSdrId"`
	Variant           string    `json:"variant"`
	FirstStart        bool      `json:"firstStart"`
}

func (e TrialStarted) EventName() string { return "pipeline.trial.started" }

// PipelineStatusChanged is published on every successful status transition.
type PipelineStatusChanged struct {
	BaseEvent
	PipelineID        uuid.UUID `json:"pipelineId"`
	ExternalAccountID string    `json:"externalAccountId,omitempty"`
	OldStatus         string    `json:"oldStatus"`
	NewStatus         string    `json:"newStatus"`
	KillReason        string    `json:"killReason,omitempty"`
}

func (e PipelineStatusChanged) EventName() string { return "pipeline.status.changed" }

// MeetingScheduled is published when an activation meeting is booked.
type MeetingScheduled struct {
	BaseEvent
	MeetingID       uuid.UUID  `json:"meetingId"`
	PipelineID      *uuid.UUID `json:"pipelineId,omitempty"`
	ActivatorUserID uuid.UUID  `json:"activatorUserId"`
	StartAt         time.Time  `json:"startAt"`
	EndAt           time.Time  `json:"endAt"`
}

func (e MeetingScheduled) EventName() string { return "meetings.scheduled" }

// MeetingReassigned is published when a meeting moves to a new activator.
type MeetingReassigned struct {
	BaseEvent
	MeetingID    uuid.UUID `json:"meetingId"`
	OldActivator uuid.UUID `json:"oldActivator"`
	NewActivator uuid.UUID `json:"newActivator"`
}

func (e MeetingReassigned) EventName() string { return "meetings.reassigned" }

// MeetingOutcomeRecorded is published when a meeting outcome is marked.
type MeetingOutcomeRecorded struct {
	BaseEvent
	MeetingID  uuid.UUID  `json:"meetingId"`
	PipelineID *uuid.UUID `json:"pipelineId,omitempty"`
	Outcome    string     `json:"outcome"`
}

func (e MeetingOutcomeRecorded) EventName() string { return "meetings.outcome.recorded" }
