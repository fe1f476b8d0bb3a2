// Package transport defines the request/response shapes of the activation
// meetings HTTP surface.
package transport

import (
	"time"

	"github.com/google/uuid"
)

// ScheduleRequest is the body for POST /meetings.
type ScheduleRequest struct {
	CRMLeadID       string    `json:"crmLeadId" validate:"required"`
	ActivatorUserID uuid.UUID `json:"activatorUserId" validate:"required"`
	StartAt         time.Time `json:"startAt" validate:"required"`
	EndAt           time.Time `json:"endAt" validate:"required"`
	Timezone        string    `json:"timezone"`
	AttendeeName    string    `json:"attendeeName"`
	AttendeePhone   string    `json:"attendeePhone"`
	AttendeeEmail   string    `json:"attendeeEmail" validate:"omitempty,email"`
}

// ReassignRequest is the body for POST /meetings/:id/reassign.
type ReassignRequest struct {
	NewActivatorUserID uuid.UUID `json:"newActivatorUserId" validate:"required"`
	Reason             string    `json:"reason"`
}

// OutcomeRequest is the body for POST /meetings/:id/outcome. The new
// window fields are required only for the rescheduled outcome.
type OutcomeRequest struct {
	Outcome    string     `json:"outcome" validate:"required,oneof=completed no_show rescheduled canceled"`
	NewStartAt *time.Time `json:"newStartAt"`
	NewEndAt   *time.Time `json:"newEndAt"`
}

// MeetingResponse is the API view of an activation meeting.
type MeetingResponse struct {
	ID                uuid.UUID  `json:"id"`
	PipelineID        *uuid.UUID `json:"pipelineId,omitempty"`
	CRMLeadID         string     `json:"crmLeadId"`
	ActivatorUserID   uuid.UUID  `json:"activatorUserId"`
	ScheduledBySDRID  uuid.UUID  `json:"scheduledBySdrId"`
	StartAt           time.Time  `json:"startAt"`
	EndAt             time.Time  `json:"endAt"`
	Timezone          string     `json:"timezone"`
	Status            string     `json:"status"`
	RescheduledFromID *uuid.UUID `json:"rescheduledFromId,omitempty"`
	Reminder24hSentAt *time.Time `json:"reminder24hSentAt,omitempty"`
	AttendeeName      string     `json:"attendeeName"`
	AttendeePhone     string     `json:"attendeePhone"`
	AttendeeEmail     string     `json:"attendeeEmail"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// OutcomeResponse is returned by POST /meetings/:id/outcome. Successor is
// set only for the rescheduled outcome.
type OutcomeResponse struct {
	Meeting   MeetingResponse  `json:"meeting"`
	Successor *MeetingResponse `json:"successor,omitempty"`
}
