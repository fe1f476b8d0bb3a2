// Package service implements the activation meeting use cases: booking,
// reassignment, outcomes, and the pipeline-link reconciliation pass.
package service

import (
	"context"
	"time"

	"salesops_backend/internal/events"
	"salesops_backend/internal/meetings/repository"
	"salesops_backend/internal/meetings/transport"
	"salesops_backend/platform/apperr"
	"salesops_backend/platform/clock"
	"salesops_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the persistence surface the service needs. Satisfied by
// *repository.Repository; tests substitute a fake.
type Store interface {
	Create(ctx context.Context, params repository.CreateParams) (*repository.Meeting, error)
	GetByID(ctx context.Context, id uuid.UUID) (*repository.Meeting, error)
	FindBlocking(ctx context.Context, activatorID uuid.UUID, start, end time.Time, excludeID uuid.UUID) (*repository.Meeting, error)
	Reassign(ctx context.Context, id uuid.UUID, newActivatorID uuid.UUID, at time.Time) (*repository.Meeting, error)
	MarkOutcome(ctx context.Context, id uuid.UUID, outcome repository.Status, at time.Time) (*repository.Meeting, error)
	Reschedule(ctx context.Context, oldID uuid.UUID, newStart, newEnd time.Time, at time.Time) (*repository.Meeting, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	DueForReminder(ctx context.Context, from, to time.Time) ([]repository.Meeting, error)
	ReconcileLinks(ctx context.Context, at time.Time) ([]uuid.UUID, error)
}

// Pipelines is the slice of the pipeline service the meetings module
// drives: status transitions, counters, and reassignment propagation.
type Pipelines interface {
	LookupIDByLead(ctx context.Context, crmLeadID string) (*uuid.UUID, error)
	MarkScheduled(ctx context.Context, pipelineID, meetingID, activatorID uuid.UUID, actorID uuid.UUID) error
	MarkAttended(ctx context.Context, pipelineID, meetingID uuid.UUID, actorID uuid.UUID) error
	RecordNoShow(ctx context.Context, pipelineID, meetingID uuid.UUID, actorID uuid.UUID) error
	RecordReschedule(ctx context.Context, pipelineID, oldMeetingID, newMeetingID uuid.UUID, actorID uuid.UUID) error
	ReassignActivator(ctx context.Context, pipelineID, meetingID, oldActivator, newActivator uuid.UUID, actorID uuid.UUID, reason string) error
}

// Service orchestrates activation meetings.
type Service struct {
	repo      Store
	pipelines Pipelines
	bus       events.Bus
	clk       clock.Clock
	log       *logger.Logger
}

// New creates the meetings service.
func New(repo Store, pipelines Pipelines, bus events.Bus, clk clock.Clock, log *logger.Logger) *Service {
	return &Service{repo: repo, pipelines: pipelines, bus: bus, clk: clk, log: log}
}

// Schedule books a meeting for an activator. The window must be free; a
// blocking meeting is named in the conflict error. A meeting may be
// booked before the trial exists, in which case it stays unlinked until
// the reconciliation pass.
func (s *Service) Schedule(ctx context.Context, req transport.ScheduleRequest, actorID uuid.UUID) (*transport.MeetingResponse, error) {
	if !req.EndAt.After(req.StartAt) {
		return nil, apperr.Validation("meeting end must be after start")
	}

	blocking, err := s.repo.FindBlocking(ctx, req.ActivatorUserID, req.StartAt, req.EndAt, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if blocking != nil {
		return nil, conflictWithBlocking(blocking)
	}

	pipelineID, err := s.pipelines.LookupIDByLead(ctx, req.CRMLeadID)
	if err != nil {
		return nil, err
	}

	timezone := req.Timezone
	if timezone == "" {
		timezone = "UTC"
	}
	now := s.clk.Now()
	meeting, err := s.repo.Create(ctx, repository.CreateParams{
		PipelineID:       pipelineID,
		CRMLeadID:        req.CRMLeadID,
		ActivatorUserID:  req.ActivatorUserID,
		ScheduledBySDRID: actorID,
		ScheduledStartAt: req.StartAt,
		ScheduledEndAt:   req.EndAt,
		Timezone:         timezone,
		AttendeeName:     req.AttendeeName,
		AttendeePhone:    req.AttendeePhone,
		AttendeeEmail:    req.AttendeeEmail,
		Now:              now,
	})
	if err != nil {
		return nil, err
	}

	if pipelineID != nil {
		s.markScheduled(ctx, *pipelineID, meeting.ID, req.ActivatorUserID, actorID)
	}

	s.bus.Publish(ctx, events.MeetingScheduled{
		BaseEvent:       events.NewBaseEvent(),
		MeetingID:       meeting.ID,
		PipelineID:      meeting.PipelineID,
		ActivatorUserID: meeting.ActivatorUserID,
		StartAt:         meeting.ScheduledStartAt,
		EndAt:           meeting.ScheduledEndAt,
	})

	resp := toResponse(meeting)
	return &resp, nil
}

// markScheduled drives the pipeline to scheduled. A terminal pipeline
// keeps the meeting row but is not revived.
func (s *Service) markScheduled(ctx context.Context, pipelineID, meetingID, activatorID, actorID uuid.UUID) {
	err := s.pipelines.MarkScheduled(ctx, pipelineID, meetingID, activatorID, actorID)
	if err != nil && (apperr.Is(err, apperr.KindAlreadyTerminal) || apperr.Is(err, apperr.KindInvalidTransition)) {
		s.log.Warn("meeting booked on pipeline that cannot be scheduled",
			"pipeline_id", pipelineID, "meeting_id", meetingID, "error", err)
		return
	}
	if err != nil {
		s.log.Error("pipeline scheduling update failed",
			"pipeline_id", pipelineID, "meeting_id", meetingID, "error", err)
	}
}

// Reassign moves a scheduled meeting to a new activator after re-checking
// the new activator's calendar. On conflict the meeting is unchanged.
func (s *Service) Reassign(ctx context.Context, meetingID uuid.UUID, req transport.ReassignRequest, actorID uuid.UUID) (*transport.MeetingResponse, error) {
	meeting, err := s.repo.GetByID(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if meeting.Status != repository.StatusScheduled {
		return nil, apperr.Conflict("meeting is already " + string(meeting.Status))
	}

	blocking, err := s.repo.FindBlocking(ctx, req.NewActivatorUserID, meeting.ScheduledStartAt, meeting.ScheduledEndAt, meetingID)
	if err != nil {
		return nil, err
	}
	if blocking != nil {
		return nil, conflictWithBlocking(blocking)
	}

	oldActivator := meeting.ActivatorUserID
	updated, err := s.repo.Reassign(ctx, meetingID, req.NewActivatorUserID, s.clk.Now())
	if err != nil {
		return nil, err
	}

	if updated.PipelineID != nil {
		if err := s.pipelines.ReassignActivator(ctx, *updated.PipelineID, meetingID, oldActivator, req.NewActivatorUserID, actorID, req.Reason); err != nil {
			s.log.Error("pipeline reassignment propagation failed",
				"pipeline_id", *updated.PipelineID, "meeting_id", meetingID, "error", err)
		}
	}

	s.bus.Publish(ctx, events.MeetingReassigned{
		BaseEvent:    events.NewBaseEvent(),
		MeetingID:    meetingID,
		OldActivator: oldActivator,
		NewActivator: req.NewActivatorUserID,
	})

	resp := toResponse(updated)
	return &resp, nil
}

// MarkOutcome records what happened to a scheduled meeting and drives the
// linked pipeline accordingly: completed moves it to attended, no_show
// bumps the no-show counter, rescheduled creates the successor meeting.
func (s *Service) MarkOutcome(ctx context.Context, meetingID uuid.UUID, req transport.OutcomeRequest, actorID uuid.UUID) (*transport.OutcomeResponse, error) {
	now := s.clk.Now()

	if req.Outcome == string(repository.StatusRescheduled) {
		return s.reschedule(ctx, meetingID, req, actorID, now)
	}

	meeting, err := s.repo.MarkOutcome(ctx, meetingID, repository.Status(req.Outcome), now)
	if err != nil {
		return nil, err
	}

	if meeting.PipelineID != nil {
		var hookErr error
		switch repository.Status(req.Outcome) {
		case repository.StatusCompleted:
			hookErr = s.pipelines.MarkAttended(ctx, *meeting.PipelineID, meetingID, actorID)
		case repository.StatusNoShow:
			hookErr = s.pipelines.RecordNoShow(ctx, *meeting.PipelineID, meetingID, actorID)
		}
		if hookErr != nil {
			s.log.Error("pipeline outcome propagation failed",
				"pipeline_id", *meeting.PipelineID, "meeting_id", meetingID,
				"outcome", req.Outcome, "error", hookErr)
		}
	}

	s.publishOutcome(ctx, meeting, req.Outcome)
	return &transport.OutcomeResponse{Meeting: toResponse(meeting)}, nil
}

func (s *Service) reschedule(ctx context.Context, meetingID uuid.UUID, req transport.OutcomeRequest, actorID uuid.UUID, now time.Time) (*transport.OutcomeResponse, error) {
	if req.NewStartAt == nil || req.NewEndAt == nil {
		return nil, apperr.Validation("rescheduled outcome requires a new window")
	}
	if !req.NewEndAt.After(*req.NewStartAt) {
		return nil, apperr.Validation("meeting end must be after start")
	}

	meeting, err := s.repo.GetByID(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	blocking, err := s.repo.FindBlocking(ctx, meeting.ActivatorUserID, *req.NewStartAt, *req.NewEndAt, meetingID)
	if err != nil {
		return nil, err
	}
	if blocking != nil {
		return nil, conflictWithBlocking(blocking)
	}

	successor, err := s.repo.Reschedule(ctx, meetingID, *req.NewStartAt, *req.NewEndAt, now)
	if err != nil {
		return nil, err
	}

	if successor.PipelineID != nil {
		if err := s.pipelines.RecordReschedule(ctx, *successor.PipelineID, meetingID, successor.ID, actorID); err != nil {
			s.log.Error("pipeline reschedule propagation failed",
				"pipeline_id", *successor.PipelineID, "meeting_id", meetingID, "error", err)
		}
	}

	closed, err := s.repo.GetByID(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	s.publishOutcome(ctx, closed, string(repository.StatusRescheduled))

	successorResp := toResponse(successor)
	return &transport.OutcomeResponse{
		Meeting:   toResponse(closed),
		Successor: &successorResp,
	}, nil
}

func (s *Service) publishOutcome(ctx context.Context, meeting *repository.Meeting, outcome string) {
	s.bus.Publish(ctx, events.MeetingOutcomeRecorded{
		BaseEvent:  events.NewBaseEvent(),
		MeetingID:  meeting.ID,
		PipelineID: meeting.PipelineID,
		Outcome:    outcome,
	})
}

// Get returns one meeting.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*transport.MeetingResponse, error) {
	meeting, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toResponse(meeting)
	return &resp, nil
}

// DueForReminder lists scheduled meetings starting inside [from, to)
// without a sent reminder. Used by the reminder dispatcher.
func (s *Service) DueForReminder(ctx context.Context, from, to time.Time) ([]repository.Meeting, error) {
	return s.repo.DueForReminder(ctx, from, to)
}

// MarkReminderSent stamps the reminder dedup marker; false means another
// run got there first.
func (s *Service) MarkReminderSent(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.repo.MarkReminderSent(ctx, id, s.clk.Now())
}

// ReconcileLinks attaches meetings booked ahead of their trial to the
// pipeline sharing the CRM lead. Used by the reconciliation job.
func (s *Service) ReconcileLinks(ctx context.Context) ([]uuid.UUID, error) {
	return s.repo.ReconcileLinks(ctx, s.clk.Now())
}

func conflictWithBlocking(blocking *repository.Meeting) error {
	return apperr.Conflict("activator already has a meeting in this window").WithDetails(map[string]any{
		"blockingMeetingId": blocking.ID,
		"startAt":           blocking.ScheduledStartAt,
		"endAt":             blocking.ScheduledEndAt,
	})
}

func toResponse(m *repository.Meeting) transport.MeetingResponse {
	return transport.MeetingResponse{
		ID:                m.ID,
		PipelineID:        m.PipelineID,
		CRMLeadID:         m.CRMLeadID,
		ActivatorUserID:   m.ActivatorUserID,
		ScheduledBySDRID:  m.ScheduledBySDRID,
		StartAt:           m.ScheduledStartAt,
		EndAt:             m.ScheduledEndAt,
		Timezone:          m.Timezone,
		Status:            string(m.Status),
		RescheduledFromID: m.RescheduledFromID,
		Reminder24hSentAt: m.Reminder24hSentAt,
		AttendeeName:      m.AttendeeName,
		AttendeePhone:     m.AttendeePhone,
		AttendeeEmail:     m.AttendeeEmail,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}
