package service

import (
	"context"

	"salesops_backend/internal/pipeline/domain"
	"salesops_backend/internal/pipeline/repository"

	"github.com/google/uuid"
)

// Meeting hooks. The meetings module drives these when a meeting is
// booked or its outcome recorded; pipeline status and counters only ever
// change through here, so the state-machine guards apply uniformly.

// MarkScheduled moves the pipeline to scheduled and records the assigned
// activator. Rebooking an already scheduled pipeline is legal (self edge).
func (s *Service) MarkScheduled(ctx context.Context, pipelineID, meetingID, activatorID uuid.UUID, actorID uuid.UUID) error {
	now := s.clk.Now()
	before, err := s.repo.GetByID(ctx, pipelineID)
	if err != nil {
		return err
	}

	// A queued pipeline that gets a meeting booked directly steps through
	// in_progress so every edge stays within the state machine.
	if before.Status == domain.StatusQueued {
		if _, err := s.repo.TransitionStatus(ctx, pipelineID, domain.StatusInProgress, now); err != nil {
			return err
		}
	}

	after, err := s.repo.TransitionStatus(ctx, pipelineID, domain.StatusScheduled, now)
	if err != nil {
		return err
	}
	if err := s.repo.SetActivator(ctx, pipelineID, activatorID, now); err != nil {
		return err
	}

	s.appendEvent(ctx, repository.AppendEventParams{
		PipelineID:  pipelineID,
		EventType:   "meeting_scheduled",
		ActorUserID: &actorID,
		Metadata: map[string]any{
			"meeting_id":        meetingID.String(),
			"activator_user_id": activatorID.String(),
		},
		OccurredAt: now,
	})
	s.publishStatusChange(ctx, before, after)
	return nil
}

// MarkAttended moves the pipeline to attended after a completed meeting.
func (s *Service) MarkAttended(ctx context.Context, pipelineID, meetingID uuid.UUID, actorID uuid.UUID) error {
	now := s.clk.Now()
	before, err := s.repo.GetByID(ctx, pipelineID)
	if err != nil {
		return err
	}

	after, err := s.repo.TransitionStatus(ctx, pipelineID, domain.StatusAttended, now)
	if err != nil {
		return err
	}

	s.appendEvent(ctx, repository.AppendEventParams{
		PipelineID:  pipelineID,
		EventType:   "meeting_attended",
		ActorUserID: &actorID,
		Metadata:    map[string]any{"meeting_id": meetingID.String()},
		OccurredAt:  now,
	})
	s.publishStatusChange(ctx, before, after)
	return nil
}

// RecordNoShow bumps the no-show counter and moves the pipeline to
// no_show. The counter feeds the repeated-no-show kill rule.
func (s *Service) RecordNoShow(ctx context.Context, pipelineID, meetingID uuid.UUID, actorID uuid.UUID) error {
	now := s.clk.Now()
	before, err := s.repo.GetByID(ctx, pipelineID)
	if err != nil {
		return err
	}

	if err := s.repo.IncrementNoShowCount(ctx, pipelineID, now); err != nil {
		return err
	}
	after, err := s.repo.TransitionStatus(ctx, pipelineID, domain.StatusNoShow, now)
	if err != nil {
		return err
	}

	s.appendEvent(ctx, repository.AppendEventParams{
		PipelineID:  pipelineID,
		EventType:   "meeting_no_show",
		ActorUserID: &actorID,
		Metadata:    map[string]any{"meeting_id": meetingID.String()},
		OccurredAt:  now,
	})
	s.publishStatusChange(ctx, before, after)
	return nil
}

// ReassignActivator propagates a meeting reassignment onto the pipeline
// and appends the audit event with the before and after activators.
func (s *Service) ReassignActivator(ctx context.Context, pipelineID, meetingID, oldActivator, newActivator uuid.UUID, actorID uuid.UUID, reason string) error {
	now := s.clk.Now()
	if err := s.repo.SetActivator(ctx, pipelineID, newActivator, now); err != nil {
		return err
	}

	metadata := map[string]any{
		"meeting_id":    meetingID.String(),
		"old_activator": oldActivator.String(),
		"new_activator": newActivator.String(),
	}
	if reason != "" {
		metadata["reason"] = reason
	}
	s.appendEvent(ctx, repository.AppendEventParams{
		PipelineID:  pipelineID,
		EventType:   "reassigned",
		ActorUserID: &actorID,
		Metadata:    metadata,
		OccurredAt:  now,
	})
	return nil
}

// LookupIDByLead resolves a pipeline id from a CRM lead, nil when the
// trial has not been provisioned yet.
func (s *Service) LookupIDByLead(ctx context.Context, crmLeadID string) (*uuid.UUID, error) {
	p, err := s.repo.GetByCRMLeadID(ctx, crmLeadID)
	if err != nil || p == nil {
		return nil, err
	}
	id := p.ID
	return &id, nil
}

// RecordReschedule bumps the reschedule counter; the pipeline stays
// scheduled because the successor meeting replaces the old slot.
func (s *Service) RecordReschedule(ctx context.Context, pipelineID, oldMeetingID, newMeetingID uuid.UUID, actorID uuid.UUID) error {
	now := s.clk.Now()
	if err := s.repo.IncrementRescheduleCount(ctx, pipelineID, now); err != nil {
		return err
	}

	s.appendEvent(ctx, repository.AppendEventParams{
		PipelineID:  pipelineID,
		EventType:   "meeting_rescheduled",
		ActorUserID: &actorID,
		Metadata: map[string]any{
			"meeting_id":           oldMeetingID.String(),
			"successor_meeting_id": newMeetingID.String(),
		},
		OccurredAt: now,
	})
	return nil
}
