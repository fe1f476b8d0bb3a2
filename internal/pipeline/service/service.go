// Package service implements the trial pipeline use cases: trial start,
// milestone recording, contact attempts, and manual kills.
package service

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"salesops_backend/internal/events"
	"salesops_backend/internal/pipeline/domain"
	"salesops_backend/internal/pipeline/repository"
	"salesops_backend/internal/pipeline/transport"
	"salesops_backend/internal/provisioning"
	"salesops_backend/platform/apperr"
	"salesops_backend/platform/clock"
	"salesops_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the persistence surface the service needs. Satisfied by
// *repository.Repository; tests substitute a fake.
type Store interface {
	UpsertOnTrialStart(ctx context.Context, params repository.UpsertParams) (*repository.Pipeline, bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*repository.Pipeline, error)
	GetByCRMLeadID(ctx context.Context, crmLeadID string) (*repository.Pipeline, error)
	RecordMilestone(ctx context.Context, id uuid.UUID, milestone string, at time.Time) (bool, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, newStatus domain.Status, at time.Time) (*repository.Pipeline, error)
	Kill(ctx context.Context, id uuid.UUID, reason domain.KillReason, at time.Time) (*repository.Pipeline, error)
	SetActivator(ctx context.Context, id uuid.UUID, activatorID uuid.UUID, at time.Time) error
	UpdateLastTouch(ctx context.Context, id uuid.UUID, code string, at time.Time) error
	IncrementNoShowCount(ctx context.Context, id uuid.UUID, at time.Time) error
	IncrementRescheduleCount(ctx context.Context, id uuid.UUID, at time.Time) error
	AppendEvent(ctx context.Context, params repository.AppendEventParams) (repository.ActivationEvent, error)
	ListEvents(ctx context.Context, pipelineID uuid.UUID) ([]repository.ActivationEvent, error)
}

// Provisioner creates trial accounts in the external product.
type Provisioner interface {
	CreateTrialAccount(ctx context.Context, req provisioning.CreateTrialRequest) (*provisioning.CreateTrialResponse, error)
}

// ContactSyncer mirrors contact attempts outward, fire-and-log.
type ContactSyncer interface {
	RecordAttempt(ctx context.Context, attempt provisioning.ContactAttempt)
}

// WelcomeMailer sends the trial welcome email.
type WelcomeMailer interface {
	SendTrialWelcomeEmail(ctx context.Context, toEmail, recipientName, accountName string) error
}

// Service orchestrates the trial pipeline.
type Service struct {
	repo          Store
	bus           events.Bus
	clk           clock.Clock
	log           *logger.Logger
	followUpDelay time.Duration

	provisioner Provisioner
	contacts    ContactSyncer
	mailer      WelcomeMailer

	drawMu sync.Mutex
	rng    *rand.Rand
}

// New creates the pipeline service.
func New(repo Store, bus events.Bus, clk clock.Clock, log *logger.Logger, followUpDelay time.Duration) *Service {
	if followUpDelay <= 0 {
		followUpDelay = 24 * time.Hour
	}
	return &Service{
		repo:          repo,
		bus:           bus,
		clk:           clk,
		log:           log,
		followUpDelay: followUpDelay,
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetProvisioner wires the provisioning API client (optional).
func (s *Service) SetProvisioner(p Provisioner) { s.provisioner = p }

// SetContactSyncer wires the outbound contact-attempt sync (optional).
func (s *Service) SetContactSyncer(c ContactSyncer) { s.contacts = c }

// SetMailer wires the welcome email sender (optional).
func (s *Service) SetMailer(m WelcomeMailer) { s.mailer = m }

// SetVariantSource replaces the random source behind variant assignment.
func (s *Service) SetVariantSource(r *rand.Rand) { s.rng = r }

func (s *Service) drawVariant() domain.Variant {
	s.drawMu.Lock()
	defer s.drawMu.Unlock()
	return domain.AssignVariant(s.rng)
}

// StartTrial provisions a trial account and upserts the pipeline row.
// A provisioning failure aborts before any local write; attribution and
// variant land in the same statement as the upsert.
func (s *Service) StartTrial(ctx context.Context, req transport.StartTrialRequest, actingSDRID uuid.UUID) (*transport.StartTrialResponse, error) {
	existing, err := s.repo.GetByCRMLeadID(ctx, req.CRMLeadID)
	if err != nil {
		return nil, err
	}

	var externalAccountID *string
	var loginURL string
	if s.provisioner != nil {
		provisioned, err := s.provisioner.CreateTrialAccount(ctx, provisioning.CreateTrialRequest{
			Email:        req.Email,
			BusinessName: req.BusinessName,
			ContactName:  req.ContactName,
			Phone:        req.Phone,
			Website:      req.Website,
			LeadID:       req.CRMLeadID,
			SDRUserID:    actingSDRID.String(),
			Source:       req.Source,
		})
		if err != nil {
			return nil, err
		}
		externalAccountID = &provisioned.UserID
		loginURL = provisioned.LoginURL
	}

	var existingAttr *domain.Attribution
	variant := s.drawVariant()
	if existing != nil {
		existingAttr = &domain.Attribution{
			OwnerSDRID:     existing.OwnerSDRID,
			FirstTouchCode: existing.FirstTouchCode,
			LastTouchCode:  existing.LastTouchCode,
		}
		variant = existing.FollowupVariant
	}
	attribution := domain.ResolveAttribution(existingAttr, actingSDRID, req.SDRCode)

	now := s.clk.Now()
	params := repository.UpsertParams{
		CRMLeadID:         req.CRMLeadID,
		ExternalAccountID: externalAccountID,
		Attribution:       attribution,
		Variant:           variant,
		Now:               now,
	}
	// Only variant B gets a follow-up task, and only on first insert;
	// the conflict branch of the upsert never touches these columns.
	if existing == nil && variant == domain.VariantB {
		badge := domain.BadgeAwaitingActivation
		followUp := now.Add(s.followUpDelay)
		params.BadgeKey = &badge
		params.NextFollowUpAt = &followUp
	}

	pipeline, created, err := s.repo.UpsertOnTrialStart(ctx, params)
	if err != nil {
		return nil, err
	}

	s.appendEvent(ctx, repository.AppendEventParams{
		PipelineID:  pipeline.ID,
		EventType:   "trial_started",
		ActorUserID: &actingSDRID,
		Metadata: map[string]any{
			"source":      req.Source,
			"sdr_code":    req.SDRCode,
			"first_start": created,
		},
		OccurredAt: now,
	})

	if s.mailer != nil && created {
		if err := s.mailer.SendTrialWelcomeEmail(ctx, req.Email, req.ContactName, req.BusinessName); err != nil {
			s.log.Warn("trial welcome email failed", "error", err, "pipeline_id", pipeline.ID)
		}
	}

	event := events.TrialStarted{
		BaseEvent:  events.NewBaseEvent(),
		PipelineID: pipeline.ID,
		CRMLeadID:  pipeline.CRMLeadID,
		OwnerSDRID: pipeline.OwnerSDRID,
		Variant:    string(pipeline.FollowupVariant),
		FirstStart: created,
	}
	if pipeline.ExternalAccountID != nil {
		event.ExternalAccountID = *pipeline.ExternalAccountID
	}
	s.bus.Publish(ctx, event)

	return &transport.StartTrialResponse{
		Pipeline: toResponse(pipeline),
		LoginURL: loginURL,
		Created:  created,
	}, nil
}

// RecordMilestone sets a write-once lifecycle timestamp. Recording the
// conversion milestone also activates the pipeline when the activation
// preconditions (config change and first lead) are met.
func (s *Service) RecordMilestone(ctx context.Context, id uuid.UUID, milestone string) (*transport.PipelineResponse, error) {
	now := s.clk.Now()
	updated, err := s.repo.RecordMilestone(ctx, id, milestone, now)
	if err != nil {
		return nil, err
	}

	pipeline, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if updated && milestone == "converted_at" && s.activationReady(pipeline) {
		transitioned, err := s.repo.TransitionStatus(ctx, id, domain.StatusActivated, now)
		switch {
		case err == nil:
			s.appendEvent(ctx, repository.AppendEventParams{
				PipelineID: id,
				EventType:  "activated",
				Metadata:   map[string]any{"milestone": milestone},
				OccurredAt: now,
			})
			s.publishStatusChange(ctx, pipeline, transitioned)
			pipeline = transitioned
		case apperr.Is(err, apperr.KindInvalidTransition), apperr.Is(err, apperr.KindAlreadyTerminal):
			s.log.Debug("conversion recorded without activation", "pipeline_id", id, "status", pipeline.Status)
		default:
			return nil, err
		}
	}

	resp := toResponse(pipeline)
	return &resp, nil
}

func (s *Service) activationReady(p *repository.Pipeline) bool {
	return p.CalculatorModifiedAt != nil && p.FirstLeadReceivedAt != nil && !domain.IsTerminal(p.Status)
}

// RecordContactAttempt logs a touch on the pipeline: appends the audit
// event, bumps a queued pipeline to in_progress, refreshes last-touch
// attribution, and mirrors the attempt outward fire-and-log.
func (s *Service) RecordContactAttempt(ctx context.Context, id uuid.UUID, req transport.ContactAttemptRequest, actorID uuid.UUID, sdrCode string) (*transport.PipelineResponse, error) {
	pipeline, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.clk.Now()

	if sdrCode != "" {
		if err := s.repo.UpdateLastTouch(ctx, id, sdrCode, now); err != nil {
			return nil, err
		}
	}

	if pipeline.Status == domain.StatusQueued {
		transitioned, err := s.repo.TransitionStatus(ctx, id, domain.StatusInProgress, now)
		if err == nil {
			s.publishStatusChange(ctx, pipeline, transitioned)
			pipeline = transitioned
		} else if !apperr.Is(err, apperr.KindInvalidTransition) && !apperr.Is(err, apperr.KindAlreadyTerminal) {
			return nil, err
		}
	}

	s.appendEvent(ctx, repository.AppendEventParams{
		PipelineID:  id,
		EventType:   "contact_attempt",
		ActorUserID: &actorID,
		Metadata: map[string]any{
			"channel":   req.Channel,
			"direction": req.Direction,
			"result":    req.Result,
			"notes":     req.Notes,
		},
		OccurredAt: now,
	})

	if s.contacts != nil {
		clientID := pipeline.CRMLeadID
		if pipeline.ExternalAccountID != nil {
			clientID = *pipeline.ExternalAccountID
		}
		s.contacts.RecordAttempt(ctx, provisioning.ContactAttempt{
			ClientID:   clientID,
			Channel:    req.Channel,
			Direction:  req.Direction,
			Result:     req.Result,
			Notes:      req.Notes,
			OccurredAt: now,
		})
	}

	fresh, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toResponse(fresh)
	return &resp, nil
}

// Kill terminates a pipeline manually. Legal from any non-terminal state.
func (s *Service) Kill(ctx context.Context, id uuid.UUID, actorID uuid.UUID, notes string) (*transport.PipelineResponse, error) {
	before, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	killed, err := s.repo.Kill(ctx, id, domain.KillManual, now)
	if err != nil {
		return nil, err
	}

	metadata := map[string]any{
		"reason":       string(domain.KillManual),
		"triggered_by": "user",
	}
	if notes != "" {
		metadata["notes"] = notes
	}
	s.appendEvent(ctx, repository.AppendEventParams{
		PipelineID:  id,
		EventType:   "auto_killed",
		ActorUserID: &actorID,
		Metadata:    metadata,
		OccurredAt:  now,
	})

	s.publishStatusChange(ctx, before, killed)

	resp := toResponse(killed)
	return &resp, nil
}

// Get returns one pipeline.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*transport.PipelineResponse, error) {
	pipeline, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toResponse(pipeline)
	return &resp, nil
}

// Events returns a pipeline's audit trail.
func (s *Service) Events(ctx context.Context, id uuid.UUID) ([]transport.EventResponse, error) {
	rows, err := s.repo.ListEvents(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]transport.EventResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, transport.EventResponse{
			ID:          row.ID,
			EventType:   row.EventType,
			ActorUserID: row.ActorUserID,
			Metadata:    row.Metadata,
			OccurredAt:  row.OccurredAt,
		})
	}
	return out, nil
}

// appendEvent writes an audit row best-effort: a failure is logged and
// never rolls back the primary write it describes.
func (s *Service) appendEvent(ctx context.Context, params repository.AppendEventParams) {
	if _, err := s.repo.AppendEvent(ctx, params); err != nil {
		s.log.Warn("audit event append failed",
			"event_type", params.EventType,
			"pipeline_id", params.PipelineID,
			"error", err,
		)
	}
}

func (s *Service) publishStatusChange(ctx context.Context, before, after *repository.Pipeline) {
	event := events.PipelineStatusChanged{
		BaseEvent:  events.NewBaseEvent(),
		PipelineID: after.ID,
		OldStatus:  string(before.Status),
		NewStatus:  string(after.Status),
	}
	if after.ExternalAccountID != nil {
		event.ExternalAccountID = *after.ExternalAccountID
	}
	if after.KillReason != nil {
		event.KillReason = string(*after.KillReason)
	}
	s.bus.Publish(ctx, event)
}

func toResponse(p *repository.Pipeline) transport.PipelineResponse {
	resp := transport.PipelineResponse{
		ID:                   p.ID,
		CRMLeadID:            p.CRMLeadID,
		ExternalAccountID:    p.ExternalAccountID,
		OwnerSDRID:           p.OwnerSDRID,
		ActivatorUserID:      p.ActivatorUserID,
		FirstTouchCode:       p.FirstTouchCode,
		LastTouchCode:        p.LastTouchCode,
		FollowupVariant:      string(p.FollowupVariant),
		Status:               string(p.Status),
		BadgeKey:             p.BadgeKey,
		NextFollowUpAt:       p.NextFollowUpAt,
		TrialStartedAt:       p.TrialStartedAt,
		PasswordSetAt:        p.PasswordSetAt,
		FirstLoginAt:         p.FirstLoginAt,
		CalculatorModifiedAt: p.CalculatorModifiedAt,
		EmbedCopiedAt:        p.EmbedCopiedAt,
		FirstLeadReceivedAt:  p.FirstLeadReceivedAt,
		ConvertedAt:          p.ConvertedAt,
		KilledAt:             p.KilledAt,
		NoShowCount:          p.NoShowCount,
		RescheduleCount:      p.RescheduleCount,
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
	}
	if p.KillReason != nil {
		reason := string(*p.KillReason)
		resp.KillReason = &reason
	}
	return resp
}
