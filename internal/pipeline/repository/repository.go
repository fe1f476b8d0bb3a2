package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"salesops_backend/internal/pipeline/domain"
	"salesops_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pipeline represents the trial pipeline database model.
type Pipeline struct {
	ID                   uuid.UUID         `db:"id"`
	CRMLeadID            string            `db:"crm_lead_id"`
	ExternalAccountID    *string           `db:"external_account_id"`
	OwnerSDRID           uuid.UUID         `db:"owner_sdr_id"`
	ActivatorUserID      *uuid.UUID        `db:"activator_user_id"`
	FirstTouchCode       string            `db:"first_touch_code"`
	LastTouchCode        string            `db:"last_touch_code"`
	FollowupVariant      domain.Variant    `db:"followup_variant"`
	Status               domain.Status     `db:"status"`
	KillReason           *domain.KillReason `db:"kill_reason"`
	BadgeKey             *string           `db:"badge_key"`
	NextFollowUpAt       *time.Time        `db:"next_follow_up_at"`
	TrialStartedAt       time.Time         `db:"trial_started_at"`
	PasswordSetAt        *time.Time        `db:"password_set_at"`
	FirstLoginAt         *time.Time        `db:"first_login_at"`
	CalculatorModifiedAt *time.Time        `db:"calculator_modified_at"`
	EmbedCopiedAt        *time.Time        `db:"embed_copied_at"`
	FirstLeadReceivedAt  *time.Time        `db:"first_lead_received_at"`
	ConvertedAt          *time.Time        `db:"converted_at"`
	KilledAt             *time.Time        `db:"killed_at"`
	NoShowCount          int               `db:"no_show_count"`
	RescheduleCount      int               `db:"reschedule_count"`
	CreatedAt            time.Time         `db:"created_at"`
	UpdatedAt            time.Time         `db:"updated_at"`
}

const pipelineNotFoundMsg = "pipeline not found"

const pipelineColumns = `id, crm_lead_id, external_account_id, owner_sdr_id, activator_user_id,
	first_touch_code, last_touch_code, followup_variant, status, kill_reason, badge_key,
	next_follow_up_at, trial_started_at, password_set_at, first_login_at, calculator_modified_at,
	embed_copied_at, first_lead_received_at, converted_at, killed_at,
	no_show_count, reschedule_count, created_at, updated_at`

// Repository provides database operations for trial pipelines.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new pipeline repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanPipeline(row pgx.Row) (*Pipeline, bool, error) {
	var p Pipeline
	var inserted bool
	err := row.Scan(
		&p.ID, &p.CRMLeadID, &p.ExternalAccountID, &p.OwnerSDRID, &p.ActivatorUserID,
		&p.FirstTouchCode, &p.LastTouchCode, &p.FollowupVariant, &p.Status, &p.KillReason, &p.BadgeKey,
		&p.NextFollowUpAt, &p.TrialStartedAt, &p.PasswordSetAt, &p.FirstLoginAt, &p.CalculatorModifiedAt,
		&p.EmbedCopiedAt, &p.FirstLeadReceivedAt, &p.ConvertedAt, &p.KilledAt,
		&p.NoShowCount, &p.RescheduleCount, &p.CreatedAt, &p.UpdatedAt,
		&inserted,
	)
	return &p, inserted, err
}

func scanPipelineRow(row pgx.Row) (*Pipeline, error) {
	var p Pipeline
	err := row.Scan(
		&p.ID, &p.CRMLeadID, &p.ExternalAccountID, &p.OwnerSDRID, &p.ActivatorUserID,
		&p.FirstTouchCode, &p.LastTouchCode, &p.FollowupVariant, &p.Status, &p.KillReason, &p.BadgeKey,
		&p.NextFollowUpAt, &p.TrialStartedAt, &p.PasswordSetAt, &p.FirstLoginAt, &p.CalculatorModifiedAt,
		&p.EmbedCopiedAt, &p.FirstLeadReceivedAt, &p.ConvertedAt, &p.KilledAt,
		&p.NoShowCount, &p.RescheduleCount, &p.CreatedAt, &p.UpdatedAt,
	)
	return &p, err
}

// UpsertParams carries the fields written by UpsertOnTrialStart.
type UpsertParams struct {
	CRMLeadID         string
	ExternalAccountID *string
	Attribution       domain.Attribution
	Variant           domain.Variant
	BadgeKey          *string
	NextFollowUpAt    *time.Time
	Now               time.Time
}

// UpsertOnTrialStart inserts the pipeline row, or on a repeat trial start
// for the same lead updates only the mutable attribution fields. The
// returned bool reports whether this call created the row. Owner, first
// touch, variant and every lifecycle timestamp are write-once by
// construction: the conflict branch never touches them.
func (r *Repository) UpsertOnTrialStart(ctx context.Context, params UpsertParams) (*Pipeline, bool, error) {
	query := `
		INSERT INTO trial_pipelines (
			id, crm_lead_id, external_account_id, owner_sdr_id,
			first_touch_code, last_touch_code, followup_variant, status,
			badge_key, next_follow_up_at, trial_started_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11, $11)
		ON CONFLICT (crm_lead_id) DO UPDATE SET
			last_touch_code = EXCLUDED.last_touch_code,
			external_account_id = COALESCE(EXCLUDED.external_account_id, trial_pipelines.external_account_id),
			updated_at = EXCLUDED.updated_at
		RETURNING ` + pipelineColumns + `, (xmax = 0) AS inserted`

	row := r.pool.QueryRow(ctx, query,
		uuid.New(), params.CRMLeadID, params.ExternalAccountID, params.Attribution.OwnerSDRID,
		params.Attribution.FirstTouchCode, params.Attribution.LastTouchCode, params.Variant,
		domain.StatusQueued, params.BadgeKey, params.NextFollowUpAt, params.Now,
	)

	p, inserted, err := scanPipeline(row)
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert pipeline: %w", err)
	}
	return p, inserted, nil
}

// GetByID retrieves a pipeline by its ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Pipeline, error) {
	query := `SELECT ` + pipelineColumns + ` FROM trial_pipelines WHERE id = $1`
	p, err := scanPipelineRow(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(pipelineNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get pipeline: %w", err)
	}
	return p, nil
}

// GetByCRMLeadID retrieves a pipeline by its CRM lead. A missing row is
// returned as (nil, nil): trial start uses this to detect first touch.
func (r *Repository) GetByCRMLeadID(ctx context.Context, crmLeadID string) (*Pipeline, error) {
	query := `SELECT ` + pipelineColumns + ` FROM trial_pipelines WHERE crm_lead_id = $1`
	p, err := scanPipelineRow(r.pool.QueryRow(ctx, query, crmLeadID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get pipeline by lead: %w", err)
	}
	return p, nil
}

// milestoneColumns whitelists the write-once lifecycle timestamps.
var milestoneColumns = map[string]string{
	"password_set_at":        "password_set_at",
	"first_login_at":         "first_login_at",
	"calculator_modified_at": "calculator_modified_at",
	"embed_copied_at":        "embed_copied_at",
	"first_lead_received_at": "first_lead_received_at",
	"converted_at":           "converted_at",
}

// RecordMilestone sets the named lifecycle timestamp only if it is still
// null. Returns whether this call set it; a later call is a no-op.
func (r *Repository) RecordMilestone(ctx context.Context, id uuid.UUID, milestone string, at time.Time) (bool, error) {
	column, ok := milestoneColumns[milestone]
	if !ok {
		return false, apperr.Validation("unknown milestone: " + milestone)
	}

	// Column name comes from the whitelist above, never from input.
	query := fmt.Sprintf(
		`UPDATE trial_pipelines SET %s = $2, updated_at = $2 WHERE id = $1 AND %s IS NULL`,
		column, column,
	)
	result, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("failed to record milestone %s: %w", milestone, err)
	}
	return result.RowsAffected() > 0, nil
}

// TransitionStatus moves the pipeline to newStatus. The legal source
// statuses are re-checked inside the UPDATE itself, so concurrent
// writers cannot race the pre-flight read.
func (r *Repository) TransitionStatus(ctx context.Context, id uuid.UUID, newStatus domain.Status, at time.Time) (*Pipeline, error) {
	legal := domain.LegalSources(newStatus)
	sources := make([]string, 0, len(legal))
	for _, s := range legal {
		sources = append(sources, string(s))
	}

	query := `
		UPDATE trial_pipelines
		SET status = $2, updated_at = $3
		WHERE id = $1 AND status = ANY($4)
		RETURNING ` + pipelineColumns

	p, err := scanPipelineRow(r.pool.QueryRow(ctx, query, id, newStatus, at, sources))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to transition pipeline: %w", err)
	}

	// Guard rejected the write: refetch to name the reason.
	current, getErr := r.GetByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, domain.CanTransition(current.Status, newStatus)
}

// Kill terminates the pipeline with the given reason. The terminal guard
// is part of the UPDATE; returns false when the pipeline was already
// terminal (or missing).
func (r *Repository) Kill(ctx context.Context, id uuid.UUID, reason domain.KillReason, at time.Time) (*Pipeline, error) {
	query := `
		UPDATE trial_pipelines
		SET status = 'killed', kill_reason = $2, killed_at = $3,
		    next_follow_up_at = NULL, badge_key = NULL, updated_at = $3
		WHERE id = $1 AND status NOT IN ('killed', 'activated')
		RETURNING ` + pipelineColumns

	p, err := scanPipelineRow(r.pool.QueryRow(ctx, query, id, reason, at))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to kill pipeline: %w", err)
	}

	current, getErr := r.GetByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, apperr.AlreadyTerminal("pipeline is already " + string(current.Status))
}

// SetActivator propagates the assigned activator onto the pipeline.
func (r *Repository) SetActivator(ctx context.Context, id uuid.UUID, activatorID uuid.UUID, at time.Time) error {
	query := `UPDATE trial_pipelines SET activator_user_id = $2, updated_at = $3 WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, id, activatorID, at)
	if err != nil {
		return fmt.Errorf("failed to set activator: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(pipelineNotFoundMsg)
	}
	return nil
}

// UpdateLastTouch overwrites the last-touch attribution code. First touch
// and owner are deliberately not part of this statement.
func (r *Repository) UpdateLastTouch(ctx context.Context, id uuid.UUID, code string, at time.Time) error {
	query := `UPDATE trial_pipelines SET last_touch_code = $2, updated_at = $3 WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, id, code, at)
	if err != nil {
		return fmt.Errorf("failed to update last touch: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(pipelineNotFoundMsg)
	}
	return nil
}

// IncrementNoShowCount bumps the no-show counter on a non-terminal pipeline.
func (r *Repository) IncrementNoShowCount(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE trial_pipelines
		SET no_show_count = no_show_count + 1, updated_at = $2
		WHERE id = $1 AND status NOT IN ('killed', 'activated')`
	_, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to increment no-show count: %w", err)
	}
	return nil
}

// IncrementRescheduleCount bumps the reschedule counter on a non-terminal pipeline.
func (r *Repository) IncrementRescheduleCount(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE trial_pipelines
		SET reschedule_count = reschedule_count + 1, updated_at = $2
		WHERE id = $1 AND status NOT IN ('killed', 'activated')`
	_, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to increment reschedule count: %w", err)
	}
	return nil
}
