// Package repository provides database operations for activation meetings.
// The non-overlap invariant lives in the database: a gist exclusion
// constraint on (activator_user_id, tstzrange) scoped to scheduled rows.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"salesops_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Status is the meeting lifecycle status.
type Status string

const (
	StatusScheduled   Status = "scheduled"
	StatusCompleted   Status = "completed"
	StatusNoShow      Status = "no_show"
	StatusRescheduled Status = "rescheduled"
	StatusCanceled    Status = "canceled"
)

// Meeting represents the activation meeting database model.
type Meeting struct {
	ID                uuid.UUID  `db:"id"`
	PipelineID        *uuid.UUID `db:"pipeline_id"`
	CRMLeadID         string     `db:"crm_lead_id"`
	ActivatorUserID   uuid.UUID  `db:"activator_user_id"`
	ScheduledBySDRID  uuid.UUID  `db:"scheduled_by_sdr_id"`
	ScheduledStartAt  time.Time  `db:"scheduled_start_at"`
	ScheduledEndAt    time.Time  `db:"scheduled_end_at"`
	Timezone          string     `db:"timezone"`
	Status            Status     `db:"status"`
	RescheduledFromID *uuid.UUID `db:"rescheduled_from_id"`
	Reminder24hSentAt *time.Time `db:"reminder_24h_sent_at"`
	AttendeeName      string     `db:"attendee_name"`
	AttendeePhone     string     `db:"attendee_phone"`
	AttendeeEmail     string     `db:"attendee_email"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

const meetingColumns = `id, pipeline_id, crm_lead_id, activator_user_id, scheduled_by_sdr_id,
	scheduled_start_at, scheduled_end_at, timezone, status, rescheduled_from_id,
	reminder_24h_sent_at, attendee_name, attendee_phone, attendee_email, created_at, updated_at`

const overlapConstraint = "activation_meetings_no_overlap"

// Repository provides database operations for activation meetings.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new meetings repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type row interface {
	Scan(dest ...any) error
}

func scanMeeting(r row) (*Meeting, error) {
	var m Meeting
	err := r.Scan(
		&m.ID, &m.PipelineID, &m.CRMLeadID, &m.ActivatorUserID, &m.ScheduledBySDRID,
		&m.ScheduledStartAt, &m.ScheduledEndAt, &m.Timezone, &m.Status, &m.RescheduledFromID,
		&m.Reminder24hSentAt, &m.AttendeeName, &m.AttendeePhone, &m.AttendeeEmail,
		&m.CreatedAt, &m.UpdatedAt,
	)
	return &m, err
}

// isOverlapViolation reports whether err is the exclusion constraint
// rejecting two scheduled meetings in the same activator window.
func isOverlapViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == "23P01" &&
		pgErr.ConstraintName == overlapConstraint
}

// CreateParams carries the fields for booking a meeting.
type CreateParams struct {
	PipelineID        *uuid.UUID
	CRMLeadID         string
	ActivatorUserID   uuid.UUID
	ScheduledBySDRID  uuid.UUID
	ScheduledStartAt  time.Time
	ScheduledEndAt    time.Time
	Timezone          string
	RescheduledFromID *uuid.UUID
	AttendeeName      string
	AttendeePhone     string
	AttendeeEmail     string
	Now               time.Time
}

// Create books a meeting. The exclusion constraint rejects an overlapping
// scheduled meeting for the same activator even when two writers race the
// pre-flight check.
func (r *Repository) Create(ctx context.Context, params CreateParams) (*Meeting, error) {
	query := `
		INSERT INTO activation_meetings (
			id, pipeline_id, crm_lead_id, activator_user_id, scheduled_by_sdr_id,
			scheduled_start_at, scheduled_end_at, timezone, status,
			rescheduled_from_id, attendee_name, attendee_phone, attendee_email,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'scheduled', $9, $10, $11, $12, $13, $13)
		RETURNING ` + meetingColumns

	m, err := scanMeeting(r.pool.QueryRow(ctx, query,
		uuid.New(), params.PipelineID, params.CRMLeadID, params.ActivatorUserID,
		params.ScheduledBySDRID, params.ScheduledStartAt, params.ScheduledEndAt,
		params.Timezone, params.RescheduledFromID,
		params.AttendeeName, params.AttendeePhone, params.AttendeeEmail, params.Now,
	))
	if err != nil {
		if isOverlapViolation(err) {
			return nil, apperr.Conflict("activator already has a meeting in this window")
		}
		return nil, fmt.Errorf("failed to create meeting: %w", err)
	}
	return m, nil
}

// GetByID retrieves a meeting by its ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Meeting, error) {
	query := `SELECT ` + meetingColumns + ` FROM activation_meetings WHERE id = $1`
	m, err := scanMeeting(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("meeting not found")
		}
		return nil, fmt.Errorf("failed to get meeting: %w", err)
	}
	return m, nil
}

// FindBlocking returns a scheduled meeting for the activator whose window
// overlaps [start, end), excluding excludeID (uuid.Nil to exclude none).
// Half-open test: existing.start < end AND existing.end > start.
func (r *Repository) FindBlocking(ctx context.Context, activatorID uuid.UUID, start, end time.Time, excludeID uuid.UUID) (*Meeting, error) {
	query := `
		SELECT ` + meetingColumns + `
		FROM activation_meetings
		WHERE activator_user_id = $1 AND status = 'scheduled'
		  AND scheduled_start_at < $3 AND scheduled_end_at > $2
		  AND id <> $4
		LIMIT 1`

	m, err := scanMeeting(r.pool.QueryRow(ctx, query, activatorID, start, end, excludeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to check meeting overlap: %w", err)
	}
	return m, nil
}

// Reassign moves a scheduled meeting to a new activator. The exclusion
// constraint re-checks the new activator's calendar inside the UPDATE.
func (r *Repository) Reassign(ctx context.Context, id uuid.UUID, newActivatorID uuid.UUID, at time.Time) (*Meeting, error) {
	query := `
		UPDATE activation_meetings
		SET activator_user_id = $2, updated_at = $3
		WHERE id = $1 AND status = 'scheduled'
		RETURNING ` + meetingColumns

	m, err := scanMeeting(r.pool.QueryRow(ctx, query, id, newActivatorID, at))
	if err == nil {
		return m, nil
	}
	if isOverlapViolation(err) {
		return nil, apperr.Conflict("new activator already has a meeting in this window")
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to reassign meeting: %w", err)
	}

	current, getErr := r.GetByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, apperr.Conflict("meeting is already " + string(current.Status))
}

// MarkOutcome moves a scheduled meeting to a terminal outcome status.
func (r *Repository) MarkOutcome(ctx context.Context, id uuid.UUID, outcome Status, at time.Time) (*Meeting, error) {
	query := `
		UPDATE activation_meetings
		SET status = $2, updated_at = $3
		WHERE id = $1 AND status = 'scheduled'
		RETURNING ` + meetingColumns

	m, err := scanMeeting(r.pool.QueryRow(ctx, query, id, outcome, at))
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to mark meeting outcome: %w", err)
	}

	current, getErr := r.GetByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, apperr.Conflict("meeting is already " + string(current.Status))
}

// Reschedule marks the old meeting rescheduled and inserts its successor
// in one transaction. Freeing the old slot first keeps the exclusion
// constraint satisfied when the successor reuses the same activator.
func (r *Repository) Reschedule(ctx context.Context, oldID uuid.UUID, newStart, newEnd time.Time, at time.Time) (*Meeting, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin reschedule: %w", err)
	}
	defer tx.Rollback(ctx)

	old, err := scanMeeting(tx.QueryRow(ctx, `
		UPDATE activation_meetings
		SET status = 'rescheduled', updated_at = $2
		WHERE id = $1 AND status = 'scheduled'
		RETURNING `+meetingColumns, oldID, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			current, getErr := r.GetByID(ctx, oldID)
			if getErr != nil {
				return nil, getErr
			}
			return nil, apperr.Conflict("meeting is already " + string(current.Status))
		}
		return nil, fmt.Errorf("failed to close out meeting: %w", err)
	}

	successor, err := scanMeeting(tx.QueryRow(ctx, `
		INSERT INTO activation_meetings (
			id, pipeline_id, crm_lead_id, activator_user_id, scheduled_by_sdr_id,
			scheduled_start_at, scheduled_end_at, timezone, status,
			rescheduled_from_id, attendee_name, attendee_phone, attendee_email,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'scheduled', $9, $10, $11, $12, $13, $13)
		RETURNING `+meetingColumns,
		uuid.New(), old.PipelineID, old.CRMLeadID, old.ActivatorUserID, old.ScheduledBySDRID,
		newStart, newEnd, old.Timezone, old.ID,
		old.AttendeeName, old.AttendeePhone, old.AttendeeEmail, at,
	))
	if err != nil {
		if isOverlapViolation(err) {
			return nil, apperr.Conflict("activator already has a meeting in the new window")
		}
		return nil, fmt.Errorf("failed to create successor meeting: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit reschedule: %w", err)
	}
	return successor, nil
}

// MarkReminderSent stamps the 24h reminder marker. The null guard makes
// the stamp first-writer-wins: a second dispatcher run gets false.
func (r *Repository) MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE activation_meetings
		SET reminder_24h_sent_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'scheduled' AND reminder_24h_sent_at IS NULL
	`, id, at)
	if err != nil {
		return false, fmt.Errorf("failed to mark reminder sent: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// DueForReminder returns scheduled meetings starting inside [from, to)
// that have not had their reminder sent.
func (r *Repository) DueForReminder(ctx context.Context, from, to time.Time) ([]Meeting, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+meetingColumns+`
		FROM activation_meetings
		WHERE status = 'scheduled'
		  AND reminder_24h_sent_at IS NULL
		  AND scheduled_start_at >= $1 AND scheduled_start_at < $2
		ORDER BY scheduled_start_at ASC
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminder candidates: %w", err)
	}
	defer rows.Close()

	var meetings []Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meeting: %w", err)
		}
		meetings = append(meetings, *m)
	}
	return meetings, rows.Err()
}

// ReconcileLinks attaches unlinked meetings to pipelines sharing the same
// CRM lead. Already-linked meetings are untouched, so the pass is
// idempotent and safe to re-run.
func (r *Repository) ReconcileLinks(ctx context.Context, at time.Time) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE activation_meetings m
		SET pipeline_id = p.id, updated_at = $1
		FROM trial_pipelines p
		WHERE m.pipeline_id IS NULL AND m.crm_lead_id = p.crm_lead_id
		RETURNING m.id
	`, at)
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile meeting links: %w", err)
	}
	defer rows.Close()

	var linked []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan linked meeting: %w", err)
		}
		linked = append(linked, id)
	}
	return linked, rows.Err()
}
