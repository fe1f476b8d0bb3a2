package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserCounters pairs a user with their raw activity for one period.
type UserCounters struct {
	UserID   uuid.UUID
	Counters Counters
}

// ScoreRow is one persisted weekly score.
type ScoreRow struct {
	UserID      uuid.UUID
	PeriodStart time.Time
	Current     Counters
	Prior       Counters
	Band        Band
	Trend       Trend
}

// Repository provides database operations for weekly scoring.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a scoring repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CollectCounters aggregates per-user activity inside [from, to). Hours
// worked are approximated as distinct active hours across the user's
// audit events; dials are call-channel contact attempts.
func (r *Repository) CollectCounters(ctx context.Context, from, to time.Time) ([]UserCounters, error) {
	query := `
		WITH activity AS (
			SELECT actor_user_id AS user_id,
			       COUNT(DISTINCT date_trunc('hour', occurred_at)) AS hours_worked,
			       COUNT(*) FILTER (
			           WHERE event_type = 'contact_attempt' AND metadata->>'channel' = 'call'
			       ) AS dials
			FROM activation_events
			WHERE actor_user_id IS NOT NULL AND occurred_at >= $1 AND occurred_at < $2
			GROUP BY actor_user_id
		), booked AS (
			SELECT scheduled_by_sdr_id AS user_id, COUNT(*) AS meetings_booked
			FROM activation_meetings
			WHERE created_at >= $1 AND created_at < $2
			GROUP BY scheduled_by_sdr_id
		), attended AS (
			SELECT activator_user_id AS user_id, COUNT(*) AS meetings_attended
			FROM activation_meetings
			WHERE status = 'completed' AND updated_at >= $1 AND updated_at < $2
			GROUP BY activator_user_id
		), installs AS (
			SELECT activator_user_id AS user_id, COUNT(*) AS installs_completed
			FROM trial_pipelines
			WHERE activator_user_id IS NOT NULL AND status = 'activated'
			  AND converted_at >= $1 AND converted_at < $2
			GROUP BY activator_user_id
		)
		SELECT user_id,
		       COALESCE(a.hours_worked, 0),
		       COALESCE(a.dials, 0),
		       COALESCE(b.meetings_booked, 0),
		       COALESCE(t.meetings_attended, 0),
		       COALESCE(i.installs_completed, 0)
		FROM activity a
		FULL OUTER JOIN booked b USING (user_id)
		FULL OUTER JOIN attended t USING (user_id)
		FULL OUTER JOIN installs i USING (user_id)`

	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to collect activity counters: %w", err)
	}
	defer rows.Close()

	var results []UserCounters
	for rows.Next() {
		var uc UserCounters
		if err := rows.Scan(
			&uc.UserID, &uc.Counters.HoursWorked, &uc.Counters.Dials,
			&uc.Counters.MeetingsBooked, &uc.Counters.MeetingsAttended,
			&uc.Counters.InstallsCompleted,
		); err != nil {
			return nil, fmt.Errorf("failed to scan counters: %w", err)
		}
		results = append(results, uc)
	}
	return results, rows.Err()
}

// UpsertScore writes one score row, replacing a prior run's row for the
// same user and period so re-runs correct rather than duplicate.
func (r *Repository) UpsertScore(ctx context.Context, row ScoreRow, at time.Time) error {
	query := `
		INSERT INTO weekly_scores (
			id, user_id, period_start,
			hours_worked, dials, meetings_booked, meetings_attended, installs_completed,
			prior_hours_worked, prior_dials, prior_meetings_booked,
			prior_meetings_attended, prior_installs_completed,
			score_band, trend, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $16)
		ON CONFLICT (user_id, period_start) DO UPDATE SET
			hours_worked = EXCLUDED.hours_worked,
			dials = EXCLUDED.dials,
			meetings_booked = EXCLUDED.meetings_booked,
			meetings_attended = EXCLUDED.meetings_attended,
			installs_completed = EXCLUDED.installs_completed,
			prior_hours_worked = EXCLUDED.prior_hours_worked,
			prior_dials = EXCLUDED.prior_dials,
			prior_meetings_booked = EXCLUDED.prior_meetings_booked,
			prior_meetings_attended = EXCLUDED.prior_meetings_attended,
			prior_installs_completed = EXCLUDED.prior_installs_completed,
			score_band = EXCLUDED.score_band,
			trend = EXCLUDED.trend,
			updated_at = EXCLUDED.updated_at`

	_, err := r.pool.Exec(ctx, query,
		uuid.New(), row.UserID, row.PeriodStart,
		row.Current.HoursWorked, row.Current.Dials, row.Current.MeetingsBooked,
		row.Current.MeetingsAttended, row.Current.InstallsCompleted,
		row.Prior.HoursWorked, row.Prior.Dials, row.Prior.MeetingsBooked,
		row.Prior.MeetingsAttended, row.Prior.InstallsCompleted,
		row.Band, row.Trend, at,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert weekly score: %w", err)
	}
	return nil
}
