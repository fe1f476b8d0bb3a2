package repository

import (
	"context"
	"fmt"
	"time"

	"salesops_backend/internal/pipeline/domain"

	"github.com/google/uuid"
)

// KilledPipeline identifies one pipeline a kill rule terminated.
type KilledPipeline struct {
	ID                uuid.UUID
	ExternalAccountID *string
}

// The three kill rules below share one shape: a single guarded UPDATE
// whose WHERE clause re-checks eligibility (including "not already
// terminal") at write time and RETURNING reports exactly the rows this
// run killed. Re-running a rule therefore finds zero candidates.

func (r *Repository) killWhere(ctx context.Context, reason domain.KillReason, at time.Time, condition string, args ...any) ([]KilledPipeline, error) {
	query := fmt.Sprintf(`
		UPDATE trial_pipelines
		SET status = 'killed', kill_reason = $1, killed_at = $2,
		    next_follow_up_at = NULL, badge_key = NULL, updated_at = $2
		WHERE status NOT IN ('killed', 'activated') AND %s
		RETURNING id, external_account_id`, condition)

	rows, err := r.pool.Query(ctx, query, append([]any{reason, at}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("kill rule %s: %w", reason, err)
	}
	defer rows.Close()

	var killed []KilledPipeline
	for rows.Next() {
		var k KilledPipeline
		if err := rows.Scan(&k.ID, &k.ExternalAccountID); err != nil {
			return nil, fmt.Errorf("kill rule %s scan: %w", reason, err)
		}
		killed = append(killed, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("kill rule %s rows: %w", reason, err)
	}
	return killed, nil
}

// KillStalledInstalls kills pipelines whose follow-up task went
// unanswered past the cutoff.
func (r *Repository) KillStalledInstalls(ctx context.Context, cutoff, at time.Time) ([]KilledPipeline, error) {
	return r.killWhere(ctx, domain.KillStalledInstall, at,
		`badge_key = $3 AND next_follow_up_at IS NOT NULL AND next_follow_up_at <= $4`,
		domain.BadgeAwaitingActivation, cutoff,
	)
}

// KillRepeatedNoShows kills pipelines at or past the no-show threshold.
func (r *Repository) KillRepeatedNoShows(ctx context.Context, at time.Time) ([]KilledPipeline, error) {
	return r.killWhere(ctx, domain.KillRepeatedNoShow, at,
		`no_show_count >= $3`, domain.MaxNoShows,
	)
}

// KillExcessiveReschedules kills pipelines at or past the reschedule threshold.
func (r *Repository) KillExcessiveReschedules(ctx context.Context, at time.Time) ([]KilledPipeline, error) {
	return r.killWhere(ctx, domain.KillExcessiveReschedules, at,
		`reschedule_count >= $3`, domain.MaxReschedules,
	)
}
