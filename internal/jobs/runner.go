package jobs

import (
	"context"
	"time"
)

// Lock TTLs are generous upper bounds on each job's runtime.
const (
	autoKillLockTTL  = 5 * time.Minute
	reminderLockTTL  = 5 * time.Minute
	scoringLockTTL   = 15 * time.Minute
	reconcileLockTTL = 5 * time.Minute
)

// Runner bundles the batch jobs behind the shared run lock. Both the cron
// HTTP endpoints and the asynq worker execute jobs through it.
type Runner struct {
	autoKill  *AutoKillJob
	reminders *ReminderJob
	scoring   *ScoringJob
	reconcile *ReconcileJob
	lock      *RunLock
}

// NewRunner creates the job runner.
func NewRunner(autoKill *AutoKillJob, reminders *ReminderJob, scoring *ScoringJob, reconcile *ReconcileJob, lock *RunLock) *Runner {
	return &Runner{
		autoKill:  autoKill,
		reminders: reminders,
		scoring:   scoring,
		reconcile: reconcile,
		lock:      lock,
	}
}

// RunAutoKill executes the auto-kill engine; skipped=true means another
// runner holds the lock.
func (r *Runner) RunAutoKill(ctx context.Context) (AutoKillSummary, bool) {
	release, ok := r.lock.Acquire(ctx, "auto_kill", autoKillLockTTL)
	if !ok {
		return AutoKillSummary{}, true
	}
	defer release()
	return r.autoKill.Run(ctx), false
}

// RunReminders executes the reminder dispatcher.
func (r *Runner) RunReminders(ctx context.Context) (ReminderSummary, bool) {
	release, ok := r.lock.Acquire(ctx, "reminders", reminderLockTTL)
	if !ok {
		return ReminderSummary{}, true
	}
	defer release()
	return r.reminders.Run(ctx), false
}

// RunWeeklyScoring executes the weekly scoring aggregation.
func (r *Runner) RunWeeklyScoring(ctx context.Context) (ScoringSummary, bool) {
	release, ok := r.lock.Acquire(ctx, "weekly_scoring", scoringLockTTL)
	if !ok {
		return ScoringSummary{}, true
	}
	defer release()
	return r.scoring.Run(ctx), false
}

// RunReconcile executes the meeting-link reconciliation pass.
func (r *Runner) RunReconcile(ctx context.Context) (ReconcileSummary, bool) {
	release, ok := r.lock.Acquire(ctx, "reconcile", reconcileLockTTL)
	if !ok {
		return ReconcileSummary{}, true
	}
	defer release()
	return r.reconcile.Run(ctx), false
}
