package jobs

import (
	"context"

	"github.com/hibiken/asynq"
)

// Asynq task types for the periodic jobs.
const (
	TaskAutoKill      = "jobs:auto_kill"
	TaskReminders     = "jobs:reminders"
	TaskWeeklyScoring = "jobs:weekly_scoring"
	TaskReconcile     = "jobs:reconcile"
)

// PeriodicEntry pairs a cron spec with a task type for the scheduler.
type PeriodicEntry struct {
	Spec string
	Type string
}

// PeriodicEntries returns the default schedule for the batch jobs.
func PeriodicEntries() []PeriodicEntry {
	return []PeriodicEntry{
		{Spec: "0 * * * *", Type: TaskAutoKill},
		{Spec: "*/10 * * * *", Type: TaskReminders},
		{Spec: "0 3 * * 1", Type: TaskWeeklyScoring},
		{Spec: "*/15 * * * *", Type: TaskReconcile},
	}
}

// NewMux builds the asynq handler mux over the runner. Job failures live
// in the run summaries; a handler error is returned only when the task
// type is unknown, so asynq never retries a completed batch.
func NewMux(runner *Runner) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskAutoKill, func(ctx context.Context, _ *asynq.Task) error {
		runner.RunAutoKill(ctx)
		return nil
	})
	mux.HandleFunc(TaskReminders, func(ctx context.Context, _ *asynq.Task) error {
		runner.RunReminders(ctx)
		return nil
	})
	mux.HandleFunc(TaskWeeklyScoring, func(ctx context.Context, _ *asynq.Task) error {
		runner.RunWeeklyScoring(ctx)
		return nil
	})
	mux.HandleFunc(TaskReconcile, func(ctx context.Context, _ *asynq.Task) error {
		runner.RunReconcile(ctx)
		return nil
	})
	return mux
}
