// Package jobs hosts the periodic batch work: auto-kill, meeting
// reminders, weekly scoring, and the meeting-link reconciliation pass.
// Every job tolerates overlapping runs: the guarded writes in the
// repositories are the correctness mechanism, the redis run lock is only
// an optimization.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"salesops_backend/internal/events"
	"salesops_backend/internal/pipeline/domain"
	"salesops_backend/internal/pipeline/repository"
	"salesops_backend/platform/clock"
	"salesops_backend/platform/logger"

	"golang.org/x/sync/errgroup"
)

// AutoKillStore is the slice of the pipeline repository the auto-kill
// engine needs.
type AutoKillStore interface {
	KillStalledInstalls(ctx context.Context, cutoff, at time.Time) ([]repository.KilledPipeline, error)
	KillRepeatedNoShows(ctx context.Context, at time.Time) ([]repository.KilledPipeline, error)
	KillExcessiveReschedules(ctx context.Context, at time.Time) ([]repository.KilledPipeline, error)
	AppendEvent(ctx context.Context, params repository.AppendEventParams) (repository.ActivationEvent, error)
}

// AutoKillSummary reports one engine run. Errors are non-fatal: a failed
// rule never blocks the other rules.
type AutoKillSummary struct {
	Stalled    int      `json:"stalled"`
	NoShow     int      `json:"noShow"`
	Reschedule int      `json:"reschedule"`
	Errors     []string `json:"errors,omitempty"`
}

// AutoKillJob runs the three kill rules.
type AutoKillJob struct {
	store AutoKillStore
	bus   events.Bus
	clk   clock.Clock
	log   *logger.Logger
}

// NewAutoKillJob creates the auto-kill engine.
func NewAutoKillJob(store AutoKillStore, bus events.Bus, clk clock.Clock, log *logger.Logger) *AutoKillJob {
	return &AutoKillJob{store: store, bus: bus, clk: clk, log: log}
}

// Run executes the three rules concurrently. Each rule's UPDATE re-checks
// "not already terminal" at write time, so the rules are order-independent
// and a pipeline killed by one rule (or a concurrent manual kill) never
// re-matches another.
func (j *AutoKillJob) Run(ctx context.Context) AutoKillSummary {
	now := j.clk.Now()
	cutoff := now.AddDate(0, 0, -domain.StalledAfterDays)

	var (
		mu      sync.Mutex
		summary AutoKillSummary
	)

	rules := []struct {
		reason domain.KillReason
		run    func(context.Context) ([]repository.KilledPipeline, error)
		count  *int
	}{
		{domain.KillStalledInstall, func(ctx context.Context) ([]repository.KilledPipeline, error) {
			return j.store.KillStalledInstalls(ctx, cutoff, now)
		}, &summary.Stalled},
		{domain.KillRepeatedNoShow, func(ctx context.Context) ([]repository.KilledPipeline, error) {
			return j.store.KillRepeatedNoShows(ctx, now)
		}, &summary.NoShow},
		{domain.KillExcessiveReschedules, func(ctx context.Context) ([]repository.KilledPipeline, error) {
			return j.store.KillExcessiveReschedules(ctx, now)
		}, &summary.Reschedule},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, rule := range rules {
		rule := rule
		g.Go(func() error {
			killed, err := rule.run(gctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", rule.reason, err))
				j.log.BatchItemError("auto_kill", string(rule.reason), err)
				return nil
			}
			*rule.count = len(killed)
			for _, k := range killed {
				j.recordKill(gctx, k, rule.reason, now)
			}
			return nil
		})
	}
	// Rule errors are collected, never returned.
	_ = g.Wait()

	j.log.Info("auto-kill run finished",
		"stalled", summary.Stalled,
		"no_show", summary.NoShow,
		"reschedule", summary.Reschedule,
		"errors", len(summary.Errors),
	)
	return summary
}

func (j *AutoKillJob) recordKill(ctx context.Context, k repository.KilledPipeline, reason domain.KillReason, now time.Time) {
	_, err := j.store.AppendEvent(ctx, repository.AppendEventParams{
		PipelineID: k.ID,
		EventType:  "auto_killed",
		Metadata: map[string]any{
			"reason":       string(reason),
			"triggered_by": "auto_kill",
		},
		OccurredAt: now,
	})
	if err != nil {
		j.log.Warn("auto-kill audit event failed", "pipeline_id", k.ID, "error", err)
	}

	event := events.PipelineStatusChanged{
		BaseEvent:  events.NewBaseEvent(),
		PipelineID: k.ID,
		NewStatus:  string(domain.StatusKilled),
		KillReason: string(reason),
	}
	if k.ExternalAccountID != nil {
		event.ExternalAccountID = *k.ExternalAccountID
	}
	j.bus.Publish(ctx, event)
}
