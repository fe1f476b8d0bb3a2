package jobs

import (
	"context"
	"fmt"
	"time"

	"salesops_backend/internal/scoring"
	"salesops_backend/platform/clock"
	"salesops_backend/platform/logger"

	"github.com/google/uuid"
)

// ScoringStore is the slice of the scoring repository the job needs.
type ScoringStore interface {
	CollectCounters(ctx context.Context, from, to time.Time) ([]scoring.UserCounters, error)
	UpsertScore(ctx context.Context, row scoring.ScoreRow, at time.Time) error
}

// ScoringSummary reports one weekly scoring run.
type ScoringSummary struct {
	PeriodStart string   `json:"periodStart"`
	Scored      int      `json:"scored"`
	Skipped     int      `json:"skipped"`
	Errors      []string `json:"errors,omitempty"`
}

// ScoringJob computes and persists the weekly activity scores.
type ScoringJob struct {
	store ScoringStore
	exp   scoring.Expectations
	clk   clock.Clock
	log   *logger.Logger
}

// NewScoringJob creates the weekly scoring job.
func NewScoringJob(store ScoringStore, exp scoring.Expectations, clk clock.Clock, log *logger.Logger) *ScoringJob {
	return &ScoringJob{store: store, exp: exp, clk: clk, log: log}
}

// weekStart truncates t to the Monday 00:00 UTC of its ISO week.
func weekStart(t time.Time) time.Time {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -offset)
}

// Run scores the last completed week against the week before it. Rows
// are upserted on (user, period), so a re-run corrects instead of
// duplicating; zero-activity users get no row at all.
func (j *ScoringJob) Run(ctx context.Context) ScoringSummary {
	now := j.clk.Now()
	periodEnd := weekStart(now)
	periodStart := periodEnd.AddDate(0, 0, -7)
	priorStart := periodStart.AddDate(0, 0, -7)

	summary := ScoringSummary{PeriodStart: periodStart.Format("2006-01-02")}

	current, err := j.store.CollectCounters(ctx, periodStart, periodEnd)
	if err != nil {
		summary.Errors = append(summary.Errors, err.Error())
		return summary
	}
	prior, err := j.store.CollectCounters(ctx, priorStart, periodStart)
	if err != nil {
		summary.Errors = append(summary.Errors, err.Error())
		return summary
	}

	priorByUser := make(map[uuid.UUID]scoring.Counters, len(prior))
	for _, uc := range prior {
		priorByUser[uc.UserID] = uc.Counters
	}

	for _, uc := range current {
		if uc.Counters.IsZero() {
			summary.Skipped++
			continue
		}
		priorCounters := priorByUser[uc.UserID]
		row := scoring.ScoreRow{
			UserID:      uc.UserID,
			PeriodStart: periodStart,
			Current:     uc.Counters,
			Prior:       priorCounters,
			Band:        scoring.ComputeBand(uc.Counters, j.exp),
			Trend:       scoring.ComputeTrend(uc.Counters, priorCounters),
		}
		if err := j.store.UpsertScore(ctx, row, now); err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", uc.UserID, err))
			j.log.BatchItemError("weekly_scoring", uc.UserID.String(), err)
			continue
		}
		summary.Scored++
	}

	j.log.Info("weekly scoring finished",
		"period_start", summary.PeriodStart,
		"scored", summary.Scored,
		"skipped", summary.Skipped,
		"errors", len(summary.Errors),
	)
	return summary
}
