package jobs

import (
	"context"

	"salesops_backend/platform/logger"

	"github.com/google/uuid"
)

// MeetingLinker is the slice of the meetings service the reconciliation
// pass needs.
type MeetingLinker interface {
	ReconcileLinks(ctx context.Context) ([]uuid.UUID, error)
}

// ReconcileSummary reports one reconciliation run.
type ReconcileSummary struct {
	Linked int      `json:"linked"`
	Errors []string `json:"errors,omitempty"`
}

// ReconcileJob links meetings booked before their trial existed to the
// pipeline sharing the CRM lead. It is the compensating action for the
// cross-entity writes happening outside one transaction.
type ReconcileJob struct {
	meetings MeetingLinker
	log      *logger.Logger
}

// NewReconcileJob creates the reconciliation job.
func NewReconcileJob(meetings MeetingLinker, log *logger.Logger) *ReconcileJob {
	return &ReconcileJob{meetings: meetings, log: log}
}

// Run performs one linking pass. Already-linked meetings are never touched.
func (j *ReconcileJob) Run(ctx context.Context) ReconcileSummary {
	linked, err := j.meetings.ReconcileLinks(ctx)
	if err != nil {
		return ReconcileSummary{Errors: []string{err.Error()}}
	}
	if len(linked) > 0 {
		j.log.Info("meeting links reconciled", "linked", len(linked))
	}
	return ReconcileSummary{Linked: len(linked)}
}
