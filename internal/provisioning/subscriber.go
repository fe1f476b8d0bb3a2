package provisioning

import (
	"context"

	"salesops_backend/internal/events"
	"salesops_backend/platform/logger"
)

// RegisterWorkflowSync subscribes the workflow mirror to the pipeline
// events. Sync failures are logged, never propagated: the local write is
// already committed by the time these handlers run.
func RegisterWorkflowSync(bus events.Bus, sync *WorkflowSync, log *logger.Logger) {
	bus.Subscribe(events.TrialStarted{}.EventName(), events.HandlerFunc(func(ctx context.Context, e events.Event) error {
		started, ok := e.(events.TrialStarted)
		if !ok || started.ExternalAccountID == "" {
			return nil
		}
		if result := sync.SyncStatus(ctx, started.ExternalAccountID, "queued", ""); !result.Success {
			log.Warn("trial start sync failed", "account", started.ExternalAccountID, "error", result.Error)
		}
		return nil
	}))

	bus.Subscribe(events.PipelineStatusChanged{}.EventName(), events.HandlerFunc(func(ctx context.Context, e events.Event) error {
		changed, ok := e.(events.PipelineStatusChanged)
		if !ok || changed.ExternalAccountID == "" {
			return nil
		}
		result := sync.SyncStatus(ctx, changed.ExternalAccountID, changed.NewStatus, changed.KillReason)
		if !result.Success {
			log.Warn("status sync failed",
				"account", changed.ExternalAccountID,
				"status", changed.NewStatus,
				"error", result.Error,
			)
		}
		return nil
	}))
}
