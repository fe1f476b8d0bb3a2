package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ActivationEvent is one append-only audit row. There are no update or
// delete operations on this table.
type ActivationEvent struct {
	ID          uuid.UUID
	PipelineID  uuid.UUID
	EventType   string
	ActorUserID *uuid.UUID
	Metadata    map[string]any
	OccurredAt  time.Time
}

// AppendEventParams carries the fields for one audit append.
type AppendEventParams struct {
	PipelineID  uuid.UUID
	EventType   string
	ActorUserID *uuid.UUID // nil = system-initiated
	Metadata    map[string]any
	OccurredAt  time.Time
}

// AppendEvent writes one audit row.
func (r *Repository) AppendEvent(ctx context.Context, params AppendEventParams) (ActivationEvent, error) {
	metadataJSON, err := json.Marshal(params.Metadata)
	if err != nil {
		return ActivationEvent{}, err
	}

	event := ActivationEvent{
		PipelineID:  params.PipelineID,
		EventType:   params.EventType,
		ActorUserID: params.ActorUserID,
		Metadata:    params.Metadata,
		OccurredAt:  params.OccurredAt,
	}

	// metadata is excluded from RETURNING: we already hold params.Metadata
	// as a Go value and re-scanning the stored JSONB would be redundant.
	err = r.pool.QueryRow(ctx, `
		INSERT INTO activation_events (pipeline_id, event_type, actor_user_id, metadata, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, params.PipelineID, params.EventType, params.ActorUserID, metadataJSON, params.OccurredAt).Scan(&event.ID)
	if err != nil {
		return ActivationEvent{}, fmt.Errorf("failed to append activation event: %w", err)
	}

	return event, nil
}

// ListEvents returns a pipeline's audit trail, oldest first.
func (r *Repository) ListEvents(ctx context.Context, pipelineID uuid.UUID) ([]ActivationEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, pipeline_id, event_type, actor_user_id, metadata, occurred_at
		FROM activation_events
		WHERE pipeline_id = $1
		ORDER BY occurred_at ASC
	`, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("failed to list activation events: %w", err)
	}
	defer rows.Close()

	var events []ActivationEvent
	for rows.Next() {
		var event ActivationEvent
		var metadataJSON []byte
		if err := rows.Scan(&event.ID, &event.PipelineID, &event.EventType, &event.ActorUserID, &metadataJSON, &event.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan activation event: %w", err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &event.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode event metadata: %w", err)
			}
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
