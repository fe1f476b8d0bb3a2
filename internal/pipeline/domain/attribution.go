package domain

import "github.com/google/uuid"

// Attribution is the sales credit snapshot carried on a pipeline.
// OwnerSDRID and FirstTouchCode freeze on first contact; LastTouchCode
// follows the most recent touch.
type Attribution struct {
	OwnerSDRID     uuid.UUID
	FirstTouchCode string
	LastTouchCode  string
}

// ResolveAttribution computes the attribution to persist for a touch by
// actingSDR. Pure function: the caller persists the result in the same
// write as the pipeline upsert.
func ResolveAttribution(existing *Attribution, actingSDRID uuid.UUID, actingCode string) Attribution {
	if existing == nil {
		return Attribution{
			OwnerSDRID:     actingSDRID,
			FirstTouchCode: actingCode,
			LastTouchCode:  actingCode,
		}
	}

	resolved := Attribution{
		OwnerSDRID:     existing.OwnerSDRID,
		FirstTouchCode: existing.FirstTouchCode,
		LastTouchCode:  actingCode,
	}
	if resolved.FirstTouchCode == "" {
		resolved.FirstTouchCode = actingCode
	}
	return resolved
}
