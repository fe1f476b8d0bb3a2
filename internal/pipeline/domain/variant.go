package domain

import "math/rand"

// Variant is the follow-up experiment bucket, assigned once at trial
// creation and never recomputed.
type Variant string

const (
	VariantA Variant = "A"
	VariantB Variant = "B"
)

// BadgeAwaitingActivation tags pipelines carrying an open follow-up task.
const BadgeAwaitingActivation = "trial_awaiting_activation"

// AssignVariant draws a uniform A/B bucket. Only variant B gets an
// automatic follow-up task; no other behavior differs between buckets.
func AssignVariant(r *rand.Rand) Variant {
	if r.Intn(2) == 0 {
		return VariantA
	}
	return VariantB
}
