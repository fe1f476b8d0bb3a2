package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestResolveAttributionFirstTouch(t *testing.T) {
	sdr := uuid.New()

	got := ResolveAttribution(nil, sdr, "AL-7")

	if got.OwnerSDRID != sdr {
		t.Fatalf("owner = %s, want %s", got.OwnerSDRID, sdr)
	}
	if got.FirstTouchCode != "AL-7" || got.LastTouchCode != "AL-7" {
		t.Fatalf("first/last = %s/%s, want AL-7/AL-7", got.FirstTouchCode, got.LastTouchCode)
	}
}

func TestResolveAttributionImmutability(t *testing.T) {
	owner := uuid.New()
	current := ResolveAttribution(nil, owner, "AL-7")

	// A sequence of later touches by other reps must never move owner or
	// first touch; last touch always follows the most recent caller.
	touches := []struct {
		sdr  uuid.UUID
		code string
	}{
		{uuid.New(), "BK-2"},
		{uuid.New(), "CM-9"},
		{owner, "AL-7"},
		{uuid.New(), "DZ-4"},
	}

	for _, touch := range touches {
		current = ResolveAttribution(&current, touch.sdr, touch.code)
		if current.OwnerSDRID != owner {
			t.Fatalf("owner changed to %s after touch %s", current.OwnerSDRID, touch.code)
		}
		if current.FirstTouchCode != "AL-7" {
			t.Fatalf("first touch changed to %s after touch %s", current.FirstTouchCode, touch.code)
		}
		if current.LastTouchCode != touch.code {
			t.Fatalf("last touch = %s, want %s", current.LastTouchCode, touch.code)
		}
	}
}

func TestResolveAttributionBackfillsEmptyFirstTouch(t *testing.T) {
	owner := uuid.New()
	existing := Attribution{OwnerSDRID: owner}

	got := ResolveAttribution(&existing, uuid.New(), "BK-2")

	if got.FirstTouchCode != "BK-2" {
		t.Fatalf("empty first touch should backfill, got %q", got.FirstTouchCode)
	}
	if got.OwnerSDRID != owner {
		t.Fatal("owner must never change")
	}
}
