package domain

import (
	"testing"

	"salesops_backend/platform/apperr"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name     string
		from     Status
		to       Status
		wantKind apperr.Kind
	}{
		{"queued to in_progress", StatusQueued, StatusInProgress, apperr.KindUnknown},
		{"in_progress to scheduled", StatusInProgress, StatusScheduled, apperr.KindUnknown},
		{"scheduled to attended", StatusScheduled, StatusAttended, apperr.KindUnknown},
		{"scheduled to no_show", StatusScheduled, StatusNoShow, apperr.KindUnknown},
		{"scheduled reschedule keeps scheduled", StatusScheduled, StatusScheduled, apperr.KindUnknown},
		{"attended to activated", StatusAttended, StatusActivated, apperr.KindUnknown},
		{"no_show back to scheduled", StatusNoShow, StatusScheduled, apperr.KindUnknown},
		{"kill from queued", StatusQueued, StatusKilled, apperr.KindUnknown},
		{"kill from in_progress", StatusInProgress, StatusKilled, apperr.KindUnknown},
		{"kill from scheduled", StatusScheduled, StatusKilled, apperr.KindUnknown},
		{"kill from attended", StatusAttended, StatusKilled, apperr.KindUnknown},
		{"kill from no_show", StatusNoShow, StatusKilled, apperr.KindUnknown},
		{"queued cannot skip to scheduled", StatusQueued, StatusScheduled, apperr.KindInvalidTransition},
		{"queued cannot activate", StatusQueued, StatusActivated, apperr.KindInvalidTransition},
		{"in_progress cannot activate", StatusInProgress, StatusActivated, apperr.KindInvalidTransition},
		{"no_show cannot activate", StatusNoShow, StatusActivated, apperr.KindInvalidTransition},
		{"killed is terminal", StatusKilled, StatusScheduled, apperr.KindAlreadyTerminal},
		{"killed cannot be re-killed", StatusKilled, StatusKilled, apperr.KindAlreadyTerminal},
		{"activated is terminal", StatusActivated, StatusKilled, apperr.KindAlreadyTerminal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CanTransition(tt.from, tt.to)
			if tt.wantKind == apperr.KindUnknown {
				if err != nil {
					t.Fatalf("expected legal transition, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected %v error, got nil", tt.wantKind)
			}
			if got := apperr.GetKind(err); got != tt.wantKind {
				t.Fatalf("expected kind %v, got %v", tt.wantKind, got)
			}
		})
	}
}

func TestLegalSources(t *testing.T) {
	sources := LegalSources(StatusKilled)
	if len(sources) != 5 {
		t.Fatalf("expected kill to be legal from 5 statuses, got %d: %v", len(sources), sources)
	}
	for _, s := range sources {
		if IsTerminal(s) {
			t.Fatalf("terminal status %s must not be a legal kill source", s)
		}
	}

	scheduled := LegalSources(StatusScheduled)
	want := map[Status]bool{StatusInProgress: true, StatusScheduled: true, StatusNoShow: true}
	if len(scheduled) != len(want) {
		t.Fatalf("unexpected sources for scheduled: %v", scheduled)
	}
	for _, s := range scheduled {
		if !want[s] {
			t.Fatalf("unexpected source %s for scheduled", s)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	if !IsTerminal(StatusKilled) || !IsTerminal(StatusActivated) {
		t.Fatal("killed and activated must be terminal")
	}
	for _, s := range []Status{StatusQueued, StatusInProgress, StatusScheduled, StatusAttended, StatusNoShow} {
		if IsTerminal(s) {
			t.Fatalf("%s must not be terminal", s)
		}
	}
}
