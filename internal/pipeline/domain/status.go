// Package domain provides core business rules for the trial pipeline
// bounded context: the status state machine, attribution resolution,
// variant assignment, and kill policies.
package domain

import "salesops_backend/platform/apperr"

// Status is the lifecycle status of a trial pipeline.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusScheduled  Status = "scheduled"
	StatusAttended   Status = "attended"
	StatusNoShow     Status = "no_show"
	StatusActivated  Status = "activated"
	StatusKilled     Status = "killed"
)

// terminalStatuses are statuses out of which no transition is legal.
var terminalStatuses = map[Status]bool{
	StatusActivated: true,
	StatusKilled:    true,
}

// transitions lists the legal non-kill transitions. A reschedule keeps
// the pipeline at scheduled, hence the self-edge.
var transitions = map[Status][]Status{
	StatusQueued:     {StatusInProgress},
	StatusInProgress: {StatusScheduled},
	StatusScheduled:  {StatusAttended, StatusNoShow, StatusScheduled},
	StatusAttended:   {StatusActivated},
	StatusNoShow:     {StatusScheduled},
}

// IsTerminal returns true for activated and killed.
func IsTerminal(s Status) bool {
	return terminalStatuses[s]
}

// CanTransition validates a status change. Kill is legal from any
// non-terminal state; nothing is legal out of a terminal state.
func CanTransition(from, to Status) error {
	if terminalStatuses[from] {
		return apperr.AlreadyTerminal("pipeline is already " + string(from))
	}
	if to == StatusKilled {
		return nil
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return nil
		}
	}
	return apperr.InvalidTransition("cannot move pipeline from " + string(from) + " to " + string(to))
}

// LegalSources returns every status from which a transition to target is
// legal. Repositories embed this set in the UPDATE's WHERE guard so the
// check is re-evaluated at write time.
func LegalSources(target Status) []Status {
	var sources []Status
	for _, from := range []Status{
		StatusQueued, StatusInProgress, StatusScheduled,
		StatusAttended, StatusNoShow,
	} {
		if CanTransition(from, target) == nil {
			sources = append(sources, from)
		}
	}
	return sources
}
