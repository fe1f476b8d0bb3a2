package domain

// KillReason records why a pipeline was terminated.
type KillReason string

const (
	KillStalledInstall       KillReason = "stalled_install"
	KillRepeatedNoShow       KillReason = "repeated_no_show"
	KillExcessiveReschedules KillReason = "excessive_reschedules"
	KillManual               KillReason = "manual"
)

// Auto-kill thresholds.
const (
	MaxNoShows       = 2
	MaxReschedules   = 3
	StalledAfterDays = 14
)

// KillExcludedStatuses is the exclusion set shared by the no-show and
// reschedule kill rules: a pipeline in one of these statuses never
// matches, re-checked at write time.
var KillExcludedStatuses = []Status{StatusKilled, StatusActivated}
