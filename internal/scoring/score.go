package scoring

// Band is the categorical performance rating against expectations.
type Band string

const (
	BandBelow Band = "below"
	BandAt    Band = "at"
	BandAbove Band = "above"
)

// Trend is the week-over-week direction of activity.
type Trend string

const (
	TrendUp   Trend = "up"
	TrendFlat Trend = "flat"
	TrendDown Trend = "down"
)

// trendTolerance is the relative change treated as flat.
const trendTolerance = 0.10

// Counters are the raw activity numbers for one user in one period.
type Counters struct {
	HoursWorked       float64
	Dials             int
	MeetingsBooked    int
	MeetingsAttended  int
	InstallsCompleted int
}

// IsZero reports whether the user had no activity at all. Zero-activity
// users are skipped: no score row is written for them.
func (c Counters) IsZero() bool {
	return c.HoursWorked == 0 && c.Dials == 0 && c.MeetingsBooked == 0 &&
		c.MeetingsAttended == 0 && c.InstallsCompleted == 0
}

// weight collapses the counters into a single comparable activity number.
// Later-funnel actions count heavier than dials.
func (c Counters) weight() float64 {
	return c.HoursWorked +
		float64(c.Dials) +
		5*float64(c.MeetingsBooked) +
		10*float64(c.MeetingsAttended) +
		20*float64(c.InstallsCompleted)
}

// compare positions a value against its expected range: -1 below, 0
// within, +1 above.
func compare(value float64, expected Range) int {
	switch {
	case value < expected.Min:
		return -1
	case value > expected.Max:
		return 1
	default:
		return 0
	}
}

// ComputeBand rates the counters against the expected ranges. The band is
// the sign of the summed per-counter positions, so one strong counter can
// offset one weak counter.
func ComputeBand(c Counters, exp Expectations) Band {
	total := compare(c.HoursWorked, exp.HoursWorked) +
		compare(float64(c.Dials), exp.Dials) +
		compare(float64(c.MeetingsBooked), exp.MeetingsBooked) +
		compare(float64(c.MeetingsAttended), exp.MeetingsAttended) +
		compare(float64(c.InstallsCompleted), exp.InstallsCompleted)

	switch {
	case total < 0:
		return BandBelow
	case total > 0:
		return BandAbove
	default:
		return BandAt
	}
}

// ComputeTrend compares weighted activity between the current and prior
// period. Changes within the tolerance are flat; a user with no prior
// activity trends up.
func ComputeTrend(current, prior Counters) Trend {
	cw, pw := current.weight(), prior.weight()
	if pw == 0 {
		if cw == 0 {
			return TrendFlat
		}
		return TrendUp
	}
	switch {
	case cw > pw*(1+trendTolerance):
		return TrendUp
	case cw < pw*(1-trendTolerance):
		return TrendDown
	default:
		return TrendFlat
	}
}
