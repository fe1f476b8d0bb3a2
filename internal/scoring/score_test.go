package scoring

import "testing"

func TestComputeBand(t *testing.T) {
	exp := Expectations{
		HoursWorked:       Range{Min: 32, Max: 45},
		Dials:             Range{Min: 100, Max: 250},
		MeetingsBooked:    Range{Min: 4, Max: 12},
		MeetingsAttended:  Range{Min: 3, Max: 10},
		InstallsCompleted: Range{Min: 1, Max: 5},
	}

	tests := []struct {
		name     string
		counters Counters
		want     Band
	}{
		{
			name:     "everything within range",
			counters: Counters{HoursWorked: 40, Dials: 150, MeetingsBooked: 6, MeetingsAttended: 5, InstallsCompleted: 2},
			want:     BandAt,
		},
		{
			name:     "everything below",
			counters: Counters{HoursWorked: 10, Dials: 20, MeetingsBooked: 1, MeetingsAttended: 0, InstallsCompleted: 0},
			want:     BandBelow,
		},
		{
			name:     "everything above",
			counters: Counters{HoursWorked: 50, Dials: 300, MeetingsBooked: 15, MeetingsAttended: 12, InstallsCompleted: 8},
			want:     BandAbove,
		},
		{
			name:     "one strong counter offsets one weak",
			counters: Counters{HoursWorked: 40, Dials: 20, MeetingsBooked: 6, MeetingsAttended: 5, InstallsCompleted: 8},
			want:     BandAt,
		},
		{
			name:     "range boundaries count as within",
			counters: Counters{HoursWorked: 32, Dials: 250, MeetingsBooked: 4, MeetingsAttended: 10, InstallsCompleted: 1},
			want:     BandAt,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeBand(tt.counters, exp); got != tt.want {
				t.Errorf("ComputeBand() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestComputeTrend(t *testing.T) {
	tests := []struct {
		name    string
		current Counters
		prior   Counters
		want    Trend
	}{
		{
			name:    "clear increase",
			current: Counters{Dials: 200},
			prior:   Counters{Dials: 100},
			want:    TrendUp,
		},
		{
			name:    "clear decrease",
			current: Counters{Dials: 50},
			prior:   Counters{Dials: 100},
			want:    TrendDown,
		},
		{
			name:    "within tolerance is flat",
			current: Counters{Dials: 105},
			prior:   Counters{Dials: 100},
			want:    TrendFlat,
		},
		{
			name:    "no prior activity trends up",
			current: Counters{MeetingsBooked: 2},
			prior:   Counters{},
			want:    TrendUp,
		},
		{
			name:    "no activity either period is flat",
			current: Counters{},
			prior:   Counters{},
			want:    TrendFlat,
		},
		{
			name:    "later funnel weighs heavier than dials",
			current: Counters{Dials: 80, InstallsCompleted: 3},
			prior:   Counters{Dials: 100},
			want:    TrendUp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeTrend(tt.current, tt.prior); got != tt.want {
				t.Errorf("ComputeTrend() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCountersIsZero(t *testing.T) {
	if !(Counters{}).IsZero() {
		t.Error("empty counters should be zero")
	}
	if (Counters{Dials: 1}).IsZero() {
		t.Error("counters with a dial are not zero")
	}
}
