// Package scoring computes weekly activity scores: raw counters per user,
// a band against configured expectations, and a week-over-week trend.
package scoring

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Range is the expected [Min, Max] band for one counter.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Expectations holds the configured expected ranges per counter.
type Expectations struct {
	HoursWorked       Range `yaml:"hours_worked"`
	Dials             Range `yaml:"dials"`
	MeetingsBooked    Range `yaml:"meetings_booked"`
	MeetingsAttended  Range `yaml:"meetings_attended"`
	InstallsCompleted Range `yaml:"installs_completed"`
}

// DefaultExpectations is used when no expectations file is configured.
func DefaultExpectations() Expectations {
	return Expectations{
		HoursWorked:       Range{Min: 32, Max: 45},
		Dials:             Range{Min: 100, Max: 250},
		MeetingsBooked:    Range{Min: 4, Max: 12},
		MeetingsAttended:  Range{Min: 3, Max: 10},
		InstallsCompleted: Range{Min: 1, Max: 5},
	}
}

// LoadExpectations reads the expected ranges from a YAML file. A missing
// path falls back to the defaults.
func LoadExpectations(path string) (Expectations, error) {
	if path == "" {
		return DefaultExpectations(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultExpectations(), nil
		}
		return Expectations{}, fmt.Errorf("failed to read scoring expectations: %w", err)
	}

	exp := DefaultExpectations()
	if err := yaml.Unmarshal(data, &exp); err != nil {
		return Expectations{}, fmt.Errorf("failed to parse scoring expectations: %w", err)
	}
	return exp, nil
}
