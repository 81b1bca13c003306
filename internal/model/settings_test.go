package model

import (
	"testing"
	"time"
)

func TestRegistrationOpenFor(t *testing.T) {
	early := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	open := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	closed := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	s := RegistrationSettings{
		EarlyRegistrationOpen: early,
		RegistrationOpen:      open,
		RegistrationClose:     closed,
	}

	cases := []struct {
		name          string
		now           time.Time
		earlyEligible bool
		want          bool
	}{
		{"before everything", early.Add(-time.Hour), false, false},
		{"before everything, early eligible", early.Add(-time.Hour), true, false},
		{"early window, not eligible", early.Add(time.Hour), false, false},
		{"early window, eligible", early.Add(time.Hour), true, true},
		{"general window", open.Add(time.Hour), false, true},
		{"general window, early eligible", open.Add(time.Hour), true, true},
		{"at close", closed, false, false},
		{"after close, early eligible", closed.Add(time.Hour), true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := s.RegistrationOpenFor(tc.now, tc.earlyEligible); got != tc.want {
				t.Fatalf("RegistrationOpenFor(%v, %v) = %v, want %v", tc.now, tc.earlyEligible, got, tc.want)
			}
		})
	}
}
