package model

import (
	"testing"
	"time"
)

func TestCourseSpots(t *testing.T) {
	c := Course{Capacity: 10, ExpectedCapacity: 12, ParticipantCount: 8}
	if c.IsFull() {
		t.Fatal("course with open seats reported full")
	}
	if got := c.SpotsLeft(); got != 2 {
		t.Fatalf("SpotsLeft = %d, want 2", got)
	}
	if got := c.SpotsHeldForWaitList(); got != 2 {
		t.Fatalf("SpotsHeldForWaitList = %d, want 2", got)
	}

	c.ParticipantCount = 10
	if !c.IsFull() {
		t.Fatal("course at capacity not reported full")
	}
	if got := c.SpotsLeft(); got != 0 {
		t.Fatalf("SpotsLeft at capacity = %d, want 0", got)
	}

	// Count above capacity can appear transiently after a capacity cut.
	c.ParticipantCount = 11
	if got := c.SpotsLeft(); got != 0 {
		t.Fatalf("SpotsLeft above capacity = %d, want 0", got)
	}
}

func TestCourseEarliestStart(t *testing.T) {
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	c := Course{Dates: []CourseDate{
		{Name: "Field trip", Start: base.Add(72 * time.Hour), End: base.Add(96 * time.Hour)},
		{Name: "Lecture", Start: base, End: base.Add(2 * time.Hour)},
	}}
	start, ok := c.EarliestStart()
	if !ok || !start.Equal(base) {
		t.Fatalf("EarliestStart = %v, %v; want %v, true", start, ok, base)
	}

	empty := Course{}
	if _, ok := empty.EarliestStart(); ok {
		t.Fatal("course without dates reported a start")
	}
}

func TestCourseRefundEligible(t *testing.T) {
	start := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	period := 7 * 24 * time.Hour
	c := Course{Dates: []CourseDate{{Start: start, End: start.Add(8 * time.Hour)}}}

	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"well before the window", start.Add(-30 * 24 * time.Hour), true},
		{"one second before the window", start.Add(-period).Add(-time.Second), true},
		{"exactly at the boundary", start.Add(-period), false},
		{"inside the window", start.Add(-24 * time.Hour), false},
		{"after the course started", start.Add(time.Hour), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := c.RefundEligible(tc.now, period); got != tc.want {
				t.Fatalf("RefundEligible(%v) = %v, want %v", tc.now, got, tc.want)
			}
		})
	}

	noDates := Course{}
	if noDates.RefundEligible(start.Add(-365*24*time.Hour), period) {
		t.Fatal("course without dates must never be refund eligible")
	}
}
