package model

import "time"

// Course is a scheduled offering of a CourseType with a hard cap on
// enrolled participants.  ParticipantCount is a snapshot loaded with the
// row; the authoritative count lives in the course_participants table
// and is re-checked under lock by every mutating operation.
//
// ExpectedCapacity is Capacity plus the number of seats the club intends
// to hold back for waitlist backfill.  Capacity itself is the enrollment
// ceiling and is raised by exactly one each time a waitlist invoice is
// paid (see the waitlist state machine).
type Course struct {
	ID               uint64       `json:"id"`
	TypeID           uint64       `json:"type_id"`
	TypeName         string       `json:"type_name,omitempty"`
	CostCents        uint32       `json:"cost_cents,omitempty"`
	Specifics        string       `json:"specifics"`
	Capacity         uint32       `json:"capacity"`
	ExpectedCapacity uint32       `json:"expected_capacity"`
	Visible          bool         `json:"visible"`
	ParticipantCount uint32       `json:"participant_count"`
	Dates            []CourseDate `json:"dates,omitempty"`
}

// CourseDate is a named date range belonging to a course, e.g. a
// lecture evening or a field trip weekend.
type CourseDate struct {
	ID       uint64    `json:"id"`
	CourseID uint64    `json:"course_id"`
	Name     string    `json:"name"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

// IsFull reports whether the enrollment ceiling has been reached.
func (c *Course) IsFull() bool {
	return c.ParticipantCount >= c.Capacity
}

// SpotsLeft returns the number of open seats, never negative.
func (c *Course) SpotsLeft() uint32 {
	if c.ParticipantCount >= c.Capacity {
		return 0
	}
	return c.Capacity - c.ParticipantCount
}

// SpotsHeldForWaitList returns the number of seats reserved for waitlist
// backfill beyond the sellable capacity.
func (c *Course) SpotsHeldForWaitList() uint32 {
	if c.ExpectedCapacity <= c.Capacity {
		return 0
	}
	return c.ExpectedCapacity - c.Capacity
}

// EarliestStart returns the start of the earliest course date and false
// when the course has no dates.
func (c *Course) EarliestStart() (time.Time, bool) {
	if len(c.Dates) == 0 {
		return time.Time{}, false
	}
	earliest := c.Dates[0].Start
	for _, d := range c.Dates[1:] {
		if d.Start.Before(earliest) {
			earliest = d.Start
		}
	}
	return earliest, true
}

// RefundEligible reports whether a purchase of this course may still be
// refunded at the given instant: now must be more than refundPeriod
// before the earliest course date.  A course without dates is never
// refund eligible.
func (c *Course) RefundEligible(now time.Time, refundPeriod time.Duration) bool {
	start, ok := c.EarliestStart()
	if !ok {
		return false
	}
	return now.Before(start.Add(-refundPeriod))
}
