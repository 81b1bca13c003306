package repository

import (
	"errors"
	"testing"
)

func TestCartAddViolationOrder(t *testing.T) {
	req := func(v uint64) *uint64 { return &v }

	cases := []struct {
		name     string
		enrolled uint64
		capacity uint64
		hasForm  bool
		held     map[uint64]bool
		typeID   uint64
		reqID    *uint64
		want     error
	}{
		{
			name:     "all preconditions met",
			enrolled: 9, capacity: 10, hasForm: true,
			held: map[uint64]bool{}, typeID: 2,
			want: nil,
		},
		{
			name:     "prerequisite satisfied through held set",
			enrolled: 9, capacity: 10, hasForm: true,
			held: map[uint64]bool{1: true}, typeID: 2, reqID: req(1),
			want: nil,
		},
		{
			name:     "full course",
			enrolled: 10, capacity: 10, hasForm: true,
			held: map[uint64]bool{}, typeID: 2,
			want: ErrCourseFull,
		},
		{
			name:     "full course wins over missing form",
			enrolled: 10, capacity: 10, hasForm: false,
			held: map[uint64]bool{}, typeID: 2,
			want: ErrCourseFull,
		},
		{
			name:     "full course wins over duplicate type",
			enrolled: 10, capacity: 10, hasForm: true,
			held: map[uint64]bool{2: true}, typeID: 2,
			want: ErrCourseFull,
		},
		{
			name:     "missing form",
			enrolled: 9, capacity: 10, hasForm: false,
			held: map[uint64]bool{}, typeID: 2,
			want: ErrNoRegistrationForm,
		},
		{
			name:     "missing form wins over duplicate type",
			enrolled: 9, capacity: 10, hasForm: false,
			held: map[uint64]bool{2: true}, typeID: 2,
			want: ErrNoRegistrationForm,
		},
		{
			name:     "duplicate type",
			enrolled: 9, capacity: 10, hasForm: true,
			held: map[uint64]bool{2: true}, typeID: 2,
			want: ErrDuplicateCourseType,
		},
		{
			name:     "duplicate type wins over missing prerequisite",
			enrolled: 9, capacity: 10, hasForm: true,
			held: map[uint64]bool{2: true}, typeID: 2, reqID: req(1),
			want: ErrDuplicateCourseType,
		},
		{
			name:     "missing prerequisite",
			enrolled: 9, capacity: 10, hasForm: true,
			held: map[uint64]bool{}, typeID: 2, reqID: req(1),
			want: ErrMissingPrerequisite,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := cartAddViolation(7, uint32(tc.enrolled), uint32(tc.capacity),
				tc.hasForm, tc.held, tc.typeID, "Basic Climbing", tc.reqID)
			if tc.want == nil {
				if err != nil {
					t.Fatalf("cartAddViolation = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("cartAddViolation = %v, want %v", err, tc.want)
			}
		})
	}
}
