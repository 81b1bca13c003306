package model

import "testing"

func ptr(v uint64) *uint64 { return &v }

func TestAnnotateEligibility(t *testing.T) {
	// Basic -> Intermediate -> Advanced chain plus a standalone type.
	types := []CourseType{
		{ID: 1, Name: "Basic Mountaineering"},
		{ID: 2, Name: "Intermediate Mountaineering", RequirementID: ptr(1)},
		{ID: 3, Name: "Advanced Mountaineering", RequirementID: ptr(2)},
		{ID: 4, Name: "Nordic Skiing"},
	}

	cases := []struct {
		name string
		held map[uint64]bool
		want map[uint64]bool
	}{
		{
			name: "nothing held",
			held: map[uint64]bool{},
			want: map[uint64]bool{1: true, 2: false, 3: false, 4: true},
		},
		{
			name: "basic held unlocks intermediate only",
			held: map[uint64]bool{1: true},
			want: map[uint64]bool{1: false, 2: true, 3: false, 4: true},
		},
		{
			name: "chain held blocks duplicates",
			held: map[uint64]bool{1: true, 2: true},
			want: map[uint64]bool{1: false, 2: false, 3: true, 4: true},
		},
		{
			name: "everything held",
			held: map[uint64]bool{1: true, 2: true, 3: true, 4: true},
			want: map[uint64]bool{1: false, 2: false, 3: false, 4: false},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := AnnotateEligibility(types, tc.held)
			if len(got) != len(types) {
				t.Fatalf("got %d annotated types, want %d", len(got), len(types))
			}
			for _, e := range got {
				if e.Eligible != tc.want[e.ID] {
					t.Errorf("type %d eligible = %v, want %v", e.ID, e.Eligible, tc.want[e.ID])
				}
			}
		})
	}
}

func TestAnnotateEligibilityPreservesOrder(t *testing.T) {
	types := []CourseType{{ID: 9}, {ID: 3}, {ID: 7}}
	got := AnnotateEligibility(types, nil)
	for i, e := range got {
		if e.ID != types[i].ID {
			t.Fatalf("position %d: got type %d, want %d", i, e.ID, types[i].ID)
		}
	}
}
