package model

// EligibleCourseType is a catalog entry annotated with whether the user
// may currently add a course of this type to their cart.
type EligibleCourseType struct {
	CourseType
	Eligible bool `json:"eligible"`
}

// AnnotateEligibility computes the eligibility flag for every course type
// given the set of course type IDs the user already holds, either as a
// cart item or as an enrolled participant.  A type is eligible when it
// has no requirement, or its requirement is held, and the type itself is
// not held.  The computation is pure; callers must re-run it after every
// cart mutation because adding or removing a prerequisite changes the
// answer immediately.
func AnnotateEligibility(types []CourseType, held map[uint64]bool) []EligibleCourseType {
	out := make([]EligibleCourseType, 0, len(types))
	for _, ct := range types {
		requirementMet := ct.RequirementID == nil || held[*ct.RequirementID]
		out = append(out, EligibleCourseType{
			CourseType: ct,
			Eligible:   requirementMet && !held[ct.ID],
		})
	}
	return out
}
