package model

// CourseType describes a class of course that shares a name, price and
// prerequisite.  Individual scheduled offerings are represented by
// Course.  RequirementID points at another CourseType that must be
// satisfied (in cart or enrolled) before a course of this type may be
// added to a cart.  The requirement chain forms a DAG; cycles are
// rejected at write time.
//
// Fields:
//
//	ID            – primary key identifier.
//	Name          – full course name shown in the catalog.
//	Abbreviation  – short code (e.g. "BMC").
//	Description   – free-form catalog text.
//	RequirementID – optional prerequisite course type.
//	Visible       – whether the type is listed publicly.
//	CostCents     – price in minor currency units.
type CourseType struct {
	ID            uint64  `json:"id"`
	Name          string  `json:"name"`
	Abbreviation  string  `json:"abbreviation"`
	Description   string  `json:"description,omitempty"`
	RequirementID *uint64 `json:"requirement_id,omitempty"`
	Visible       bool    `json:"visible"`
	CostCents     uint32  `json:"cost_cents"`
}

// GearItem is a single entry on a gear list.  Items with a nil
// CourseTypeID belong to the club-wide list shown for every course.
type GearItem struct {
	ID           uint64  `json:"id"`
	CourseTypeID *uint64 `json:"course_type_id,omitempty"`
	Item         string  `json:"item"`
}
