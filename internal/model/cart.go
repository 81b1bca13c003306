package model

// CartItem is a pending, unpaid course selection in a user's cart.  The
// course/type fields are denormalized for display and pricing; the
// invariants (course not full, registration form complete, no duplicate
// type, prerequisite satisfied) are enforced inside the transaction that
// creates the row.
type CartItem struct {
	ID           uint64 `json:"id"`
	CartID       uint64 `json:"cart_id"`
	CourseID     uint64 `json:"course_id"`
	CourseTypeID uint64 `json:"course_type_id"`
	TypeName     string `json:"type_name"`
	Specifics    string `json:"specifics"`
	CostCents    uint32 `json:"cost_cents"`
}

// CartCost sums the course type cost over all cart items, in minor
// currency units.  Discounts are not reflected here; the previous
// student discount is applied as a coupon at checkout time.
func CartCost(items []CartItem) uint32 {
	var total uint32
	for _, it := range items {
		total += it.CostCents
	}
	return total
}
