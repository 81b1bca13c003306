package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/skagit-alpine-club/registration-server/internal/model"
)

// CartRepo provides access to carts and cart_items.  A cart is created
// once per user at signup and lives forever; checkout empties it rather
// than deleting it.  All eligibility checks for adding a course run
// inside the same transaction as the insert, under a lock on the cart
// row, so two concurrent adds cannot each see the other's precondition
// as still unmet.
type CartRepo struct {
	db *sql.DB
}

// NewCartRepo returns a CartRepo bound to the given database.
func NewCartRepo(db *sql.DB) *CartRepo { return &CartRepo{db: db} }

// CreateTx inserts an empty cart for a user.  Called from the signup
// transaction.
func (r *CartRepo) CreateTx(ctx context.Context, tx *sql.Tx, userID uint64) (uint64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO carts (user_id) VALUES (?)`, userID)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// Items returns the cart's contents with course type names and costs.
func (r *CartRepo) Items(ctx context.Context, userID uint64) ([]model.CartItem, error) {
	const q = `SELECT ci.id, ci.cart_id, ci.course_id, c.type_id, ct.name, c.specifics, ct.cost_cents
	           FROM cart_items ci
	           JOIN carts k ON k.id = ci.cart_id
	           JOIN courses c ON c.id = ci.course_id
	           JOIN course_types ct ON ct.id = c.type_id
	           WHERE k.user_id = ?
	           ORDER BY ci.id`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []model.CartItem
	for rows.Next() {
		var it model.CartItem
		if err := rows.Scan(&it.ID, &it.CartID, &it.CourseID, &it.CourseTypeID,
			&it.TypeName, &it.Specifics, &it.CostCents); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// heldTypeIDsTx returns the set of course types the user currently
// holds, counting both cart items and enrollments.
func heldTypeIDsTx(ctx context.Context, tx *sql.Tx, userID, cartID uint64) (map[uint64]bool, error) {
	const q = `SELECT c.type_id FROM cart_items ci JOIN courses c ON c.id = ci.course_id WHERE ci.cart_id = ?
	           UNION
	           SELECT c.type_id FROM course_participants cp JOIN courses c ON c.id = cp.course_id WHERE cp.user_id = ?`
	rows, err := tx.QueryContext(ctx, q, cartID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	held := map[uint64]bool{}
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		held[id] = true
	}
	return held, rows.Err()
}

// HeldTypeIDs is the out-of-transaction variant used to annotate the
// catalog with per-user eligibility.
func (r *CartRepo) HeldTypeIDs(ctx context.Context, userID uint64) (map[uint64]bool, error) {
	const q = `SELECT c.type_id FROM cart_items ci
	             JOIN carts k ON k.id = ci.cart_id
	             JOIN courses c ON c.id = ci.course_id
	           WHERE k.user_id = ?
	           UNION
	           SELECT c.type_id FROM course_participants cp JOIN courses c ON c.id = cp.course_id WHERE cp.user_id = ?`
	rows, err := r.db.QueryContext(ctx, q, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	held := map[uint64]bool{}
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		held[id] = true
	}
	return held, rows.Err()
}

// cartAddViolation applies the cart eligibility rules in their fixed
// order: open seats first, then the registration form, then the
// duplicate-type and prerequisite checks.  When several preconditions
// fail at once the earliest one is reported.
func cartAddViolation(courseID uint64, enrolled, capacity uint32, hasForm bool,
	held map[uint64]bool, typeID uint64, typeName string, requirementID *uint64) error {
	if enrolled >= capacity {
		return fmt.Errorf("%w: course %d", ErrCourseFull, courseID)
	}
	if !hasForm {
		return ErrNoRegistrationForm
	}
	if held[typeID] {
		return fmt.Errorf("%w: %s", ErrDuplicateCourseType, typeName)
	}
	if requirementID != nil && !held[*requirementID] {
		return fmt.Errorf("%w: course type %d requires type %d", ErrMissingPrerequisite, typeID, *requirementID)
	}
	return nil
}

// AddItem puts a course in the user's cart after the full eligibility
// check: the course has open seats, the user has a registration form,
// the user does not already hold the course type, and the type's
// prerequisite (if any) is already held.  The checks and the insert
// share one transaction with the cart row locked, so a concurrent add
// to the same cart serializes behind this one.
func (r *CartRepo) AddItem(ctx context.Context, userID, courseID uint64) (*model.CartItem, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var cartID uint64
	if err := tx.QueryRowContext(ctx,
		`SELECT id FROM carts WHERE user_id = ? FOR UPDATE`, userID).Scan(&cartID); err != nil {
		return nil, err
	}

	var (
		typeID    uint64
		typeName  string
		specifics string
		costCents uint32
		reqID     sql.NullInt64
		capacity  uint32
	)
	err = tx.QueryRowContext(ctx,
		`SELECT c.type_id, ct.name, c.specifics, ct.cost_cents, ct.requirement_id, c.capacity
		 FROM courses c JOIN course_types ct ON ct.id = c.type_id
		 WHERE c.id = ?`, courseID).Scan(&typeID, &typeName, &specifics, &costCents, &reqID, &capacity)
	if err != nil {
		return nil, err
	}

	var enrolled uint32
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM course_participants WHERE course_id = ?`, courseID).Scan(&enrolled); err != nil {
		return nil, err
	}

	var hasForm bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM registration_forms WHERE user_id = ?)`, userID).Scan(&hasForm); err != nil {
		return nil, err
	}

	held, err := heldTypeIDsTx(ctx, tx, userID, cartID)
	if err != nil {
		return nil, err
	}

	var requirementID *uint64
	if reqID.Valid {
		v := uint64(reqID.Int64)
		requirementID = &v
	}
	if err := cartAddViolation(courseID, enrolled, capacity, hasForm, held, typeID, typeName, requirementID); err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO cart_items (cart_id, course_id) VALUES (?, ?)`, cartID, courseID)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return &model.CartItem{
		ID:           uint64(id),
		CartID:       cartID,
		CourseID:     courseID,
		CourseTypeID: typeID,
		TypeName:     typeName,
		Specifics:    specifics,
		CostCents:    costCents,
	}, nil
}

// RemoveItem takes an item out of the user's cart, then cascades: any
// remaining cart item whose course type required the removed item's
// type is removed too, repeatedly, until the cart is consistent again.
// Enrolled courses also satisfy prerequisites, so only items that
// depended on the removed one through the cart are swept up.
func (r *CartRepo) RemoveItem(ctx context.Context, userID, itemID uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var cartID uint64
	if err := tx.QueryRowContext(ctx,
		`SELECT id FROM carts WHERE user_id = ? FOR UPDATE`, userID).Scan(&cartID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM cart_items WHERE id = ? AND cart_id = ?`, itemID, cartID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	if err := cascadeUnsatisfiedTx(ctx, tx, userID, cartID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// cascadeUnsatisfiedTx deletes cart items whose prerequisite is no
// longer held, looping until a pass removes nothing.  Requirement
// chains are short, so this converges in a few passes.
func cascadeUnsatisfiedTx(ctx context.Context, tx *sql.Tx, userID, cartID uint64) error {
	for {
		held, err := heldTypeIDsTx(ctx, tx, userID, cartID)
		if err != nil {
			return err
		}
		rows, err := tx.QueryContext(ctx,
			`SELECT ci.id, ct.requirement_id
			 FROM cart_items ci
			 JOIN courses c ON c.id = ci.course_id
			 JOIN course_types ct ON ct.id = c.type_id
			 WHERE ci.cart_id = ? AND ct.requirement_id IS NOT NULL`, cartID)
		if err != nil {
			return err
		}
		var orphans []uint64
		for rows.Next() {
			var id uint64
			var req uint64
			if err := rows.Scan(&id, &req); err != nil {
				rows.Close()
				return err
			}
			if !held[req] {
				orphans = append(orphans, id)
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()
		if len(orphans) == 0 {
			return nil
		}
		for _, id := range orphans {
			if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE id = ?`, id); err != nil {
				return err
			}
		}
	}
}

// ClearTx empties a user's cart inside the caller's transaction.
// Fulfillment runs this after payment so the bought courses leave the
// cart atomically with the enrollment.
func (r *CartRepo) ClearTx(ctx context.Context, tx *sql.Tx, userID uint64) error {
	_, err := tx.ExecContext(ctx,
		`DELETE FROM cart_items WHERE cart_id = (SELECT id FROM carts WHERE user_id = ?)`, userID)
	return err
}
