package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// CourseTypeRepo provides access to the course_types and gear_items
// tables.  Course types are read-mostly reference data: created by
// administrative import, rarely mutated, never deleted while a course
// references them.
type CourseTypeRepo struct {
	db *sql.DB
}

// NewCourseTypeRepo returns a CourseTypeRepo bound to the given database.
func NewCourseTypeRepo(db *sql.DB) *CourseTypeRepo { return &CourseTypeRepo{db: db} }

// CourseTypeRecord mirrors the course_types table.
type CourseTypeRecord struct {
	ID            uint64
	Name          string
	Abbreviation  string
	Description   string
	RequirementID *uint64
	Visible       bool
	CostCents     uint32
}

const courseTypeColumns = `id, name, abbreviation, description, requirement_id, visible, cost_cents`

func scanCourseType(row interface{ Scan(...any) error }) (CourseTypeRecord, error) {
	var ct CourseTypeRecord
	var req sql.NullInt64
	err := row.Scan(&ct.ID, &ct.Name, &ct.Abbreviation, &ct.Description, &req, &ct.Visible, &ct.CostCents)
	if err != nil {
		return ct, err
	}
	if req.Valid {
		id := uint64(req.Int64)
		ct.RequirementID = &id
	}
	return ct, nil
}

// GetByID returns one course type or sql.ErrNoRows.
func (r *CourseTypeRepo) GetByID(ctx context.Context, id uint64) (CourseTypeRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+courseTypeColumns+` FROM course_types WHERE id = ?`, id)
	return scanCourseType(row)
}

// List returns course types ordered by name.  When visibleOnly is set,
// hidden types are excluded; the administrative catalog passes false.
func (r *CourseTypeRepo) List(ctx context.Context, visibleOnly bool) ([]CourseTypeRecord, error) {
	q := `SELECT ` + courseTypeColumns + ` FROM course_types`
	if visibleOnly {
		q += ` WHERE visible = 1`
	}
	q += ` ORDER BY name`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CourseTypeRecord
	for rows.Next() {
		ct, err := scanCourseType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}

// Create inserts a course type after verifying that the requirement
// chain stays acyclic.  The check runs in the same transaction as the
// insert so a concurrent update cannot slip a cycle past it.
func (r *CourseTypeRepo) Create(ctx context.Context, ct *CourseTypeRecord) error {
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
	res, err := tx.ExecContext(ctx,
		`INSERT INTO course_types (name, abbreviation, description, requirement_id, visible, cost_cents)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ct.Name, ct.Abbreviation, ct.Description, ct.RequirementID, ct.Visible, ct.CostCents)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	ct.ID = uint64(id)
	if err := verifyAcyclicTx(ctx, tx, ct.ID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// SetRequirement repoints a course type's prerequisite, guarding
// against cycles.  Passing nil clears the requirement.
func (r *CourseTypeRepo) SetRequirement(ctx context.Context, id uint64, requirementID *uint64) error {
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
	res, err := tx.ExecContext(ctx,
		`UPDATE course_types SET requirement_id = ? WHERE id = ?`, requirementID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Distinguish "no such row" from "unchanged value".
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM course_types WHERE id = ?)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return sql.ErrNoRows
		}
	}
	if err := verifyAcyclicTx(ctx, tx, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// verifyAcyclicTx walks the requirement chain starting at the given
// type and fails with ErrRequirementCycle if it returns to the start or
// loops anywhere.  Chains are short (a handful of course levels), so a
// row-at-a-time walk is fine.
func verifyAcyclicTx(ctx context.Context, tx *sql.Tx, startID uint64) error {
	seen := map[uint64]bool{}
	current := startID
	for {
		seen[current] = true
		var req sql.NullInt64
		err := tx.QueryRowContext(ctx,
			`SELECT requirement_id FROM course_types WHERE id = ?`, current).Scan(&req)
		if err != nil {
			return err
		}
		if !req.Valid {
			return nil
		}
		next := uint64(req.Int64)
		if seen[next] {
			return fmt.Errorf("%w: course type %d", ErrRequirementCycle, startID)
		}
		current = next
	}
}

// SetVisible toggles catalog visibility.
func (r *CourseTypeRepo) SetVisible(ctx context.Context, id uint64, visible bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE course_types SET visible = ? WHERE id = ?`, visible, id)
	return err
}

// GearItemRecord mirrors the gear_items table.  A NULL course_type_id
// marks a club-wide item.
type GearItemRecord struct {
	ID           uint64
	CourseTypeID *uint64
	Item         string
}

// ListGear returns the gear list for a course type, or the club-wide
// list when typeID is nil.
func (r *CourseTypeRepo) ListGear(ctx context.Context, typeID *uint64) ([]GearItemRecord, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if typeID == nil {
		rows, err = r.db.QueryContext(ctx,
			`SELECT id, course_type_id, item FROM gear_items WHERE course_type_id IS NULL ORDER BY item`)
	} else {
		rows, err = r.db.QueryContext(ctx,
			`SELECT id, course_type_id, item FROM gear_items WHERE course_type_id = ? ORDER BY item`, *typeID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []GearItemRecord
	for rows.Next() {
		var g GearItemRecord
		var tid sql.NullInt64
		if err := rows.Scan(&g.ID, &tid, &g.Item); err != nil {
			return nil, err
		}
		if tid.Valid {
			id := uint64(tid.Int64)
			g.CourseTypeID = &id
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// AddGear inserts one gear item.
func (r *CourseTypeRepo) AddGear(ctx context.Context, g *GearItemRecord) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO gear_items (course_type_id, item) VALUES (?, ?)`, g.CourseTypeID, g.Item)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	g.ID = uint64(id)
	return nil
}
