package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/skagit-alpine-club/registration-server/internal/model"
)

// CourseRepo provides access to courses, course_dates and the
// enrollment tables (course_participants, course_instructors).  The
// capacity invariant len(participants) <= capacity is enforced here:
// every participant add locks the course row with SELECT ... FOR UPDATE
// and re-counts enrollment inside the same transaction, so two
// concurrent checkouts for the last seat cannot both win.
type CourseRepo struct {
	db *sql.DB
}

// NewCourseRepo returns a CourseRepo bound to the given database.
func NewCourseRepo(db *sql.DB) *CourseRepo { return &CourseRepo{db: db} }

// GetByID loads one course with its type name, cost, participant count
// and dates.  Returns sql.ErrNoRows when the course does not exist.
func (r *CourseRepo) GetByID(ctx context.Context, id uint64) (*model.Course, error) {
	const q = `SELECT c.id, c.type_id, ct.name, ct.cost_cents, c.specifics,
	                  c.capacity, c.expected_capacity, c.visible,
	                  (SELECT COUNT(*) FROM course_participants cp WHERE cp.course_id = c.id)
	           FROM courses c
	           JOIN course_types ct ON ct.id = c.type_id
	           WHERE c.id = ?`
	var course model.Course
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&course.ID, &course.TypeID, &course.TypeName, &course.CostCents, &course.Specifics,
		&course.Capacity, &course.ExpectedCapacity, &course.Visible, &course.ParticipantCount,
	)
	if err != nil {
		return nil, err
	}
	dates, err := r.datesFor(ctx, course.ID)
	if err != nil {
		return nil, err
	}
	course.Dates = dates
	return &course, nil
}

func (r *CourseRepo) datesFor(ctx context.Context, courseID uint64) ([]model.CourseDate, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, course_id, name, start, end FROM course_dates WHERE course_id = ? ORDER BY start`,
		courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var dates []model.CourseDate
	for rows.Next() {
		var d model.CourseDate
		if err := rows.Scan(&d.ID, &d.CourseID, &d.Name, &d.Start, &d.End); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// ListByType returns the visible courses of a course type with
// participant counts and dates, ordered by earliest start.
func (r *CourseRepo) ListByType(ctx context.Context, typeID uint64) ([]model.Course, error) {
	const q = `SELECT c.id, c.type_id, ct.name, ct.cost_cents, c.specifics,
	                  c.capacity, c.expected_capacity, c.visible,
	                  (SELECT COUNT(*) FROM course_participants cp WHERE cp.course_id = c.id)
	           FROM courses c
	           JOIN course_types ct ON ct.id = c.type_id
	           WHERE c.type_id = ? AND c.visible = 1
	           ORDER BY (SELECT MIN(start) FROM course_dates d WHERE d.course_id = c.id)`
	rows, err := r.db.QueryContext(ctx, q, typeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var courses []model.Course
	for rows.Next() {
		var c model.Course
		if err := rows.Scan(&c.ID, &c.TypeID, &c.TypeName, &c.CostCents, &c.Specifics,
			&c.Capacity, &c.ExpectedCapacity, &c.Visible, &c.ParticipantCount); err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range courses {
		dates, err := r.datesFor(ctx, courses[i].ID)
		if err != nil {
			return nil, err
		}
		courses[i].Dates = dates
	}
	return courses, nil
}

// Create inserts a course and its dates in one transaction.
func (r *CourseRepo) Create(ctx context.Context, course *model.Course) error {
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
		`INSERT INTO courses (type_id, specifics, capacity, expected_capacity, visible)
		 VALUES (?, ?, ?, ?, ?)`,
		course.TypeID, course.Specifics, course.Capacity, course.ExpectedCapacity, course.Visible)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	course.ID = uint64(id)
	for i := range course.Dates {
		d := &course.Dates[i]
		d.CourseID = course.ID
		dres, err := tx.ExecContext(ctx,
			`INSERT INTO course_dates (course_id, name, start, end) VALUES (?, ?, ?, ?)`,
			d.CourseID, d.Name, d.Start.UTC(), d.End.UTC())
		if err != nil {
			return err
		}
		did, err := dres.LastInsertId()
		if err != nil {
			return err
		}
		d.ID = uint64(did)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// lockCourseTx locks the course row and returns its capacity and the
// current participant count.  Every capacity-sensitive mutation goes
// through this so the count cannot move under the caller's feet.
func lockCourseTx(ctx context.Context, tx *sql.Tx, courseID uint64) (capacity, enrolled uint32, err error) {
	err = tx.QueryRowContext(ctx,
		`SELECT capacity FROM courses WHERE id = ? FOR UPDATE`, courseID).Scan(&capacity)
	if err != nil {
		return 0, 0, err
	}
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM course_participants WHERE course_id = ?`, courseID).Scan(&enrolled)
	if err != nil {
		return 0, 0, err
	}
	return capacity, enrolled, nil
}

// AddParticipantTx enrolls a user, failing with ErrCourseFull when the
// course is at capacity.  When this add is the one that fills the
// course, all pending cart items referencing it are deleted in the same
// transaction: they can no longer be fulfilled.  The caller owns the
// transaction.
func (r *CourseRepo) AddParticipantTx(ctx context.Context, tx *sql.Tx, courseID, userID uint64) error {
	capacity, enrolled, err := lockCourseTx(ctx, tx, courseID)
	if err != nil {
		return err
	}
	if enrolled >= capacity {
		return fmt.Errorf("%w: course %d", ErrCourseFull, courseID)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO course_participants (course_id, user_id) VALUES (?, ?)`,
		courseID, userID); err != nil {
		return err
	}
	if enrolled+1 >= capacity {
		// Open -> Full: purge cart items that can no longer be bought.
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM cart_items WHERE course_id = ?`, courseID); err != nil {
			return err
		}
	}
	return nil
}

// RemoveParticipantTx withdraws a user from a course.  It does not
// touch capacity; the refund flow owns that bookkeeping.
func (r *CourseRepo) RemoveParticipantTx(ctx context.Context, tx *sql.Tx, courseID, userID uint64) error {
	res, err := tx.ExecContext(ctx,
		`DELETE FROM course_participants WHERE course_id = ? AND user_id = ?`, courseID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AdjustCapacityTx changes the course capacity by delta under the row
// lock.  The waitlist state machine uses +1 when an invoice is paid or
// when an expired offer frees the seat entirely, and -1 while a
// refunded seat is being offered to the waitlist.
func (r *CourseRepo) AdjustCapacityTx(ctx context.Context, tx *sql.Tx, courseID uint64, delta int32) error {
	var capacity uint32
	if err := tx.QueryRowContext(ctx,
		`SELECT capacity FROM courses WHERE id = ? FOR UPDATE`, courseID).Scan(&capacity); err != nil {
		return err
	}
	if delta < 0 && capacity < uint32(-delta) {
		return fmt.Errorf("%w: capacity of course %d cannot go negative", ErrConflict, courseID)
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE courses SET capacity = capacity + ? WHERE id = ?`, delta, courseID)
	return err
}

// AdjustCapacity is AdjustCapacityTx in its own transaction.
func (r *CourseRepo) AdjustCapacity(ctx context.Context, courseID uint64, delta int32) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := r.AdjustCapacityTx(ctx, tx, courseID, delta); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// IsParticipant reports whether the user is enrolled in the course.
func (r *CourseRepo) IsParticipant(ctx context.Context, courseID, userID uint64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM course_participants WHERE course_id = ? AND user_id = ?)`,
		courseID, userID).Scan(&exists)
	return exists, err
}

// ListForParticipant returns the courses a user is enrolled in.
func (r *CourseRepo) ListForParticipant(ctx context.Context, userID uint64) ([]model.Course, error) {
	return r.listEnrolled(ctx, `course_participants`, userID)
}

// ListForInstructor returns the courses a user instructs.
func (r *CourseRepo) ListForInstructor(ctx context.Context, userID uint64) ([]model.Course, error) {
	return r.listEnrolled(ctx, `course_instructors`, userID)
}

func (r *CourseRepo) listEnrolled(ctx context.Context, joinTable string, userID uint64) ([]model.Course, error) {
	q := `SELECT c.id, c.type_id, ct.name, ct.cost_cents, c.specifics,
	             c.capacity, c.expected_capacity, c.visible,
	             (SELECT COUNT(*) FROM course_participants cp WHERE cp.course_id = c.id)
	      FROM courses c
	      JOIN course_types ct ON ct.id = c.type_id
	      JOIN ` + joinTable + ` e ON e.course_id = c.id
	      WHERE e.user_id = ?`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var courses []model.Course
	for rows.Next() {
		var c model.Course
		if err := rows.Scan(&c.ID, &c.TypeID, &c.TypeName, &c.CostCents, &c.Specifics,
			&c.Capacity, &c.ExpectedCapacity, &c.Visible, &c.ParticipantCount); err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range courses {
		dates, err := r.datesFor(ctx, courses[i].ID)
		if err != nil {
			return nil, err
		}
		courses[i].Dates = dates
	}
	return courses, nil
}

// AddInstructor assigns an instructor to a course.
func (r *CourseRepo) AddInstructor(ctx context.Context, courseID, userID uint64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO course_instructors (course_id, user_id) VALUES (?, ?)`, courseID, userID)
	return err
}

// RemoveInstructor unassigns an instructor from a course.
func (r *CourseRepo) RemoveInstructor(ctx context.Context, courseID, userID uint64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM course_instructors WHERE course_id = ? AND user_id = ?`, courseID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Instructs reports whether the user instructs the course.
func (r *CourseRepo) Instructs(ctx context.Context, courseID, userID uint64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM course_instructors WHERE course_id = ? AND user_id = ?)`,
		courseID, userID).Scan(&exists)
	return exists, err
}

// Roster returns the flat participant projection (contact, medical and
// emergency fields) for a course.  The field order matches the export
// contract consumed by instructors and reporting.
func (r *CourseRepo) Roster(ctx context.Context, courseID uint64) ([]model.RosterRow, error) {
	const q = `SELECT u.id, u.email, f.phone_1, f.address, f.city, f.state, f.zip_code,
	                  f.emergency_contact_name, f.emergency_contact_relationship, f.emergency_contact_phone,
	                  f.physical_fitness, f.medical_conditions, f.allergies, f.medications, f.medical_insurance
	           FROM course_participants cp
	           JOIN users u ON u.id = cp.user_id
	           JOIN registration_forms f ON f.user_id = u.id
	           WHERE cp.course_id = ?
	           ORDER BY u.email`
	rows, err := r.db.QueryContext(ctx, q, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roster []model.RosterRow
	for rows.Next() {
		var row model.RosterRow
		if err := rows.Scan(&row.UserID, &row.Email, &row.Phone1, &row.Address, &row.City,
			&row.State, &row.ZipCode, &row.EmergencyContactName, &row.EmergencyContactRel,
			&row.EmergencyContactPhone, &row.PhysicalFitness, &row.MedicalConditions,
			&row.Allergies, &row.Medications, &row.MedicalInsurance); err != nil {
			return nil, err
		}
		roster = append(roster, row)
	}
	return roster, rows.Err()
}
