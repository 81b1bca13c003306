package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/skagit-alpine-club/registration-server/internal/model"
)

// WaitListRepo provides access to the wait_lists table.  Entries are
// strictly FIFO by date_added (id breaks ties), one per (course, user),
// and may only be created while the course is full.  Joining locks the
// course row so a join racing the seat that would have reopened the
// course resolves one way or the other, never both.
type WaitListRepo struct {
	db *sql.DB
}

// NewWaitListRepo returns a WaitListRepo bound to the given database.
func NewWaitListRepo(db *sql.DB) *WaitListRepo { return &WaitListRepo{db: db} }

// Join appends the user to a full course's wait list.  Fails with
// ErrCourseNotFull when seats are open and ErrAlreadyOnWaitList when
// the user is already queued.
func (r *WaitListRepo) Join(ctx context.Context, courseID, userID uint64, email string) (*model.WaitListEntry, error) {
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

	capacity, enrolled, err := lockCourseTx(ctx, tx, courseID)
	if err != nil {
		return nil, err
	}
	if enrolled < capacity {
		return nil, fmt.Errorf("%w: course %d", ErrCourseNotFull, courseID)
	}

	var queued bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM wait_lists WHERE course_id = ? AND user_id = ?)`,
		courseID, userID).Scan(&queued); err != nil {
		return nil, err
	}
	if queued {
		return nil, fmt.Errorf("%w: course %d", ErrAlreadyOnWaitList, courseID)
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO wait_lists (course_id, user_id, email, date_added) VALUES (?, ?, ?, ?)`,
		courseID, userID, email, now)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	entry := &model.WaitListEntry{
		ID:        uint64(id),
		CourseID:  courseID,
		UserID:    userID,
		Email:     email,
		DateAdded: now,
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	place, err := r.PlaceFor(ctx, entry)
	if err != nil {
		return nil, err
	}
	entry.Place = place
	return entry, nil
}

// PlaceFor returns the entry's 1-based queue position: the number of
// entries for the same course added no later than it.
func (r *WaitListRepo) PlaceFor(ctx context.Context, entry *model.WaitListEntry) (uint32, error) {
	var place uint32
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM wait_lists
		 WHERE course_id = ? AND (date_added < ? OR (date_added = ? AND id <= ?))`,
		entry.CourseID, entry.DateAdded, entry.DateAdded, entry.ID).Scan(&place)
	return place, err
}

// EntryFor returns the user's entry for a course, with its place, or
// sql.ErrNoRows.
func (r *WaitListRepo) EntryFor(ctx context.Context, courseID, userID uint64) (*model.WaitListEntry, error) {
	var e model.WaitListEntry
	err := r.db.QueryRowContext(ctx,
		`SELECT id, course_id, user_id, email, date_added FROM wait_lists
		 WHERE course_id = ? AND user_id = ?`, courseID, userID).
		Scan(&e.ID, &e.CourseID, &e.UserID, &e.Email, &e.DateAdded)
	if err != nil {
		return nil, err
	}
	place, err := r.PlaceFor(ctx, &e)
	if err != nil {
		return nil, err
	}
	e.Place = place
	return &e, nil
}

// ListForUser returns every wait list the user sits on, each with its
// current place.
func (r *WaitListRepo) ListForUser(ctx context.Context, userID uint64) ([]model.WaitListEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, course_id, user_id, email, date_added FROM wait_lists
		 WHERE user_id = ? ORDER BY date_added, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []model.WaitListEntry
	for rows.Next() {
		var e model.WaitListEntry
		if err := rows.Scan(&e.ID, &e.CourseID, &e.UserID, &e.Email, &e.DateAdded); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range entries {
		place, err := r.PlaceFor(ctx, &entries[i])
		if err != nil {
			return nil, err
		}
		entries[i].Place = place
	}
	return entries, nil
}

// OldestForCourse returns the head of a course's wait list, or
// sql.ErrNoRows on an empty list.
func (r *WaitListRepo) OldestForCourse(ctx context.Context, courseID uint64) (*model.WaitListEntry, error) {
	var e model.WaitListEntry
	err := r.db.QueryRowContext(ctx,
		`SELECT id, course_id, user_id, email, date_added FROM wait_lists
		 WHERE course_id = ? ORDER BY date_added, id LIMIT 1`, courseID).
		Scan(&e.ID, &e.CourseID, &e.UserID, &e.Email, &e.DateAdded)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Delete removes an entry by id.
func (r *WaitListRepo) Delete(ctx context.Context, entryID uint64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM wait_lists WHERE id = ?`, entryID)
	return err
}

// Leave removes the user's own entry.  Returns sql.ErrNoRows when the
// user is not queued.
func (r *WaitListRepo) Leave(ctx context.Context, courseID, userID uint64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM wait_lists WHERE course_id = ? AND user_id = ?`, courseID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountForCourse returns the wait list length.
func (r *WaitListRepo) CountForCourse(ctx context.Context, courseID uint64) (uint32, error) {
	var n uint32
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM wait_lists WHERE course_id = ?`, courseID).Scan(&n)
	return n, err
}
