package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/skagit-alpine-club/registration-server/internal/utils"
)

// User mirrors the users table.  StripeCustomerID is filled lazily the
// first time the user reaches checkout.  EmailConfirmed flips once the
// user redeems their confirmation token.
type User struct {
	ID               uint64
	Email            string
	PasswordHash     string
	Role             string
	StripeCustomerID string
	IsActive         bool
	EmailConfirmed   bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// UserRepo provides access to the users table.  Signup also creates the
// user's permanent cart, in the same transaction, so every user always
// has exactly one cart.
type UserRepo struct {
	db    *sql.DB
	carts *CartRepo
}

// NewUserRepo returns a UserRepo bound to the given database.
func NewUserRepo(db *sql.DB, carts *CartRepo) *UserRepo {
	return &UserRepo{db: db, carts: carts}
}

// ErrEmailExists is returned by Create when the email is taken.
var ErrEmailExists = errors.New("email already exists")

// Create inserts a user with a hashed password and an empty cart,
// returning the new id.  Emails are normalized to lower case.
func (r *UserRepo) Create(ctx context.Context, email, password, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, role) VALUES (?, ?, ?)`,
		email, hash, role)
	if err != nil {
		if isDuplicateKey(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if _, err := r.carts.CreateTx(ctx, tx, uint64(id)); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return uint64(id), nil
}

const userColumns = `id, email, password_hash, role, stripe_customer_id, is_active, email_confirmed, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	var customerID sql.NullString
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &customerID,
		&u.IsActive, &u.EmailConfirmed, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return u, err
	}
	if customerID.Valid {
		u.StripeCustomerID = customerID.String
	}
	return u, nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? LIMIT 1`, email)
	return scanUser(row)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ? LIMIT 1`, id)
	return scanUser(row)
}

// SetStripeCustomerID records the payment-system customer created for
// the user on first checkout.
func (r *UserRepo) SetStripeCustomerID(ctx context.Context, id uint64, customerID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET stripe_customer_id = ? WHERE id = ?`, customerID, id)
	return err
}

// NewEmailConfirmToken mints a fresh confirmation token for the user
// and stores its hash, invalidating any earlier token.  The raw token
// goes out to the user; redeeming it flips email_confirmed.
func (r *UserRepo) NewEmailConfirmToken(ctx context.Context, userID uint64) (string, error) {
	raw, err := utils.NewOpaqueToken()
	if err != nil {
		return "", err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET email_confirm_token_hash = ? WHERE id = ?`,
		utils.HashRefreshRaw(raw), userID)
	if err != nil {
		return "", err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", sql.ErrNoRows
	}
	return raw, nil
}

// ConfirmEmail redeems a confirmation token.  The token is single use:
// the hash is cleared in the same statement that sets the flag.
func (r *UserRepo) ConfirmEmail(ctx context.Context, rawToken string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users
		    SET email_confirmed = 1, email_confirm_token_hash = NULL
		  WHERE email_confirm_token_hash = ?`,
		utils.HashRefreshRaw(rawToken))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetRole changes a user's role.  Only administrators reach this.
func (r *UserRepo) SetRole(ctx context.Context, id uint64, role string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET role = ? WHERE id = ?`, role, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
