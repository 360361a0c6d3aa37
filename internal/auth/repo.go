package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventharmony/eventharmony/internal/shared"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	Create(ctx context.Context, u *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	MarkVerified(ctx context.Context, token string, now time.Time) (*User, error)
	SetResetToken(ctx context.Context, userID, tokenHash string, expires time.Time) error
	ResetPassword(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, first_name, last_name, email, password_hash, role,
	company, position, phone, is_verified,
	COALESCE(verification_token, ''), COALESCE(verification_token_expires, 'epoch'::timestamptz),
	COALESCE(reset_password_token, ''), COALESCE(reset_password_expires, 'epoch'::timestamptz),
	accessible_modules, accessible_events, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &u.Role,
		&u.Company, &u.Position, &u.Phone, &u.IsVerified,
		&u.VerificationToken, &u.VerificationTokenExpires,
		&u.ResetPasswordToken, &u.ResetPasswordExpires,
		&u.AccessibleModules, &u.AccessibleEvents, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Create inserts a new account. A unique violation on the email index maps to
// shared.ErrDuplicate.
func (r *PGRepository) Create(ctx context.Context, u *User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (
			id, first_name, last_name, email, password_hash, role,
			company, position, phone, is_verified,
			verification_token, verification_token_expires,
			accessible_modules, accessible_events, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)`,
		u.ID, u.FirstName, u.LastName, u.Email, u.PasswordHash, u.Role,
		u.Company, u.Position, u.Phone, u.IsVerified,
		u.VerificationToken, u.VerificationTokenExpires,
		u.AccessibleModules, u.AccessibleEvents, u.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shared.ErrDuplicate
		}
		return err
	}
	return nil
}

// FindByEmail fetches a user by email, case-insensitively.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	return scanUser(row)
}

// FindByID fetches a user by id.
func (r *PGRepository) FindByID(ctx context.Context, id string) (*User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// MarkVerified flips is_verified for the account holding an unexpired
// verification token and clears the token. Returns the updated user.
func (r *PGRepository) MarkVerified(ctx context.Context, token string, now time.Time) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE users
		SET is_verified = TRUE,
		    verification_token = NULL,
		    verification_token_expires = NULL,
		    updated_at = $2
		WHERE verification_token = $1 AND verification_token_expires > $2
		RETURNING `+userColumns,
		token, now)
	return scanUser(row)
}

// SetResetToken stores the hashed password reset token and its expiry.
func (r *PGRepository) SetResetToken(ctx context.Context, userID, tokenHash string, expires time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET reset_password_token = $2, reset_password_expires = $3, updated_at = NOW()
		WHERE id = $1`,
		userID, tokenHash, expires)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ResetPassword swaps in the new password hash for the account holding an
// unexpired reset token and clears the token. Returns the updated user.
func (r *PGRepository) ResetPassword(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE users
		SET password_hash = $2,
		    reset_password_token = NULL,
		    reset_password_expires = NULL,
		    updated_at = $3
		WHERE reset_password_token = $1 AND reset_password_expires > $3
		RETURNING `+userColumns,
		tokenHash, passwordHash, now)
	return scanUser(row)
}

// UpdatePassword replaces the password hash for a known account.
func (r *PGRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`,
		userID, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
