package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventharmony/eventharmony/internal/shared"
)

// Repository defines persistence operations for account management.
type Repository interface {
	Get(ctx context.Context, id string) (*Account, error)
	List(ctx context.Context, filter ListFilter) ([]Account, int, error)
	Create(ctx context.Context, account *Account, passwordHash string) error
	UpdateProfile(ctx context.Context, id string, in ProfileUpdate) (*Account, error)
	Update(ctx context.Context, id string, in AccountUpdate) (*Account, error)
	Delete(ctx context.Context, id string) error
	SetAccessibleEvents(ctx context.Context, id string, events []string) (*Account, error)
	SetAccessibleModules(ctx context.Context, id string, modules []string) (*Account, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const accountColumns = `id, first_name, last_name, email, role, company, position,
	phone, is_verified, accessible_modules, accessible_events, created_at, updated_at`

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	err := row.Scan(
		&a.ID, &a.FirstName, &a.LastName, &a.Email, &a.Role, &a.Company, &a.Position,
		&a.Phone, &a.IsVerified, &a.AccessibleModules, &a.AccessibleEvents,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// Get fetches one account by id.
func (r *PGRepository) Get(ctx context.Context, id string) (*Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM users WHERE id = $1`, id)
	return scanAccount(row)
}

// List returns a page of the account directory with an exact total.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]Account, int, error) {
	conditions := []string{"TRUE"}
	var args []interface{}
	argPos := 1

	if filter.Role != "" {
		conditions = append(conditions, fmt.Sprintf("role = $%d", argPos))
		args = append(args, filter.Role)
		argPos++
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		conditions = append(conditions, fmt.Sprintf(
			"(first_name ILIKE $%d OR last_name ILIKE $%d OR email ILIKE $%d OR company ILIKE $%d)",
			argPos, argPos, argPos, argPos))
		args = append(args, pattern)
		argPos++
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM users "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT `+accountColumns+`
		FROM users
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, whereClause, argPos, argPos+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(
			&a.ID, &a.FirstName, &a.LastName, &a.Email, &a.Role, &a.Company, &a.Position,
			&a.Phone, &a.IsVerified, &a.AccessibleModules, &a.AccessibleEvents,
			&a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		accounts = append(accounts, a)
	}
	return accounts, total, rows.Err()
}

// Create inserts an admin-provisioned account. These start out verified since
// an administrator vouched for the address.
func (r *PGRepository) Create(ctx context.Context, account *Account, passwordHash string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (
			id, first_name, last_name, email, password_hash, role,
			company, position, phone, is_verified,
			accessible_modules, accessible_events, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)`,
		account.ID, account.FirstName, account.LastName, account.Email, passwordHash, account.Role,
		account.Company, account.Position, account.Phone, account.IsVerified,
		account.AccessibleModules, account.AccessibleEvents, account.CreatedAt,
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

// UpdateProfile applies the self-service field subset.
func (r *PGRepository) UpdateProfile(ctx context.Context, id string, in ProfileUpdate) (*Account, error) {
	return r.update(ctx, id, map[string]interface{}{
		"first_name": deref(in.FirstName),
		"last_name":  deref(in.LastName),
		"company":    deref(in.Company),
		"position":   deref(in.Position),
		"phone":      deref(in.Phone),
	})
}

// Update applies the admin-side field set.
func (r *PGRepository) Update(ctx context.Context, id string, in AccountUpdate) (*Account, error) {
	updates := map[string]interface{}{
		"first_name": deref(in.FirstName),
		"last_name":  deref(in.LastName),
		"email":      deref(in.Email),
		"role":       deref(in.Role),
		"company":    deref(in.Company),
		"position":   deref(in.Position),
		"phone":      deref(in.Phone),
	}
	if in.IsVerified != nil {
		updates["is_verified"] = *in.IsVerified
	}
	account, err := r.update(ctx, id, updates)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, shared.ErrDuplicate
		}
		return nil, err
	}
	return account, nil
}

func (r *PGRepository) update(ctx context.Context, id string, updates map[string]interface{}) (*Account, error) {
	query := "UPDATE users SET updated_at = NOW()"
	var args []interface{}
	argPos := 1

	for _, column := range []string{"first_name", "last_name", "email", "role", "company", "position", "phone", "is_verified"} {
		v, ok := updates[column]
		if !ok || v == nil {
			continue
		}
		query += fmt.Sprintf(", %s = $%d", column, argPos)
		args = append(args, v)
		argPos++
	}

	query += fmt.Sprintf(" WHERE id = $%d RETURNING "+accountColumns, argPos)
	args = append(args, id)

	return scanAccount(r.pool.QueryRow(ctx, query, args...))
}

// Delete removes an account.
func (r *PGRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SetAccessibleEvents replaces a client's event grants.
func (r *PGRepository) SetAccessibleEvents(ctx context.Context, id string, events []string) (*Account, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE users SET accessible_events = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+accountColumns, id, events)
	return scanAccount(row)
}

// SetAccessibleModules replaces a client's module grants.
func (r *PGRepository) SetAccessibleModules(ctx context.Context, id string, modules []string) (*Account, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE users SET accessible_modules = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+accountColumns, id, modules)
	return scanAccount(row)
}

func deref(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

var _ Repository = (*PGRepository)(nil)
