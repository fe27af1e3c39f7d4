package users

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fintrack-app/fintrack/internal/platform/db"
	"github.com/fintrack-app/fintrack/internal/rbac"
	"github.com/fintrack-app/fintrack/internal/shared"
)

// Repository defines persistence operations for user administration.
type Repository interface {
	List(ctx context.Context, page, perPage int, search string) ([]User, int, error)
	GetByID(ctx context.Context, id string) (*User, error)
	UpdateRole(ctx context.Context, id string, role rbac.Role, check func(current rbac.Role) error) error
	SetActive(ctx context.Context, id string, active bool) error
	UpdateProfile(ctx context.Context, id, name string) (*User, error)
	CountByStatus(ctx context.Context) (total, active int64, err error)
	CountByRole(ctx context.Context) (map[rbac.Role]int64, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, email, name, role, is_active, created_at, updated_at`

// List returns a page of users ordered by creation time, newest first. A
// non-empty search term filters on email and name.
func (r *PGRepository) List(ctx context.Context, page, perPage int, search string) ([]User, int, error) {
	p := shared.NewPagination(page, perPage, 0)

	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM users
		 WHERE $1 = '' OR email ILIKE '%' || $1 || '%' OR name ILIKE '%' || $1 || '%'`, search).
		Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE $1 = '' OR email ILIKE '%' || $1 || '%' OR name ILIKE '%' || $1 || '%'
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`, search, p.PerPage, p.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// GetByID fetches a user by id.
func (r *PGRepository) GetByID(ctx context.Context, id string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// UpdateRole assigns a new role. The row is locked for the duration of the
// transaction and check runs against the locked role, so a concurrent role
// change cannot invalidate the caller's authorization between read and write.
func (r *PGRepository) UpdateRole(ctx context.Context, id string, role rbac.Role, check func(current rbac.Role) error) error {
	return db.WithTx(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.RepeatableRead}, func(tx pgx.Tx) error {
		var current string
		err := tx.QueryRow(ctx, `SELECT role FROM users WHERE id = $1 FOR UPDATE`, id).Scan(&current)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return shared.ErrNotFound
			}
			return err
		}
		if check != nil {
			if err := check(rbac.Role(current)); err != nil {
				return err
			}
		}
		_, err = tx.Exec(ctx,
			`UPDATE users SET role = $2, updated_at = $3 WHERE id = $1`,
			id, string(role), time.Now().UTC())
		return err
	})
}

// SetActive toggles the account active flag.
func (r *PGRepository) SetActive(ctx context.Context, id string, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET is_active = $2, updated_at = $3 WHERE id = $1`,
		id, active, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// UpdateProfile renames the account and returns the updated record.
func (r *PGRepository) UpdateProfile(ctx context.Context, id, name string) (*User, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE users SET name = $2, updated_at = $3 WHERE id = $1
		 RETURNING `+userColumns, id, name, time.Now().UTC())
	return scanUser(row)
}

// CountByStatus returns total and active account counts.
func (r *PGRepository) CountByStatus(ctx context.Context) (int64, int64, error) {
	var total, active int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE is_active) FROM users`).
		Scan(&total, &active)
	return total, active, err
}

// CountByRole returns per-role account counts.
func (r *PGRepository) CountByRole(ctx context.Context) (map[rbac.Role]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT role, COUNT(*) FROM users GROUP BY role`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[rbac.Role]int64)
	for rows.Next() {
		var role string
		var n int64
		if err := rows.Scan(&role, &n); err != nil {
			return nil, err
		}
		counts[rbac.Role(role)] = n
	}
	return counts, rows.Err()
}

func scanUser(row pgx.Row) (*User, error) {
	var user User
	var role string
	err := row.Scan(&user.ID, &user.Email, &user.Name, &role, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	user.Role = rbac.Role(role)
	return &user, nil
}

var _ Repository = (*PGRepository)(nil)
