package repo

import (
	"context"
	"database/sql"
	"fmt"

	"taskgate/internal/domain"
)

const userColumns = `id,username,email,password_hash,role,created_at`

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u         domain.User
		role      string
		createdAt string
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &role, &createdAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	if err != nil {
		return u, err
	}
	u.Role = domain.Role(role)
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return u, fmt.Errorf("user %d created_at: %w", u.ID, err)
	}
	return u, nil
}

// InsertUser stores u. Uniqueness violations on username or email are
// returned as domain.DuplicateError.
func (r Repo) InsertUser(ctx context.Context, tx DBTX, u domain.User) (domain.User, error) {
	err := r.querier(tx).QueryRowContext(ctx, r.q(`INSERT INTO users(username,email,password_hash,role,created_at) VALUES (?,?,?,?,?) RETURNING id`),
		u.Username, u.Email, u.PasswordHash, string(u.Role), formatTime(u.CreatedAt)).Scan(&u.ID)
	if err != nil {
		if field, ok := r.Dialect.UniqueViolation(err); ok {
			return domain.User{}, domain.DuplicateError{Field: field}
		}
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (r Repo) GetUser(ctx context.Context, tx DBTX, id int64) (domain.User, error) {
	return scanUser(r.querier(tx).QueryRowContext(ctx, r.q(`SELECT `+userColumns+` FROM users WHERE id=?`), id))
}

// GetUserByUsername matches the username exactly, including case.
func (r Repo) GetUserByUsername(ctx context.Context, tx DBTX, username string) (domain.User, error) {
	return scanUser(r.querier(tx).QueryRowContext(ctx, r.q(`SELECT `+userColumns+` FROM users WHERE username=?`), username))
}

func (r Repo) UserExists(ctx context.Context, tx DBTX, id int64) (bool, error) {
	var n int
	err := r.querier(tx).QueryRowContext(ctx, r.q(`SELECT 1 FROM users WHERE id=?`), id).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (r Repo) CountAdmins(ctx context.Context, tx DBTX) (int, error) {
	var n int
	err := r.querier(tx).QueryRowContext(ctx, r.q(`SELECT COUNT(*) FROM users WHERE role=?`), string(domain.RoleAdmin)).Scan(&n)
	return n, err
}

// LockUsers takes the dialect's users table lock inside tx.
func (r Repo) LockUsers(ctx context.Context, tx DBTX) error {
	if r.Dialect.LockUsers == "" {
		return nil
	}
	_, err := r.querier(tx).ExecContext(ctx, r.Dialect.LockUsers)
	return err
}
