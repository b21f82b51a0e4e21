package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"taskgate/internal/db"
	"taskgate/internal/domain"
)

// DBTX is satisfied by *sql.DB and *sql.Tx so every query can run inside or
// outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Repo struct {
	DB      *sql.DB
	Dialect db.Dialect
}

var ErrNotFound = errors.New("not found")

func (r Repo) q(query string) string {
	return r.Dialect.Rebind(query)
}

func (r Repo) querier(tx DBTX) DBTX {
	if tx != nil {
		return tx
	}
	return r.DB
}

const taskColumns = `id,title,description,due_date,status,assigned_user_id,created_by,created_at,updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (domain.Task, error) {
	var (
		t                         domain.Task
		status                    string
		assigned                  sql.NullInt64
		due, createdAt, updatedAt string
	)
	err := row.Scan(&t.ID, &t.Title, &t.Description, &due, &status, &assigned, &t.CreatedBy, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	t.Status = domain.Status(status)
	if assigned.Valid {
		id := assigned.Int64
		t.AssignedUserID = &id
	}
	if t.DueDate, err = parseTime(due); err != nil {
		return t, fmt.Errorf("task %d due_date: %w", t.ID, err)
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return t, fmt.Errorf("task %d created_at: %w", t.ID, err)
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return t, fmt.Errorf("task %d updated_at: %w", t.ID, err)
	}
	return t, nil
}

// InsertTask stores t and returns it with its assigned id.
func (r Repo) InsertTask(ctx context.Context, tx DBTX, t domain.Task) (domain.Task, error) {
	err := r.querier(tx).QueryRowContext(ctx, r.q(`INSERT INTO tasks(title,description,due_date,status,assigned_user_id,created_by,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?) RETURNING id`),
		t.Title, t.Description, formatTime(t.DueDate), string(t.Status), nullableID(t.AssignedUserID), t.CreatedBy,
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt)).Scan(&t.ID)
	if err != nil {
		return domain.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return t, nil
}

// GetTask loads a task. With lock set the row is locked for the rest of the
// transaction on engines that support it.
func (r Repo) GetTask(ctx context.Context, tx DBTX, id int64, lock bool) (domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id=?`
	if lock {
		query += r.Dialect.ForUpdate
	}
	return scanTask(r.querier(tx).QueryRowContext(ctx, r.q(query), id))
}

// ListTasks returns tasks ordered by ascending id. A non-nil assignee limits
// the result to tasks assigned to that user.
func (r Repo) ListTasks(ctx context.Context, tx DBTX, assignee *int64) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	var args []any
	if assignee != nil {
		query += ` WHERE assigned_user_id=?`
		args = append(args, *assignee)
	}
	query += ` ORDER BY id ASC`
	rows, err := r.querier(tx).QueryContext(ctx, r.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// UpdateTask writes every mutable column of t.
func (r Repo) UpdateTask(ctx context.Context, tx DBTX, t domain.Task) error {
	res, err := r.querier(tx).ExecContext(ctx, r.q(`UPDATE tasks SET title=?,description=?,due_date=?,status=?,assigned_user_id=?,updated_at=? WHERE id=?`),
		t.Title, t.Description, formatTime(t.DueDate), string(t.Status), nullableID(t.AssignedUserID), formatTime(t.UpdatedAt), t.ID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteTask(ctx context.Context, tx DBTX, id int64) error {
	res, err := r.querier(tx).ExecContext(ctx, r.q(`DELETE FROM tasks WHERE id=?`), id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}
