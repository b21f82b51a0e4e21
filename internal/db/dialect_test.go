package db

import (
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestRebind(t *testing.T) {
	q := `SELECT id FROM tasks WHERE id=? AND title <> '?' AND status=?`
	if got := SQLite.Rebind(q); got != q {
		t.Fatalf("sqlite rebind changed query: %s", got)
	}
	want := `SELECT id FROM tasks WHERE id=$1 AND title <> '?' AND status=$2`
	if got := Postgres.Rebind(q); got != want {
		t.Fatalf("postgres rebind = %s", got)
	}
}

func TestPostgresUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert user: %w", &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "users_email_key"})
	field, ok := Postgres.UniqueViolation(err)
	if !ok || field != "email" {
		t.Fatalf("got %q %v", field, ok)
	}
	if _, ok := Postgres.UniqueViolation(&pgconn.PgError{Code: pgerrcode.ForeignKeyViolation}); ok {
		t.Fatalf("foreign key violation classified as unique")
	}
	if _, ok := Postgres.UniqueViolation(fmt.Errorf("boom")); ok {
		t.Fatalf("plain error classified as unique")
	}
}

func TestOpenSQLiteUniqueViolation(t *testing.T) {
	conn, dialect, err := Open(Config{Driver: "sqlite", Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	if dialect.Name != "sqlite" {
		t.Fatalf("dialect = %s", dialect.Name)
	}
	if _, err := conn.Exec(`CREATE TABLE users(id INTEGER PRIMARY KEY, username TEXT NOT NULL UNIQUE)`); err != nil {
		t.Fatal(err)
	}
	if _, err := conn.Exec(`INSERT INTO users(username) VALUES ('ann')`); err != nil {
		t.Fatal(err)
	}
	_, err = conn.Exec(`INSERT INTO users(username) VALUES ('ann')`)
	field, ok := dialect.UniqueViolation(err)
	if !ok || field != "username" {
		t.Fatalf("got %q %v (err %v)", field, ok, err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, _, err := Open(Config{Driver: "oracle"}); err == nil {
		t.Fatalf("expected error")
	}
	if _, _, err := Open(Config{Driver: "postgres"}); err == nil {
		t.Fatalf("expected dsn error")
	}
}

func TestLockUsersStatement(t *testing.T) {
	if SQLite.LockUsers != "" {
		t.Fatalf("sqlite should not lock: %q", SQLite.LockUsers)
	}
	if Postgres.LockUsers != "LOCK TABLE users IN SHARE ROW EXCLUSIVE MODE" {
		t.Fatalf("postgres lock = %q", Postgres.LockUsers)
	}
}
