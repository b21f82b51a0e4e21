package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const defaultDBName = "taskgate.db"

type Config struct {
	Driver    string
	Workspace string
	DSN       string
}

func dbPath(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".taskgate", defaultDBName)
}

// EnsureWorkspace creates workspace directory if missing.
func EnsureWorkspace(workspace string) (string, error) {
	if workspace == "" {
		workspace = "."
	}
	path := filepath.Join(workspace, ".taskgate")
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// Open opens the configured database and returns it with its dialect.
func Open(cfg Config) (*sql.DB, Dialect, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return openSQLite(cfg)
	case "postgres":
		return openPostgres(cfg)
	default:
		return nil, Dialect{}, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func openSQLite(cfg Config) (*sql.DB, Dialect, error) {
	if _, err := EnsureWorkspace(cfg.Workspace); err != nil {
		return nil, Dialect{}, err
	}
	dsn := cfg.DSN
	if dsn == "" {
		dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath(cfg.Workspace))
	}
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, Dialect{}, err
	}
	// A single connection serialises writers so read-check-write sequences
	// never interleave.
	conn.SetMaxOpenConns(1)
	return conn, SQLite, nil
}

func openPostgres(cfg Config) (*sql.DB, Dialect, error) {
	if cfg.DSN == "" {
		return nil, Dialect{}, fmt.Errorf("postgres dsn required")
	}
	conn, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, Dialect{}, err
	}
	return conn, Postgres, nil
}

// Path returns the sqlite db path for the workspace.
func Path(workspace string) string {
	return dbPath(workspace)
}
