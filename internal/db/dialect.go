package db

import (
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect hides the differences between the supported SQL engines.
type Dialect struct {
	Name string
	// ForUpdate is appended to existence checks that precede a write.
	ForUpdate string
	// LockUsers serializes writers of the users table for the rest of a
	// transaction. SQLite runs on one connection and needs no statement.
	LockUsers string
	numbered  bool
}

var (
	SQLite   = Dialect{Name: "sqlite"}
	Postgres = Dialect{
		Name:      "postgres",
		ForUpdate: " FOR UPDATE",
		LockUsers: "LOCK TABLE users IN SHARE ROW EXCLUSIVE MODE",
		numbered:  true,
	}
)

// Rebind rewrites '?' placeholders for engines that use numbered parameters.
func (d Dialect) Rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for _, r := range query {
		switch {
		case r == '\'':
			inQuote = !inQuote
			b.WriteRune(r)
		case r == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// UniqueViolation reports whether err is a uniqueness constraint failure and,
// when it can tell, which column caused it.
func (d Dialect) UniqueViolation(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgerrcode.UniqueViolation {
			return "", false
		}
		return columnHint(pgErr.ConstraintName + " " + pgErr.Detail), true
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return columnHint(liteErr.Error()), true
		case sqlite3.SQLITE_CONSTRAINT:
			if strings.Contains(liteErr.Error(), "UNIQUE") {
				return columnHint(liteErr.Error()), true
			}
		}
		return "", false
	}
	return "", false
}

func columnHint(msg string) string {
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "username"):
		return "username"
	case strings.Contains(lowered, "email"):
		return "email"
	default:
		return ""
	}
}
