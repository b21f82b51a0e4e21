package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidCredentials is returned for every failed login, whatever the cause.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Entities named by NotFoundError.
const (
	EntityTask         = "Task"
	EntityAssignedUser = "AssignedUser"
	EntityCreator      = "Creator"
	EntityCaller       = "Caller"
	EntityUser         = "User"
)

type PermissionDeniedError struct {
	Operation string
	Reason    string
}

func (e PermissionDeniedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("permission denied: %s", e.Operation)
	}
	return fmt.Sprintf("permission denied: %s", e.Reason)
}

type NotFoundError struct {
	Entity string
	ID     int64
}

func (e NotFoundError) Error() string {
	if e.ID != 0 {
		return fmt.Sprintf("not found: %s %d", e.Entity, e.ID)
	}
	return fmt.Sprintf("not found: %s", e.Entity)
}

type DuplicateError struct {
	Field string
}

func (e DuplicateError) Error() string {
	if e.Field == "" {
		return "duplicate entity"
	}
	return fmt.Sprintf("duplicate entity: %s already exists", e.Field)
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s %s", e.Field, e.Reason)
}

// IsNotFound reports whether err is a NotFoundError for the given entity.
// An empty entity matches any NotFoundError.
func IsNotFound(err error, entity string) bool {
	var nf NotFoundError
	if !errors.As(err, &nf) {
		return false
	}
	return entity == "" || nf.Entity == entity
}

func IsPermissionDenied(err error) bool {
	var pd PermissionDeniedError
	return errors.As(err, &pd)
}
