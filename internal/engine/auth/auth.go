package auth

import (
	"fmt"

	"taskgate/internal/domain"
)

// Operation names a gated engine entry point.
type Operation string

const (
	OpCreateUser   Operation = "user.create"
	OpCreateTask   Operation = "task.create"
	OpListTasks    Operation = "task.list"
	OpUpdateTask   Operation = "task.update"
	OpDeleteTask   Operation = "task.delete"
	OpCompleteTask Operation = "task.complete"
)

// Guard inspects the caller and returns a PermissionDeniedError when the
// operation may not proceed.
type Guard func(op Operation, c domain.Caller) error

// RequireCaller rejects requests without an authenticated identity.
func RequireCaller(op Operation, c domain.Caller) error {
	if c.UserID <= 0 || !c.Role.Valid() {
		return domain.PermissionDeniedError{Operation: string(op), Reason: "authentication required"}
	}
	return nil
}

// RequireAdmin rejects non-admin callers.
func RequireAdmin(op Operation, c domain.Caller) error {
	if c.Role != domain.RoleAdmin {
		return domain.PermissionDeniedError{
			Operation: string(op),
			Reason:    fmt.Sprintf("admin role required for %s", op),
		}
	}
	return nil
}

// Rules is the single table of who may invoke what. Completion is open to
// every authenticated caller; the assignment check happens once the task is
// loaded.
var Rules = map[Operation][]Guard{
	OpCreateUser:   {RequireCaller, RequireAdmin},
	OpCreateTask:   {RequireCaller, RequireAdmin},
	OpListTasks:    {RequireCaller},
	OpUpdateTask:   {RequireCaller, RequireAdmin},
	OpDeleteTask:   {RequireCaller, RequireAdmin},
	OpCompleteTask: {RequireCaller},
}

// Authorize runs the guards registered for op. Unknown operations are denied.
func Authorize(op Operation, c domain.Caller) error {
	guards, ok := Rules[op]
	if !ok {
		return domain.PermissionDeniedError{Operation: string(op), Reason: fmt.Sprintf("operation %s is not permitted", op)}
	}
	for _, g := range guards {
		if err := g(op, c); err != nil {
			return err
		}
	}
	return nil
}

// CanComplete applies the completion rule to an already loaded task.
func CanComplete(c domain.Caller, t domain.Task) error {
	if c.Role == domain.RoleAdmin {
		return nil
	}
	if t.AssignedUserID != nil && *t.AssignedUserID == c.UserID {
		return nil
	}
	return domain.PermissionDeniedError{
		Operation: string(OpCompleteTask),
		Reason:    "task is not assigned to you",
	}
}
