package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"taskgate/internal/config"
	"taskgate/internal/db"
	"taskgate/internal/domain"
	"taskgate/internal/engine/auth"
	"taskgate/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Config *config.Config
	Hasher auth.Hasher
	Logger zerolog.Logger
	Now    func() time.Time
}

func New(conn *sql.DB, dialect db.Dialect, cfg *config.Config, logger zerolog.Logger) (Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	hasher, err := auth.NewHasher(cfg.Auth.Hasher, cfg.Auth.BcryptCost)
	if err != nil {
		return Engine{}, err
	}
	return Engine{
		DB:     conn,
		Repo:   repo.Repo{DB: conn, Dialect: dialect},
		Config: cfg,
		Hasher: hasher,
		Logger: logger.With().Str("component", "engine").Logger(),
		Now:    time.Now,
	}, nil
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

// nextUpdatedAt keeps updated_at strictly advancing even when the clock has
// not moved past the stored value.
func nextUpdatedAt(prev, now time.Time) time.Time {
	if now.After(prev) {
		return now
	}
	return prev.Add(time.Microsecond)
}

func (e Engine) authorize(op auth.Operation, c domain.Caller) error {
	if err := auth.Authorize(op, c); err != nil {
		e.Logger.Debug().
			Str("operation", string(op)).
			Int64("caller_id", c.UserID).
			Str("role", string(c.Role)).
			Msg("operation denied")
		return err
	}
	return nil
}

// dummyHash is verified against when a login names an unknown user so both
// failure paths cost the same.
var dummyHash = sync.OnceValue(func() string {
	h, _ := auth.Argon2idHasher{}.Hash("taskgate-dummy-password")
	return h
})

// Login checks username and password and returns the caller context.
func (e Engine) Login(ctx context.Context, username, password string) (domain.AuthContext, error) {
	if username == "" {
		return domain.AuthContext{}, domain.ErrInvalidCredentials
	}
	u, err := e.Repo.GetUserByUsername(ctx, nil, username)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			_, _ = auth.VerifyPassword(password, dummyHash())
			return domain.AuthContext{}, domain.ErrInvalidCredentials
		}
		return domain.AuthContext{}, err
	}
	ok, err := auth.VerifyPassword(password, u.PasswordHash)
	if err != nil {
		e.Logger.Warn().Err(err).Int64("user_id", u.ID).Msg("stored credential could not be verified")
		return domain.AuthContext{}, domain.ErrInvalidCredentials
	}
	if !ok {
		return domain.AuthContext{}, domain.ErrInvalidCredentials
	}
	return domain.AuthContext{UserID: u.ID, Role: u.Role}, nil
}

// CreateUserInput are parameters for provisioning a user.
type CreateUserInput struct {
	Username string
	Email    string
	Password string
	Role     domain.Role
}

func (in CreateUserInput) validate() error {
	if strings.TrimSpace(in.Username) == "" {
		return domain.ValidationError{Field: "username", Reason: "is required"}
	}
	if !strings.Contains(in.Email, "@") {
		return domain.ValidationError{Field: "email", Reason: "must be an email address"}
	}
	if in.Password == "" {
		return domain.ValidationError{Field: "password", Reason: "is required"}
	}
	if !in.Role.Valid() {
		return domain.ValidationError{Field: "role", Reason: "must be admin or user"}
	}
	return nil
}

func (e Engine) CreateUser(ctx context.Context, in CreateUserInput, caller domain.Caller) (domain.User, error) {
	if err := e.authorize(auth.OpCreateUser, caller); err != nil {
		return domain.User{}, err
	}
	return e.insertUser(ctx, nil, in)
}

func (e Engine) insertUser(ctx context.Context, tx *sql.Tx, in CreateUserInput) (domain.User, error) {
	if err := in.validate(); err != nil {
		return domain.User{}, err
	}
	hash, err := e.Hasher.Hash(in.Password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return domain.User{}, domain.ValidationError{Field: "password", Reason: fmt.Sprintf("must be at most %d bytes", auth.BcryptMaxPasswordBytes)}
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	u := domain.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		CreatedAt:    e.now(),
	}
	var q repo.DBTX
	if tx != nil {
		q = tx
	}
	return e.Repo.InsertUser(ctx, q, u)
}

// BootstrapAdmin creates the first admin account. It refuses to run once any
// admin exists, so it cannot be used to bypass CreateUser. The users table is
// locked for the check so concurrent bootstraps yield one admin.
func (e Engine) BootstrapAdmin(ctx context.Context, username, email, password string) (domain.User, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.LockUsers(ctx, tx); err != nil {
		return domain.User{}, err
	}
	n, err := e.Repo.CountAdmins(ctx, tx)
	if err != nil {
		return domain.User{}, err
	}
	if n > 0 {
		return domain.User{}, domain.PermissionDeniedError{Operation: "admin.bootstrap", Reason: "an admin account already exists"}
	}
	u, err := e.insertUser(ctx, tx, CreateUserInput{Username: username, Email: email, Password: password, Role: domain.RoleAdmin})
	if err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	e.Logger.Info().Int64("user_id", u.ID).Str("username", u.Username).Msg("bootstrapped admin")
	return u, nil
}

// GetUser returns the user behind an authenticated caller.
func (e Engine) GetUser(ctx context.Context, id int64) (domain.User, error) {
	u, err := e.Repo.GetUser(ctx, nil, id)
	if errors.Is(err, repo.ErrNotFound) {
		return u, domain.NotFoundError{Entity: domain.EntityUser, ID: id}
	}
	return u, err
}

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	Title          string
	Description    string
	DueDate        time.Time
	Status         domain.Status
	AssignedUserID *int64
}

func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions, caller domain.Caller) (domain.Task, error) {
	if err := e.authorize(auth.OpCreateTask, caller); err != nil {
		return domain.Task{}, err
	}
	if opts.Status == "" {
		opts.Status = domain.StatusPending
	}
	if strings.TrimSpace(opts.Title) == "" {
		return domain.Task{}, domain.ValidationError{Field: "title", Reason: "is required"}
	}
	if !opts.Status.Valid() {
		return domain.Task{}, domain.ValidationError{Field: "status", Reason: "must be pending, in-progress or completed"}
	}
	if opts.DueDate.IsZero() {
		return domain.Task{}, domain.ValidationError{Field: "due_date", Reason: "is required"}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	if opts.AssignedUserID != nil {
		if err := e.ensureUser(ctx, tx, *opts.AssignedUserID, domain.EntityAssignedUser); err != nil {
			return domain.Task{}, err
		}
	}
	if err := e.ensureUser(ctx, tx, caller.UserID, domain.EntityCreator); err != nil {
		return domain.Task{}, err
	}
	now := e.now()
	t, err := e.Repo.InsertTask(ctx, tx, domain.Task{
		Title:          opts.Title,
		Description:    opts.Description,
		DueDate:        opts.DueDate.UTC(),
		Status:         opts.Status,
		AssignedUserID: opts.AssignedUserID,
		CreatedBy:      caller.UserID,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func (e Engine) ensureUser(ctx context.Context, tx *sql.Tx, id int64, entity string) error {
	ok, err := e.Repo.UserExists(ctx, tx, id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NotFoundError{Entity: entity, ID: id}
	}
	return nil
}

// ListTasks returns every task for admins and only assigned tasks for users,
// ordered by ascending task id.
func (e Engine) ListTasks(ctx context.Context, caller domain.Caller) ([]domain.TaskView, error) {
	if err := e.authorize(auth.OpListTasks, caller); err != nil {
		return nil, err
	}
	var assignee *int64
	if !caller.IsAdmin() {
		id := caller.UserID
		assignee = &id
	}
	tasks, err := e.Repo.ListTasks(ctx, nil, assignee)
	if err != nil {
		return nil, err
	}
	views := make([]domain.TaskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, t.View())
	}
	return views, nil
}

// TaskUpdateOptions encapsulates allowed updates. Unset fields are left alone.
type TaskUpdateOptions struct {
	ID             int64
	Title          domain.Optional[string]
	Description    domain.Optional[string]
	DueDate        domain.Optional[time.Time]
	Status         domain.Optional[domain.Status]
	AssignedUserID domain.Optional[int64]
}

func (opts TaskUpdateOptions) validate() error {
	if opts.Title.Set && (opts.Title.Null || strings.TrimSpace(opts.Title.Value) == "") {
		return domain.ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if opts.Description.Set && opts.Description.Null {
		return domain.ValidationError{Field: "description", Reason: "must not be null"}
	}
	if opts.DueDate.Set && (opts.DueDate.Null || opts.DueDate.Value.IsZero()) {
		return domain.ValidationError{Field: "due_date", Reason: "must not be null"}
	}
	if opts.Status.Set && (opts.Status.Null || !opts.Status.Value.Valid()) {
		return domain.ValidationError{Field: "status", Reason: "must be pending, in-progress or completed"}
	}
	return nil
}

func (e Engine) UpdateTask(ctx context.Context, opts TaskUpdateOptions, caller domain.Caller) (domain.Task, error) {
	if err := e.authorize(auth.OpUpdateTask, caller); err != nil {
		return domain.Task{}, err
	}
	if err := opts.validate(); err != nil {
		return domain.Task{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	t, err := e.loadTask(ctx, tx, opts.ID)
	if err != nil {
		return domain.Task{}, err
	}
	if opts.Title.Set {
		t.Title = opts.Title.Value
	}
	if opts.Description.Set {
		t.Description = opts.Description.Value
	}
	if opts.DueDate.Set {
		t.DueDate = opts.DueDate.Value.UTC()
	}
	if opts.Status.Set {
		t.Status = opts.Status.Value
	}
	if opts.AssignedUserID.Set {
		if opts.AssignedUserID.Null {
			t.AssignedUserID = nil
		} else {
			if err := e.ensureUser(ctx, tx, opts.AssignedUserID.Value, domain.EntityAssignedUser); err != nil {
				return domain.Task{}, err
			}
			t.AssignedUserID = opts.AssignedUserID.Ptr()
		}
	}
	t.UpdatedAt = nextUpdatedAt(t.UpdatedAt, e.now())
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

func (e Engine) loadTask(ctx context.Context, tx *sql.Tx, id int64) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, tx, id, true)
	if errors.Is(err, repo.ErrNotFound) {
		return t, domain.NotFoundError{Entity: domain.EntityTask, ID: id}
	}
	return t, err
}

// DeleteTask removes a task. Deleting the same id twice reports NotFound.
func (e Engine) DeleteTask(ctx context.Context, id int64, caller domain.Caller) error {
	if err := e.authorize(auth.OpDeleteTask, caller); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := e.loadTask(ctx, tx, id); err != nil {
		return err
	}
	if err := e.Repo.DeleteTask(ctx, tx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.NotFoundError{Entity: domain.EntityTask, ID: id}
		}
		return err
	}
	return tx.Commit()
}

// CompleteTask marks a task completed. The caller's role is read from storage;
// users may only complete tasks assigned to them. Assignment is never touched.
func (e Engine) CompleteTask(ctx context.Context, taskID, callerID int64) (domain.Task, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	u, err := e.Repo.GetUser(ctx, tx, callerID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Task{}, domain.NotFoundError{Entity: domain.EntityCaller, ID: callerID}
		}
		return domain.Task{}, err
	}
	caller := domain.Caller{UserID: u.ID, Role: u.Role}
	if err := e.authorize(auth.OpCompleteTask, caller); err != nil {
		return domain.Task{}, err
	}
	t, err := e.loadTask(ctx, tx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if err := auth.CanComplete(caller, t); err != nil {
		e.Logger.Debug().Int64("task_id", t.ID).Int64("caller_id", caller.UserID).Msg("completion denied")
		return domain.Task{}, err
	}
	t.Status = domain.StatusCompleted
	t.UpdatedAt = nextUpdatedAt(t.UpdatedAt, e.now())
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}
