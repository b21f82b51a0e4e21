package engine_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/rs/zerolog"

	"taskgate/internal/config"
	"taskgate/internal/db"
	"taskgate/internal/domain"
	"taskgate/internal/engine"
	"taskgate/internal/engine/auth"
	"taskgate/internal/migrate"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	Admin  domain.Caller
	clock  *stepClock
}

// stepClock returns a fixed instant that only moves when advanced.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var cheapArgon = &argon2id.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	conn, dialect, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if _, err := migrate.Migrate(conn, dialect); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng, err := engine.New(conn, dialect, config.Default(), zerolog.Nop())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	eng.Hasher = auth.Argon2idHasher{Params: cheapArgon}
	clock := &stepClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	eng.Now = clock.Now
	ctx := context.Background()
	admin, err := eng.BootstrapAdmin(ctx, "root", "root@example.com", "rootpass")
	if err != nil {
		t.Fatalf("bootstrap admin: %v", err)
	}
	return testEnv{
		Engine: eng,
		Ctx:    ctx,
		Admin:  domain.Caller{UserID: admin.ID, Role: domain.RoleAdmin},
		clock:  clock,
	}
}

func (env testEnv) createUser(t *testing.T, name string) domain.Caller {
	t.Helper()
	u, err := env.Engine.CreateUser(env.Ctx, engine.CreateUserInput{
		Username: name,
		Email:    name + "@example.com",
		Password: "password-" + name,
		Role:     domain.RoleUser,
	}, env.Admin)
	if err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return domain.Caller{UserID: u.ID, Role: u.Role}
}

func (env testEnv) createTask(t *testing.T, title string, assignee *int64) domain.Task {
	t.Helper()
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		Title:          title,
		Description:    "description of " + title,
		DueDate:        time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC),
		AssignedUserID: assignee,
	}, env.Admin)
	if err != nil {
		t.Fatalf("create task %s: %v", title, err)
	}
	return task
}

func ptr(v int64) *int64 { return &v }

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "ursula")

	got, err := env.Engine.Login(env.Ctx, "ursula", "password-ursula")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if got.UserID != u.UserID || got.Role != domain.RoleUser {
		t.Fatalf("unexpected auth context %+v", got)
	}

	_, wrongPassword := env.Engine.Login(env.Ctx, "ursula", "nope")
	_, unknownUser := env.Engine.Login(env.Ctx, "nobody", "password-ursula")
	_, wrongCase := env.Engine.Login(env.Ctx, "Ursula", "password-ursula")
	_, empty := env.Engine.Login(env.Ctx, "", "")
	for name, err := range map[string]error{"wrong password": wrongPassword, "unknown user": unknownUser, "wrong case": wrongCase, "empty": empty} {
		if !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("%s: expected invalid credentials, got %v", name, err)
		}
	}
	if wrongPassword.Error() != unknownUser.Error() {
		t.Fatalf("failure messages differ: %q vs %q", wrongPassword, unknownUser)
	}
}

func TestCreateUser(t *testing.T) {
	env := newTestEnv(t)
	u, err := env.Engine.CreateUser(env.Ctx, engine.CreateUserInput{
		Username: "alice", Email: "alice@example.com", Password: "secret1", Role: domain.RoleUser,
	}, env.Admin)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.PasswordHash == "" || u.PasswordHash == "secret1" {
		t.Fatalf("password not hashed: %q", u.PasswordHash)
	}

	_, err = env.Engine.CreateUser(env.Ctx, engine.CreateUserInput{
		Username: "alice", Email: "alice2@example.com", Password: "secret1", Role: domain.RoleUser,
	}, env.Admin)
	var dup domain.DuplicateError
	if !errors.As(err, &dup) || dup.Field != "username" {
		t.Fatalf("expected duplicate username, got %v", err)
	}
	_, err = env.Engine.CreateUser(env.Ctx, engine.CreateUserInput{
		Username: "alice2", Email: "alice@example.com", Password: "secret1", Role: domain.RoleUser,
	}, env.Admin)
	if !errors.As(err, &dup) || dup.Field != "email" {
		t.Fatalf("expected duplicate email, got %v", err)
	}

	_, err = env.Engine.CreateUser(env.Ctx, engine.CreateUserInput{
		Username: "mallory", Email: "m@example.com", Password: "secret1", Role: domain.RoleAdmin,
	}, domain.Caller{UserID: u.ID, Role: domain.RoleUser})
	if !domain.IsPermissionDenied(err) {
		t.Fatalf("expected permission denied, got %v", err)
	}
	if _, err := env.Engine.Login(env.Ctx, "mallory", "secret1"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("denied user must not be persisted: %v", err)
	}

	_, err = env.Engine.CreateUser(env.Ctx, engine.CreateUserInput{
		Username: "bad", Email: "bad@example.com", Password: "secret1", Role: "superuser",
	}, env.Admin)
	var ve domain.ValidationError
	if !errors.As(err, &ve) || ve.Field != "role" {
		t.Fatalf("expected role validation error, got %v", err)
	}
}

func TestBootstrapAdminOnlyOnce(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.BootstrapAdmin(env.Ctx, "second", "second@example.com", "pw")
	if !domain.IsPermissionDenied(err) {
		t.Fatalf("expected refusal once an admin exists, got %v", err)
	}
}

func TestBootstrapAdminConcurrent(t *testing.T) {
	conn, dialect, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if _, err := migrate.Migrate(conn, dialect); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng, err := engine.New(conn, dialect, config.Default(), zerolog.Nop())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	eng.Hasher = auth.Argon2idHasher{Params: cheapArgon}

	const workers = 6
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := "admin" + string(rune('a'+i))
			_, errs[i] = eng.BootstrapAdmin(context.Background(), name, name+"@example.com", "rootpass")
		}(i)
	}
	wg.Wait()
	created := 0
	for _, err := range errs {
		switch {
		case err == nil:
			created++
		case !domain.IsPermissionDenied(err):
			t.Fatalf("unexpected bootstrap error: %v", err)
		}
	}
	if created != 1 {
		t.Fatalf("created %d admins, want 1", created)
	}
}

func TestCreateUserBcryptPasswordLimit(t *testing.T) {
	env := newTestEnv(t)
	env.Engine.Hasher = auth.BcryptHasher{Cost: 4}

	_, err := env.Engine.CreateUser(env.Ctx, engine.CreateUserInput{
		Username: "long", Email: "long@example.com", Password: strings.Repeat("a", 100), Role: domain.RoleUser,
	}, env.Admin)
	var ve domain.ValidationError
	if !errors.As(err, &ve) || ve.Field != "password" {
		t.Fatalf("expected password validation error, got %v", err)
	}

	pw := strings.Repeat("b", auth.BcryptMaxPasswordBytes)
	if _, err := env.Engine.CreateUser(env.Ctx, engine.CreateUserInput{
		Username: "edge", Email: "edge@example.com", Password: pw, Role: domain.RoleUser,
	}, env.Admin); err != nil {
		t.Fatalf("72 byte password: %v", err)
	}
	if _, err := env.Engine.Login(env.Ctx, "edge", pw); err != nil {
		t.Fatalf("login with bcrypt hash: %v", err)
	}
}

func TestNonAdminMutationsDenied(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "ursula")
	task := env.createTask(t, "existing", ptr(u.UserID))

	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		Title: "sneaky", Description: "d", DueDate: time.Now(),
	}, u); !domain.IsPermissionDenied(err) {
		t.Fatalf("create: expected permission denied, got %v", err)
	}
	if _, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{
		ID: task.ID, Title: domain.Some("hijacked"),
	}, u); !domain.IsPermissionDenied(err) {
		t.Fatalf("update: expected permission denied, got %v", err)
	}
	if err := env.Engine.DeleteTask(env.Ctx, task.ID, u); !domain.IsPermissionDenied(err) {
		t.Fatalf("delete: expected permission denied, got %v", err)
	}

	all, err := env.Engine.ListTasks(env.Ctx, env.Admin)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].Title != "existing" || !all[0].UpdatedAt.Equal(task.UpdatedAt) {
		t.Fatalf("denied mutations changed state: %+v", all)
	}
}

func TestCreateTaskChecks(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, "first", nil)
	if task.Status != domain.StatusPending {
		t.Fatalf("default status = %s", task.Status)
	}
	if task.CreatedBy != env.Admin.UserID {
		t.Fatalf("created_by = %d", task.CreatedBy)
	}
	if !task.CreatedAt.Equal(task.UpdatedAt) || !task.CreatedAt.Equal(env.clock.Now()) {
		t.Fatalf("timestamps %s / %s", task.CreatedAt, task.UpdatedAt)
	}

	_, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		Title: "orphan", Description: "d", DueDate: time.Now(), AssignedUserID: ptr(4242),
	}, env.Admin)
	if !domain.IsNotFound(err, domain.EntityAssignedUser) {
		t.Fatalf("expected NotFound AssignedUser, got %v", err)
	}

	_, err = env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		Title: "ghost", Description: "d", DueDate: time.Now(),
	}, domain.Caller{UserID: 999, Role: domain.RoleAdmin})
	if !domain.IsNotFound(err, domain.EntityCreator) {
		t.Fatalf("expected NotFound Creator, got %v", err)
	}

	_, err = env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		Title: "  ", Description: "d", DueDate: time.Now(),
	}, env.Admin)
	var ve domain.ValidationError
	if !errors.As(err, &ve) || ve.Field != "title" {
		t.Fatalf("expected title validation error, got %v", err)
	}

	all, _ := env.Engine.ListTasks(env.Ctx, env.Admin)
	if len(all) != 1 {
		t.Fatalf("failed creations were persisted: %d tasks", len(all))
	}
}

func TestListTasksProjection(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "ursula")
	v := env.createUser(t, "victor")
	idle := env.createUser(t, "idle")
	env.createTask(t, "a", ptr(u.UserID))
	env.createTask(t, "b", ptr(v.UserID))
	env.createTask(t, "c", nil)
	env.createTask(t, "d", ptr(u.UserID))

	all, err := env.Engine.ListTasks(env.Ctx, env.Admin)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Fatalf("admin sees %d tasks", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].ID >= all[i].ID {
			t.Fatalf("tasks not ordered by id: %+v", all)
		}
	}

	mine, err := env.Engine.ListTasks(env.Ctx, u)
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 2 || mine[0].Title != "a" || mine[1].Title != "d" {
		t.Fatalf("user sees %+v", mine)
	}
	for _, tv := range mine {
		if tv.AssignedUserID == nil || *tv.AssignedUserID != u.UserID {
			t.Fatalf("foreign task leaked: %+v", tv)
		}
	}

	none, err := env.Engine.ListTasks(env.Ctx, idle)
	if err != nil {
		t.Fatal(err)
	}
	if none == nil || len(none) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", none)
	}
}

func TestCreateThenListRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "ursula")
	due := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	created, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		Title:          "Write report",
		Description:    "Quarterly numbers",
		DueDate:        due,
		Status:         domain.StatusInProgress,
		AssignedUserID: ptr(u.UserID),
	}, env.Admin)
	if err != nil {
		t.Fatal(err)
	}
	all, err := env.Engine.ListTasks(env.Ctx, env.Admin)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 task, got %d", len(all))
	}
	got := all[0]
	if got.ID != created.ID || got.Title != created.Title || got.Description != created.Description ||
		!got.DueDate.Equal(due) || got.Status != domain.StatusInProgress ||
		got.AssignedUserID == nil || *got.AssignedUserID != u.UserID ||
		!got.CreatedAt.Equal(created.CreatedAt) || !got.UpdatedAt.Equal(created.UpdatedAt) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, created.View())
	}
}

func TestUpdateTaskPartial(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "ursula")
	task := env.createTask(t, "original", ptr(u.UserID))

	env.clock.Advance(time.Minute)
	updated, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{
		ID:     task.ID,
		Status: domain.Some(domain.StatusInProgress),
	}, env.Admin)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != domain.StatusInProgress {
		t.Fatalf("status = %s", updated.Status)
	}
	if updated.Title != task.Title || updated.Description != task.Description || !updated.DueDate.Equal(task.DueDate) {
		t.Fatalf("omitted fields changed: %+v", updated)
	}
	if updated.AssignedUserID == nil || *updated.AssignedUserID != u.UserID {
		t.Fatalf("omitted assignment changed: %v", updated.AssignedUserID)
	}
	if updated.CreatedBy != task.CreatedBy || !updated.CreatedAt.Equal(task.CreatedAt) {
		t.Fatalf("immutable fields changed: %+v", updated)
	}
	if !updated.UpdatedAt.After(task.UpdatedAt) {
		t.Fatalf("updated_at did not advance: %s -> %s", task.UpdatedAt, updated.UpdatedAt)
	}

	// The clock is frozen: a no-op update must still move updated_at forward.
	again, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID}, env.Admin)
	if err != nil {
		t.Fatalf("noop update: %v", err)
	}
	if !again.UpdatedAt.After(updated.UpdatedAt) {
		t.Fatalf("updated_at not strictly increasing: %s -> %s", updated.UpdatedAt, again.UpdatedAt)
	}
}

func TestUpdateTaskAssignmentNullVersusAbsent(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "ursula")
	v := env.createUser(t, "victor")
	task := env.createTask(t, "assigned", ptr(u.UserID))

	kept, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, Title: domain.Some("renamed")}, env.Admin)
	if err != nil {
		t.Fatal(err)
	}
	if kept.AssignedUserID == nil || *kept.AssignedUserID != u.UserID {
		t.Fatalf("absent field cleared assignment: %v", kept.AssignedUserID)
	}

	moved, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, AssignedUserID: domain.Some(v.UserID)}, env.Admin)
	if err != nil {
		t.Fatal(err)
	}
	if moved.AssignedUserID == nil || *moved.AssignedUserID != v.UserID {
		t.Fatalf("reassignment failed: %v", moved.AssignedUserID)
	}

	cleared, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, AssignedUserID: domain.Null[int64]()}, env.Admin)
	if err != nil {
		t.Fatal(err)
	}
	if cleared.AssignedUserID != nil {
		t.Fatalf("explicit null did not clear assignment: %v", *cleared.AssignedUserID)
	}
	vTasks, _ := env.Engine.ListTasks(env.Ctx, v)
	if len(vTasks) != 0 {
		t.Fatalf("cleared task still listed for previous assignee")
	}

	_, err = env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, AssignedUserID: domain.Some(int64(4242))}, env.Admin)
	if !domain.IsNotFound(err, domain.EntityAssignedUser) {
		t.Fatalf("expected NotFound AssignedUser on update, got %v", err)
	}
}

func TestUpdateTaskNotFoundAndValidation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: 99999, Title: domain.Some("x")}, env.Admin)
	if !domain.IsNotFound(err, domain.EntityTask) {
		t.Fatalf("expected NotFound Task, got %v", err)
	}
	task := env.createTask(t, "t", nil)
	_, err = env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, Status: domain.Some(domain.Status("archived"))}, env.Admin)
	var ve domain.ValidationError
	if !errors.As(err, &ve) || ve.Field != "status" {
		t.Fatalf("expected status validation error, got %v", err)
	}
	_, err = env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{ID: task.ID, Title: domain.Null[string]()}, env.Admin)
	if !errors.As(err, &ve) || ve.Field != "title" {
		t.Fatalf("expected title validation error, got %v", err)
	}
}

func TestDeleteTask(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "ursula")
	task := env.createTask(t, "doomed", ptr(u.UserID))

	if err := env.Engine.DeleteTask(env.Ctx, task.ID, env.Admin); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := env.Engine.DeleteTask(env.Ctx, task.ID, env.Admin); !domain.IsNotFound(err, domain.EntityTask) {
		t.Fatalf("second delete: expected NotFound, got %v", err)
	}
	if err := env.Engine.DeleteTask(env.Ctx, 99999, env.Admin); !domain.IsNotFound(err, domain.EntityTask) {
		t.Fatalf("missing id: expected NotFound, got %v", err)
	}
	// Role is checked before existence.
	if err := env.Engine.DeleteTask(env.Ctx, 99999, u); !domain.IsPermissionDenied(err) {
		t.Fatalf("non-admin on missing id: expected permission denied, got %v", err)
	}
}

func TestCompleteTaskMatrix(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "ursula")
	v := env.createUser(t, "victor")
	mine := env.createTask(t, "mine", ptr(u.UserID))
	unassigned := env.createTask(t, "unassigned", nil)
	adminOwned := env.createTask(t, "admin completes", ptr(u.UserID))

	env.clock.Advance(time.Second)
	done, err := env.Engine.CompleteTask(env.Ctx, mine.ID, u.UserID)
	if err != nil {
		t.Fatalf("assignee completion: %v", err)
	}
	if done.Status != domain.StatusCompleted || done.AssignedUserID == nil || *done.AssignedUserID != u.UserID {
		t.Fatalf("unexpected completed task %+v", done)
	}
	if !done.UpdatedAt.After(mine.UpdatedAt) {
		t.Fatalf("updated_at not bumped")
	}

	_, err = env.Engine.CompleteTask(env.Ctx, adminOwned.ID, v.UserID)
	if !domain.IsPermissionDenied(err) || err.Error() != "permission denied: task is not assigned to you" {
		t.Fatalf("other user: expected not-assigned denial, got %v", err)
	}
	_, err = env.Engine.CompleteTask(env.Ctx, unassigned.ID, u.UserID)
	if !domain.IsPermissionDenied(err) {
		t.Fatalf("user on unassigned: expected permission denied, got %v", err)
	}
	views, _ := env.Engine.ListTasks(env.Ctx, env.Admin)
	for _, tv := range views {
		if (tv.ID == adminOwned.ID || tv.ID == unassigned.ID) && tv.Status != domain.StatusPending {
			t.Fatalf("denied completion changed status of %d to %s", tv.ID, tv.Status)
		}
	}

	for _, id := range []int64{adminOwned.ID, unassigned.ID} {
		got, err := env.Engine.CompleteTask(env.Ctx, id, env.Admin.UserID)
		if err != nil {
			t.Fatalf("admin completion of %d: %v", id, err)
		}
		if got.Status != domain.StatusCompleted {
			t.Fatalf("status = %s", got.Status)
		}
	}
	got, _ := env.Engine.ListTasks(env.Ctx, env.Admin)
	if got[1].AssignedUserID != nil {
		t.Fatalf("admin completion assigned the unassigned task")
	}

	if _, err := env.Engine.CompleteTask(env.Ctx, mine.ID, 777); !domain.IsNotFound(err, domain.EntityCaller) {
		t.Fatalf("unknown caller: expected NotFound Caller, got %v", err)
	}
	if _, err := env.Engine.CompleteTask(env.Ctx, 99999, u.UserID); !domain.IsNotFound(err, domain.EntityTask) {
		t.Fatalf("unknown task: expected NotFound Task, got %v", err)
	}
}

func TestWorkedExample(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "u")
	v := env.createUser(t, "v")
	task := env.createTask(t, "T", ptr(u.UserID))
	if task.Status != domain.StatusPending {
		t.Fatalf("status = %s", task.Status)
	}
	done, err := env.Engine.CompleteTask(env.Ctx, task.ID, u.UserID)
	if err != nil {
		t.Fatal(err)
	}
	if done.Status != domain.StatusCompleted || *done.AssignedUserID != u.UserID {
		t.Fatalf("unexpected %+v", done)
	}
	if _, err := env.Engine.CompleteTask(env.Ctx, task.ID, v.UserID); !domain.IsPermissionDenied(err) {
		t.Fatalf("expected permission denied for V, got %v", err)
	}
}

func TestConcurrentUpdatesKeepUpdatedAtMonotonic(t *testing.T) {
	env := newTestEnv(t)
	task := env.createTask(t, "contended", nil)

	const writers = 8
	var wg sync.WaitGroup
	results := make(chan domain.Task, writers)
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := env.Engine.UpdateTask(env.Ctx, engine.TaskUpdateOptions{
				ID:          task.ID,
				Description: domain.Some("touched"),
			}, env.Admin)
			if err != nil {
				errs <- err
				return
			}
			results <- got
		}()
	}
	wg.Wait()
	close(results)
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent update: %v", err)
	}
	seen := map[time.Time]bool{}
	latest := task.UpdatedAt
	for r := range results {
		if seen[r.UpdatedAt] {
			t.Fatalf("two accepted writes share updated_at %s", r.UpdatedAt)
		}
		seen[r.UpdatedAt] = true
		if r.UpdatedAt.After(latest) {
			latest = r.UpdatedAt
		}
	}
	final, _ := env.Engine.ListTasks(env.Ctx, env.Admin)
	if !final[0].UpdatedAt.Equal(latest) {
		t.Fatalf("stored updated_at %s is not the latest accepted %s", final[0].UpdatedAt, latest)
	}
}
