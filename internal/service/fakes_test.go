package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/sakif/todo-server/internal/apperror"
	"github.com/sakif/todo-server/internal/model"
	"github.com/sakif/todo-server/internal/repository"
)

// =========================================================================
// FAKES
// =========================================================================
//
// In-memory implementations of the repository interfaces. Hand-written
// fakes keep the tests readable: you can see exactly what each one does.

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeUserRepo is an in-memory repository.UserRepository. calls records
// the order of method calls so tests can assert on it.
type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[int64]*model.User
	nextID int64
	calls  []string

	// set to a non-nil error to simulate a database failure
	getErr    error
	createErr error
	// raceOnCreate makes Create fail as if another request inserted the
	// same email between ExistsByEmail and Create.
	raceOnCreate bool
}

var _ repository.UserRepository = (*fakeUserRepo)(nil)

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int64]*model.User), nextID: 1}
}

func (f *fakeUserRepo) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeUserRepo) Create(ctx context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Create")
	if f.createErr != nil {
		return f.createErr
	}
	if f.raceOnCreate {
		return apperror.EmailExists()
	}
	for _, u := range f.users {
		if u.Email == user.Email {
			return apperror.EmailExists()
		}
	}
	user.ID = f.nextID
	f.nextID++
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetByID")
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", strconv.FormatInt(id, 10))
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetByEmail")
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ExistsByEmail")
	if f.getErr != nil {
		return false, f.getErr
	}
	for _, u := range f.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUserRepo) List(ctx context.Context, opts repository.ListOptions) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	opts = opts.Normalize()
	ids := make([]int64, 0, len(f.users))
	for id := range f.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := []model.User{}
	for i, id := range ids {
		if i < opts.Offset || len(out) >= opts.Limit {
			continue
		}
		out = append(out, *f.users[id])
	}
	return out, nil
}

func (f *fakeUserRepo) Delete(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Delete")
	if _, ok := f.users[id]; !ok {
		return apperror.NotFound("user", strconv.FormatInt(id, 10))
	}
	delete(f.users, id)
	return nil
}

// fakeTodoRepo is an in-memory repository.TodoRepository.
type fakeTodoRepo struct {
	todos     map[int64]*model.Todo
	nextID    int64
	lastQuery repository.TodoFilter
	listErr   error
}

var _ repository.TodoRepository = (*fakeTodoRepo)(nil)

func newFakeTodoRepo() *fakeTodoRepo {
	return &fakeTodoRepo{todos: make(map[int64]*model.Todo), nextID: 1}
}

func (f *fakeTodoRepo) Create(ctx context.Context, todo *model.Todo) error {
	todo.ID = f.nextID
	f.nextID++
	todo.CreatedAt = time.Now()
	todo.UpdatedAt = todo.CreatedAt
	copied := *todo
	f.todos[todo.ID] = &copied
	return nil
}

func (f *fakeTodoRepo) GetByID(ctx context.Context, userID, id int64) (*model.Todo, error) {
	t, ok := f.todos[id]
	if !ok || t.UserID != userID {
		return nil, apperror.NotFound("todo", strconv.FormatInt(id, 10))
	}
	copied := *t
	return &copied, nil
}

func (f *fakeTodoRepo) ListByUser(ctx context.Context, userID int64, filter repository.TodoFilter) ([]model.Todo, error) {
	f.lastQuery = filter
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []model.Todo{}
	for _, t := range f.todos {
		if t.UserID == userID && (filter.Status == "" || t.Status == filter.Status) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeTodoRepo) Update(ctx context.Context, todo *model.Todo) error {
	t, ok := f.todos[todo.ID]
	if !ok || t.UserID != todo.UserID {
		return apperror.NotFound("todo", strconv.FormatInt(todo.ID, 10))
	}
	todo.UpdatedAt = time.Now()
	copied := *todo
	f.todos[todo.ID] = &copied
	return nil
}

func (f *fakeTodoRepo) Delete(ctx context.Context, userID, id int64) error {
	t, ok := f.todos[id]
	if !ok || t.UserID != userID {
		return apperror.NotFound("todo", strconv.FormatInt(id, 10))
	}
	delete(f.todos, id)
	return nil
}

// fakeLimiter is an in-memory LoginLimiter.
type fakeLimiter struct {
	failures map[string]int
	max      int
	err      error
}

func newFakeLimiter(max int) *fakeLimiter {
	return &fakeLimiter{failures: make(map[string]int), max: max}
}

func (f *fakeLimiter) Locked(ctx context.Context, email string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.failures[email] >= f.max, nil
}

func (f *fakeLimiter) RecordFailure(ctx context.Context, email string) error {
	if f.err != nil {
		return f.err
	}
	f.failures[email]++
	return nil
}

func (f *fakeLimiter) Reset(ctx context.Context, email string) error {
	if f.err != nil {
		return f.err
	}
	delete(f.failures, email)
	return nil
}
