// Package repository declares the storage contracts the service layer
// depends on. The sqlite and postgres subpackages implement them.
package repository

import (
	"context"

	"github.com/sakif/todo-server/internal/model"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type ListOptions struct {
	Limit  int
	Offset int
}

// Normalize applies the default page size and clamps out-of-range values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultPageSize
	}
	if o.Limit > MaxPageSize {
		o.Limit = MaxPageSize
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// TodoFilter narrows ListByUser. An empty Status matches every status.
type TodoFilter struct {
	ListOptions
	Status model.TodoStatus
}

// UserRepository stores accounts. Emails are passed in already normalized
// (trimmed, lower-cased); implementations compare them verbatim.
type UserRepository interface {
	// Create assigns ID and timestamps. A duplicate email is
	// apperror.EmailExists.
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	List(ctx context.Context, opts ListOptions) ([]model.User, error)
	// Delete removes the user and, through the foreign key, their todos.
	Delete(ctx context.Context, id int64) error
}

// TodoRepository stores todos. Reads and writes are scoped by owner: a
// todo that exists but belongs to someone else is reported as not found.
type TodoRepository interface {
	Create(ctx context.Context, todo *model.Todo) error
	GetByID(ctx context.Context, userID, id int64) (*model.Todo, error)
	ListByUser(ctx context.Context, userID int64, filter TodoFilter) ([]model.Todo, error)
	Update(ctx context.Context, todo *model.Todo) error
	Delete(ctx context.Context, userID, id int64) error
}
