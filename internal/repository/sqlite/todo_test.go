package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/todo-server/internal/apperror"
	"github.com/sakif/todo-server/internal/model"
	"github.com/sakif/todo-server/internal/repository"
)

func createTestTodo(t *testing.T, todos *TodoDB, userID int64, title string) *model.Todo {
	t.Helper()
	todo := &model.Todo{UserID: userID, Title: title}
	if err := todos.Create(context.Background(), todo); err != nil {
		t.Fatalf("failed to create test todo: %v", err)
	}
	return todo
}

func strPtr(s string) *string { return &s }

func TestTodoCreate_Defaults(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db.Users(), "Alice", "alice@example.com")

	todo := createTestTodo(t, db.Todos(), owner.ID, "write tests")

	if todo.ID <= 0 {
		t.Errorf("Create() set ID = %d", todo.ID)
	}
	if todo.Status != model.TodoCreated {
		t.Errorf("Status = %q, want %q", todo.Status, model.TodoCreated)
	}

	got, err := db.Todos().GetByID(context.Background(), owner.ID, todo.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Description != nil {
		t.Errorf("Description = %q, want nil", *got.Description)
	}
	if got.Status != model.TodoCreated {
		t.Errorf("stored Status = %q", got.Status)
	}
}

func TestTodoCreate_UnknownOwner(t *testing.T) {
	db := newTestDB(t)

	err := db.Todos().Create(context.Background(), &model.Todo{UserID: 77, Title: "orphan"})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Create() error = %v, want ErrNotFound (foreign key)", err)
	}
}

func TestTodoGetByID_OtherOwnerIsNotFound(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db.Users(), "Alice", "alice@example.com")
	bob := createTestUser(t, db.Users(), "Bob", "bob@example.com")
	todo := createTestTodo(t, db.Todos(), alice.ID, "private")

	_, err := db.Todos().GetByID(context.Background(), bob.ID, todo.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() as another user error = %v, want ErrNotFound", err)
	}
}

func TestTodoListByUser_FilterAndOrder(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db.Users(), "Alice", "alice@example.com")
	bob := createTestUser(t, db.Users(), "Bob", "bob@example.com")

	first := createTestTodo(t, db.Todos(), alice.ID, "first")
	second := createTestTodo(t, db.Todos(), alice.ID, "second")
	createTestTodo(t, db.Todos(), bob.ID, "bob's")

	second.Status = model.TodoDone
	if err := db.Todos().Update(ctx, second); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	all, err := db.Todos().ListByUser(ctx, alice.ID, repository.TodoFilter{})
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("ListByUser() returned %d todos, want 2", len(all))
	}
	// Newest first.
	if all[0].ID != second.ID || all[1].ID != first.ID {
		t.Errorf("order = [%d %d], want [%d %d]", all[0].ID, all[1].ID, second.ID, first.ID)
	}

	done, err := db.Todos().ListByUser(ctx, alice.ID, repository.TodoFilter{Status: model.TodoDone})
	if err != nil {
		t.Fatalf("ListByUser(done) error = %v", err)
	}
	if len(done) != 1 || done[0].ID != second.ID {
		t.Errorf("ListByUser(done) = %+v", done)
	}

	paged, err := db.Todos().ListByUser(ctx, alice.ID, repository.TodoFilter{ListOptions: repository.ListOptions{Limit: 1, Offset: 1}})
	if err != nil {
		t.Fatalf("ListByUser(paged) error = %v", err)
	}
	if len(paged) != 1 || paged[0].ID != first.ID {
		t.Errorf("ListByUser(paged) = %+v", paged)
	}
}

func TestTodoUpdate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db.Users(), "Alice", "alice@example.com")
	todo := createTestTodo(t, db.Todos(), owner.ID, "draft")

	todo.Title = "final"
	todo.Description = strPtr("with details")
	todo.Status = model.TodoInProgress
	if err := db.Todos().Update(ctx, todo); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := db.Todos().GetByID(ctx, owner.ID, todo.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Title != "final" || got.Description == nil || *got.Description != "with details" || got.Status != model.TodoInProgress {
		t.Errorf("after Update() = %+v", got)
	}
	if got.UpdatedAt.Before(got.CreatedAt) {
		t.Errorf("UpdatedAt %v before CreatedAt %v", got.UpdatedAt, got.CreatedAt)
	}
}

func TestTodoUpdate_OtherOwnerIsNotFound(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db.Users(), "Alice", "alice@example.com")
	bob := createTestUser(t, db.Users(), "Bob", "bob@example.com")
	todo := createTestTodo(t, db.Todos(), alice.ID, "mine")

	hijack := *todo
	hijack.UserID = bob.ID
	hijack.Title = "yours now"
	if err := db.Todos().Update(ctx, &hijack); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("Update() as another user error = %v, want ErrNotFound", err)
	}

	got, _ := db.Todos().GetByID(ctx, alice.ID, todo.ID)
	if got.Title != "mine" {
		t.Errorf("Title = %q, want unchanged", got.Title)
	}
}

func TestTodoDelete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db.Users(), "Alice", "alice@example.com")
	bob := createTestUser(t, db.Users(), "Bob", "bob@example.com")
	todo := createTestTodo(t, db.Todos(), alice.ID, "done soon")

	if err := db.Todos().Delete(ctx, bob.ID, todo.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("Delete() as another user error = %v, want ErrNotFound", err)
	}
	if err := db.Todos().Delete(ctx, alice.ID, todo.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := db.Todos().Delete(ctx, alice.ID, todo.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}
