package postgres

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sakif/todo-server/internal/apperror"
	"github.com/sakif/todo-server/internal/model"
	"github.com/sakif/todo-server/internal/repository"
)

// TodoStore is the todos table. Every statement is scoped by user_id.
type TodoStore struct {
	pool *pgxpool.Pool
}

var _ repository.TodoRepository = (*TodoStore)(nil)

const todoColumns = `id, user_id, title, description, status, created_at, updated_at`

func (s *TodoStore) Create(ctx context.Context, todo *model.Todo) error {
	if todo.Status == "" {
		todo.Status = model.TodoCreated
	}

	const query = `
		INSERT INTO todos (user_id, title, description, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	err := s.pool.QueryRow(ctx, query, todo.UserID, todo.Title, todo.Description, string(todo.Status)).
		Scan(&todo.ID, &todo.CreatedAt, &todo.UpdatedAt)
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return apperror.NotFound("user", strconv.FormatInt(todo.UserID, 10))
		}
		return fmt.Errorf("postgres: creating todo: %w", err)
	}
	return nil
}

func (s *TodoStore) GetByID(ctx context.Context, userID, id int64) (*model.Todo, error) {
	todo, err := scanTodo(s.pool.QueryRow(ctx,
		`SELECT `+todoColumns+` FROM todos WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		if isNoRows(err) {
			return nil, apperror.NotFound("todo", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("postgres: getting todo %d: %w", id, err)
	}
	return todo, nil
}

// ListByUser returns the user's todos, newest first. An empty status
// matches everything.
func (s *TodoStore) ListByUser(ctx context.Context, userID int64, filter repository.TodoFilter) ([]model.Todo, error) {
	opts := filter.ListOptions.Normalize()

	const query = `
		SELECT ` + todoColumns + `
		FROM todos
		WHERE user_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4`

	rows, err := s.pool.Query(ctx, query, userID, string(filter.Status), opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing todos: %w", err)
	}
	defer rows.Close()

	todos := make([]model.Todo, 0, opts.Limit)
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scanning todo: %w", err)
		}
		todos = append(todos, *todo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating todos: %w", err)
	}
	return todos, nil
}

func (s *TodoStore) Update(ctx context.Context, todo *model.Todo) error {
	const query = `
		UPDATE todos
		SET title = $1, description = $2, status = $3, updated_at = now()
		WHERE id = $4 AND user_id = $5
		RETURNING updated_at`

	err := s.pool.QueryRow(ctx, query,
		todo.Title, todo.Description, string(todo.Status), todo.ID, todo.UserID,
	).Scan(&todo.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return apperror.NotFound("todo", strconv.FormatInt(todo.ID, 10))
		}
		return fmt.Errorf("postgres: updating todo %d: %w", todo.ID, err)
	}
	return nil
}

func (s *TodoStore) Delete(ctx context.Context, userID, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM todos WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("postgres: deleting todo %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("todo", strconv.FormatInt(id, 10))
	}
	return nil
}

func scanTodo(row pgx.Row) (*model.Todo, error) {
	var (
		todo   model.Todo
		status string
	)
	if err := row.Scan(
		&todo.ID,
		&todo.UserID,
		&todo.Title,
		&todo.Description,
		&status,
		&todo.CreatedAt,
		&todo.UpdatedAt,
	); err != nil {
		return nil, err
	}
	todo.Status = model.TodoStatus(status)
	return &todo, nil
}
