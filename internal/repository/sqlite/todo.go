package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/sakif/todo-server/internal/apperror"
	"github.com/sakif/todo-server/internal/model"
	"github.com/sakif/todo-server/internal/repository"
)

// TodoDB is the todos table. Every query is filtered by user_id so one
// user can never read or touch another user's rows.
type TodoDB struct {
	conn *sql.DB
}

var _ repository.TodoRepository = (*TodoDB)(nil)

const todoColumns = `id, user_id, title, description, status, created_at, updated_at`

// Create inserts todo and fills in its ID and timestamps. An empty status
// becomes model.TodoCreated.
func (t *TodoDB) Create(ctx context.Context, todo *model.Todo) error {
	if todo.Status == "" {
		todo.Status = model.TodoCreated
	}
	ts := now()

	res, err := t.conn.ExecContext(ctx,
		`INSERT INTO todos (user_id, title, description, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		todo.UserID,
		todo.Title,
		todo.Description,
		string(todo.Status),
		ts,
		ts,
	)
	if err != nil {
		// The owner was deleted after their token was issued.
		if isForeignKeyViolation(err) {
			return apperror.NotFound("user", strconv.FormatInt(todo.UserID, 10))
		}
		return fmt.Errorf("sqlite: creating todo: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading todo id: %w", err)
	}

	todo.ID = id
	todo.CreatedAt = ts
	todo.UpdatedAt = ts
	return nil
}

func (t *TodoDB) GetByID(ctx context.Context, userID, id int64) (*model.Todo, error) {
	todo, err := scanTodo(t.conn.QueryRowContext(ctx,
		`SELECT `+todoColumns+` FROM todos WHERE id = ? AND user_id = ?`,
		id, userID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("todo", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting todo %d: %w", id, err)
	}
	return todo, nil
}

// ListByUser returns the user's todos, newest first.
func (t *TodoDB) ListByUser(ctx context.Context, userID int64, filter repository.TodoFilter) ([]model.Todo, error) {
	opts := filter.ListOptions.Normalize()

	query := `SELECT ` + todoColumns + ` FROM todos WHERE user_id = ?`
	args := []any{userID}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, opts.Limit, opts.Offset)

	rows, err := t.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing todos: %w", err)
	}
	defer rows.Close()

	todos := make([]model.Todo, 0, opts.Limit)
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning todo: %w", err)
		}
		todos = append(todos, *todo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating todos: %w", err)
	}
	return todos, nil
}

// Update writes title, description and status, and bumps updated_at.
// The owner and created_at never change.
func (t *TodoDB) Update(ctx context.Context, todo *model.Todo) error {
	ts := now()

	res, err := t.conn.ExecContext(ctx,
		`UPDATE todos SET title = ?, description = ?, status = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		todo.Title,
		todo.Description,
		string(todo.Status),
		ts,
		todo.ID,
		todo.UserID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating todo %d: %w", todo.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("todo", strconv.FormatInt(todo.ID, 10))
	}

	todo.UpdatedAt = ts
	return nil
}

func (t *TodoDB) Delete(ctx context.Context, userID, id int64) error {
	res, err := t.conn.ExecContext(ctx,
		`DELETE FROM todos WHERE id = ? AND user_id = ?`, id, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting todo %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("todo", strconv.FormatInt(id, 10))
	}
	return nil
}

func scanTodo(s scanner) (*model.Todo, error) {
	var (
		todo        model.Todo
		description sql.NullString
		status      string
	)
	if err := s.Scan(
		&todo.ID,
		&todo.UserID,
		&todo.Title,
		&description,
		&status,
		&todo.CreatedAt,
		&todo.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if description.Valid {
		todo.Description = &description.String
	}
	todo.Status = model.TodoStatus(status)
	return &todo, nil
}
