// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services accept primitives, not *http.Request, and return apperror values,
// not status codes. Handlers translate one into the other.
//
// DEPENDENCY INJECTION:
// Every service takes repository interfaces, never *sqlite.DB or
// *postgres.Store. Tests pass in-memory fakes; server.go picks the real
// store from DB_DRIVER.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/todo-server/internal/apperror"
	"github.com/sakif/todo-server/internal/model"
	"github.com/sakif/todo-server/internal/repository"
)

// Validation constants, counted in characters.
const (
	MaxTitleLength       = 255
	MaxDescriptionLength = 255
)

// TodoService handles business logic for todos. Every method takes the
// caller's user ID; a todo owned by someone else is reported as not found.
type TodoService struct {
	repo   repository.TodoRepository
	logger *slog.Logger
}

func NewTodoService(repo repository.TodoRepository, logger *slog.Logger) *TodoService {
	return &TodoService{
		repo:   repo,
		logger: logger,
	}
}

// TodoUpdate is a partial update: nil fields are left unchanged.
type TodoUpdate struct {
	Title       *string
	Description *string
	Status      *model.TodoStatus
}

// Create validates and saves a new todo for userID with status Created.
// An empty description is stored as NULL.
func (s *TodoService) Create(ctx context.Context, userID int64, title string, description *string) (*model.Todo, error) {
	title = strings.TrimSpace(title)
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	description, err := normalizeDescription(description)
	if err != nil {
		return nil, err
	}

	todo := &model.Todo{
		UserID:      userID,
		Title:       title,
		Description: description,
		Status:      model.TodoCreated,
	}
	if err := s.repo.Create(ctx, todo); err != nil {
		s.logger.Error("failed to create todo",
			slog.Int64("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating todo: %w", err)
	}

	s.logger.Info("todo created",
		slog.Int64("id", todo.ID),
		slog.Int64("userID", userID),
	)
	return todo, nil
}

// GetByID returns apperror.ErrNotFound if the todo doesn't exist or isn't userID's.
func (s *TodoService) GetByID(ctx context.Context, userID, id int64) (*model.Todo, error) {
	if id <= 0 {
		return nil, apperror.ValidationFailed("id", "todo ID must be positive")
	}
	return s.repo.GetByID(ctx, userID, id)
}

// List returns userID's todos with pagination, optionally filtered by status.
// The repository clamps limit to 1-100 (default 20).
func (s *TodoService) List(ctx context.Context, userID int64, limit, offset int, status model.TodoStatus) ([]model.Todo, error) {
	if status != "" && !status.Valid() {
		return nil, apperror.ValidationFailed("status", invalidStatusMessage)
	}

	todos, err := s.repo.ListByUser(ctx, userID, repository.TodoFilter{
		ListOptions: repository.ListOptions{Limit: limit, Offset: offset},
		Status:      status,
	})
	if err != nil {
		s.logger.Error("failed to list todos", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing todos: %w", err)
	}
	return todos, nil
}

// Update applies a partial update.
//
// STRATEGY: "Fetch then update"
//  1. Fetch the existing todo (confirms it exists and belongs to userID)
//  2. Apply the provided fields to the fetched copy
//  3. Save and return the full record
func (s *TodoService) Update(ctx context.Context, userID, id int64, upd TodoUpdate) (*model.Todo, error) {
	if id <= 0 {
		return nil, apperror.ValidationFailed("id", "todo ID must be positive")
	}

	todo, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if upd.Title != nil {
		title := strings.TrimSpace(*upd.Title)
		if err := validateTitle(title); err != nil {
			return nil, err
		}
		todo.Title = title
	}
	if upd.Description != nil {
		desc, err := normalizeDescription(upd.Description)
		if err != nil {
			return nil, err
		}
		todo.Description = desc
	}
	if upd.Status != nil {
		if !upd.Status.Valid() {
			return nil, apperror.ValidationFailed("status", invalidStatusMessage)
		}
		todo.Status = *upd.Status
	}

	if err := s.repo.Update(ctx, todo); err != nil {
		s.logger.Error("failed to update todo",
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating todo: %w", err)
	}

	s.logger.Info("todo updated", slog.Int64("id", todo.ID), slog.String("status", string(todo.Status)))
	return todo, nil
}

// Delete removes a todo. Returns apperror.ErrNotFound if it doesn't exist
// or isn't userID's.
func (s *TodoService) Delete(ctx context.Context, userID, id int64) error {
	if id <= 0 {
		return apperror.ValidationFailed("id", "todo ID must be positive")
	}
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return err
	}

	s.logger.Info("todo deleted", slog.Int64("id", id), slog.Int64("userID", userID))
	return nil
}

const invalidStatusMessage = "status must be one of Created, InProgress, Done"

func validateTitle(title string) error {
	if title == "" {
		return apperror.ValidationFailed("title", "title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}
	return nil
}

func normalizeDescription(desc *string) (*string, error) {
	if desc == nil {
		return nil, nil
	}
	d := strings.TrimSpace(*desc)
	if d == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(d) > MaxDescriptionLength {
		return nil, apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxDescriptionLength))
	}
	return &d, nil
}
