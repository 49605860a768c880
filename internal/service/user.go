package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/todo-server/internal/apperror"
	"github.com/sakif/todo-server/internal/model"
	"github.com/sakif/todo-server/internal/repository"
)

// UserService serves the /api/users endpoints. Account creation lives in
// AuthService.
type UserService struct {
	repo   repository.UserRepository
	logger *slog.Logger
}

func NewUserService(repo repository.UserRepository, logger *slog.Logger) *UserService {
	return &UserService{repo: repo, logger: logger}
}

func (s *UserService) List(ctx context.Context, limit, offset int) ([]model.User, error) {
	users, err := s.repo.List(ctx, repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("service/user: listing users: %w", err)
	}
	return users, nil
}

func (s *UserService) GetByID(ctx context.Context, id int64) (*model.User, error) {
	if id <= 0 {
		return nil, apperror.ValidationFailed("id", "user ID must be positive")
	}
	return s.repo.GetByID(ctx, id)
}

// GetByEmail looks the address up after the same normalization used at
// registration.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}
	return s.repo.GetByEmail(ctx, email)
}

// Delete removes account id on behalf of callerID. Users can only delete
// themselves. Their todos are removed with them.
func (s *UserService) Delete(ctx context.Context, callerID, id int64) (*model.User, error) {
	if id <= 0 {
		return nil, apperror.ValidationFailed("id", "user ID must be positive")
	}
	if callerID != id {
		return nil, apperror.Forbidden("you can only delete your own account")
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return nil, err
	}

	s.logger.Info("user deleted", slog.Int64("userID", id))
	return user, nil
}
