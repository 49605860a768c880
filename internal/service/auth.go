// AuthService is the business logic layer for authentication. It sits between
// the HTTP handlers and the repository/auth utilities:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ PasswordHasher (bcrypt)
//	                   ↘ TokenIssuer (JWT)
//
// KEY RESPONSIBILITIES:
//   - Registration: uniqueness check, hashing, insert
//   - Login: lookup, verification, token issuance, with one generic failure
//   - Optional lockout after repeated failed logins (LoginLimiter)

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/sakif/todo-server/internal/apperror"
	"github.com/sakif/todo-server/internal/auth"
	"github.com/sakif/todo-server/internal/model"
	"github.com/sakif/todo-server/internal/repository"
)

// Field limits shared with the request DTOs.
const (
	MaxNameLength  = 255
	MaxEmailLength = 255
)

// TokenService is what AuthService needs from the JWT layer.
type TokenService interface {
	auth.TokenIssuer
	auth.TokenValidator
}

// LoginLimiter tracks failed logins per email. Implemented by
// throttle.LoginLimiter.
type LoginLimiter interface {
	Locked(ctx context.Context, email string) (bool, error)
	RecordFailure(ctx context.Context, email string) error
	Reset(ctx context.Context, email string) error
}

// AuthService handles the authentication business logic.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users    repository.UserRepository -> read/write user records
//   - hasher   auth.PasswordHasher       -> bcrypt hashing and verification
//   - tokens   TokenService              -> issue/validate JWTs
//   - limiter  LoginLimiter (optional)   -> failed-login lockout
//   - logger   *slog.Logger              -> structured logging
type AuthService struct {
	users   repository.UserRepository
	hasher  auth.PasswordHasher
	tokens  TokenService
	limiter LoginLimiter
	logger  *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

// AuthOption customises an AuthService.
type AuthOption func(*AuthService)

// WithLoginLimiter enables the failed-login lockout.
func WithLoginLimiter(l LoginLimiter) AuthOption {
	return func(s *AuthService) {
		s.limiter = l
	}
}

// NewAuthService creates an AuthService with all required dependencies.
// Call this in server.go when wiring the dependency graph.
func NewAuthService(
	users repository.UserRepository,
	hasher auth.PasswordHasher,
	tokens TokenService,
	logger *slog.Logger,
	opts ...AuthOption,
) *AuthService {
	s := &AuthService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AuthResult is returned by Login.
// It bundles the user record and the issued JWT so the handler can respond
// in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// NormalizeEmail trims and lower-cases an address. Every store call goes
// through it, so "Alice@Example.com" and "alice@example.com" are the same
// account.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account and returns it.
//
// ORDERING:
//  1. ExistsByEmail, strictly before any hashing or writing
//  2. Hash the password
//  3. Insert
//
// Two concurrent registrations for the same email can both pass step 1.
// The unique index rejects the second insert and the store reports it as
// apperror.EmailExists, so the caller sees the same 409 either way.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*model.User, error) {
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)

	if err := validateRegistration(name, email, password); err != nil {
		return nil, err
	}

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("service/auth: checking email: %w", err)
	}
	if exists {
		return nil, apperror.EmailExists()
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			s.logger.Info("registration lost email race", slog.String("email", email))
			return nil, err
		}
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user registered",
		slog.Int64("userID", user.ID),
		slog.String("email", user.Email),
	)
	return user, nil
}

func validateRegistration(name, email, password string) error {
	switch {
	case name == "":
		return apperror.ValidationFailed("name", "name is required")
	case utf8.RuneCountInString(name) > MaxNameLength:
		return apperror.ValidationFailed("name", fmt.Sprintf("name must be %d characters or less", MaxNameLength))
	case email == "":
		return apperror.ValidationFailed("email", "email is required")
	case utf8.RuneCountInString(email) > MaxEmailLength:
		return apperror.ValidationFailed("email", fmt.Sprintf("email must be %d characters or less", MaxEmailLength))
	case password == "":
		return apperror.ValidationFailed("password", "password is required")
	case len(password) > auth.MaxPasswordBytes:
		return apperror.ValidationFailed("password", fmt.Sprintf("password must be %d bytes or less", auth.MaxPasswordBytes))
	}
	return nil
}

// Login verifies credentials and issues an access token.
//
// ANTI-ENUMERATION:
// An unknown email and a wrong password return the same error. An unknown
// email still runs one bcrypt comparison (against a dummy hash) so the two
// cases also take about the same time.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = NormalizeEmail(email)

	if s.isLocked(ctx, email) {
		s.logger.Warn("login rejected: locked out", slog.String("email", email))
		return nil, apperror.TooManyAttempts()
	}

	// Step 1: lookup. Not found continues with a nil user.
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("service/auth: looking up user: %w", err)
		}
	}

	// Step 2: verify. Always runs exactly one bcrypt comparison.
	hash := s.fallbackHash()
	if user != nil {
		hash = user.PasswordHash
	}
	matched := s.hasher.Verify(password, hash)

	if user == nil || !matched {
		s.recordFailure(ctx, email)
		s.logger.Info("login failed", slog.String("email", email))
		return nil, apperror.InvalidCredentials()
	}

	// Step 3: issue.
	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for user %d: %w", user.ID, err)
	}
	s.resetFailures(ctx, email)

	s.logger.Info("user logged in", slog.Int64("userID", user.ID))
	return &AuthResult{User: user, Token: token}, nil
}

// GetUserByID returns the user for the given ID.
//
// Used by GET /api/auth/me after the middleware has validated the token.
func (s *AuthService) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	if id <= 0 {
		return nil, apperror.ValidationFailed("id", "user ID must be positive")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service/auth: fetching user %d: %w", id, err)
	}
	return user, nil
}

// ValidateToken is a thin delegation to the token service so callers only
// need the service package. Every failure is auth.ErrInvalidToken.
func (s *AuthService) ValidateToken(token string) (*auth.Identity, error) {
	return s.tokens.Validate(token)
}

// fallbackHash is a real bcrypt hash at the configured cost, computed once.
func (s *AuthService) fallbackHash() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("not-a-real-password-used-for-timing")
		if err != nil {
			s.logger.Error("computing fallback hash", slog.String("error", err.Error()))
			return
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

// The limiter fails open: if Redis is down, logins still work.

func (s *AuthService) isLocked(ctx context.Context, email string) bool {
	if s.limiter == nil {
		return false
	}
	locked, err := s.limiter.Locked(ctx, email)
	if err != nil {
		s.logger.Warn("login limiter unavailable", slog.String("error", err.Error()))
		return false
	}
	return locked
}

func (s *AuthService) recordFailure(ctx context.Context, email string) {
	if s.limiter == nil {
		return
	}
	if err := s.limiter.RecordFailure(ctx, email); err != nil {
		s.logger.Warn("recording failed login", slog.String("error", err.Error()))
	}
}

func (s *AuthService) resetFailures(ctx context.Context, email string) {
	if s.limiter == nil {
		return
	}
	if err := s.limiter.Reset(ctx, email); err != nil {
		s.logger.Warn("resetting failed logins", slog.String("error", err.Error()))
	}
}
