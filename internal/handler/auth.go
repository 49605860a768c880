package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/todo-server/internal/apperror"
	"github.com/sakif/todo-server/internal/auth"
	"github.com/sakif/todo-server/internal/service"
)

// AuthHandler serves registration, login and the current-user profile.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister → create an account, never returns the password hash
//   - HandleLogin    → verify credentials, return a signed JWT
//   - HandleMe       → return the profile of the token's owner
//
// The handler only decodes, validates the shape of the request and writes
// JSON. Rules such as "email must be unique" live in service.AuthService.
type AuthHandler struct {
	auth   *service.AuthService
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(authService *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   authService,
		logger: logger,
	}
}

type registerRequest struct {
	Name     string `json:"name"     validate:"required,max=255"`
	Email    string `json:"email"    validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// normalize trims the name and email the same way the service will, so
// " alice@example.com" registers instead of failing the email tag.
func (r *registerRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

// loginResponse is the body of a successful login.
type loginResponse struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Token string `json:"token"`
}

// HandleRegister creates a new account.
//
// HTTP: POST /api/auth/register
// REQUEST BODY: {"name": "Alice", "email": "alice@example.com", "password": "..."}
//
// RESPONSES:
//
//	201 {"id":1,"name":"Alice","email":"alice@example.com"}  + Location: /api/users/1
//	400 validation_error
//	409 email_exists
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.auth.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/users/%d", user.ID))
	writeJSON(w, http.StatusCreated, user.Profile())
}

// HandleLogin exchanges credentials for an access token.
//
// HTTP: POST /api/auth/login
//
// An unknown email and a wrong password produce byte-identical 401 bodies.
// The client stores the token and sends it back as "Authorization: Bearer <token>".
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Name:  result.User.Name,
		Email: result.User.Email,
		Token: result.Token,
	})
}

// HandleMe returns the authenticated user's profile.
//
// HTTP: GET /api/auth/me (behind auth.RequireAuth)
//
// A valid token for an account that has since been deleted is a 404.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthorized())
		return
	}

	user, err := h.auth.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, user.Profile())
}
