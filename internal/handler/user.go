package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/todo-server/internal/apperror"
	"github.com/sakif/todo-server/internal/auth"
	"github.com/sakif/todo-server/internal/model"
	"github.com/sakif/todo-server/internal/service"
)

// UserHandler serves the account directory. Every route is behind
// auth.RequireAuth; responses carry profiles only, never hashes.
type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// deleteUserResponse echoes the removed account.
type deleteUserResponse struct {
	Message string        `json:"message"`
	Data    model.Profile `json:"data"`
}

// HandleList returns one page of users.
//
// HTTP: GET /api/users?limit=20&offset=0
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	users, err := h.users.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	// Always a JSON array, never null.
	profiles := make([]model.Profile, 0, len(users))
	for i := range users {
		profiles = append(profiles, users[i].Profile())
	}
	writeJSON(w, http.StatusOK, profiles)
}

// HandleGet returns a single user.
//
// HTTP: GET /api/users/{id}
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user.Profile())
}

// HandleGetByEmail looks a user up by address (case-insensitive).
//
// HTTP: GET /api/users/email/{email}
func (h *UserHandler) HandleGetByEmail(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetByEmail(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user.Profile())
}

// HandleDelete removes the caller's own account and, through the foreign
// key, all of their todos.
//
// HTTP: DELETE /api/users/{id}
//
// Deleting anyone else is 403.
func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthorized())
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.users.Delete(r.Context(), callerID, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, deleteUserResponse{
		Message: "Successfully deleted User.",
		Data:    user.Profile(),
	})
}
