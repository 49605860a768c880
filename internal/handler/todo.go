package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sakif/todo-server/internal/apperror"
	"github.com/sakif/todo-server/internal/auth"
	"github.com/sakif/todo-server/internal/model"
	"github.com/sakif/todo-server/internal/service"
)

// TodoHandler manages CRUD operations for the caller's todos.
//
// OWNERSHIP:
// The user ID always comes from the validated token, never from the URL or
// body. A todo that belongs to someone else answers 404, exactly like one
// that does not exist, so ids cannot be probed.
type TodoHandler struct {
	todos  *service.TodoService
	logger *slog.Logger
}

// NewTodoHandler creates a TodoHandler.
func NewTodoHandler(todos *service.TodoService, logger *slog.Logger) *TodoHandler {
	return &TodoHandler{todos: todos, logger: logger}
}

type createTodoRequest struct {
	Title       string  `json:"title"       validate:"required,max=255"`
	Description *string `json:"description" validate:"omitempty,max=255"`
}

// updateTodoRequest is a partial update: omitted fields keep their value.
type updateTodoRequest struct {
	Title       *string           `json:"title"       validate:"omitempty,min=1,max=255"`
	Description *string           `json:"description" validate:"omitempty,max=255"`
	Status      *model.TodoStatus `json:"status"      validate:"omitempty,oneof=Created InProgress Done"`
}

// callerID pulls the authenticated user out of the context, writing the
// 401 itself when it is missing.
func (h *TodoHandler) callerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthorized())
	}
	return userID, ok
}

// HandleList returns the caller's todos, newest first.
//
// HTTP: GET /api/todos?limit=20&offset=0&status=InProgress
func (h *TodoHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}

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
	status := model.TodoStatus(r.URL.Query().Get("status"))

	todos, err := h.todos.List(r.Context(), userID, limit, offset, status)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if todos == nil {
		todos = []model.Todo{}
	}
	writeJSON(w, http.StatusOK, todos)
}

// HandleCreate adds a todo for the caller.
//
// HTTP: POST /api/todos
// REQUEST BODY: {"title": "Buy milk", "description": "2 litres"}
func (h *TodoHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	var req createTodoRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	todo, err := h.todos.Create(r.Context(), userID, req.Title, req.Description)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/todos/%d", todo.ID))
	writeJSON(w, http.StatusCreated, todo)
}

// HandleGet returns one of the caller's todos.
//
// HTTP: GET /api/todos/{id}
func (h *TodoHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	todo, err := h.todos.GetByID(r.Context(), userID, id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, todo)
}

// HandleUpdate applies a partial update.
//
// HTTP: PUT /api/todos/{id}
// REQUEST BODY: {"status": "Done"}
func (h *TodoHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req updateTodoRequest
	if err := decodeAndValidate(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	todo, err := h.todos.Update(r.Context(), userID, id, service.TodoUpdate{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, todo)
}

// HandleDelete removes one of the caller's todos.
//
// HTTP: DELETE /api/todos/{id}
// 204 No Content on success.
func (h *TodoHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.todos.Delete(r.Context(), userID, id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
