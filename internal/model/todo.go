package model

import "time"

// TodoStatus is stored as its string name rather than an ordinal, so the
// column stays readable and reordering the constants never corrupts data.
type TodoStatus string

const (
	TodoCreated    TodoStatus = "Created"
	TodoInProgress TodoStatus = "InProgress"
	TodoDone       TodoStatus = "Done"
)

// Valid reports whether s is one of the known statuses.
func (s TodoStatus) Valid() bool {
	switch s {
	case TodoCreated, TodoInProgress, TodoDone:
		return true
	}
	return false
}

// Todo is a task owned by exactly one user. Deleting the user cascades to
// their todos at the store level.
type Todo struct {
	ID          int64      `json:"id"          db:"id"`
	UserID      int64      `json:"userId"      db:"user_id"`
	Title       string     `json:"title"       db:"title"`
	Description *string    `json:"description" db:"description"` // nullable
	Status      TodoStatus `json:"status"      db:"status"`
	CreatedAt   time.Time  `json:"createdAt"   db:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt"   db:"updated_at"`
}
