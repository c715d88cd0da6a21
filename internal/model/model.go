// Package model defines shared data structures.
package model

import "time"

// Status is the workflow state of a todo.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Priority bounds. 1 is the lowest urgency, 10 the highest.
const (
	MinPriority     = 1
	MaxPriority     = 10
	DefaultPriority = 5
)

// Todo is a single task owned by a user.
type Todo struct {
	ID          string     `json:"id"`
	UserID      int        `json:"user_id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Status      Status     `json:"status"`
	Priority    int        `json:"priority"`
	Archived    bool       `json:"archived"`
	DueDate     *time.Time `json:"due_date"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Tags        []Tag      `json:"tags"`
}

// Tag is a user-defined label attached to todos.
type Tag struct {
	ID        string    `json:"id"`
	UserID    int       `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// RankedTodo is a Todo annotated with the score it was ordered by.
// The score depends on the ranking instant and is never persisted.
type RankedTodo struct {
	Todo
	Score float64 `json:"score"`
}
