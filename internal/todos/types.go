package todos

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"todo-relevance-backend/internal/model"
)

const (
	MaxTitleLen   = 500
	MaxTagNameLen = 50
	MaxBulkItems  = 100
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

// ValidationError reports a rejected request field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Msg)
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

// NewTodo is the create request body.
type NewTodo struct {
	Title       string       `json:"title"`
	Description *string      `json:"description"`
	Status      model.Status `json:"status"`
	Priority    *int         `json:"priority"`
	DueDate     *string      `json:"due_date"`
	Tags        []string     `json:"tags"`
}

// Draft is a validated NewTodo.
type Draft struct {
	Title       string
	Description *string
	Status      model.Status
	Priority    int
	DueDate     *time.Time
	Tags        []string
}

// Validate trims and checks n, filling defaults.
func (n NewTodo) Validate() (Draft, error) {
	title, err := normalizeTitle(n.Title)
	if err != nil {
		return Draft{}, err
	}

	d := Draft{
		Title:       title,
		Description: normalizeDescription(n.Description),
		Status:      model.StatusTodo,
		Priority:    model.DefaultPriority,
	}

	if n.Status != "" {
		if !n.Status.Valid() {
			return Draft{}, invalid("status", "must be one of todo, in_progress, done")
		}
		d.Status = n.Status
	}

	if n.Priority != nil {
		if err := checkPriority(*n.Priority); err != nil {
			return Draft{}, err
		}
		d.Priority = *n.Priority
	}

	if n.DueDate != nil {
		due, err := ParseDueDate(*n.DueDate)
		if err != nil {
			return Draft{}, err
		}
		d.DueDate = due
	}

	d.Tags, err = NormalizeTagNames(n.Tags)
	if err != nil {
		return Draft{}, err
	}
	return d, nil
}

// TodoPatch is the partial update body. Nil fields are left unchanged; an
// empty description clears it, as does clear_due_date for the due date.
type TodoPatch struct {
	Title        *string       `json:"title"`
	Description  *string       `json:"description"`
	Status       *model.Status `json:"status"`
	Priority     *int          `json:"priority"`
	DueDate      *string       `json:"due_date"`
	ClearDueDate bool          `json:"clear_due_date"`
}

// Apply validates p and applies it to t.
func (p TodoPatch) Apply(t *model.Todo) error {
	if p.Title != nil {
		title, err := normalizeTitle(*p.Title)
		if err != nil {
			return err
		}
		t.Title = title
	}
	if p.Description != nil {
		t.Description = normalizeDescription(p.Description)
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			return invalid("status", "must be one of todo, in_progress, done")
		}
		t.Status = *p.Status
	}
	if p.Priority != nil {
		if err := checkPriority(*p.Priority); err != nil {
			return err
		}
		t.Priority = *p.Priority
	}
	switch {
	case p.ClearDueDate:
		t.DueDate = nil
	case p.DueDate != nil:
		due, err := ParseDueDate(*p.DueDate)
		if err != nil {
			return err
		}
		t.DueDate = due
	}
	return nil
}

func (p TodoPatch) empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil &&
		p.Priority == nil && p.DueDate == nil && !p.ClearDueDate
}

func normalizeTitle(s string) (string, error) {
	title := strings.TrimSpace(s)
	if title == "" {
		return "", invalid("title", "is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLen {
		return "", invalid("title", fmt.Sprintf("must be at most %d characters", MaxTitleLen))
	}
	return title, nil
}

func normalizeDescription(s *string) *string {
	if s == nil {
		return nil
	}
	d := strings.TrimSpace(*s)
	if d == "" {
		return nil
	}
	return &d
}

func checkPriority(p int) error {
	if p < model.MinPriority || p > model.MaxPriority {
		return invalid("priority", fmt.Sprintf("must be between %d and %d", model.MinPriority, model.MaxPriority))
	}
	return nil
}

// ParseDueDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
// An empty string means no due date.
func ParseDueDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, invalid("due_date", "must be an RFC 3339 timestamp or YYYY-MM-DD")
}

// NormalizeTagNames trims names, drops blanks and removes duplicates while
// keeping first-seen order.
func NormalizeTagNames(names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		if utf8.RuneCountInString(n) > MaxTagNameLen {
			return nil, invalid("tags", fmt.Sprintf("names must be at most %d characters", MaxTagNameLen))
		}
		seen[n] = true
		out = append(out, n)
	}
	return out, nil
}
