package model

import (
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/tasknest/tasknest/internal/errors"
)

const (
	maxTodoTitleLen = 255
	maxTodoBodyLen  = 10000
)

// Todo is a to-do item scoped to a single organization. OrganizationID is
// always the middleware-resolved tenant, never a client-supplied value.
type Todo struct {
	ID             string     `json:"id"                   db:"id"`
	OrganizationID string     `json:"organization_id"      db:"organization_id"`
	AuthorID       string     `json:"author_id"            db:"author_id"`
	Title          string     `json:"title"                db:"title"`
	Body           string     `json:"body"                 db:"body"`
	Done           bool       `json:"done"                 db:"done"`
	CreatedAt      time.Time  `json:"created_at"           db:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// CreateTodoRequest represents parameters to create a todo.
type CreateTodoRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Validate checks todo creation input.
func (r *CreateTodoRequest) Validate() error {
	return validateTodoFields(r.Title, r.Body)
}

// UpdateTodoRequest represents parameters to update a todo's content or
// completion state.
type UpdateTodoRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Done  *bool  `json:"done,omitempty"`
}

// Validate checks todo update input.
func (r *UpdateTodoRequest) Validate() error {
	return validateTodoFields(r.Title, r.Body)
}

func validateTodoFields(title, body string) error {
	if strings.TrimSpace(title) == "" {
		return apperrors.ValidationField("title", "Title is required.")
	}
	if utf8.RuneCountInString(title) > maxTodoTitleLen {
		return apperrors.ValidationField("title", "Title is too long.")
	}
	if utf8.RuneCountInString(body) > maxTodoBodyLen {
		return apperrors.ValidationField("body", "Body is too long.")
	}
	return nil
}

// TodosListOptions controls paging for listing todos within an organization.
type TodosListOptions struct {
	Limit  int
	Offset int
	// Done filters by completion state when set.
	Done *bool
}
