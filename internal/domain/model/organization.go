package model

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/tasknest/tasknest/internal/errors"
)

const maxOrgNameLen = 120

// slugPattern restricts slugs to lowercase alphanumerics and hyphens, no
// leading/trailing hyphen.
var slugPattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]*[a-z0-9])?$`)

// Organization is the unit of tenant data isolation.
type Organization struct {
	ID        string     `json:"id"                   db:"id"`
	Name      string     `json:"name"                 db:"name"`
	Slug      string     `json:"slug"                 db:"slug"`
	CreatedAt time.Time  `json:"created_at"           db:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// CreateOrganizationRequest represents parameters to create an organization.
type CreateOrganizationRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Validate checks organization creation input.
func (r *CreateOrganizationRequest) Validate() error {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return apperrors.ValidationField("name", "Name is required.")
	}
	if utf8.RuneCountInString(name) > maxOrgNameLen {
		return apperrors.ValidationField("name", "Name is too long.")
	}
	slug := strings.TrimSpace(r.Slug)
	if slug == "" {
		return apperrors.ValidationField("slug", "Slug is required.")
	}
	if !slugPattern.MatchString(slug) {
		return apperrors.ValidationField("slug", "Slug may contain only lowercase letters, digits, and hyphens.")
	}
	return nil
}

// UpdateOrganizationRequest represents parameters to rename an organization.
// Slugs are immutable after creation.
type UpdateOrganizationRequest struct {
	Name string `json:"name"`
}

// Validate checks organization update input.
func (r *UpdateOrganizationRequest) Validate() error {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return apperrors.ValidationField("name", "Name is required.")
	}
	if utf8.RuneCountInString(name) > maxOrgNameLen {
		return apperrors.ValidationField("name", "Name is too long.")
	}
	return nil
}
