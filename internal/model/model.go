package model

import (
	"time"

	"chalkboard/platform/internal/authz"
)

type Account struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type School struct {
	ID        string
	Name      string
	Branding  []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Membership binds an account to a school with exactly one role. The
// platform_owner grant is stored as a membership with an empty SchoolID.
type Membership struct {
	AccountID string
	SchoolID  string
	Role      authz.Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Lesson struct {
	ID        string
	SchoolID  string
	TeacherID string
	Title     string
	Notes     *string
	StartsAt  time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
