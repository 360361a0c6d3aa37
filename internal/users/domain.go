// Package users manages account records: self-service profiles, the admin
// account directory and client grant administration.
package users

import (
	"time"

	"github.com/eventharmony/eventharmony/internal/policy"
)

// Account is a managed user record. Credential and token material lives in
// the auth module; this view carries identity, role and client grants.
type Account struct {
	ID         string
	FirstName  string
	LastName   string
	Email      string
	Role       policy.Role
	Company    string
	Position   string
	Phone      string
	IsVerified bool

	AccessibleModules []string
	AccessibleEvents  []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FullName joins first and last name.
func (a *Account) FullName() string {
	return a.FirstName + " " + a.LastName
}

// ProfileUpdate is the self-service subset of mutable fields. Role, email
// and grants are never touched through this path.
type ProfileUpdate struct {
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	Company   *string `json:"company,omitempty"`
	Position  *string `json:"position,omitempty"`
	Phone     *string `json:"phone,omitempty"`
}

// AccountUpdate is the admin-side mutable field set.
type AccountUpdate struct {
	FirstName  *string `json:"firstName,omitempty"`
	LastName   *string `json:"lastName,omitempty"`
	Email      *string `json:"email,omitempty" validate:"omitempty,email"`
	Role       *string `json:"role,omitempty"`
	Company    *string `json:"company,omitempty"`
	Position   *string `json:"position,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	IsVerified *bool   `json:"isVerified,omitempty"`
}

// ListFilter narrows the account directory.
type ListFilter struct {
	Role   string
	Search string
	Limit  int
	Offset int
}
