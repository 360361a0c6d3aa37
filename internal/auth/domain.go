package auth

import (
	"time"

	"github.com/eventharmony/eventharmony/internal/policy"
)

// User represents an account as the auth module sees it: credentials,
// verification state and the grant sets needed to build a Principal.
type User struct {
	ID           string
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	Role         policy.Role
	Company      string
	Position     string
	Phone        string
	IsVerified   bool

	VerificationToken        string
	VerificationTokenExpires time.Time
	ResetPasswordToken       string
	ResetPasswordExpires     time.Time

	AccessibleModules []string
	AccessibleEvents  []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// Principal builds the policy principal for this account. Grant sets are
// attached only for client accounts.
func (u *User) Principal() policy.Principal {
	p := policy.Principal{
		ID:       u.ID,
		Role:     u.Role,
		Verified: u.IsVerified,
	}
	if u.Role == policy.RoleClient {
		p.AccessibleModules = policy.NewModuleSet(u.AccessibleModules)
		p.AccessibleEvents = policy.NewEventSet(u.AccessibleEvents)
	}
	return p
}
