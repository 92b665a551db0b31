package users

import (
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/greenfolio/auth-core/internal/errors"
)

// Role represents a user's access level. The set is closed: the RBAC gate
// only ever grants access against these exact values.
type Role string

const (
	RoleUser      Role = "user"
	RolePremium   Role = "premium"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// AllRoles lists every valid role, lowest privilege first.
var AllRoles = []Role{RoleUser, RolePremium, RoleModerator, RoleAdmin}

// ParseRole validates a raw role string against the closed set.
func ParseRole(s string) (Role, error) {
	for _, r := range AllRoles {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Status represents an account's standing.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// ParseStatus validates a raw status string.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusActive, StatusSuspended:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// User represents an account in the dashboard.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	Role         Role      `json:"role"`
	Status       Status    `json:"status"`
	PasswordHash string    `json:"-"`
	Verified     bool      `json:"verified"`
	CreatedAt    time.Time `json:"created_at"`
}

// CanSignIn reports whether the account is currently allowed to
// authenticate. Suspension takes precedence over verification.
func (u *User) CanSignIn() error {
	if u.Status == StatusSuspended {
		return errors.ErrUserSuspended
	}
	if !u.Verified {
		return errors.ErrUserNotVerified
	}
	return nil
}

// CheckPassword compares a plaintext password against the stored hash.
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// HashPassword hashes a plaintext password for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Updates holds the fields an admin may change on a user. Nil means "leave
// unchanged". The server filters incoming PATCH bodies down to this shape.
type Updates struct {
	Role        *Role
	Status      *Status
	DisplayName *string
}

// Empty reports whether the update would change nothing.
func (u Updates) Empty() bool {
	return u.Role == nil && u.Status == nil && u.DisplayName == nil
}
