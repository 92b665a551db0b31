package sessions

import (
	"time"

	"github.com/greenfolio/auth-core/users"
)

// Session represents an authenticated principal. It is created on a
// successful credential exchange, replaced wholesale on refresh, and
// destroyed on sign-out or terminal refresh failure.
type Session struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	Role        users.Role `json:"role"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
}

// Valid is the single session-expiry rule used everywhere: a session is
// invalid iff it is nil or now is at/after its expiry.
func (s *Session) Valid(now time.Time) bool {
	return s != nil && now.Before(s.ExpiresAt)
}
