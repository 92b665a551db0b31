package sessions

import "time"

// Repo defines the interface for session storage operations.
// Sessions are server-side state keyed by an opaque session ID carried in a
// cookie; expired entries should be cleaned up regularly.
type Repo interface {
	// Upsert creates or updates a session
	Upsert(sessionID string, session *Session) error

	// Get retrieves a session by ID
	Get(sessionID string) (*Session, error)

	// GetByUserID retrieves the most recent session for a user
	GetByUserID(userID string) (*Session, error)

	// Delete removes a session by ID
	Delete(sessionID string) error

	// DeleteExpired removes sessions that expired before the given time
	DeleteExpired(before time.Time) error
}
