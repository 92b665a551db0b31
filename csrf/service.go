// Package csrf implements the per-session anti-forgery token lifecycle:
// issuing, double-submit validation, cookie mirroring, and the client-side
// renewal companion.
package csrf

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/pkg/errors"

	apperrors "github.com/greenfolio/auth-core/internal/errors"
)

const (
	// HeaderName is the fixed request header carrying the token for
	// same-origin AJAX calls.
	HeaderName = "X-CSRF-Token"

	// CookieName is the non-httpOnly cookie mirroring the token for the
	// double-submit check and for traditional form posts.
	CookieName = "csrf-token"

	// DefaultTTL is how long an issued token stays valid.
	DefaultTTL = time.Hour

	// RenewWindow is how long before expiry clients request a fresh token.
	RenewWindow = 5 * time.Minute

	defaultTokenLength = 32 // bytes of entropy, base64url-encoded
)

// Issued is what IssueOrRefresh returns to the caller (and the JSON shape
// the /api/auth/csrf endpoint serves).
type Issued struct {
	Token     string    `json:"csrfToken"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Record is the stored server-side token state. At most one record exists
// per user; issuing replaces any prior record.
type Record struct {
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store persists CSRF records keyed by user ID. Upsert replaces any
// existing record for the user (last write wins).
type Store interface {
	Upsert(ctx context.Context, record *Record) error
	Get(ctx context.Context, userID string) (*Record, error)
	Delete(ctx context.Context, userID string) error
}

// Service issues and validates anti-forgery tokens bound to a session.
type Service struct {
	store       Store
	ttl         time.Duration
	tokenLength int
	nowTime     func() time.Time
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithTTL overrides the token lifetime.
func WithTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) { s.ttl = ttl }
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) { s.nowTime = nowFunc }
}

// NewService creates a CSRF token service backed by the given store.
func NewService(store Store, options ...ServiceOption) *Service {
	s := &Service{
		store:       store,
		ttl:         DefaultTTL,
		tokenLength: defaultTokenLength,
		nowTime:     time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// IssueOrRefresh generates a fresh random token for the user, replacing any
// existing record. Concurrent calls for the same user are last-write-wins;
// the store guarantees no partial state.
func (s *Service) IssueOrRefresh(ctx context.Context, userID string) (*Issued, error) {
	tokenBytes := make([]byte, s.tokenLength)
	if _, err := rand.Read(tokenBytes); err != nil {
		return nil, errors.Wrap(err, "[csrf.IssueOrRefresh] failed to generate random bytes")
	}

	record := &Record{
		UserID:    userID,
		Token:     base64.RawURLEncoding.EncodeToString(tokenBytes),
		ExpiresAt: s.nowTime().Add(s.ttl),
	}
	if err := s.store.Upsert(ctx, record); err != nil {
		return nil, errors.Wrap(err, "[csrf.IssueOrRefresh] failed to store record")
	}

	return &Issued{Token: record.Token, ExpiresAt: record.ExpiresAt}, nil
}

// Validate succeeds iff a record exists for the user, is unexpired, and the
// supplied token matches in constant time. Every failure collapses to the
// same generic error so callers cannot distinguish missing from mismatched
// tokens.
func (s *Service) Validate(ctx context.Context, userID, supplied string) error {
	record, err := s.store.Get(ctx, userID)
	if err != nil || record == nil {
		return apperrors.ErrInvalidCSRFToken
	}
	if !s.nowTime().Before(record.ExpiresAt) {
		return apperrors.ErrInvalidCSRFToken
	}
	if subtle.ConstantTimeCompare([]byte(record.Token), []byte(supplied)) != 1 {
		return apperrors.ErrInvalidCSRFToken
	}
	return nil
}

// Invalidate removes the user's token record (sign-out path).
func (s *Service) Invalidate(ctx context.Context, userID string) error {
	return s.store.Delete(ctx, userID)
}

// SetCookie mirrors the token into a non-httpOnly cookie so client JS can
// read it back for the double-submit header.
func SetCookie(w http.ResponseWriter, token string, expiresAt time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: false,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the CSRF cookie.
func ClearCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: false,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
