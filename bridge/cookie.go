package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/greenfolio/auth-core/internal/errors"
	"github.com/greenfolio/auth-core/sessions"
	"github.com/greenfolio/auth-core/users"
)

// CookieProvider is the legacy identity source: a signed JWT session cookie
// minted before the migration to the managed service. It is read-only
// compat — it can resolve an existing session but performs no credential
// exchanges. New sign-ins always go through the managed provider.
type CookieProvider struct {
	signingKey []byte
	issuer     string
	nowTime    func() time.Time

	// CookieValue supplies the raw session cookie; injected so the
	// provider stays transport-agnostic (and testable).
	cookieValue func() (string, bool)

	listenersLock sync.RWMutex
	listeners     []Listener
}

var _ Provider = (*CookieProvider)(nil)

// legacyClaims is the claim shape of pre-migration session cookies.
type legacyClaims struct {
	Email       string `json:"email"`
	DisplayName string `json:"name,omitempty"`
	Role        string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// CookieOption configures the CookieProvider.
type CookieOption func(*CookieProvider)

// WithCookieNowTime sets the now time function (primarily for testing)
func WithCookieNowTime(nowFunc func() time.Time) CookieOption {
	return func(p *CookieProvider) { p.nowTime = nowFunc }
}

// NewCookieProvider creates the legacy JWT cookie provider.
func NewCookieProvider(signingKey []byte, issuer string, cookieValue func() (string, bool), options ...CookieOption) *CookieProvider {
	p := &CookieProvider{
		signingKey:  signingKey,
		issuer:      issuer,
		nowTime:     time.Now,
		cookieValue: cookieValue,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Subscribe registers a change-stream listener. The cookie provider only
// emits on explicit sign-out (cookie sessions never change underneath us).
func (p *CookieProvider) Subscribe(l Listener) {
	p.listenersLock.Lock()
	defer p.listenersLock.Unlock()
	p.listeners = append(p.listeners, l)
}

// FetchSession verifies the JWT session cookie and projects it into the
// internal session shape. No cookie means signed out, not an error.
func (p *CookieProvider) FetchSession(_ context.Context) (*sessions.Session, error) {
	raw, ok := p.cookieValue()
	if !ok || raw == "" {
		return nil, nil
	}

	claims := &legacyClaims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.signingKey, nil
	}, jwt.WithTimeFunc(p.nowTime), jwt.WithIssuer(p.issuer))
	if err != nil || !parsed.Valid {
		return nil, apperrors.ErrInvalidToken
	}

	role, err := users.ParseRole(claims.Role)
	if err != nil {
		role = users.RoleUser
	}

	var expiresAt, createdAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if claims.IssuedAt != nil {
		createdAt = claims.IssuedAt.Time
	}

	return &sessions.Session{
		UserID:      claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.DisplayName,
		Role:        role,
		CreatedAt:   createdAt,
		ExpiresAt:   expiresAt,
	}, nil
}

// SignOut drops the local view of the cookie session. The cookie itself is
// cleared at the HTTP layer.
func (p *CookieProvider) SignOut(_ context.Context) error {
	p.listenersLock.RLock()
	listeners := make([]Listener, len(p.listeners))
	copy(listeners, p.listeners)
	p.listenersLock.RUnlock()

	for _, l := range listeners {
		l(nil)
	}
	return nil
}

// The legacy provider performs no credential exchanges.

func (p *CookieProvider) SignIn(context.Context, string, string) error {
	return apperrors.ErrUnsupported
}

func (p *CookieProvider) SignUp(context.Context, string, string, string) error {
	return apperrors.ErrUnsupported
}

func (p *CookieProvider) OAuthSignInURL(string, string) (string, error) {
	return "", apperrors.ErrUnsupported
}

func (p *CookieProvider) CompleteOAuth(context.Context, string, string) error {
	return apperrors.ErrUnsupported
}

func (p *CookieProvider) ResetPassword(context.Context, string) error {
	return apperrors.ErrUnsupported
}

func (p *CookieProvider) UpdatePassword(context.Context, string) error {
	return apperrors.ErrUnsupported
}
