// Package rbac provides the server-side role gate executed before
// privileged route logic. The gate distinguishes 401 (no/invalid session)
// from 403 (authenticated but insufficient role); it never recovers — every
// failure is terminal for the request.
package rbac

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/greenfolio/auth-core/internal/errors"
	"github.com/greenfolio/auth-core/sessions"
	"github.com/greenfolio/auth-core/token/refresh"
	"github.com/greenfolio/auth-core/users"
)

// RoleStore resolves a user's current role. A missing role record is an
// error — the gate never falls back to a default (let alone elevated) role.
type RoleStore interface {
	GetRole(ctx context.Context, userID string) (users.Role, error)
}

// UserRepoRoleStore adapts the user repository into a RoleStore.
type UserRepoRoleStore struct {
	Users users.UserRepo
}

func (rs UserRepoRoleStore) GetRole(_ context.Context, userID string) (users.Role, error) {
	user, err := rs.Users.GetByID(userID)
	if err != nil || user == nil {
		return "", errors.ErrRoleNotFound
	}
	if user.Role == "" {
		return "", errors.ErrRoleNotFound
	}
	return user.Role, nil
}

// Handler receives the authenticated caller's identity alongside the
// request. The userID is what calling handlers use for self-edit guards.
type Handler func(w http.ResponseWriter, r *http.Request, userID string, role users.Role)

// Gate checks sessions and roles in front of protected handlers.
type Gate struct {
	sessionRepo sessions.Repo
	tokens      *refresh.Manager
	roles       RoleStore
	cookieName  string
	nowTime     func() time.Time
	logger      zerolog.Logger
}

// GateOption configures the Gate.
type GateOption func(*Gate)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) GateOption {
	return func(g *Gate) { g.nowTime = nowFunc }
}

// WithLogger sets the gate's logger.
func WithLogger(l zerolog.Logger) GateOption {
	return func(g *Gate) { g.logger = l }
}

// NewGate creates an RBAC gate. Sessions resolve from either a session
// cookie (server-side lookup) or a Bearer access token (JWT claims); the
// role always resolves from the role store, never from token claims.
func NewGate(sessionRepo sessions.Repo, tokens *refresh.Manager, roles RoleStore, cookieName string, options ...GateOption) *Gate {
	g := &Gate{
		sessionRepo: sessionRepo,
		tokens:      tokens,
		roles:       roles,
		cookieName:  cookieName,
		nowTime:     time.Now,
		logger:      zerolog.Nop(),
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// Require wraps a handler with a role-set membership check.
//
//	401 — no session, invalid token, or expired session
//	403 — valid session but no role record or role not in the allowed set
func (g *Gate) Require(allowed ...users.Role) func(Handler) http.HandlerFunc {
	allowedSet := make(map[users.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(next Handler) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			userID, err := g.ResolveUser(r)
			if err != nil {
				http.Error(w, `{"error":"unauthorized","error_description":"Missing or invalid session"}`, http.StatusUnauthorized)
				return
			}

			role, err := g.roles.GetRole(r.Context(), userID)
			if err != nil {
				// Authenticated but no role record: forbidden, never a default role.
				http.Error(w, `{"error":"forbidden","error_description":"No role assigned"}`, http.StatusForbidden)
				return
			}

			if _, ok := allowedSet[role]; !ok {
				g.logger.Debug().Str("user_id", userID).Str("role", string(role)).Msg("role not in allowed set")
				http.Error(w, `{"error":"forbidden","error_description":"Insufficient role"}`, http.StatusForbidden)
				return
			}

			next(w, r, userID, role)
		}
	}
}

// ResolveUser maps a request to the authenticated user ID via Bearer token
// or session cookie. Also used by the CSRF middleware to bind tokens to a
// session.
func (g *Gate) ResolveUser(r *http.Request) (string, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
			return "", errors.ErrInvalidToken
		}
		claims, err := g.tokens.ParseAccessToken(parts[1])
		if err != nil {
			return "", err
		}
		return claims.Subject, nil
	}

	cookie, err := r.Cookie(g.cookieName)
	if err != nil || cookie.Value == "" {
		return "", errors.ErrSessionNotFound
	}

	session, err := g.sessionRepo.Get(cookie.Value)
	if err != nil {
		return "", errors.ErrSessionNotFound
	}
	if !session.Valid(g.nowTime()) {
		return "", errors.ErrSessionExpired
	}
	return session.UserID, nil
}
