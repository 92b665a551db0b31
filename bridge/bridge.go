package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/greenfolio/auth-core/sessions"
	"github.com/greenfolio/auth-core/token"
	"github.com/greenfolio/auth-core/users"
)

// Status is the bridge's auth state. Transitions:
// loading -> {authenticated, unauthenticated} after the initial fetch;
// authenticated -> unauthenticated on sign-out or expiry;
// unauthenticated -> authenticated on any successful credential exchange.
// loading is re-entered only by an explicit Reload.
type Status string

const (
	StatusLoading         Status = "loading"
	StatusAuthenticated   Status = "authenticated"
	StatusUnauthenticated Status = "unauthenticated"
)

// User is the read-only identity projection handed to UI code.
type User struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	Role        users.Role `json:"role"`
}

// Snapshot is the conventional session-hook shape most UI code consumes:
// status plus user/expires. It is computed from the bridge's internal state
// and is the only interface consumers are allowed to depend on.
type Snapshot struct {
	Status  Status    `json:"status"`
	User    *User     `json:"user,omitempty"`
	Expires time.Time `json:"expires,omitempty"`
}

// Result carries an expected auth failure (bad password, rate limit,
// unverified email) back to the caller without forcing error handling for
// control flow. A nil Err means the operation was accepted.
type Result struct {
	Err error `json:"error,omitempty"`
}

// Bridge unifies one identity provider with the client credential state
// into a single status/user/session view.
type Bridge struct {
	provider Provider
	store    *token.Store
	nowTime  func() time.Time
	logger   zerolog.Logger

	mu      sync.Mutex
	status  Status
	session *sessions.Session

	// version orders state writes. Change-stream notifications bump it;
	// a FetchSession snapshot taken at version v is discarded if anything
	// advanced the version while the fetch was in flight. Last write wins
	// by notification order, never by fetch completion time.
	version uint64
}

// Option configures the Bridge.
type Option func(*Bridge)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(b *Bridge) { b.nowTime = nowFunc }
}

// WithLogger sets the bridge's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

// New creates a bridge over the given provider and subscribes to its change
// stream. The initial status is loading until Load completes.
func New(provider Provider, store *token.Store, options ...Option) *Bridge {
	b := &Bridge{
		provider: provider,
		store:    store,
		nowTime:  time.Now,
		logger:   zerolog.Nop(),
		status:   StatusLoading,
	}
	for _, opt := range options {
		opt(b)
	}

	provider.Subscribe(func(s *sessions.Session) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.version++
		b.applyLocked(s)
	})

	return b
}

// Load performs the one-time initial session fetch. A notification that
// lands while the fetch is outstanding wins over the fetch result.
func (b *Bridge) Load(ctx context.Context) error {
	b.mu.Lock()
	startVersion := b.version
	b.mu.Unlock()

	session, err := b.provider.FetchSession(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.version != startVersion {
		// A change notification arrived mid-fetch; the fetch result is
		// stale by definition.
		b.logger.Debug().Msg("discarding stale session fetch result")
		return nil
	}
	if err != nil {
		b.version++
		b.applyLocked(nil)
		return err
	}
	b.version++
	b.applyLocked(session)
	return nil
}

// Reload re-enters loading and fetches the session again. This is the only
// path that re-enters the loading state.
func (b *Bridge) Reload(ctx context.Context) error {
	b.mu.Lock()
	b.status = StatusLoading
	b.mu.Unlock()
	return b.Load(ctx)
}

// SignIn delegates to the provider's password-grant exchange. Provider
// errors are swallowed into the result; the state update arrives via the
// change stream, never synchronously.
func (b *Bridge) SignIn(ctx context.Context, email, password string) Result {
	if err := b.provider.SignIn(ctx, email, password); err != nil {
		b.logger.Debug().Err(err).Msg("sign-in rejected")
		return Result{Err: err}
	}
	return Result{}
}

// SignUp registers a new account.
func (b *Bridge) SignUp(ctx context.Context, email, password, displayName string) Result {
	if err := b.provider.SignUp(ctx, email, password, displayName); err != nil {
		return Result{Err: err}
	}
	return Result{}
}

// SignInWithOAuth returns the redirect URL initiating an OAuth exchange.
// The session arrives later, after the provider redirects back and
// CompleteOAuth runs.
func (b *Bridge) SignInWithOAuth(provider, redirectTo string) (string, error) {
	return b.provider.OAuthSignInURL(provider, redirectTo)
}

// CompleteOAuth finishes a redirect-based exchange with the callback code.
func (b *Bridge) CompleteOAuth(ctx context.Context, provider, code string) Result {
	if err := b.provider.CompleteOAuth(ctx, provider, code); err != nil {
		return Result{Err: err}
	}
	return Result{}
}

// SignOut invalidates the server-side session, clears the local token store
// (including the CSRF snapshot), and transitions to unauthenticated.
func (b *Bridge) SignOut(ctx context.Context) error {
	err := b.provider.SignOut(ctx)

	b.store.Clear()
	b.mu.Lock()
	b.version++
	b.applyLocked(nil)
	b.mu.Unlock()

	return err
}

// ResetPassword requests a password-reset email. Does not change status.
func (b *Bridge) ResetPassword(ctx context.Context, email string) Result {
	if err := b.provider.ResetPassword(ctx, email); err != nil {
		return Result{Err: err}
	}
	return Result{}
}

// UpdatePassword sets a new password for the signed-in user. Does not
// change status.
func (b *Bridge) UpdatePassword(ctx context.Context, newPassword string) Result {
	if err := b.provider.UpdatePassword(ctx, newPassword); err != nil {
		return Result{Err: err}
	}
	return Result{}
}

// Snapshot returns the read-only status/user/expires projection.
func (b *Bridge) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := Snapshot{Status: b.status}
	if b.status == StatusAuthenticated && b.session != nil {
		snap.User = &User{
			ID:          b.session.UserID,
			Email:       b.session.Email,
			DisplayName: b.session.DisplayName,
			Role:        b.session.Role,
		}
		snap.Expires = b.session.ExpiresAt
	}
	return snap
}

// applyLocked sets the bridge state from a session using the single expiry
// rule: nil or past-expiry means unauthenticated.
func (b *Bridge) applyLocked(s *sessions.Session) {
	if !s.Valid(b.nowTime()) {
		b.session = nil
		b.status = StatusUnauthenticated
		return
	}
	b.session = s
	b.status = StatusAuthenticated
}
