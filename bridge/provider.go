// Package bridge reconciles the app's identity sources into one consistent
// {status, user, session} view and exposes the mutation operations
// (sign-in, sign-up, OAuth, sign-out, password reset) the rest of the app
// uses.
//
// Two providers exist: the managed identity service (authoritative) and the
// legacy JWT session cookie (read-only compat). Exactly one is selected at
// composition time; UI code only ever sees the bridge.
package bridge

import (
	"context"

	"github.com/greenfolio/auth-core/sessions"
)

// Listener observes session changes. A nil session means signed out.
type Listener func(*sessions.Session)

// Provider is one backing identity source. The bridge owns exactly one.
type Provider interface {
	// FetchSession returns the current session, or nil when signed out.
	FetchSession(ctx context.Context) (*sessions.Session, error)

	// Subscribe registers a listener on the provider's change stream.
	// Every credential change (sign-in, token refresh, sign-out) notifies
	// all listeners in registration order.
	Subscribe(l Listener)

	// SignIn performs a password-grant exchange. The resulting session
	// arrives via the change stream, not the return value.
	SignIn(ctx context.Context, email, password string) error

	// SignUp registers a new account.
	SignUp(ctx context.Context, email, password, displayName string) error

	// OAuthSignInURL returns the redirect URL initiating an OAuth exchange
	// with the named upstream provider. No session is produced here; it
	// arrives after the redirect back via CompleteOAuth.
	OAuthSignInURL(provider, redirectTo string) (string, error)

	// CompleteOAuth exchanges the callback code for a session.
	CompleteOAuth(ctx context.Context, provider, code string) error

	// SignOut invalidates the server-side session.
	SignOut(ctx context.Context) error

	// ResetPassword requests a password-reset email. Fire-and-forget: it
	// never changes auth status.
	ResetPassword(ctx context.Context, email string) error

	// UpdatePassword sets a new password for the signed-in user.
	UpdatePassword(ctx context.Context, newPassword string) error
}
