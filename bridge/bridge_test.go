package bridge_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/greenfolio/auth-core/bridge"
	apperrors "github.com/greenfolio/auth-core/internal/errors"
	"github.com/greenfolio/auth-core/sessions"
	"github.com/greenfolio/auth-core/token"
	"github.com/greenfolio/auth-core/users"
)

const (
	testUserID    = "user-1"
	testUserEmail = "jane.doe@example.com"
)

func fixedNow() time.Time {
	return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
}

func validSession() *sessions.Session {
	return &sessions.Session{
		ID:          "session-1",
		UserID:      testUserID,
		Email:       testUserEmail,
		DisplayName: "Jane Doe",
		Role:        users.RolePremium,
		CreatedAt:   fixedNow().Add(-time.Hour),
		ExpiresAt:   fixedNow().Add(time.Hour),
	}
}

// fakeProvider scripts FetchSession results and lets tests drive the change
// stream directly.
type fakeProvider struct {
	listeners []bridge.Listener

	fetchSession *sessions.Session
	fetchErr     error
	fetchStarted chan struct{}
	fetchRelease chan struct{}

	signInErr   error
	signOutErr  error
	signOutHits int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{}
}

func (p *fakeProvider) FetchSession(context.Context) (*sessions.Session, error) {
	if p.fetchStarted != nil {
		close(p.fetchStarted)
		p.fetchStarted = nil
	}
	if p.fetchRelease != nil {
		<-p.fetchRelease
	}
	return p.fetchSession, p.fetchErr
}

func (p *fakeProvider) Subscribe(l bridge.Listener) {
	p.listeners = append(p.listeners, l)
}

func (p *fakeProvider) notify(s *sessions.Session) {
	for _, l := range p.listeners {
		l(s)
	}
}

func (p *fakeProvider) SignIn(ctx context.Context, email, password string) error {
	if p.signInErr != nil {
		return p.signInErr
	}
	p.notify(p.fetchSession)
	return nil
}

func (p *fakeProvider) SignUp(context.Context, string, string, string) error { return nil }

func (p *fakeProvider) OAuthSignInURL(provider, redirectTo string) (string, error) {
	return "https://id.example.com/authorize?provider=" + provider, nil
}

func (p *fakeProvider) CompleteOAuth(context.Context, string, string) error { return nil }

func (p *fakeProvider) SignOut(context.Context) error {
	p.signOutHits++
	return p.signOutErr
}

func (p *fakeProvider) ResetPassword(context.Context, string) error  { return nil }
func (p *fakeProvider) UpdatePassword(context.Context, string) error { return nil }

func newTestBridge(p *fakeProvider) (*bridge.Bridge, *token.Store) {
	store := token.NewStore()
	return bridge.New(p, store, bridge.WithNowTime(fixedNow)), store
}

func TestInitialStatusIsLoading(t *testing.T) {
	b, _ := newTestBridge(newFakeProvider())
	require.Equal(t, bridge.StatusLoading, b.Snapshot().Status)
}

func TestLoadResolvesAuthenticated(t *testing.T) {
	p := newFakeProvider()
	p.fetchSession = validSession()
	b, _ := newTestBridge(p)

	require.NoError(t, b.Load(context.Background()))

	snap := b.Snapshot()
	require.Equal(t, bridge.StatusAuthenticated, snap.Status)
	require.NotNil(t, snap.User)
	require.Equal(t, testUserID, snap.User.ID)
	require.Equal(t, users.RolePremium, snap.User.Role)
	require.Equal(t, p.fetchSession.ExpiresAt, snap.Expires)
}

func TestLoadResolvesUnauthenticatedWhenSignedOut(t *testing.T) {
	p := newFakeProvider()
	b, _ := newTestBridge(p)

	require.NoError(t, b.Load(context.Background()))

	snap := b.Snapshot()
	require.Equal(t, bridge.StatusUnauthenticated, snap.Status)
	require.Nil(t, snap.User)
}

func TestLoadTreatsExpiredSessionAsSignedOut(t *testing.T) {
	p := newFakeProvider()
	session := validSession()
	session.ExpiresAt = fixedNow().Add(-time.Second)
	p.fetchSession = session
	b, _ := newTestBridge(p)

	require.NoError(t, b.Load(context.Background()))
	require.Equal(t, bridge.StatusUnauthenticated, b.Snapshot().Status)
}

func TestLoadErrorResolvesUnauthenticated(t *testing.T) {
	p := newFakeProvider()
	p.fetchErr = errors.New("identity service unreachable")
	b, _ := newTestBridge(p)

	require.Error(t, b.Load(context.Background()))
	require.Equal(t, bridge.StatusUnauthenticated, b.Snapshot().Status)
}

func TestNotificationDuringFetchWins(t *testing.T) {
	p := newFakeProvider()
	p.fetchSession = nil // slow fetch will come back "signed out"
	p.fetchStarted = make(chan struct{})
	p.fetchRelease = make(chan struct{})
	b, _ := newTestBridge(p)

	started := p.fetchStarted
	done := make(chan error, 1)
	go func() { done <- b.Load(context.Background()) }()
	<-started

	// A sign-in completes while the fetch is still in flight.
	p.notify(validSession())
	close(p.fetchRelease)
	require.NoError(t, <-done)

	// The stale fetch result must not clobber the newer notification.
	snap := b.Snapshot()
	require.Equal(t, bridge.StatusAuthenticated, snap.Status)
	require.Equal(t, testUserID, snap.User.ID)
}

func TestChangeStreamDrivesStatus(t *testing.T) {
	p := newFakeProvider()
	b, _ := newTestBridge(p)
	require.NoError(t, b.Load(context.Background()))

	p.notify(validSession())
	require.Equal(t, bridge.StatusAuthenticated, b.Snapshot().Status)

	p.notify(nil)
	snap := b.Snapshot()
	require.Equal(t, bridge.StatusUnauthenticated, snap.Status)
	require.Nil(t, snap.User)
}

func TestSignInSwallowsExpectedFailure(t *testing.T) {
	p := newFakeProvider()
	p.signInErr = apperrors.ErrInvalidCredentials
	b, _ := newTestBridge(p)
	require.NoError(t, b.Load(context.Background()))

	result := b.SignIn(context.Background(), testUserEmail, "wrong")
	require.ErrorIs(t, result.Err, apperrors.ErrInvalidCredentials)
	require.Equal(t, bridge.StatusUnauthenticated, b.Snapshot().Status)
}

func TestSignInSuccessArrivesViaChangeStream(t *testing.T) {
	p := newFakeProvider()
	p.fetchSession = validSession()
	b, _ := newTestBridge(p)

	result := b.SignIn(context.Background(), testUserEmail, "password123")
	require.NoError(t, result.Err)
	require.Equal(t, bridge.StatusAuthenticated, b.Snapshot().Status)
}

func TestSignOutClearsStoreAndState(t *testing.T) {
	p := newFakeProvider()
	p.fetchSession = validSession()
	b, store := newTestBridge(p)
	require.NoError(t, b.Load(context.Background()))

	store.SetPair(token.Pair{AccessToken: "access-1", RefreshToken: "refresh-1"})
	store.SetCSRF("csrf-1", fixedNow().Add(time.Hour))

	require.NoError(t, b.SignOut(context.Background()))
	require.Equal(t, 1, p.signOutHits)
	require.Equal(t, bridge.StatusUnauthenticated, b.Snapshot().Status)
	require.Empty(t, store.AccessToken())
	require.Empty(t, store.RefreshToken())
	require.Empty(t, store.CSRF().Token)
}

func TestSignOutClearsLocalStateEvenWhenProviderFails(t *testing.T) {
	p := newFakeProvider()
	p.fetchSession = validSession()
	p.signOutErr = errors.New("identity service unreachable")
	b, store := newTestBridge(p)
	require.NoError(t, b.Load(context.Background()))
	store.SetPair(token.Pair{AccessToken: "access-1"})

	require.Error(t, b.SignOut(context.Background()))
	require.Equal(t, bridge.StatusUnauthenticated, b.Snapshot().Status)
	require.Empty(t, store.AccessToken())
}

func TestReloadReentersLoading(t *testing.T) {
	p := newFakeProvider()
	p.fetchSession = validSession()
	b, _ := newTestBridge(p)
	require.NoError(t, b.Load(context.Background()))
	require.Equal(t, bridge.StatusAuthenticated, b.Snapshot().Status)

	// Block the reload fetch so the intermediate state is observable.
	p.fetchStarted = make(chan struct{})
	p.fetchRelease = make(chan struct{})
	started := p.fetchStarted

	done := make(chan error, 1)
	go func() { done <- b.Reload(context.Background()) }()
	<-started
	require.Equal(t, bridge.StatusLoading, b.Snapshot().Status)

	close(p.fetchRelease)
	require.NoError(t, <-done)
	require.Equal(t, bridge.StatusAuthenticated, b.Snapshot().Status)
}

func TestOAuthSignInReturnsRedirectURL(t *testing.T) {
	p := newFakeProvider()
	b, _ := newTestBridge(p)

	url, err := b.SignInWithOAuth("google", "/dashboard")
	require.NoError(t, err)
	require.Contains(t, url, "provider=google")
}
