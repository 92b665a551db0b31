package redisrepo_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/greenfolio/auth-core/internal/errors"
	"github.com/greenfolio/auth-core/sessions"
	"github.com/greenfolio/auth-core/sessions/redisrepo"
	"github.com/greenfolio/auth-core/users"
)

func newTestRepo(t *testing.T) (*miniredis.Miniredis, *redisrepo.RedisSessionRepo) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, redisrepo.New(client)
}

func testSession(userID string, expiresAt time.Time) *sessions.Session {
	return &sessions.Session{
		UserID:      userID,
		Email:       userID + "@example.com",
		DisplayName: "Test User",
		Role:        users.RoleUser,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
		ExpiresAt:   expiresAt.UTC().Truncate(time.Second),
	}
}

func TestUpsertGetRoundTrip(t *testing.T) {
	_, repo := newTestRepo(t)

	want := testSession("user-1", time.Now().Add(time.Hour))
	require.NoError(t, repo.Upsert("sess-a", want))

	got, err := repo.Get("sess-a")
	require.NoError(t, err)
	require.Equal(t, "sess-a", got.ID)
	require.Equal(t, want.UserID, got.UserID)
	require.Equal(t, want.Email, got.Email)
	require.Equal(t, want.Role, got.Role)
	require.True(t, want.ExpiresAt.Equal(got.ExpiresAt))
}

func TestUpsertRejectsAlreadyExpiredSession(t *testing.T) {
	_, repo := newTestRepo(t)

	err := repo.Upsert("sess-a", testSession("user-1", time.Now().Add(-time.Minute)))
	require.ErrorIs(t, err, errors.ErrSessionExpired)
}

func TestGetByUserIDFollowsLatestSession(t *testing.T) {
	_, repo := newTestRepo(t)

	require.NoError(t, repo.Upsert("sess-a", testSession("user-1", time.Now().Add(time.Hour))))
	require.NoError(t, repo.Upsert("sess-b", testSession("user-1", time.Now().Add(time.Hour))))

	got, err := repo.GetByUserID("user-1")
	require.NoError(t, err)
	require.Equal(t, "sess-b", got.ID)
}

func TestGetMissingReturnsSessionNotFound(t *testing.T) {
	_, repo := newTestRepo(t)

	_, err := repo.Get("never-created")
	require.ErrorIs(t, err, errors.ErrSessionNotFound)
	_, err = repo.GetByUserID("nobody")
	require.ErrorIs(t, err, errors.ErrSessionNotFound)
}

func TestDeleteRemovesSessionAndIndex(t *testing.T) {
	_, repo := newTestRepo(t)

	require.NoError(t, repo.Upsert("sess-a", testSession("user-1", time.Now().Add(time.Hour))))
	require.NoError(t, repo.Delete("sess-a"))

	_, err := repo.Get("sess-a")
	require.ErrorIs(t, err, errors.ErrSessionNotFound)
	_, err = repo.GetByUserID("user-1")
	require.ErrorIs(t, err, errors.ErrSessionNotFound)

	require.ErrorIs(t, repo.Delete("sess-a"), errors.ErrSessionNotFound)
}

func TestSessionsExpireWithTTL(t *testing.T) {
	mr, repo := newTestRepo(t)

	require.NoError(t, repo.Upsert("sess-a", testSession("user-1", time.Now().Add(30*time.Minute))))
	mr.FastForward(31 * time.Minute)

	_, err := repo.Get("sess-a")
	require.ErrorIs(t, err, errors.ErrSessionNotFound)
}

func TestDeleteExpiredPrunesStaleIndexEntries(t *testing.T) {
	mr, repo := newTestRepo(t)

	require.NoError(t, repo.Upsert("sess-a", testSession("user-1", time.Now().Add(10*time.Minute))))
	require.NoError(t, repo.Upsert("sess-b", testSession("user-2", time.Now().Add(time.Hour))))

	// Expire user-1's session record but leave its index key alive.
	mr.FastForward(11 * time.Minute)
	require.NoError(t, mr.Set("greenfolio:session:user:user-1", "sess-a"))

	require.NoError(t, repo.DeleteExpired(time.Now()))

	_, err := repo.GetByUserID("user-1")
	require.ErrorIs(t, err, errors.ErrSessionNotFound)

	got, err := repo.GetByUserID("user-2")
	require.NoError(t, err)
	require.Equal(t, "sess-b", got.ID)
}