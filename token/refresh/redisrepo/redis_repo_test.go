package redisrepo_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/greenfolio/auth-core/internal/errors"
	"github.com/greenfolio/auth-core/token/refresh"
	"github.com/greenfolio/auth-core/token/refresh/redisrepo"
)

func newTestRepo(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *redisrepo.RedisRefreshTokenRepo) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, redisrepo.New(client, ttl)
}

func storedToken(token, userID string) *refresh.StoredRefreshToken {
	return &refresh.StoredRefreshToken{
		Token:  token,
		UserID: userID,
		Iat:    time.Now().UTC().Truncate(time.Second),
	}
}

func TestUpsertGetRoundTrip(t *testing.T) {
	_, repo := newTestRepo(t, time.Hour)

	want := storedToken("tok-a", "user-1")
	require.NoError(t, repo.Upsert(want))

	got, err := repo.Get("tok-a")
	require.NoError(t, err)
	require.Equal(t, want.Token, got.Token)
	require.Equal(t, want.UserID, got.UserID)
	require.True(t, want.Iat.Equal(got.Iat))
}

func TestGetByUserIDFollowsIndex(t *testing.T) {
	_, repo := newTestRepo(t, time.Hour)

	require.NoError(t, repo.Upsert(storedToken("tok-a", "user-1")))
	require.NoError(t, repo.Upsert(storedToken("tok-b", "user-1")))

	got, err := repo.GetByUserID("user-1")
	require.NoError(t, err)
	require.Equal(t, "tok-b", got.Token)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	_, repo := newTestRepo(t, time.Hour)

	_, err := repo.Get("never-issued")
	require.ErrorIs(t, err, errors.ErrNotFound)
	_, err = repo.GetByUserID("nobody")
	require.ErrorIs(t, err, errors.ErrNotFound)
}

func TestDeleteRemovesBothKeys(t *testing.T) {
	_, repo := newTestRepo(t, time.Hour)

	require.NoError(t, repo.Upsert(storedToken("tok-a", "user-1")))
	require.NoError(t, repo.Delete("tok-a"))

	_, err := repo.Get("tok-a")
	require.ErrorIs(t, err, errors.ErrNotFound)
	_, err = repo.GetByUserID("user-1")
	require.ErrorIs(t, err, errors.ErrNotFound)

	// Deleting again is a no-op.
	require.NoError(t, repo.Delete("tok-a"))
}

func TestTokensExpireWithTTL(t *testing.T) {
	mr, repo := newTestRepo(t, time.Hour)

	require.NoError(t, repo.Upsert(storedToken("tok-a", "user-1")))
	mr.FastForward(61 * time.Minute)

	_, err := repo.Get("tok-a")
	require.ErrorIs(t, err, errors.ErrNotFound)
	_, err = repo.GetByUserID("user-1")
	require.ErrorIs(t, err, errors.ErrNotFound)
}
