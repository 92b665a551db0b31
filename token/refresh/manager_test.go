package refresh_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/greenfolio/auth-core/internal/config"
	apperrors "github.com/greenfolio/auth-core/internal/errors"
	"github.com/greenfolio/auth-core/token/refresh"
	fakerefreshrepo "github.com/greenfolio/auth-core/token/refresh/repofake"
	"github.com/greenfolio/auth-core/users"
	fakeuserrepo "github.com/greenfolio/auth-core/users/repofake"
)

const (
	testUserID    = "user-1"
	testUserEmail = "jane.doe@example.com"
)

type testFixture struct {
	userRepo  *fakeuserrepo.FakeUserRepo
	tokenRepo *fakerefreshrepo.FakeRefreshTokenRepo
	manager   *refresh.Manager
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	ur := fakeuserrepo.NewFakeUserRepo()
	tr := fakerefreshrepo.NewFakeRefreshTokenRepo()

	require.NoError(t, ur.Create(&users.User{
		ID:     testUserID,
		Email:  testUserEmail,
		Role:   users.RolePremium,
		Status: users.StatusActive,
	}))

	return &testFixture{
		userRepo:  ur,
		tokenRepo: tr,
		manager:   refresh.NewManager(tr, ur, config.Tokens{}),
	}
}

func TestCreate_MintsPairWithClaims(t *testing.T) {
	f := setupTestFixture(t)

	pair, err := f.manager.Create(testUserID)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, int64((15 * time.Minute).Seconds()), pair.ExpiresIn)

	claims, err := f.manager.ParseAccessToken(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, testUserID, claims.Subject)
	require.Equal(t, testUserEmail, claims.Email)
	require.Equal(t, string(users.RolePremium), claims.Role)
	require.NotEmpty(t, claims.ID)

	// Each minted token carries its own JWT ID.
	second, err := f.manager.Create(testUserID)
	require.NoError(t, err)
	secondClaims, err := f.manager.ParseAccessToken(second.AccessToken)
	require.NoError(t, err)
	require.NotEqual(t, claims.ID, secondClaims.ID)
}

func TestCreate_UnknownUser(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.manager.Create("nobody")
	require.Error(t, err)
}

func TestCreate_ReplacesExistingToken(t *testing.T) {
	f := setupTestFixture(t)

	first, err := f.manager.Create(testUserID)
	require.NoError(t, err)
	second, err := f.manager.Create(testUserID)
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// Single refresh token per user: the first is gone.
	_, err = f.manager.Rotate(first.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrInvalidRefreshToken)
}

func TestRotate_IssuesNewPairAndInvalidatesOld(t *testing.T) {
	f := setupTestFixture(t)

	initial, err := f.manager.Create(testUserID)
	require.NoError(t, err)

	rotated, err := f.manager.Rotate(initial.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, initial.RefreshToken, rotated.RefreshToken)

	// Each refresh token is usable exactly once.
	_, err = f.manager.Rotate(initial.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrInvalidRefreshToken)

	// The rotated token works.
	_, err = f.manager.Rotate(rotated.RefreshToken)
	require.NoError(t, err)
}

func TestRotate_UnknownToken(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.manager.Rotate("never-issued")
	require.ErrorIs(t, err, apperrors.ErrInvalidRefreshToken)
}

func TestRotate_ExpiredToken(t *testing.T) {
	f := setupTestFixture(t)

	pair, err := f.manager.Create(testUserID)
	require.NoError(t, err)

	originalNowTimeFunc := refresh.NowTimeFunc
	defer func() { refresh.NowTimeFunc = originalNowTimeFunc }()
	refresh.NowTimeFunc = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }

	_, err = f.manager.Rotate(pair.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrRefreshTokenExpired)

	// Expired tokens are consumed too.
	refresh.NowTimeFunc = originalNowTimeFunc
	_, err = f.manager.Rotate(pair.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrInvalidRefreshToken)
}

func TestDeleteForUser(t *testing.T) {
	f := setupTestFixture(t)

	pair, err := f.manager.Create(testUserID)
	require.NoError(t, err)

	require.NoError(t, f.manager.DeleteForUser(testUserID))
	_, err = f.manager.Rotate(pair.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrInvalidRefreshToken)

	// No token on file is not an error.
	require.NoError(t, f.manager.DeleteForUser(testUserID))
}

func TestParseAccessToken_Expired(t *testing.T) {
	f := setupTestFixture(t)

	pair, err := f.manager.Create(testUserID)
	require.NoError(t, err)

	originalNowTimeFunc := refresh.NowTimeFunc
	defer func() { refresh.NowTimeFunc = originalNowTimeFunc }()
	refresh.NowTimeFunc = func() time.Time { return time.Now().Add(16 * time.Minute) }

	_, err = f.manager.ParseAccessToken(pair.AccessToken)
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestParseAccessToken_Garbage(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.manager.ParseAccessToken("not-a-jwt")
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestParseAccessToken_WrongKey(t *testing.T) {
	f := setupTestFixture(t)

	pair, err := f.manager.Create(testUserID)
	require.NoError(t, err)

	t.Setenv("TOKEN_SIGNING_KEY", "a-different-key")
	_, err = f.manager.ParseAccessToken(pair.AccessToken)
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)
}
