package users_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/greenfolio/auth-core/internal/errors"
	"github.com/greenfolio/auth-core/users"
)

func TestParseRole(t *testing.T) {
	for _, role := range users.AllRoles {
		parsed, err := users.ParseRole(string(role))
		require.NoError(t, err)
		require.Equal(t, role, parsed)
	}

	// The set is closed: nothing outside it parses, case included.
	for _, raw := range []string{"", "superuser", "Admin", "ADMIN", "root"} {
		_, err := users.ParseRole(raw)
		require.Error(t, err, raw)
	}
}

func TestParseStatus(t *testing.T) {
	for _, raw := range []string{"active", "suspended"} {
		_, err := users.ParseStatus(raw)
		require.NoError(t, err)
	}
	_, err := users.ParseStatus("frozen")
	require.Error(t, err)
}

func TestCanSignIn(t *testing.T) {
	active := &users.User{Status: users.StatusActive, Verified: true}
	require.NoError(t, active.CanSignIn())

	unverified := &users.User{Status: users.StatusActive}
	require.ErrorIs(t, unverified.CanSignIn(), errors.ErrUserNotVerified)

	suspended := &users.User{Status: users.StatusSuspended, Verified: true}
	require.ErrorIs(t, suspended.CanSignIn(), errors.ErrUserSuspended)

	// Suspension wins over verification state.
	both := &users.User{Status: users.StatusSuspended}
	require.ErrorIs(t, both.CanSignIn(), errors.ErrUserSuspended)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := users.HashPassword("password123")
	require.NoError(t, err)
	require.NotEqual(t, "password123", hash)

	user := &users.User{PasswordHash: hash}
	require.True(t, user.CheckPassword("password123"))
	require.False(t, user.CheckPassword("password124"))
	require.False(t, (&users.User{}).CheckPassword("password123"))
}

func TestUpdatesEmpty(t *testing.T) {
	require.True(t, users.Updates{}.Empty())

	role := users.RolePremium
	require.False(t, users.Updates{Role: &role}.Empty())
	name := ""
	require.False(t, users.Updates{DisplayName: &name}.Empty(), "explicit empty string still counts as a change")
}
