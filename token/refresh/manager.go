// Package refresh handles server-side refresh token creation, validation,
// and rotation, plus minting of the short-lived access JWTs they exchange
// for.
package refresh

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/greenfolio/auth-core/internal/config"
	apperrors "github.com/greenfolio/auth-core/internal/errors"
	"github.com/greenfolio/auth-core/users"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// TokenPair is what a successful exchange returns to the client.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// AccessClaims are the claims embedded in a minted access JWT.
type AccessClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Manager handles refresh token rotation and access token minting.
type Manager struct {
	repo     Repo
	userRepo users.UserRepo
	config   config.TokenConfig
}

// NewManager creates a new refresh token manager
func NewManager(repo Repo, userRepo users.UserRepo, cfg config.TokenConfig) *Manager {
	return &Manager{
		repo:     repo,
		userRepo: userRepo,
		config:   cfg,
	}
}

// Create mints a fresh token pair for a user at sign-in. Any existing
// refresh token for the user is replaced (single refresh token per user).
func (m *Manager) Create(userID string) (*TokenPair, error) {
	user, err := m.userRepo.GetByID(userID)
	if err != nil {
		return nil, errors.Wrap(err, "[refresh.Create] unknown user")
	}

	if existing, err := m.repo.GetByUserID(userID); err == nil && existing != nil {
		if err := m.repo.Delete(existing.Token); err != nil {
			return nil, fmt.Errorf("failed to delete existing refresh token: %w", err)
		}
	}

	tokenBytes := make([]byte, m.config.GetRefreshTokenLength())
	if _, err := rand.Read(tokenBytes); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}

	tokenStr := hex.EncodeToString(tokenBytes)
	if err := m.repo.Upsert(&StoredRefreshToken{
		Token:  tokenStr,
		UserID: userID,
		Iat:    NowTimeFunc(),
	}); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	accessToken, err := m.mintAccessToken(user)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: tokenStr,
		ExpiresIn:    int64(m.config.GetAccessTokenExpiry().Seconds()),
	}, nil
}

// Rotate exchanges a refresh token for a new token pair. The presented
// token is invalidated whether or not the exchange succeeds past lookup:
// each refresh token is usable exactly once.
func (m *Manager) Rotate(refreshToken string) (*TokenPair, error) {
	stored, err := m.repo.Get(refreshToken)
	if err != nil || stored == nil {
		return nil, apperrors.ErrInvalidRefreshToken
	}

	if err := m.repo.Delete(stored.Token); err != nil {
		return nil, fmt.Errorf("failed to delete rotated refresh token: %w", err)
	}

	if m.IsExpired(stored) {
		return nil, apperrors.ErrRefreshTokenExpired
	}

	return m.Create(stored.UserID)
}

// Delete removes a refresh token from storage (sign-out path).
func (m *Manager) Delete(refreshToken string) error {
	return m.repo.Delete(refreshToken)
}

// DeleteForUser removes the user's active refresh token, if any.
func (m *Manager) DeleteForUser(userID string) error {
	existing, err := m.repo.GetByUserID(userID)
	if err != nil || existing == nil {
		return nil
	}
	return m.repo.Delete(existing.Token)
}

// IsExpired checks if a refresh token has aged past the configured expiry
func (m *Manager) IsExpired(rt *StoredRefreshToken) bool {
	return NowTimeFunc().Sub(rt.Iat) > m.config.GetRefreshTokenExpiry()
}

// ParseAccessToken validates a minted access JWT and returns its claims.
func (m *Manager) ParseAccessToken(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.config.GetSigningKey(), nil
	}, jwt.WithTimeFunc(NowTimeFunc), jwt.WithIssuer(m.config.GetIssuer()))
	if err != nil || !parsed.Valid {
		return nil, apperrors.ErrInvalidToken
	}
	return claims, nil
}

func (m *Manager) mintAccessToken(user *users.User) (string, error) {
	now := NowTimeFunc()
	claims := AccessClaims{
		Email: user.Email,
		Role:  string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    m.config.GetIssuer(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.GetAccessTokenExpiry())),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.GetSigningKey())
	if err != nil {
		return "", errors.Wrap(err, "[refresh.mintAccessToken] signing failed")
	}
	return signed, nil
}
