package config

import "time"

type TokenConfig interface {
	GetSigningKey() []byte
	GetIssuer() string
	GetRefreshTokenLength() int
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
}

type Tokens struct{}

var _ TokenConfig = Tokens{}

func (Tokens) GetSigningKey() []byte {
	return []byte(GetEnv("TOKEN_SIGNING_KEY", "dev-only-signing-key"))
}

func (Tokens) GetIssuer() string {
	return GetEnv("TOKEN_ISSUER", "greenfolio")
}

func (Tokens) GetRefreshTokenLength() int {
	return 32 // 32 bytes = 256 bits
}

func (Tokens) GetAccessTokenExpiry() time.Duration {
	return 15 * time.Minute
}

func (Tokens) GetRefreshTokenExpiry() time.Duration {
	return 7 * 24 * time.Hour // 7 days
}
