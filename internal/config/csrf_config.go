package config

import "time"

type CSRFConfig interface {
	GetCSRFTokenTTL() time.Duration
	GetCSRFRenewWindow() time.Duration
	GetCSRFTokenLength() int
}

type CSRF struct{}

var _ CSRFConfig = CSRF{}

func (CSRF) GetCSRFTokenTTL() time.Duration {
	return 1 * time.Hour
}

// GetCSRFRenewWindow returns how long before expiry clients request a fresh token.
func (CSRF) GetCSRFRenewWindow() time.Duration {
	return 5 * time.Minute
}

func (CSRF) GetCSRFTokenLength() int {
	return 32 // 32 bytes = 256 bits
}
