package config

import "time"

type SecurityConfig interface {
	GetMaxSessionAge() time.Duration
	GetSessionCookieName() string
	GetCookieSecure() bool
}

type Security struct{}

var _ SecurityConfig = Security{}

func (Security) GetMaxSessionAge() time.Duration {
	return 24 * time.Hour
}

func (Security) GetSessionCookieName() string {
	return "session_id"
}

func (Security) GetCookieSecure() bool {
	return GetEnv("COOKIE_SECURE", "") == "true"
}
