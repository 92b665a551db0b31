package config

import (
	"fmt"
	"os"
)

const (
	portEnvVar  = "PORT"
	appNameVar  = "APP_NAME"
	envVar      = "ENV"
	baseURLVar  = "BASE_URL"
	redisURLVar = "REDIS_URL"
)

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetBaseURL() string
	GetRedisURL() string
	GetEnv() string
	GetManagedAuthURL() string
	GetManagedAuthKey() string
	GetOAuthClientID() string
	GetOAuthClientSecret() string
}

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if port != "" && port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Greenfolio Auth Core")
}

func (EnvVars) GetBaseURL() string {
	return GetEnv(baseURLVar, "http://localhost:8080")
}

// GetRedisURL returns the redis connection URL. Empty means in-memory stores.
func (EnvVars) GetRedisURL() string {
	return GetEnv(redisURLVar, "")
}

func (EnvVars) GetEnv() string {
	return GetEnv(envVar, "DEV")
}

// GetManagedAuthURL returns the base URL of the managed identity provider.
func (EnvVars) GetManagedAuthURL() string {
	return GetEnv("MANAGED_AUTH_URL", "")
}

// GetManagedAuthKey returns the publishable API key for the managed provider.
func (EnvVars) GetManagedAuthKey() string {
	return GetEnv("MANAGED_AUTH_KEY", "")
}

func (EnvVars) GetOAuthClientID() string {
	return GetEnv("OAUTH_CLIENT_ID", "")
}

func (EnvVars) GetOAuthClientSecret() string {
	return GetEnv("OAUTH_CLIENT_SECRET", "")
}

func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
