// Package routes defines the application's route constants and the
// auth-route classifier consulted by caching layers and the CSRF
// middleware.
package routes

import (
	"net/url"
	"strings"
)

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth API routes
	RouteAuthSignIn  = "/api/auth/signin"
	RouteAuthSignOut = "/api/auth/signout"
	RouteAuthSignUp  = "/api/auth/signup"
	RouteAuthRefresh = "/api/auth/refresh"
	RouteAuthSession = "/api/auth/session"
	RouteAuthCSRF    = "/api/auth/csrf"

	// Admin API routes
	RouteAdminMetrics = "/api/admin/metrics"
	RouteAdminUsers   = "/api/admin/users"

	// Human-facing auth pages
	RoutePageSignIn        = "/auth/signin"
	RoutePageSignOut       = "/auth/signout"
	RoutePageSignUp        = "/auth/signup"
	RoutePageCallback      = "/auth/callback"
	RoutePageVerify        = "/auth/verify"
	RoutePageResetPassword = "/auth/reset-password"
)

// mutatingMethods are the HTTP methods that require CSRF validation.
var mutatingMethods = map[string]struct{}{
	"POST":   {},
	"PUT":    {},
	"PATCH":  {},
	"DELETE": {},
}

// IsMutatingMethod reports whether a request method can change state and
// therefore needs CSRF protection.
func IsMutatingMethod(method string) bool {
	_, ok := mutatingMethods[strings.ToUpper(method)]
	return ok
}

// authPathPrefixes are matched against the normalized pathname.
var authPathPrefixes = []string{
	"/api/",   // every API route bypasses generic caching
	"/auth/",  // human-facing auth pages (signin/signout/callback/verify/reset)
	"/_next/", // framework internal assets
	"/static/",
}

// IsAuthRoute reports whether a path or full URL is an auth-sensitive route
// that must bypass generic caching, service-worker interception, and CSRF
// auto-generation. Pure function: no I/O, same answer for the same input.
func IsAuthRoute(pathOrURL string) bool {
	path := normalizePath(pathOrURL)
	for _, prefix := range authPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// normalizePath extracts the pathname from either a bare path or a full URL
// with origin, dropping any query string or fragment.
func normalizePath(pathOrURL string) string {
	raw := pathOrURL
	if strings.Contains(raw, "://") {
		if u, err := url.Parse(raw); err == nil {
			return u.Path
		}
	}
	if idx := strings.IndexAny(raw, "?#"); idx != -1 {
		raw = raw[:idx]
	}
	return raw
}
