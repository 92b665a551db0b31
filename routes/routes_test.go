package routes_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/greenfolio/auth-core/routes"
)

func TestIsAuthRoute(t *testing.T) {
	tests := []struct {
		name      string
		pathOrURL string
		want      bool
	}{
		{"api route", "/api/auth/session", true},
		{"api route with query", "/api/auth/callback/google?code=abc", true},
		{"auth page", "/auth/signin", true},
		{"framework asset", "/_next/static/chunks/main.js", true},
		{"static asset", "/static/logo.svg", true},
		{"full url with origin", "https://app.greenfolio.io/api/auth/csrf", true},
		{"full url with query and fragment", "https://app.greenfolio.io/auth/callback?code=abc#state", true},
		{"dashboard page", "/dashboard", false},
		{"portfolio page", "/portfolio/holdings", false},
		{"root", "/", false},
		{"full url to app page", "https://app.greenfolio.io/dashboard?tab=impact", false},
		{"prefix without separator", "/apidocs", false},
		{"auth substring not prefix", "/help/api/usage", false},
		{"fragment only stripped", "/pricing#faq", false},
		{"empty", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, routes.IsAuthRoute(tc.pathOrURL))
		})
	}
}

func TestIsAuthRouteIsStable(t *testing.T) {
	// Same input, same answer. The classifier must not depend on any state.
	for i := 0; i < 3; i++ {
		require.True(t, routes.IsAuthRoute(routes.RouteAuthSession))
		require.False(t, routes.IsAuthRoute("/dashboard"))
	}
}

func TestIsMutatingMethod(t *testing.T) {
	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		require.True(t, routes.IsMutatingMethod(method), method)
	}
	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		require.False(t, routes.IsMutatingMethod(method), method)
	}
	require.True(t, routes.IsMutatingMethod("post"), "method match is case-insensitive")
}
