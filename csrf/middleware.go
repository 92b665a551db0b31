package csrf

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/greenfolio/auth-core/routes"
)

// UserResolver maps a request to the authenticated user ID, or returns an
// error when the request carries no valid session.
type UserResolver func(r *http.Request) (string, error)

// Middleware enforces the double-submit check on mutating requests: the
// token must arrive in both the X-CSRF-Token header and the csrf-token
// cookie, the two must match, and the header value must validate against
// the stored record for the session's user.
//
// Safe methods and auth-sensitive routes (sign-in has no session yet, the
// refresh exchange authenticates by token possession) pass through.
func (s *Service) Middleware(resolveUser UserResolver) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !routes.IsMutatingMethod(r.Method) {
				next(w, r)
				return
			}
			if routes.IsAuthRoute(r.URL.Path) && !strings.HasPrefix(r.URL.Path, "/api/admin/") {
				next(w, r)
				return
			}

			userID, err := resolveUser(r)
			if err != nil {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}

			headerTok := strings.TrimSpace(r.Header.Get(HeaderName))
			cookieTok := ""
			if c, err := r.Cookie(CookieName); err == nil {
				cookieTok = strings.TrimSpace(c.Value)
			}

			if headerTok == "" || cookieTok == "" || headerTok != cookieTok {
				rejectCSRF(w, r)
				return
			}
			if err := s.Validate(r.Context(), userID, headerTok); err != nil {
				rejectCSRF(w, r)
				return
			}

			next(w, r)
		}
	}
}

func rejectCSRF(w http.ResponseWriter, r *http.Request) {
	// Generic message only: never reveal whether a token was missing,
	// expired, or mismatched.
	log.Debug().Str("path", r.URL.Path).Msg("rejected request failing CSRF validation")
	http.Error(w, `{"error":"invalid CSRF token"}`, http.StatusForbidden)
}
