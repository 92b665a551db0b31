package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/greenfolio/auth-core/csrf"
	"github.com/greenfolio/auth-core/internal/errors"
	"github.com/greenfolio/auth-core/sessions"
	"github.com/greenfolio/auth-core/users"
)

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int64       `json:"expires_in"`
	User         sessionUser `json:"user"`
}

type sessionUser struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	Role        users.Role `json:"role"`
}

// SignInHandler performs the password grant: verifies credentials, creates
// the server-side session, sets the session cookie, and returns a token
// pair.
func (s *Server) SignInHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signInRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
			return
		}

		user, err := s.repos.Users.GetByEmail(req.Email)
		if err != nil || !user.CheckPassword(req.Password) {
			// Same answer for unknown email and wrong password
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
			return
		}
		if err := user.CanSignIn(); err != nil {
			if errors.Is(err, errors.ErrUserSuspended) {
				writeError(w, http.StatusForbidden, "account_suspended", "Account is suspended")
				return
			}
			writeError(w, http.StatusForbidden, "email_not_verified", "Email address is not verified")
			return
		}

		now := time.Now()
		session := &sessions.Session{
			UserID:      user.ID,
			Email:       user.Email,
			DisplayName: user.DisplayName,
			Role:        user.Role,
			CreatedAt:   now,
			ExpiresAt:   now.Add(s.config.GetMaxSessionAge()),
		}
		sessionID := uuid.NewString()
		if err := s.repos.Sessions.Upsert(sessionID, session); err != nil {
			log.Err(err).Msg("failed to store session")
			writeError(w, http.StatusInternalServerError, "internal_error", "")
			return
		}

		pair, err := s.tokens.Create(user.ID)
		if err != nil {
			log.Err(err).Msg("failed to mint token pair")
			writeError(w, http.StatusInternalServerError, "internal_error", "")
			return
		}

		s.setSessionCookie(w, r, sessionID, int(s.config.GetMaxSessionAge().Seconds()))
		writeJSON(w, http.StatusOK, signInResponse{
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
			ExpiresIn:    pair.ExpiresIn,
			User: sessionUser{
				ID:          user.ID,
				Email:       user.Email,
				DisplayName: user.DisplayName,
				Role:        user.Role,
			},
		})
	}
}

// SignOutHandler destroys the server-side session, the active refresh
// token, and the CSRF record, and clears both cookies.
func (s *Server) SignOutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.gate.ResolveUser(r)
		if err != nil {
			// Signing out without a session is a no-op, not an error
			writeJSON(w, http.StatusOK, map[string]string{"status": "signed_out"})
			return
		}

		if cookie, err := r.Cookie(s.config.GetSessionCookieName()); err == nil {
			if err := s.repos.Sessions.Delete(cookie.Value); err != nil && !errors.Is(err, errors.ErrSessionNotFound) {
				log.Err(err).Msg("failed to delete session")
			}
		}
		if err := s.tokens.DeleteForUser(userID); err != nil {
			log.Err(err).Msg("failed to delete refresh token")
		}
		if err := s.csrf.Invalidate(r.Context(), userID); err != nil {
			log.Err(err).Msg("failed to invalidate csrf record")
		}

		s.setSessionCookie(w, r, "", -1)
		csrf.ClearCookie(w, s.config.GetCookieSecure())
		writeJSON(w, http.StatusOK, map[string]string{"status": "signed_out"})
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RefreshHandler is the refresh-token exchange: it rotates the presented
// refresh token and returns a fresh pair. Invalid or expired tokens get a
// 401 so clients know to force re-authentication.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "refresh_token is required")
			return
		}

		pair, err := s.tokens.Rotate(req.RefreshToken)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_grant", "Refresh token is invalid or expired")
			return
		}

		writeJSON(w, http.StatusOK, pair)
	}
}

// SessionHandler returns the caller's current session projection.
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.gate.ResolveUser(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid session")
			return
		}

		user, err := s.repos.Users.GetByID(userID)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "Unknown user")
			return
		}

		writeJSON(w, http.StatusOK, sessionUser{
			ID:          user.ID,
			Email:       user.Email,
			DisplayName: user.DisplayName,
			Role:        user.Role,
		})
	}
}

// CSRFHandler issues (or replaces) the caller's anti-forgery token and
// mirrors it into the non-httpOnly cookie for the double-submit check.
func (s *Server) CSRFHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.gate.ResolveUser(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid session")
			return
		}

		issued, err := s.csrf.IssueOrRefresh(r.Context(), userID)
		if err != nil {
			log.Err(err).Msg("failed to issue csrf token")
			writeError(w, http.StatusInternalServerError, "internal_error", "")
			return
		}

		csrf.SetCookie(w, issued.Token, issued.ExpiresAt, s.config.GetCookieSecure())
		writeJSON(w, http.StatusOK, issued)
	}
}

func (s *Server) setSessionCookie(w http.ResponseWriter, r *http.Request, sessionID string, maxAge int) {
	isSecure := getScheme(r) == "https" || s.config.GetCookieSecure()

	http.SetCookie(w, &http.Cookie{
		Name:     s.config.GetSessionCookieName(),
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}
