// Package token holds the client-side credential state: the current
// access/refresh token pair and the CSRF token snapshot. Only the
// authenticated request client and the CSRF renewer write to it; everything
// else reads through the session bridge.
package token

import (
	"sync"
	"time"
)

// Pair is an access/refresh token pair. Both values are opaque to the
// client; the refresh token is assumed single-use (rotated on refresh).
type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// CSRFToken is the client's view of the current anti-forgery token.
type CSRFToken struct {
	Token     string    `json:"csrfToken"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Store is the process-wide mutable credential state. All methods are safe
// for concurrent use.
type Store struct {
	mu   sync.RWMutex
	pair Pair
	csrf CSRFToken
}

func NewStore() *Store {
	return &Store{}
}

// SetPair replaces the token pair wholesale.
func (s *Store) SetPair(p Pair) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = p
}

func (s *Store) Pair() Pair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair
}

func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair.AccessToken
}

func (s *Store) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair.RefreshToken
}

// SetCSRF replaces the CSRF token snapshot.
func (s *Store) SetCSRF(tok string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.csrf = CSRFToken{Token: tok, ExpiresAt: expiresAt}
}

func (s *Store) CSRF() CSRFToken {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.csrf
}

// Clear wipes all credential state. Called on sign-out and on terminal
// refresh failure.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = Pair{}
	s.csrf = CSRFToken{}
}
