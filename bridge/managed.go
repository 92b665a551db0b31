package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	apperrors "github.com/greenfolio/auth-core/internal/errors"
	"github.com/greenfolio/auth-core/sessions"
	"github.com/greenfolio/auth-core/token"
	"github.com/greenfolio/auth-core/users"
)

// OAuthUpstream describes one upstream OAuth/OIDC provider (e.g. google).
type OAuthUpstream struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

type oidcConfig struct {
	oidcProvider *oidc.Provider
	oauth2Config *oauth2.Config
	oidcVerifier *oidc.IDTokenVerifier
}

// ManagedProvider is the authoritative identity source: a REST client for
// the managed auth service. Every credential change notifies subscribers,
// and minted token pairs land in the shared token store.
type ManagedProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	store      *token.Store
	nowTime    func() time.Time

	upstreams map[string]OAuthUpstream

	oauthConfigs     map[string]oidcConfig
	oauthConfigsLock sync.RWMutex

	listenersLock sync.RWMutex
	listeners     []Listener
}

var _ Provider = (*ManagedProvider)(nil)

// ManagedOption configures the ManagedProvider.
type ManagedOption func(*ManagedProvider)

// WithManagedHTTPClient sets a custom HTTP client.
func WithManagedHTTPClient(hc *http.Client) ManagedOption {
	return func(p *ManagedProvider) { p.httpClient = hc }
}

// WithOAuthUpstream registers an upstream OAuth provider by name.
func WithOAuthUpstream(name string, upstream OAuthUpstream) ManagedOption {
	return func(p *ManagedProvider) { p.upstreams[name] = upstream }
}

// WithManagedNowTime sets the now time function (primarily for testing)
func WithManagedNowTime(nowFunc func() time.Time) ManagedOption {
	return func(p *ManagedProvider) { p.nowTime = nowFunc }
}

// NewManagedProvider creates a provider against the managed auth service.
func NewManagedProvider(baseURL, apiKey string, store *token.Store, options ...ManagedOption) *ManagedProvider {
	p := &ManagedProvider{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		store:        store,
		nowTime:      time.Now,
		upstreams:    make(map[string]OAuthUpstream),
		oauthConfigs: make(map[string]oidcConfig),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Subscribe registers a change-stream listener.
func (p *ManagedProvider) Subscribe(l Listener) {
	p.listenersLock.Lock()
	defer p.listenersLock.Unlock()
	p.listeners = append(p.listeners, l)
}

func (p *ManagedProvider) notify(s *sessions.Session) {
	p.listenersLock.RLock()
	listeners := make([]Listener, len(p.listeners))
	copy(listeners, p.listeners)
	p.listenersLock.RUnlock()

	for _, l := range listeners {
		l(s)
	}
}

// sessionResponse is the managed service's session payload shape.
type sessionResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	User         struct {
		ID          string `json:"id"`
		Email       string `json:"email"`
		DisplayName string `json:"display_name"`
		Role        string `json:"role"`
	} `json:"user"`
}

type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// FetchSession asks the managed service for the session behind the current
// access token. A missing or rejected token yields (nil, nil): signed out,
// not an error.
func (p *ManagedProvider) FetchSession(ctx context.Context) (*sessions.Session, error) {
	access := p.store.AccessToken()
	if access == "" {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/user", nil)
	if err != nil {
		return nil, errors.Wrap(err, "[ManagedProvider.FetchSession] failed to create request")
	}
	p.decorate(req)
	req.Header.Set("Authorization", "Bearer "+access)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "[ManagedProvider.FetchSession] request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("[ManagedProvider.FetchSession] unexpected status %d", resp.StatusCode)
	}

	var sr sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, errors.Wrap(err, "[ManagedProvider.FetchSession] failed to decode response")
	}
	return p.toSession(&sr, false), nil
}

// SignIn performs the password grant. The session is delivered through the
// change stream.
func (p *ManagedProvider) SignIn(ctx context.Context, email, password string) error {
	payload := map[string]string{"email": email, "password": password}
	sr, err := p.postSession(ctx, "/v1/token?grant_type=password", payload)
	if err != nil {
		return err
	}
	p.notify(p.toSession(sr, true))
	return nil
}

// SignUp registers a new account. Depending on service policy the response
// may or may not include a live session (email verification pending).
func (p *ManagedProvider) SignUp(ctx context.Context, email, password, displayName string) error {
	payload := map[string]string{"email": email, "password": password, "display_name": displayName}
	sr, err := p.postSession(ctx, "/v1/signup", payload)
	if err != nil {
		return err
	}
	if sr.AccessToken != "" {
		p.notify(p.toSession(sr, true))
	}
	return nil
}

// OAuthSignInURL builds the upstream authorization redirect URL.
func (p *ManagedProvider) OAuthSignInURL(provider, redirectTo string) (string, error) {
	cfg, err := p.getOAuthConfig(context.Background(), provider)
	if err != nil {
		return "", err
	}

	opts := []oauth2.AuthCodeOption{}
	if redirectTo != "" {
		opts = append(opts, oauth2.SetAuthURLParam("state", redirectTo))
	}
	return cfg.oauth2Config.AuthCodeURL(provider, opts...), nil
}

// CompleteOAuth exchanges the callback code with the upstream, verifies the
// ID token locally, then trades the verified identity for a managed-service
// session. The session is delivered through the change stream.
func (p *ManagedProvider) CompleteOAuth(ctx context.Context, provider, code string) error {
	cfg, err := p.getOAuthConfig(ctx, provider)
	if err != nil {
		return err
	}

	oauthToken, err := cfg.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return errors.Wrap(err, "[ManagedProvider.CompleteOAuth] code exchange failed")
	}

	rawIDToken, ok := oauthToken.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return errors.New("[ManagedProvider.CompleteOAuth] no id_token in exchange response")
	}
	if _, err := cfg.oidcVerifier.Verify(ctx, rawIDToken); err != nil {
		return errors.Wrap(err, "[ManagedProvider.CompleteOAuth] id_token verification failed")
	}

	payload := map[string]string{"provider": provider, "id_token": rawIDToken}
	sr, err := p.postSession(ctx, "/v1/token?grant_type=id_token", payload)
	if err != nil {
		return err
	}
	p.notify(p.toSession(sr, true))
	return nil
}

// SignOut invalidates the server-side session and notifies subscribers.
func (p *ManagedProvider) SignOut(ctx context.Context) error {
	access := p.store.AccessToken()

	defer p.notify(nil)
	if access == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/logout", nil)
	if err != nil {
		return errors.Wrap(err, "[ManagedProvider.SignOut] failed to create request")
	}
	p.decorate(req)
	req.Header.Set("Authorization", "Bearer "+access)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "[ManagedProvider.SignOut] request failed")
	}
	resp.Body.Close()
	return nil
}

// ResetPassword requests a reset email. Fire-and-forget.
func (p *ManagedProvider) ResetPassword(ctx context.Context, email string) error {
	payload := map[string]string{"email": email}
	return p.post(ctx, "/v1/recover", payload, "")
}

// UpdatePassword sets a new password for the signed-in user.
func (p *ManagedProvider) UpdatePassword(ctx context.Context, newPassword string) error {
	access := p.store.AccessToken()
	if access == "" {
		return apperrors.ErrSessionNotFound
	}
	payload := map[string]string{"password": newPassword}
	return p.post(ctx, "/v1/user/password", payload, access)
}

// getOAuthConfig lazily resolves and caches the OIDC discovery document and
// oauth2 config for an upstream provider.
func (p *ManagedProvider) getOAuthConfig(ctx context.Context, provider string) (oidcConfig, error) {
	p.oauthConfigsLock.RLock()
	cfg, exists := p.oauthConfigs[provider]
	p.oauthConfigsLock.RUnlock()
	if exists {
		return cfg, nil
	}

	upstream, ok := p.upstreams[provider]
	if !ok {
		return oidcConfig{}, fmt.Errorf("unknown oauth provider %q", provider)
	}

	oidcProvider, err := oidc.NewProvider(ctx, upstream.Issuer)
	if err != nil {
		return oidcConfig{}, errors.Wrapf(err, "oidc discovery failed for %q", provider)
	}

	scopes := upstream.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	cfg = oidcConfig{
		oidcProvider: oidcProvider,
		oauth2Config: &oauth2.Config{
			ClientID:     upstream.ClientID,
			ClientSecret: upstream.ClientSecret,
			RedirectURL:  upstream.RedirectURL,
			Endpoint:     oidcProvider.Endpoint(),
			Scopes:       scopes,
		},
		oidcVerifier: oidcProvider.Verifier(&oidc.Config{ClientID: upstream.ClientID}),
	}

	p.oauthConfigsLock.Lock()
	p.oauthConfigs[provider] = cfg
	p.oauthConfigsLock.Unlock()

	return cfg, nil
}

// postSession posts a payload and decodes a session response, mapping
// service errors to the auth error taxonomy.
func (p *ManagedProvider) postSession(ctx context.Context, path string, payload any) (*sessionResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "[ManagedProvider] failed to encode payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "[ManagedProvider] failed to create request")
	}
	p.decorate(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "[ManagedProvider] request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "[ManagedProvider] failed to read response")
	}

	if resp.StatusCode != http.StatusOK {
		var er errorResponse
		_ = json.Unmarshal(raw, &er)
		switch {
		case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized:
			return nil, apperrors.ErrInvalidCredentials
		case resp.StatusCode == http.StatusForbidden && er.Error == "email_not_verified":
			return nil, apperrors.ErrUserNotVerified
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, fmt.Errorf("rate limited: %s", er.Description)
		}
		return nil, fmt.Errorf("auth service returned %d: %s", resp.StatusCode, er.Error)
	}

	var sr sessionResponse
	if err := json.Unmarshal(raw, &sr); err != nil {
		return nil, errors.Wrap(err, "[ManagedProvider] failed to decode session response")
	}
	return &sr, nil
}

func (p *ManagedProvider) post(ctx context.Context, path string, payload any, bearer string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "[ManagedProvider] failed to encode payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "[ManagedProvider] failed to create request")
	}
	p.decorate(req)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "[ManagedProvider] request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("auth service returned %d", resp.StatusCode)
	}
	return nil
}

func (p *ManagedProvider) decorate(req *http.Request) {
	if p.apiKey != "" {
		req.Header.Set("apikey", p.apiKey)
	}
}

// toSession maps a service payload to the internal session shape. When
// storePair is set the minted token pair replaces the store contents.
func (p *ManagedProvider) toSession(sr *sessionResponse, storePair bool) *sessions.Session {
	if storePair {
		p.store.SetPair(token.Pair{AccessToken: sr.AccessToken, RefreshToken: sr.RefreshToken})
	}

	role, err := users.ParseRole(sr.User.Role)
	if err != nil {
		role = users.RoleUser
	}

	now := p.nowTime()
	return &sessions.Session{
		UserID:      sr.User.ID,
		Email:       sr.User.Email,
		DisplayName: sr.User.DisplayName,
		Role:        role,
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Duration(sr.ExpiresIn) * time.Second),
	}
}
