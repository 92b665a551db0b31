// Package authclient wraps outbound HTTP calls with automatic bearer-token
// attachment and an exactly-once concurrent token refresh on authorization
// failure.
//
// The core correctness property: for any number of requests observing a 401
// in the same window, exactly one refresh exchange runs. Every waiter
// resumes with the single resulting token pair (or the single resulting
// error) and replays its original request at most once.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/greenfolio/auth-core/csrf"
	"github.com/greenfolio/auth-core/internal/errors"
	"github.com/greenfolio/auth-core/routes"
	"github.com/greenfolio/auth-core/token"
)

// TokenRefresher exchanges a refresh token for a new token pair. The
// concrete implementation talks to the identity provider's refresh
// endpoint; tests substitute their own.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (token.Pair, error)
}

// Client performs authenticated HTTP requests against the API.
type Client struct {
	httpClient       *http.Client
	baseURL          string
	store            *token.Store
	refresher        TokenRefresher
	onSessionExpired func()
	logger           zerolog.Logger

	// refreshGroup collapses concurrent refresh attempts into one in-flight
	// exchange per client instance. State is per-instance (not package
	// level) so independent clients refresh independently.
	refreshGroup singleflight.Group
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL resolves relative request paths against the given origin.
func WithBaseURL(base string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(base, "/") }
}

// WithOnSessionExpired registers the global "must re-authenticate" hook,
// fired once per terminal refresh failure.
func WithOnSessionExpired(fn func()) Option {
	return func(c *Client) { c.onSessionExpired = fn }
}

// WithLogger sets the client's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates an authenticated request client around a token store.
func New(store *token.Store, refresher TokenRefresher, options ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		store:      store,
		refresher:  refresher,
		logger:     zerolog.Nop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Do sends an authenticated request. On a 401 it refreshes the token pair
// (joining any refresh already in flight) and replays the request exactly
// once with the new access token. A second 401 after the replay propagates
// to the caller; every non-401 status propagates unchanged.
func (c *Client) Do(ctx context.Context, method, url string, body []byte) (*http.Response, error) {
	resp, err := c.send(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	// The original response is spent; the retry owns the connection now.
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if err := c.refresh(ctx); err != nil {
		return nil, err
	}

	// Replay once with whatever token the settled refresh produced. No
	// further retries: a 401 here means the server rejects even a freshly
	// minted token, and looping would never terminate.
	return c.send(ctx, method, url, body)
}

// Get is shorthand for Do with no body.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	return c.Do(ctx, http.MethodGet, url, nil)
}

// Post is shorthand for Do with a JSON body.
func (c *Client) Post(ctx context.Context, url string, body []byte) (*http.Response, error) {
	return c.Do(ctx, http.MethodPost, url, body)
}

func (c *Client) send(ctx context.Context, method, url string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(url), reader)
	if err != nil {
		return nil, fmt.Errorf("authclient: failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if access := c.store.AccessToken(); access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}
	if routes.IsMutatingMethod(method) {
		if csrfTok := c.store.CSRF(); csrfTok.Token != "" {
			req.Header.Set(csrf.HeaderName, csrfTok.Token)
		}
	}

	return c.httpClient.Do(req)
}

// refresh runs the refresh exchange, collapsing concurrent callers into a
// single in-flight operation. On terminal failure (missing refresh token,
// network error, malformed response) all local session state is cleared and
// the sign-out hook fires; every waiter receives the same error.
func (c *Client) refresh(ctx context.Context) error {
	_, err, _ := c.refreshGroup.Do("refresh", func() (interface{}, error) {
		refreshTok := c.store.RefreshToken()
		if refreshTok == "" {
			// Fail fast: no point hitting the network without a token.
			c.expireSession()
			return nil, errors.ErrMissingRefreshToken
		}

		pair, err := c.refresher.Refresh(ctx, refreshTok)
		if err != nil {
			c.expireSession()
			return nil, fmt.Errorf("authclient: token refresh failed: %w", err)
		}

		c.store.SetPair(pair)
		c.logger.Debug().Msg("access token refreshed")
		return pair, nil
	})
	return err
}

func (c *Client) expireSession() {
	c.store.Clear()
	if c.onSessionExpired != nil {
		c.onSessionExpired()
	}
}

func (c *Client) resolve(url string) string {
	if strings.HasPrefix(url, "/") && c.baseURL != "" {
		return c.baseURL + url
	}
	return url
}

// FetchCSRF implements csrf.Fetcher by calling the CSRF endpoint through
// the authenticated client, so an expired access token is refreshed on the
// way.
func (c *Client) FetchCSRF(ctx context.Context) (*csrf.Issued, error) {
	resp, err := c.Get(ctx, routes.RouteAuthCSRF)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("authclient: csrf endpoint returned %d", resp.StatusCode)
	}

	var issued csrf.Issued
	if err := json.NewDecoder(resp.Body).Decode(&issued); err != nil {
		return nil, fmt.Errorf("authclient: failed to decode csrf response: %w", err)
	}

	c.store.SetCSRF(issued.Token, issued.ExpiresAt)
	return &issued, nil
}
