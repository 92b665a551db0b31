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

	"github.com/greenfolio/auth-core/token"
)

// HTTPRefresher implements TokenRefresher against the refresh-token
// exchange endpoint.
type HTTPRefresher struct {
	endpoint   string
	httpClient *http.Client
}

var _ TokenRefresher = (*HTTPRefresher)(nil)

// NewHTTPRefresher creates a refresher hitting the given exchange endpoint
// (e.g. https://api.example.com/api/auth/refresh).
func NewHTTPRefresher(endpoint string, httpClient *http.Client) *HTTPRefresher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPRefresher{endpoint: endpoint, httpClient: httpClient}
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Refresh exchanges a refresh token for a rotated token pair.
func (hr *HTTPRefresher) Refresh(ctx context.Context, refreshToken string) (token.Pair, error) {
	payload, err := json.Marshal(refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return token.Pair{}, fmt.Errorf("authclient: failed to encode refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hr.endpoint, bytes.NewReader(payload))
	if err != nil {
		return token.Pair{}, fmt.Errorf("authclient: failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hr.httpClient.Do(req)
	if err != nil {
		return token.Pair{}, fmt.Errorf("authclient: refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return token.Pair{}, fmt.Errorf("authclient: failed to read refresh response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return token.Pair{}, fmt.Errorf("authclient: refresh endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed refreshResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return token.Pair{}, fmt.Errorf("authclient: failed to decode refresh response: %w", err)
	}
	if parsed.AccessToken == "" || parsed.RefreshToken == "" {
		// Malformed success response is treated the same as a failed refresh.
		return token.Pair{}, fmt.Errorf("authclient: malformed refresh response")
	}

	return token.Pair{AccessToken: parsed.AccessToken, RefreshToken: parsed.RefreshToken}, nil
}
