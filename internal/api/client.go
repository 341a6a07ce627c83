package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"

	"github.com/letsur-dev/claude-peak/internal/config"
	"github.com/letsur-dev/claude-peak/internal/types"
)

const (
	betaHeader  = "oauth-2025-04-20"
	httpTimeout = 15 * time.Second
)

// Client holds the request builders and parsers for the token and
// usage endpoints. It is stateless: credential caching and retry
// policy live in the callers.
type Client struct {
	http      *http.Client
	tokenURL  string
	usageURL  string
	clientID  string
	scopes    string
	userAgent string
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		http:      &http.Client{Timeout: httpTimeout},
		tokenURL:  cfg.TokenURL,
		usageURL:  cfg.UsageURL,
		clientID:  cfg.ClientID,
		scopes:    cfg.Scopes,
		userAgent: cfg.UserAgent,
	}
}

type refreshRequest struct {
	GrantType    string `json:"grant_type"`
	RefreshToken string `json:"refresh_token"`
	ClientID     string `json:"client_id"`
	Scope        string `json:"scope"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// RefreshToken exchanges a refresh token for a new pair. The server
// does not always rotate the refresh token; when the response omits
// it, the prior one is carried forward so later refreshes keep working.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (types.TokenPair, error) {
	body, err := json.Marshal(refreshRequest{
		GrantType:    "refresh_token",
		RefreshToken: refreshToken,
		ClientID:     c.clientID,
		Scope:        c.scopes,
	})
	if err != nil {
		return types.TokenPair{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, bytes.NewReader(body))
	if err != nil {
		return types.TokenPair{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return types.TokenPair{}, fmt.Errorf("%w: %v", types.ErrRefreshFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.TokenPair{}, fmt.Errorf("%w: read body: %v", types.ErrRefreshFailed, err)
	}
	log.Debugf("token endpoint HTTP %d: %s", resp.StatusCode, respBody)

	if resp.StatusCode != http.StatusOK {
		return types.TokenPair{}, fmt.Errorf("%w: HTTP %d", types.ErrRefreshFailed, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(respBody, &tr); err != nil {
		return types.TokenPair{}, fmt.Errorf("%w: %v", types.ErrRefreshFailed, err)
	}
	if tr.AccessToken == "" {
		return types.TokenPair{}, fmt.Errorf("%w: empty access token", types.ErrRefreshFailed)
	}
	if tr.RefreshToken == "" {
		tr.RefreshToken = refreshToken
	}

	return types.TokenPair{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresIn:    tr.ExpiresIn,
	}, nil
}

// FetchUsage issues the authenticated usage read. The raw body is
// logged at debug level regardless of outcome; the remote schema is
// not contractually stable and the log is the only way to diagnose
// drift after the fact.
func (c *Client) FetchUsage(ctx context.Context, accessToken string) (*types.UsageSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.usageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("anthropic-beta", betaHeader)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("usage request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("usage request: read body: %w", err)
	}
	log.Debugf("usage endpoint HTTP %d: %s", resp.StatusCode, body)

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, types.ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return nil, types.HTTPError{StatusCode: resp.StatusCode}
	}

	var snapshot types.UsageSnapshot
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return nil, types.DecodeError{Err: err}
	}
	snapshot.FetchedAt = time.Now()
	return &snapshot, nil
}
