package auth

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/letsur-dev/claude-peak/internal/config"
	"github.com/letsur-dev/claude-peak/internal/types"
)

const (
	authorizeURL = "https://claude.ai/oauth/authorize"
	redirectURI  = "https://platform.claude.com/oauth/code/callback"
)

// LoginFlow is the interactive PKCE authorization-code flow that
// produces the initial token pair. The user opens AuthURL in a
// browser, authorizes, and pastes back the "code#state" value shown by
// the callback page.
type LoginFlow struct {
	http     *http.Client
	tokenURL string
	clientID string
	scopes   string

	verifier string
	state    string
}

func NewLoginFlow(cfg config.Config) (*LoginFlow, error) {
	verifier, err := pkceVerifier()
	if err != nil {
		return nil, err
	}
	return &LoginFlow{
		http:     &http.Client{Timeout: 15 * time.Second},
		tokenURL: cfg.TokenURL,
		clientID: cfg.ClientID,
		scopes:   cfg.Scopes,
		verifier: verifier,
		state:    uuid.NewString(),
	}, nil
}

func pkceVerifier() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate verifier: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// AuthURL builds the browser authorization URL for this flow instance.
func (f *LoginFlow) AuthURL() string {
	challenge := sha256.Sum256([]byte(f.verifier))

	params := url.Values{}
	params.Set("response_type", "code")
	params.Set("client_id", f.clientID)
	params.Set("redirect_uri", redirectURI)
	params.Set("scope", f.scopes)
	params.Set("state", f.state)
	params.Set("code", "true")
	params.Set("code_challenge", base64.RawURLEncoding.EncodeToString(challenge[:]))
	params.Set("code_challenge_method", "S256")

	return authorizeURL + "?" + params.Encode()
}

// Exchange trades the pasted "code#state" callback value for a token
// pair at the token endpoint.
func (f *LoginFlow) Exchange(ctx context.Context, pasted string) (types.TokenPair, error) {
	code, state, _ := strings.Cut(strings.TrimSpace(pasted), "#")
	if code == "" {
		return types.TokenPair{}, fmt.Errorf("empty authorization code")
	}
	if state != "" && state != f.state {
		return types.TokenPair{}, fmt.Errorf("state mismatch")
	}

	body, err := json.Marshal(map[string]string{
		"grant_type":    "authorization_code",
		"code":          code,
		"state":         f.state,
		"client_id":     f.clientID,
		"redirect_uri":  redirectURI,
		"code_verifier": f.verifier,
	})
	if err != nil {
		return types.TokenPair{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.tokenURL, bytes.NewReader(body))
	if err != nil {
		return types.TokenPair{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.http.Do(req)
	if err != nil {
		return types.TokenPair{}, fmt.Errorf("code exchange: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.TokenPair{}, fmt.Errorf("code exchange: read body: %w", err)
	}
	log.Debugf("code exchange HTTP %d: %s", resp.StatusCode, respBody)

	if resp.StatusCode != http.StatusOK {
		return types.TokenPair{}, fmt.Errorf("code exchange: HTTP %d", resp.StatusCode)
	}

	var tr struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := json.Unmarshal(respBody, &tr); err != nil {
		return types.TokenPair{}, fmt.Errorf("code exchange: %w", err)
	}
	if tr.AccessToken == "" {
		return types.TokenPair{}, fmt.Errorf("code exchange: empty access token")
	}

	return types.TokenPair{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresIn:    tr.ExpiresIn,
	}, nil
}
