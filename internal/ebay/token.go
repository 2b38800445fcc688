package ebay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// TokenProvider supplies a valid marketplace access token. It replaces
// the old pattern of a process-wide mutable cached token: the provider
// owns the token lifecycle and is injected into the gateway.
type TokenProvider interface {
	// Acquire returns a usable access token, refreshing if needed.
	Acquire(ctx context.Context) (string, error)
	// IsValid reports whether the cached token is still usable without
	// a refresh round-trip.
	IsValid() bool
	// Refresh forces a token refresh regardless of expiry.
	Refresh(ctx context.Context) error
}

// expiryBuffer keeps a safety margin so a token never expires mid-call.
const expiryBuffer = 5 * time.Minute

// OAuthConfig holds the credentials for the refresh-token grant.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Scopes       []string
	Sandbox      bool
	// TokenURL overrides the endpoint, used by tests.
	TokenURL string
}

// OAuthProvider is a TokenProvider backed by the eBay OAuth
// refresh-token grant.
type OAuthProvider struct {
	config     OAuthConfig
	httpClient *http.Client

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

var _ TokenProvider = (*OAuthProvider)(nil)

func NewOAuthProvider(config OAuthConfig) *OAuthProvider {
	return &OAuthProvider{
		config:     config,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *OAuthProvider) tokenURL() string {
	if p.config.TokenURL != "" {
		return p.config.TokenURL
	}
	if p.config.Sandbox {
		return "https://api.sandbox.ebay.com/identity/v1/oauth2/token"
	}
	return "https://api.ebay.com/identity/v1/oauth2/token"
}

func (p *OAuthProvider) Acquire(ctx context.Context) (string, error) {
	p.mu.Lock()
	if p.accessToken != "" && time.Now().Add(expiryBuffer).Before(p.expiresAt) {
		token := p.accessToken
		p.mu.Unlock()
		return token, nil
	}
	p.mu.Unlock()

	if err := p.Refresh(ctx); err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.accessToken, nil
}

func (p *OAuthProvider) IsValid() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.accessToken != "" && time.Now().Add(expiryBuffer).Before(p.expiresAt)
}

func (p *OAuthProvider) Refresh(ctx context.Context) error {
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", p.config.RefreshToken)
	if len(p.config.Scopes) > 0 {
		data.Set("scope", strings.Join(p.config.Scopes, " "))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL(), strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("creating token request: %w", err)
	}

	auth := base64.StdEncoding.EncodeToString([]byte(p.config.ClientID + ":" + p.config.ClientSecret))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("token refresh failed: %s", string(body))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		TokenType   string `json:"token_type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("parsing token response: %w", err)
	}

	p.mu.Lock()
	p.accessToken = payload.AccessToken
	p.expiresAt = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	p.mu.Unlock()

	return nil
}

// StaticProvider wraps a fixed token, used by tests and sandbox runs
// with a long-lived auth token.
type StaticProvider struct {
	Token string
}

var _ TokenProvider = (*StaticProvider)(nil)

func (p *StaticProvider) Acquire(ctx context.Context) (string, error) {
	if p.Token == "" {
		return "", fmt.Errorf("no token configured")
	}
	return p.Token, nil
}

func (p *StaticProvider) IsValid() bool { return p.Token != "" }

func (p *StaticProvider) Refresh(ctx context.Context) error { return nil }
