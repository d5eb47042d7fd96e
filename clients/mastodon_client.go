package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/postgen/postgen/common"
)

// MastodonConfig is the immutable configuration of a MastodonClient.
type MastodonConfig struct {
	InstanceURL string // e.g. https://mastodon.social
	Timeout     time.Duration
}

// MastodonClient talks to one Mastodon instance's REST API.
type MastodonClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewMastodonClient creates a MastodonClient.
func NewMastodonClient(cfg MastodonConfig) *MastodonClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &MastodonClient{
		baseURL:    strings.TrimRight(cfg.InstanceURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// PublishResult is the outcome reported back to the caller.
type PublishResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// MastodonAccount is the subset of verify_credentials the login flow needs.
type MastodonAccount struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Acct     string `json:"acct"`
}

// Configured reports whether an instance URL is set.
func (c *MastodonClient) Configured() bool {
	return c.baseURL != ""
}

// HTTPClient is the timeout-bounded client, shared with the OAuth token exchange.
func (c *MastodonClient) HTTPClient() *http.Client {
	return c.httpClient
}

// OAuthEndpoint returns the instance's authorization-code endpoints.
func (c *MastodonClient) OAuthEndpoint() oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:   c.baseURL + "/oauth/authorize",
		TokenURL:  c.baseURL + "/oauth/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

// Publish posts message as a new status. A provider rejection is reported in the
// result with the raw provider body; only transport failures are returned as errors.
func (c *MastodonClient) Publish(ctx context.Context, message, accessToken string) (PublishResult, error) {
	if accessToken == "" || !c.Configured() {
		return PublishResult{Success: false, Error: "Mastodon credentials not configured properly"}, nil
	}

	form := url.Values{"status": {message}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/statuses", strings.NewReader(form.Encode()))
	if err != nil {
		return PublishResult{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	observe("mastodon", err)
	if err != nil {
		return PublishResult{}, common.Upstream("Mastodon request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return PublishResult{}, common.Upstream("Mastodon response unreadable", err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return PublishResult{Success: true, Message: "Posted successfully!"}, nil
	}
	return PublishResult{Success: false, Error: string(body)}, nil
}

// VerifyCredentials returns the account that owns accessToken.
func (c *MastodonClient) VerifyCredentials(ctx context.Context, accessToken string) (*MastodonAccount, error) {
	if !c.Configured() {
		return nil, common.Upstream("Mastodon instance not configured", nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/accounts/verify_credentials", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	observe("mastodon", err)
	if err != nil {
		return nil, common.Upstream("Mastodon request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, common.Upstream(fmt.Sprintf("Mastodon verify_credentials failed: %s", resp.Status), nil)
	}
	var acct MastodonAccount
	if err := json.NewDecoder(resp.Body).Decode(&acct); err != nil {
		return nil, common.Upstream("Mastodon response unreadable", err)
	}
	if acct.ID == "" {
		return nil, common.Upstream("Mastodon returned no account", nil)
	}
	return &acct, nil
}
