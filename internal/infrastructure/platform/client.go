package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"storefront-connect-layer/internal/domain"

	"github.com/rs/zerolog"
)

// exchangeTimeout bounds the outbound token-exchange call. A timeout
// fails closed: no credential is persisted.
const exchangeTimeout = 10 * time.Second

// Client talks to the external platform's authorization server.
type Client struct {
	clientID     string
	clientSecret string
	httpClient   *http.Client
	logger       zerolog.Logger
}

// NewClient creates a platform client adapter.
func NewClient(clientID, clientSecret string, logger zerolog.Logger) *Client {
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: exchangeTimeout},
		logger:       logger,
	}
}

// AuthorizationURL builds the redirect target that starts the grant on
// the shop's authorization server.
func (c *Client) AuthorizationURL(shopDomain string, scopes []string, redirectURI, state string) string {
	return fmt.Sprintf(
		"https://%s/authorize?client_id=%s&scope=%s&redirect_uri=%s&state=%s&grant_options[]=per-user",
		shopDomain,
		url.QueryEscape(c.clientID),
		url.QueryEscape(strings.Join(scopes, ",")),
		url.QueryEscape(redirectURI),
		url.QueryEscape(state),
	)
}

// ExchangeAuthorizationCode performs the server-to-server code
// exchange. Authorization codes are single-use at the provider, so the
// caller must never retry this step with a reused code.
func (c *Client) ExchangeAuthorizationCode(ctx context.Context, shopDomain, code string) (string, string, error) {
	tokenURL := fmt.Sprintf("https://%s/oauth/access_token", shopDomain)

	values := url.Values{}
	values.Set("client_id", c.clientID)
	values.Set("client_secret", c.clientSecret)
	values.Set("code", code)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(values.Encode()))
	if err != nil {
		return "", "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", domain.ErrProviderExchangeFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("shop", shopDomain).
			Msg("Token exchange returned non-success status")
		return "", "", fmt.Errorf("%w: status %d, body: %s", domain.ErrProviderExchangeFailed, resp.StatusCode, string(body))
	}

	var tokenResponse struct {
		AccessToken string `json:"access_token"`
		Scope       string `json:"scope"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResponse); err != nil {
		return "", "", fmt.Errorf("%w: malformed token response: %v", domain.ErrProviderExchangeFailed, err)
	}
	if tokenResponse.AccessToken == "" {
		return "", "", fmt.Errorf("%w: token response missing access_token", domain.ErrProviderExchangeFailed)
	}

	return tokenResponse.AccessToken, tokenResponse.Scope, nil
}
