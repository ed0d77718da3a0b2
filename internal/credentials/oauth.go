package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"jobscout/internal/lead"
)

// OAuthClient renews credentials against a standard token endpoint using
// the refresh_token grant.
type OAuthClient struct {
	tokenURL     string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	clock        lead.Clock
}

// NewOAuthClient constructs an OAuthClient.
func NewOAuthClient(tokenURL, clientID, clientSecret string, clock lead.Clock) *OAuthClient {
	return &OAuthClient{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		clock:        clock,
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Error        string `json:"error"`
}

// Refresh exchanges the credential's refresh token for a new pair.
func (c *OAuthClient) Refresh(ctx context.Context, cred lead.Credential) (lead.Credential, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {cred.RefreshToken},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return lead.Credential{}, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return lead.Credential{}, fmt.Errorf("token request: %w: %v", lead.ErrTransient, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	var body tokenResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&body); decodeErr != nil && resp.StatusCode == http.StatusOK {
		return lead.Credential{}, fmt.Errorf("decode token response: %w", decodeErr)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusBadRequest && body.Error == "invalid_grant",
		resp.StatusCode == http.StatusUnauthorized:
		return lead.Credential{}, fmt.Errorf("token endpoint: %w", lead.ErrInvalidGrant)
	case resp.StatusCode >= 500:
		return lead.Credential{}, fmt.Errorf("token endpoint status %d: %w", resp.StatusCode, lead.ErrTransient)
	default:
		return lead.Credential{}, fmt.Errorf("token endpoint status %d", resp.StatusCode)
	}

	if body.AccessToken == "" {
		return lead.Credential{}, fmt.Errorf("token endpoint returned empty access token")
	}
	renewed := lead.Credential{
		Principal:    cred.Principal,
		AccessToken:  body.AccessToken,
		RefreshToken: body.RefreshToken,
		ExpiresAt:    c.clock.Now().Add(time.Duration(body.ExpiresIn) * time.Second),
	}
	// Some endpoints omit the refresh token on renewal; keep the old one.
	if renewed.RefreshToken == "" {
		renewed.RefreshToken = cred.RefreshToken
	}
	return renewed, nil
}
