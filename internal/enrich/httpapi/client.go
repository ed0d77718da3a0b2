// Package httpapi implements the lead.Enricher contract over an authorized
// JSON lookup API.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"jobscout/internal/lead"
)

// Client calls the enrichment endpoint with a bearer token and returns the
// raw structured payload.
type Client struct {
	url        string
	httpClient *http.Client
}

// New constructs a Client.
func New(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Enrich looks up a job posting by its canonical URL.
func (c *Client) Enrich(ctx context.Context, url string, cred lead.Credential) (lead.EnrichmentResult, error) {
	payload, err := json.Marshal(map[string]string{"url": url})
	if err != nil {
		return nil, fmt.Errorf("marshal enrichment request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build enrichment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cred.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("enrichment request: %w: %v", lead.ErrTransient, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("enrichment for %s: %w", url, lead.ErrNotFound)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("enrichment for %s: %w", url, lead.ErrAuthExpired)
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("enrichment status %d: %w", resp.StatusCode, lead.ErrTransient)
	default:
		return nil, fmt.Errorf("enrichment status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read enrichment body: %w: %v", lead.ErrTransient, err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("enrichment returned invalid json")
	}
	return lead.EnrichmentResult(body), nil
}
