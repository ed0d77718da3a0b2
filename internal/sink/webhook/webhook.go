// Package webhook implements the lead.Sink contract over an outbound
// webhook.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"jobscout/internal/lead"
)

// Sink posts completed jobs to a downstream webhook. Delivery is
// at-least-once; the receiver is expected to deduplicate by URL.
type Sink struct {
	url        string
	token      string
	httpClient *http.Client
}

// New constructs a Sink.
func New(url, token string, timeout time.Duration) *Sink {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Sink{
		url:        url,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Forward posts the enrichment result together with any fallback data
// captured at ingestion, so the receiver can fill fields the enrichment
// never populated.
func (s *Sink) Forward(ctx context.Context, url string, result lead.EnrichmentResult, fallback []byte) error {
	envelope := map[string]json.RawMessage{
		"url":    mustJSONString(url),
		"result": json.RawMessage(result),
	}
	if len(fallback) > 0 {
		envelope["fallback"] = json.RawMessage(fallback)
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal dispatch payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build dispatch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("dispatch request: %w: %v", lead.ErrTransient, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("sink status %d: %w", resp.StatusCode, lead.ErrTransient)
	default:
		return fmt.Errorf("sink status %d: %w", resp.StatusCode, lead.ErrRejected)
	}
}

func mustJSONString(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}
