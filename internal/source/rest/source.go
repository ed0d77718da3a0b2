// Package rest implements a lead.Source over a JSON listing API.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"jobscout/internal/lead"
)

// Source fetches candidates from one REST endpoint returning a JSON array
// of postings.
type Source struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// New constructs a Source.
func New(url, apiKey string) *Source {
	return &Source{
		url:        url,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// posting is the subset of the listing payload the poller needs. The whole
// raw object is kept as fallback data for dispatch.
type posting struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Poll fetches the source's current candidates.
func (s *Source) Poll(ctx context.Context) ([]lead.Candidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build listing request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("X-Api-Key", s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing request: %w: %v", lead.ErrTransient, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("listing status %d: %w", resp.StatusCode, lead.ErrTransient)
	default:
		return nil, fmt.Errorf("listing status %d", resp.StatusCode)
	}

	var raw []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}

	candidates := make([]lead.Candidate, 0, len(raw))
	for _, item := range raw {
		var p posting
		if err := json.Unmarshal(item, &p); err != nil || p.URL == "" {
			continue
		}
		candidates = append(candidates, lead.Candidate{
			URL:      p.URL,
			Title:    p.Title,
			Fallback: item,
		})
	}
	return candidates, nil
}
