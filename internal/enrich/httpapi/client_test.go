package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"jobscout/internal/lead"
)

func TestClientEnrich(t *testing.T) {
	var gotAuth string
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"title":"Go engineer","client":{"country":"DE"}}`))
	}))
	defer server.Close()

	client := New(server.URL, time.Second)
	result, err := client.Enrich(context.Background(),
		"https://example.com/jobs/1", lead.Credential{AccessToken: "tok"})
	require.NoError(t, err)

	require.Equal(t, "Bearer tok", gotAuth)
	require.Equal(t, "https://example.com/jobs/1", gotBody["url"])
	require.JSONEq(t, `{"title":"Go engineer","client":{"country":"DE"}}`, string(result))
}

func TestClientEnrichStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{name: "missing record", status: http.StatusNotFound, want: lead.ErrNotFound},
		{name: "rejected token", status: http.StatusUnauthorized, want: lead.ErrAuthExpired},
		{name: "forbidden token", status: http.StatusForbidden, want: lead.ErrAuthExpired},
		{name: "server error", status: http.StatusBadGateway, want: lead.ErrTransient},
		{name: "throttled", status: http.StatusTooManyRequests, want: lead.ErrTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			_, err := New(server.URL, time.Second).Enrich(context.Background(),
				"https://example.com/jobs/1", lead.Credential{AccessToken: "tok"})
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClientEnrichRejectsInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	}))
	defer server.Close()

	_, err := New(server.URL, time.Second).Enrich(context.Background(),
		"https://example.com/jobs/1", lead.Credential{AccessToken: "tok"})
	require.Error(t, err)
}
