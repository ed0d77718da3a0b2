package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"jobscout/internal/lead"
)

func TestSinkForwardPostsEnvelope(t *testing.T) {
	var gotAuth string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var err error
		gotBody, err = io.ReadAll(r.Body)
		require.NoError(t, err)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	sink := New(server.URL, "hook-token", time.Second)
	err := sink.Forward(context.Background(),
		"https://example.com/jobs/1",
		[]byte(`{"title":"Go engineer"}`),
		[]byte(`{"budget":500}`),
	)
	require.NoError(t, err)

	require.Equal(t, "Bearer hook-token", gotAuth)
	var envelope map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(gotBody, &envelope))
	require.JSONEq(t, `"https://example.com/jobs/1"`, string(envelope["url"]))
	require.JSONEq(t, `{"title":"Go engineer"}`, string(envelope["result"]))
	require.JSONEq(t, `{"budget":500}`, string(envelope["fallback"]))
}

func TestSinkForwardOmitsEmptyFallback(t *testing.T) {
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		gotBody, err = io.ReadAll(r.Body)
		require.NoError(t, err)
	}))
	defer server.Close()

	sink := New(server.URL, "", time.Second)
	require.NoError(t, sink.Forward(context.Background(),
		"https://example.com/jobs/1", []byte(`{}`), nil))

	var envelope map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(gotBody, &envelope))
	require.NotContains(t, envelope, "fallback")
}

func TestSinkForwardServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	err := New(server.URL, "", time.Second).Forward(context.Background(),
		"https://example.com/jobs/1", []byte(`{}`), nil)
	require.ErrorIs(t, err, lead.ErrTransient)
}

func TestSinkForwardClientErrorIsRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	err := New(server.URL, "", time.Second).Forward(context.Background(),
		"https://example.com/jobs/1", []byte(`{}`), nil)
	require.ErrorIs(t, err, lead.ErrRejected)
}
