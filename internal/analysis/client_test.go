// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package analysis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfpintel/agentflow/internal/config"
)

func newTestClient(url string, retries uint) *Client {
	return NewClient(
		config.AnalysisConfig{Endpoint: url, Timeout: 5 * time.Second, MaxRetries: retries},
		WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
	)
}

func TestClient_Analyze(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"session_id": "s-42"}, body)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"eligibility":{"score":87}}`))
	}))
	defer srv.Close()

	report, err := newTestClient(srv.URL, 0).Analyze(context.Background(), "s-42")
	require.NoError(t, err)
	assert.JSONEq(t, `{"eligibility":{"score":87}}`, string(report))
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	report, err := newTestClient(srv.URL, 3).Analyze(context.Background(), "s-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(report))
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 2).Analyze(context.Background(), "s-1")
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "boom")
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_ClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unknown session", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 5).Analyze(context.Background(), "s-1")

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 0).Analyze(context.Background(), "s-1")
	assert.ErrorContains(t, err, "not valid JSON")
}

func TestClient_EmptySession(t *testing.T) {
	_, err := newTestClient("http://127.0.0.1:1", 0).Analyze(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptySession)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdef", 2))
}
