// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package analysis talks to the remote RFP analysis service. The pipeline
// simulator never waits for it; a Dispatcher fires the request on its own
// schedule and hands the report back to the host.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/rfpintel/agentflow/internal/config"
	"github.com/rfpintel/agentflow/internal/logger"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetAnalysisLogger()
		log = &l
	})
	return log
}

// maxErrorBody caps how much of a failed response is kept in the error.
const maxErrorBody = 512

// ErrEmptySession is returned when Analyze is called without a session ID.
var ErrEmptySession = errors.New("session id is required")

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("analysis request failed with status %d: %s", e.StatusCode, e.Body)
}

// Analyzer runs the analysis for a session and returns the raw report.
type Analyzer interface {
	Analyze(ctx context.Context, sessionID string) (json.RawMessage, error)
}

// Client is the HTTP Analyzer.
type Client struct {
	endpoint   string
	httpClient *http.Client
	maxRetries uint
	newBackOff func() backoff.BackOff
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = h }
}

// WithBackOff sets the retry policy. fn is called once per Analyze call.
func WithBackOff(fn func() backoff.BackOff) ClientOption {
	return func(c *Client) { c.newBackOff = fn }
}

// NewClient creates a client for the configured endpoint.
func NewClient(cfg config.AnalysisConfig, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:   cfg.Endpoint,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Analyze posts {"session_id": ...} to the service and returns the response body.
// Transport errors and 5xx responses are retried; anything else fails at once.
func (c *Client) Analyze(ctx context.Context, sessionID string) (json.RawMessage, error) {
	if sessionID == "" {
		return nil, ErrEmptySession
	}

	body, err := json.Marshal(map[string]string{"session_id": sessionID})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	attempt := 0
	report, err := backoff.Retry(ctx, func() (json.RawMessage, error) {
		attempt++
		return c.post(ctx, body)
	},
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(c.maxRetries+1),
		backoff.WithNotify(func(err error, next time.Duration) {
			getLog().Warn().Err(err).
				Str("session_id", sessionID).
				Int("attempt", attempt).
				Dur("retry_in", next).
				Msg("Analysis request failed, retrying")
		}),
	)
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (c *Client) post(ctx context.Context, body []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("analysis request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(data), maxErrorBody)}
		if resp.StatusCode >= 500 {
			return nil, statusErr
		}
		return nil, backoff.Permanent(statusErr)
	}

	if !json.Valid(data) {
		return nil, backoff.Permanent(errors.New("analysis response is not valid JSON"))
	}
	return json.RawMessage(data), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
