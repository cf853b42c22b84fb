// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rfpintel/agentflow/internal/pipeline"
	"github.com/rfpintel/agentflow/internal/telemetry"
)

// Headers that correlate a response with a pipeline run.
const (
	HeaderRequestID = "X-Request-ID"
	HeaderRunID     = "X-Run-ID"
	HeaderSessionID = "X-Session-ID"
)

// DefaultMaxBodyBytes applies when server.max_body_bytes is not set.
const DefaultMaxBodyBytes int64 = 64 << 10

type contextKey string

const requestIDKey contextKey = "request_id"

var validRequestID = regexp.MustCompile(`^[a-zA-Z0-9\-_]{1,128}$`)

// RequestID injects a request ID into response headers and context.
// Client-provided IDs are validated to prevent log injection.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(HeaderRequestID)
		if reqID == "" || !validRequestID.MatchString(reqID) {
			reqID = uuid.New().String()
		}
		w.Header().Set(HeaderRequestID, reqID)
		ctx := context.WithValue(r.Context(), requestIDKey, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// Recovery turns a handler panic into a 500 with the usual error body.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				getLog().Error().
					Str("request_id", GetRequestID(r.Context())).
					Str("path", r.URL.Path).
					Interface("panic", rec).
					Str("stack", string(debug.Stack())).
					Msg("Recovered from panic")
				writeError(w, http.StatusInternalServerError, "Internal server error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// MaxBodySize rejects bodies larger than maxBytes. Declared lengths are refused
// up front with 413; undeclared ones fail when the handler reads past the limit.
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				writeError(w, http.StatusRequestEntityTooLarge,
					fmt.Sprintf("Request body exceeds %d bytes", maxBytes), nil)
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs each request with the run and session it touched. It
// runs inside telemetry.Middleware so the trace ID is known.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		var ev *zerolog.Event
		switch {
		case sw.status >= 500:
			ev = getLog().Error()
		case sw.status >= 400:
			ev = getLog().Warn()
		default:
			ev = getLog().Info()
		}
		if traceID, _ := telemetry.GetTraceInfo(r.Context()); traceID != "" {
			ev = ev.Str("trace_id", traceID)
		}
		if runID := sw.Header().Get(HeaderRunID); runID != "" {
			ev = ev.Str("run_id", runID)
		}
		if sessionID := sw.Header().Get(HeaderSessionID); sessionID != "" {
			ev = ev.Str("session_id", sessionID)
		}
		ev.Str("request_id", GetRequestID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sw.status).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// setRunHeaders tags a response with the run a snapshot describes.
func setRunHeaders(w http.ResponseWriter, snap pipeline.Snapshot, sessionID string) {
	if snap.RunID != "" {
		w.Header().Set(HeaderRunID, snap.RunID)
	}
	if sessionID != "" {
		w.Header().Set(HeaderSessionID, sessionID)
	}
}

// CORS adds CORS headers. When allowedOrigins is empty, all origins are
// permitted (local development). When set, only listed origins are reflected.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if len(allowed) == 0 {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else if _, ok := allowed[origin]; ok {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
			}
			// The API only reads state and posts activate/deactivate
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+HeaderRequestID)
			w.Header().Set("Access-Control-Expose-Headers", HeaderRequestID+", "+HeaderRunID+", "+HeaderSessionID)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// statusWriter records the status code. It passes Hijack through for the
// websocket upgrade and Flush for streaming writes.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hj, ok := w.ResponseWriter.(http.Hijacker); ok {
		return hj.Hijack()
	}
	return nil, nil, errors.New("underlying ResponseWriter does not support hijacking")
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
