// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rfpintel/agentflow/internal/config"
	"github.com/rfpintel/agentflow/internal/store"
	"github.com/rfpintel/agentflow/internal/telemetry"
)

// Server is the REST + WebSocket API server.
type Server struct {
	httpServer  *http.Server
	broadcaster *EventBroadcaster
}

// New creates and wires up the API server. It does NOT start listening;
// call Run() for that. st may be nil when persistence is disabled.
func New(cfg *config.ServerConfig, host *Host, st store.Store, tracer *telemetry.Tracer) *Server {
	broadcaster := NewEventBroadcaster(host.Events(), NewClientRegistry())

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(cfg, host, st, tracer, broadcaster),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		broadcaster: broadcaster,
	}
}

// NewRouter builds the HTTP routes.
func NewRouter(cfg *config.ServerConfig, host *Host, st store.Store, tracer *telemetry.Tracer, broadcaster *EventBroadcaster) http.Handler {
	handlers := NewHandlers(host, st).WithBroadcaster(broadcaster)

	r := chi.NewRouter()

	// Global middleware
	r.Use(Recovery)
	r.Use(RequestID)
	r.Use(telemetry.Middleware(tracer))
	r.Use(RequestLogger)
	r.Use(CORS(cfg.AllowedOrigins))
	r.Use(MaxBodySize(cfg.MaxBodyBytes))

	r.Get("/healthz", handlers.Health)

	// REST routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/catalog", handlers.GetCatalog)

		r.Route("/pipeline", func(r chi.Router) {
			r.Get("/", handlers.GetPipeline)
			r.Post("/activate", handlers.ActivatePipeline)
			r.Post("/deactivate", handlers.DeactivatePipeline)
		})

		// History
		r.Get("/runs", handlers.GetRuns)
		r.Get("/runs/{runId}", handlers.GetRun)
		r.Get("/reports/{sessionId}", handlers.GetReport)
	})

	// WebSocket
	r.Get("/ws", HandleWebSocket(broadcaster.Registry(), host, cfg.AllowedOrigins))

	return r
}

// Run starts the event broadcaster goroutine and the HTTP server.
// Blocks until the server is shut down or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		const maxRetries = 3
		for attempt := 1; attempt <= maxRetries; attempt++ {
			func() {
				defer func() {
					if r := recover(); r != nil {
						getLog().Error().Interface("panic", r).Int("attempt", attempt).Msg("Event broadcaster panic")
					}
				}()
				s.broadcaster.Run(ctx)
			}()

			// Normal return (context cancelled): exit without retry.
			if ctx.Err() != nil {
				return
			}

			if attempt < maxRetries {
				getLog().Warn().Int("attempt", attempt).Msg("Restarting event broadcaster after panic")
				time.Sleep(1 * time.Second)
			}
		}
		getLog().Error().Msg("Event broadcaster exhausted retries - events will no longer be dispatched")
	}()

	getLog().Info().Str("addr", s.httpServer.Addr).Msg("API server listening")
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
