// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rfpintel/agentflow/internal/pipeline"
	"github.com/rfpintel/agentflow/internal/protocol"
	"github.com/rfpintel/agentflow/internal/store"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	host        *Host
	store       store.Store
	broadcaster *EventBroadcaster
}

// NewHandlers creates the handler set. store may be nil when persistence is disabled.
func NewHandlers(host *Host, st store.Store) *Handlers {
	return &Handlers{host: host, store: st}
}

// WithBroadcaster reports the broadcaster's counters on the health endpoint.
func (h *Handlers) WithBroadcaster(b *EventBroadcaster) *Handlers {
	h.broadcaster = b
	return h
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		getLog().Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	body := map[string]string{"error": msg}
	if err != nil {
		body["context"] = err.Error()
	}
	writeJSON(w, status, body)
}

// --- pipeline ---

// Health handles GET /healthz
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{"status": "ok"}
	if h.broadcaster != nil {
		body["broadcast"] = h.broadcaster.Stats()
	}
	writeJSON(w, http.StatusOK, body)
}

// GetCatalog handles GET /api/v1/catalog
func (h *Handlers) GetCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"stages": h.host.Catalog().Stages()})
}

// GetPipeline handles GET /api/v1/pipeline
func (h *Handlers) GetPipeline(w http.ResponseWriter, r *http.Request) {
	snap, err := h.host.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Pipeline unavailable", err)
		return
	}
	setRunHeaders(w, snap, "")
	writeJSON(w, http.StatusOK, snap)
}

// ActivatePipeline handles POST /api/v1/pipeline/activate
func (h *Handlers) ActivatePipeline(w http.ResponseWriter, r *http.Request) {
	var session protocol.Session
	if err := json.NewDecoder(r.Body).Decode(&session); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", nil)
		return
	}

	snap, err := h.host.Activate(r.Context(), session)
	switch {
	case errors.Is(err, ErrSessionRequired):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, pipeline.ErrAlreadyRunning):
		writeError(w, http.StatusConflict, "Pipeline is already active", err)
	case err != nil:
		writeError(w, http.StatusServiceUnavailable, "Pipeline unavailable", err)
	default:
		setRunHeaders(w, snap, session.ID)
		writeJSON(w, http.StatusOK, snap)
	}
}

// DeactivatePipeline handles POST /api/v1/pipeline/deactivate
func (h *Handlers) DeactivatePipeline(w http.ResponseWriter, r *http.Request) {
	snap, err := h.host.Deactivate(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Pipeline unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// --- history ---

// GetRuns handles GET /api/v1/runs
func (h *Handlers) GetRuns(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "Persistence is disabled", nil)
		return
	}

	const maxLimit = 500
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = min(parsed, maxLimit)
		}
	}

	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load runs", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

// GetRun handles GET /api/v1/runs/{runId}
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "Persistence is disabled", nil)
		return
	}

	run, err := h.store.GetRun(r.Context(), chi.URLParam(r, "runId"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Run not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load run", err)
		return
	}
	w.Header().Set(HeaderRunID, run.ID)
	w.Header().Set(HeaderSessionID, run.SessionID)
	writeJSON(w, http.StatusOK, run)
}

// GetReport handles GET /api/v1/reports/{sessionId}
func (h *Handlers) GetReport(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "Persistence is disabled", nil)
		return
	}

	report, err := h.store.LatestReport(r.Context(), chi.URLParam(r, "sessionId"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "No report for session", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load report", err)
		return
	}
	w.Header().Set(HeaderRunID, report.RunID)
	w.Header().Set(HeaderSessionID, report.SessionID)
	writeJSON(w, http.StatusOK, report)
}
