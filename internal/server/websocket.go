// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rfpintel/agentflow/internal/protocol"
)

const (
	// WebSocket limits
	maxMessageSize = 4096
	maxFilters     = 50
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	writeWait      = 10 * time.Second
	commandWait    = 5 * time.Second
	maxClients     = 1000
)

// newUpgrader creates a WebSocket upgrader that respects the configured allowed
// origins. When allowedOrigins is empty the upgrader accepts any origin
// (localhost development mode). When set, only those origins are permitted.
func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}

	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			_, ok := allowed[origin]
			return ok
		},
	}
}

// SubscriptionFilter determines which events a WebSocket client receives.
type SubscriptionFilter struct {
	RunID     string `json:"run_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// wsClient represents a single connected WebSocket client.
type wsClient struct {
	conn    *websocket.Conn
	send    chan []byte
	filters []SubscriptionFilter
	mu      sync.RWMutex
}

// ClientRegistry manages all connected WebSocket clients.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

// NewClientRegistry creates a new client registry.
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[*wsClient]struct{}),
	}
}

// Broadcast sends an event to all clients whose filters match.
func (r *ClientRegistry) Broadcast(event protocol.Event) {
	data, err := marshalEvent(event)
	if err != nil {
		getLog().Error().Err(err).Msg("Failed to marshal event for WebSocket broadcast")
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for c := range r.clients {
		if c.matchesAny(event) {
			c.trySend(data)
		}
	}
}

// Len returns the number of connected clients.
func (r *ClientRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

func (r *ClientRegistry) add(c *wsClient) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.clients) >= maxClients {
		return false
	}
	r.clients[c] = struct{}{}
	return true
}

func (r *ClientRegistry) remove(c *wsClient) {
	r.mu.Lock()
	delete(r.clients, c)
	r.mu.Unlock()
}

func (c *wsClient) trySend(data []byte) {
	select {
	case c.send <- data:
	default:
		// client too slow, skip
		getLog().Warn().Msg("Dropping event for slow WebSocket client")
	}
}

// matchesAny returns true if the event matches any of the client's filters,
// or if the client has no filters (receives everything).
func (c *wsClient) matchesAny(event protocol.Event) bool {
	c.mu.RLock()
	if len(c.filters) == 0 {
		c.mu.RUnlock()
		return true
	}
	// Copy to avoid reading from a slice that could be modified after unlock
	filters := make([]SubscriptionFilter, len(c.filters))
	copy(filters, c.filters)
	c.mu.RUnlock()

	meta := event.GetMetadata()
	for _, f := range filters {
		if f.RunID != "" && f.RunID != meta.RunID {
			continue
		}
		if f.SessionID != "" && f.SessionID != meta.SessionID {
			continue
		}
		return true
	}
	return false
}

// wsMessage is the envelope for client → server WebSocket messages.
type wsMessage struct {
	Type      string             `json:"type"`                 // "subscribe", "unsubscribe", "activate" or "deactivate"
	Filters   SubscriptionFilter `json:"filters"`              // single filter per message
	SessionID string             `json:"session_id,omitempty"` // for "activate"
}

// wsOutMessage is the envelope for server → client WebSocket messages.
type wsOutMessage struct {
	Type      string      `json:"type"`                 // "event" or "error"
	EventType string      `json:"event_type,omitempty"` // protocol wire name
	Payload   interface{} `json:"payload,omitempty"`
	Message   string      `json:"message,omitempty"`
}

func marshalEvent(event protocol.Event) ([]byte, error) {
	out := wsOutMessage{
		Type:      "event",
		EventType: event.EventType(),
		Payload:   event,
	}
	return json.Marshal(out)
}

func marshalError(message string) []byte {
	data, _ := json.Marshal(wsOutMessage{Type: "error", Message: message})
	return data
}

// HandleWebSocket upgrades an HTTP connection and manages the client lifecycle.
// A new client first receives the current stage list.
func HandleWebSocket(registry *ClientRegistry, host *Host, allowedOrigins []string) http.HandlerFunc {
	upgrader := newUpgrader(allowedOrigins)

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			getLog().Error().Err(err).Msg("WebSocket upgrade failed")
			return
		}

		client := &wsClient{
			conn: conn,
			send: make(chan []byte, 64),
		}
		if !registry.add(client) {
			getLog().Warn().Msg("WebSocket connection limit reached")
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many connections"))
			conn.Close()
			return
		}
		getLog().Info().Str("remote", r.RemoteAddr).Msg("WebSocket client connected")

		if snap, err := host.Snapshot(r.Context()); err == nil {
			if data, err := marshalEvent(protocol.StageListChangedEvent{
				Metadata: protocol.Metadata{RunID: snap.RunID, Version: protocol.CurrentProtocolVersion},
				Phase:    snap.Phase,
				Run:      snap.Run,
				Stages:   snap.Stages,
			}); err == nil {
				client.trySend(data)
			}
		}

		go client.writePump()
		client.readPump(registry, host)
	}
}

func (c *wsClient) readPump(registry *ClientRegistry, host *Host) {
	defer func() {
		registry.remove(c)
		close(c.send) // signals writePump to exit
		c.conn.Close()
		getLog().Info().Msg("WebSocket client disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				getLog().Error().Err(err).Msg("WebSocket read error")
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			getLog().Warn().Err(err).Msg("Invalid WebSocket message")
			continue
		}

		switch msg.Type {
		case "subscribe":
			c.mu.Lock()
			if len(c.filters) >= maxFilters {
				getLog().Warn().Msg("WebSocket client hit max filter limit")
			} else {
				c.filters = append(c.filters, msg.Filters)
				getLog().Debug().
					Str("run_id", msg.Filters.RunID).
					Str("session_id", msg.Filters.SessionID).
					Msg("WebSocket client subscribed")
			}
			c.mu.Unlock()
		case "unsubscribe":
			c.mu.Lock()
			c.filters = removeFilter(c.filters, msg.Filters)
			c.mu.Unlock()
			getLog().Debug().Msg("WebSocket client unsubscribed")
		case "activate", "deactivate":
			c.execute(host, msg)
		default:
			c.trySend(marshalError("unknown message type: " + msg.Type))
		}
	}
}

func (c *wsClient) execute(host *Host, msg wsMessage) {
	var cmd protocol.Command = protocol.DeactivatePipelineCommand{}
	if msg.Type == "activate" {
		cmd = protocol.ActivatePipelineCommand{Session: protocol.Session{ID: msg.SessionID}}
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandWait)
	defer cancel()
	if err := host.Execute(ctx, cmd); err != nil {
		getLog().Debug().Err(err).Str("type", msg.Type).Msg("WebSocket command rejected")
		c.trySend(marshalError(err.Error()))
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Channel closed by readPump, send close frame.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				getLog().Error().Err(err).Msg("WebSocket write error")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func removeFilter(filters []SubscriptionFilter, target SubscriptionFilter) []SubscriptionFilter {
	result := make([]SubscriptionFilter, 0, len(filters))
	for _, f := range filters {
		if f == target {
			continue
		}
		result = append(result, f)
	}
	return result
}
