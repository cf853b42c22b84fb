// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides a REST + WebSocket API over the pipeline simulator.
// Handlers call the Host for mutations and every resulting event is broadcast
// to connected WebSocket clients.
package server

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/rfpintel/agentflow/internal/logger"
	"github.com/rfpintel/agentflow/internal/protocol"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetAPILogger()
		log = &l
	})
	return log
}

// BroadcastStats counts what the broadcaster has seen.
type BroadcastStats struct {
	Events       uint64 `json:"events"`
	Stale        uint64 `json:"stale"`
	LastSequence uint64 `json:"last_sequence"`
	Clients      int    `json:"clients"`
}

// EventBroadcaster forwards host events to WebSocket clients in sequence
// order. The host numbers events monotonically; one that arrives with a
// sequence at or below the last forwarded one is dropped.
type EventBroadcaster struct {
	eventChan <-chan protocol.Event
	clients   *ClientRegistry

	events  atomic.Uint64
	stale   atomic.Uint64
	lastSeq atomic.Uint64
}

// NewEventBroadcaster creates a broadcaster over the host's event channel.
func NewEventBroadcaster(eventChan <-chan protocol.Event, clients *ClientRegistry) *EventBroadcaster {
	if clients == nil {
		clients = NewClientRegistry()
	}
	return &EventBroadcaster{
		eventChan: eventChan,
		clients:   clients,
	}
}

// Registry returns the clients events are sent to.
func (b *EventBroadcaster) Registry() *ClientRegistry {
	return b.clients
}

// Stats returns the current counters. Safe for concurrent use.
func (b *EventBroadcaster) Stats() BroadcastStats {
	return BroadcastStats{
		Events:       b.events.Load(),
		Stale:        b.stale.Load(),
		LastSequence: b.lastSeq.Load(),
		Clients:      b.clients.Len(),
	}
}

// Run forwards events until the channel is closed or ctx is cancelled.
func (b *EventBroadcaster) Run(ctx context.Context) {
	for {
		select {
		case event, ok := <-b.eventChan:
			if !ok {
				getLog().Info().Msg("Event broadcaster stopped (channel closed)")
				return
			}
			b.dispatch(event)
		case <-ctx.Done():
			getLog().Info().Msg("Event broadcaster stopped (context cancelled)")
			return
		}
	}
}

func (b *EventBroadcaster) dispatch(event protocol.Event) {
	meta := event.GetMetadata()
	// Sequence 0 marks events built outside the host's numbering
	if meta.Sequence != 0 {
		if meta.Sequence <= b.lastSeq.Load() {
			b.stale.Add(1)
			getLog().Warn().
				Str("event_type", event.EventType()).
				Str("run_id", meta.RunID).
				Uint64("sequence", meta.Sequence).
				Msg("Dropping out-of-order event")
			return
		}
		b.lastSeq.Store(meta.Sequence)
	}

	b.events.Add(1)
	getLog().Debug().
		Str("event_type", event.EventType()).
		Str("run_id", meta.RunID).
		Str("session_id", meta.SessionID).
		Uint64("sequence", meta.Sequence).
		Msg("Broadcasting event")
	b.clients.Broadcast(event)
}
