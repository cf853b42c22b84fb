// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package protocol defines the messages exchanged between the pipeline host and
// its clients. Clients send Commands; the host answers with Events.
package protocol

// Metadata contains common fields for all commands and events.
type Metadata struct {
	// RunID correlates the message with a pipeline run.
	// Empty for messages sent while no run is active.
	RunID string `json:"run_id,omitempty"`

	// SessionID identifies the analysis session the run was activated for.
	SessionID string `json:"session_id,omitempty"`

	// Sequence increases with every event the host emits, so clients can
	// discard events that arrive out of order after a reconnect.
	Sequence uint64 `json:"sequence,omitempty"`

	// Version indicates the protocol version for backward compatibility.
	// Format: "v{major}.{minor}.{patch}" (e.g., "v1.0.0")
	Version string `json:"version"`
}

// CurrentProtocolVersion defines the current version of the protocol.
// This should be updated when making breaking changes to the protocol.
const CurrentProtocolVersion = "v1.0.0"

// Event represents a message sent from the host to its clients.
type Event interface {
	GetMetadata() Metadata
	// EventType is the wire name of the event.
	EventType() string
}

// Session is the payload a run is activated with. It travels through the
// controller untouched and comes back to the completion callback.
type Session struct {
	ID string `json:"session_id"`
}
