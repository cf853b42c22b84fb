// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Commands are what a client may ask of the pipeline host. They name the goal
// only; the host assigns run IDs and timestamps itself.

package protocol

// Command represents commands that can be sent to the pipeline host
type Command interface {
	GetMetadata() Metadata
}

// ActivatePipelineCommand starts a run for a session
type ActivatePipelineCommand struct {
	Metadata
	Session Session
}

func (c ActivatePipelineCommand) GetMetadata() Metadata {
	return c.Metadata
}

// DeactivatePipelineCommand stops the current run and resets every stage
type DeactivatePipelineCommand struct {
	Metadata
}

func (c DeactivatePipelineCommand) GetMetadata() Metadata {
	return c.Metadata
}
