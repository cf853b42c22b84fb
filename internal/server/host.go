// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/rfpintel/agentflow/internal/analysis"
	"github.com/rfpintel/agentflow/internal/pipeline"
	"github.com/rfpintel/agentflow/internal/protocol"
)

// ErrSessionRequired is returned when a run is activated without a session.
var ErrSessionRequired = errors.New("session_id is required")

const eventBuffer = 256

// Host drives one pipeline controller on an event loop and turns its changes
// into protocol events. Every method is safe for concurrent use; calls are
// marshalled onto the loop.
type Host struct {
	loop    *pipeline.EventLoop
	ctrl    *pipeline.Controller
	catalog *pipeline.Catalog
	events  chan protocol.Event

	// Loop-owned
	seq       uint64
	sessionID string
}

// NewHost creates the controller for catalog on loop. Extra options are
// applied before the host installs its own observer and completion callback.
func NewHost(loop *pipeline.EventLoop, catalog *pipeline.Catalog, opts ...pipeline.Option) (*Host, error) {
	h := &Host{
		loop:    loop,
		catalog: catalog,
		events:  make(chan protocol.Event, eventBuffer),
	}

	opts = append(opts,
		pipeline.WithObserver(h.observe),
		pipeline.WithCompletion(h.completed),
	)
	ctrl, err := pipeline.NewController(catalog, loop, opts...)
	if err != nil {
		return nil, err
	}
	h.ctrl = ctrl
	ctrl.Aggregator().Subscribe(h.stagesChanged)
	return h, nil
}

// Events returns the channel protocol events are published on.
func (h *Host) Events() <-chan protocol.Event {
	return h.events
}

// Catalog returns the stage catalog.
func (h *Host) Catalog() *pipeline.Catalog {
	return h.catalog
}

// Activate starts a run for session.
func (h *Host) Activate(ctx context.Context, session protocol.Session) (pipeline.Snapshot, error) {
	if session.ID == "" {
		return pipeline.Snapshot{}, ErrSessionRequired
	}

	var snap pipeline.Snapshot
	var activateErr error
	err := h.loop.Do(ctx, func() {
		activateErr = h.ctrl.Activate(session)
		snap = h.ctrl.Snapshot()
	})
	if err != nil {
		return pipeline.Snapshot{}, err
	}
	return snap, activateErr
}

// Deactivate stops the current run, if any.
func (h *Host) Deactivate(ctx context.Context) (pipeline.Snapshot, error) {
	var snap pipeline.Snapshot
	err := h.loop.Do(ctx, func() {
		h.ctrl.Deactivate()
		snap = h.ctrl.Snapshot()
	})
	return snap, err
}

// Snapshot returns the current controller state.
func (h *Host) Snapshot(ctx context.Context) (pipeline.Snapshot, error) {
	var snap pipeline.Snapshot
	err := h.loop.Do(ctx, func() { snap = h.ctrl.Snapshot() })
	return snap, err
}

// Execute runs a client command.
func (h *Host) Execute(ctx context.Context, cmd protocol.Command) error {
	switch c := cmd.(type) {
	case protocol.ActivatePipelineCommand:
		_, err := h.Activate(ctx, c.Session)
		return err
	case protocol.DeactivatePipelineCommand:
		_, err := h.Deactivate(ctx)
		return err
	default:
		return fmt.Errorf("unsupported command %T", cmd)
	}
}

// PublishReport forwards an analysis result to clients. It may be called from
// any goroutine.
func (h *Host) PublishReport(result analysis.Result) {
	event := protocol.AnalysisReportEvent{Report: result.Report}
	if result.Err != nil {
		event.Report = nil
		event.Error = result.Err.Error()
	}
	if !h.loop.Post(func() {
		event.Metadata = h.metadata(result.RunID)
		event.SessionID = result.SessionID
		h.publish(event)
	}) {
		getLog().Warn().Str("run_id", result.RunID).Msg("Event loop stopped, dropping analysis report")
	}
}

func (h *Host) metadata(runID string) protocol.Metadata {
	h.seq++
	return protocol.Metadata{
		RunID:     runID,
		SessionID: h.sessionID,
		Sequence:  h.seq,
		Version:   protocol.CurrentProtocolVersion,
	}
}

func (h *Host) observe(e pipeline.Event) {
	switch e.Type {
	case pipeline.EventRunStarted:
		if session, ok := e.Payload.(protocol.Session); ok {
			h.sessionID = session.ID
		}
		h.publish(protocol.PipelineStartedEvent{
			Metadata:   h.metadata(e.RunID),
			StageCount: h.catalog.Len(),
		})
	case pipeline.EventRunStopped:
		h.publish(protocol.PipelineDeactivatedEvent{
			Metadata:   h.metadata(e.RunID),
			StageIndex: e.StageIndex,
		})
		h.sessionID = ""
	}
}

func (h *Host) stagesChanged(stages []pipeline.StageRuntimeState) {
	h.publish(protocol.StageListChangedEvent{
		Metadata: h.metadata(h.ctrl.RunID()),
		Phase:    h.ctrl.Phase(),
		Run:      h.ctrl.Snapshot().Run,
		Stages:   stages,
	})
}

func (h *Host) completed(payload any) {
	h.publish(protocol.PipelineCompletedEvent{Metadata: h.metadata(h.ctrl.RunID())})
}

// publish never blocks the loop; a full buffer drops the event.
func (h *Host) publish(event protocol.Event) {
	select {
	case h.events <- event:
	default:
		getLog().Warn().Str("event_type", event.EventType()).Msg("Event buffer full, dropping event")
	}
}
