// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package protocol

import (
	"encoding/json"

	"github.com/rfpintel/agentflow/internal/pipeline"
)

// Wire names of the events
const (
	TypeStageListChanged    = "stage_list_changed"
	TypePipelineStarted     = "pipeline_started"
	TypePipelineCompleted   = "pipeline_completed"
	TypePipelineDeactivated = "pipeline_deactivated"
	TypeAnalysisReport      = "analysis_report"
	TypeError               = "error"
)

// GetRunID extracts the run ID from any event
func GetRunID(event Event) string {
	return event.GetMetadata().RunID
}

// StageListChangedEvent carries the full stage list after every change.
// Clients replace their copy instead of patching it.
type StageListChangedEvent struct {
	Metadata
	Phase  pipeline.Phase               `json:"phase"`
	Run    pipeline.RunState            `json:"run"`
	Stages []pipeline.StageRuntimeState `json:"stages"`
}

func (e StageListChangedEvent) GetMetadata() Metadata { return e.Metadata }
func (e StageListChangedEvent) EventType() string     { return TypeStageListChanged }

// PipelineStartedEvent is sent when a run has been activated.
type PipelineStartedEvent struct {
	Metadata
	StageCount int `json:"stage_count"`
}

func (e PipelineStartedEvent) GetMetadata() Metadata { return e.Metadata }
func (e PipelineStartedEvent) EventType() string     { return TypePipelineStarted }

// PipelineCompletedEvent is sent once every stage has finished and settled.
type PipelineCompletedEvent struct {
	Metadata
}

func (e PipelineCompletedEvent) GetMetadata() Metadata { return e.Metadata }
func (e PipelineCompletedEvent) EventType() string     { return TypePipelineCompleted }

// PipelineDeactivatedEvent confirms a run was stopped and its stages reset.
type PipelineDeactivatedEvent struct {
	Metadata
	StageIndex int `json:"stage_index"`
}

func (e PipelineDeactivatedEvent) GetMetadata() Metadata { return e.Metadata }
func (e PipelineDeactivatedEvent) EventType() string     { return TypePipelineDeactivated }

// AnalysisReportEvent carries the result of the remote analysis call.
// Exactly one of Report and Error is set.
type AnalysisReportEvent struct {
	Metadata
	Report json.RawMessage `json:"report,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func (e AnalysisReportEvent) GetMetadata() Metadata { return e.Metadata }
func (e AnalysisReportEvent) EventType() string     { return TypeAnalysisReport }

// ErrorEvent reports a failure the client should surface.
type ErrorEvent struct {
	Metadata
	Message string `json:"message"`
	Context string `json:"context,omitempty"`
}

func (e ErrorEvent) GetMetadata() Metadata { return e.Metadata }
func (e ErrorEvent) EventType() string     { return TypeError }
