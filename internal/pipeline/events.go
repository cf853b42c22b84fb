// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import "time"

// EventType identifies a controller lifecycle transition
type EventType string

const (
	EventRunStarted     EventType = "run_started"
	EventStageStarted   EventType = "stage_started"
	EventStageProgress  EventType = "stage_progress"
	EventStageCompleted EventType = "stage_completed"
	EventRunCompleted   EventType = "run_completed"
	EventRunStopped     EventType = "run_stopped"
)

// Event is emitted synchronously by the controller on every transition.
// Stage fields are zero for run-level events.
type Event struct {
	Type       EventType
	RunID      string
	Generation uint64
	StageIndex int
	StageID    string
	StageName  string
	Progress   float64
	Message    string
	Payload    any
	At         time.Time
}

// Observer receives controller events on the scheduler's thread.
// Observers must not block; hand slow work off to another goroutine.
type Observer func(Event)
