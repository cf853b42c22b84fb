// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"fmt"

	"github.com/samber/lo"
)

// StageStatus represents the status of a single stage within a run
type StageStatus int

const (
	StatusPending StageStatus = iota
	StatusInProgress
	StatusComplete
)

func (s StageStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInProgress:
		return "in_progress"
	case StatusComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status as its lowercase name.
func (s StageStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *StageStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "pending":
		*s = StatusPending
	case "in_progress":
		*s = StatusInProgress
	case "complete":
		*s = StatusComplete
	default:
		return fmt.Errorf("unknown stage status %q", string(text))
	}
	return nil
}

// StageRuntimeState is the per-stage status shown to the user.
type StageRuntimeState struct {
	ID      string      `json:"id"`
	Status  StageStatus `json:"status"`
	Message string      `json:"message"`
}

// StageListListener receives the full ordered stage list after every change.
type StageListListener func([]StageRuntimeState)

// StatusAggregator holds the ordered stage states and publishes every change to
// its subscribers. It carries no logic of its own; the controller is its only writer.
type StatusAggregator struct {
	stages    []StageRuntimeState
	listeners map[int]StageListListener
	order     []int
	nextID    int
}

// NewStatusAggregator creates an aggregator with every catalog stage pending.
func NewStatusAggregator(catalog *Catalog) *StatusAggregator {
	return &StatusAggregator{
		stages:    pendingStates(catalog),
		listeners: make(map[int]StageListListener),
	}
}

func pendingStates(catalog *Catalog) []StageRuntimeState {
	return lo.Map(catalog.IDs(), func(id string, _ int) StageRuntimeState {
		return StageRuntimeState{ID: id, Status: StatusPending}
	})
}

// Stages returns a copy of the current stage list.
func (a *StatusAggregator) Stages() []StageRuntimeState {
	return append([]StageRuntimeState(nil), a.stages...)
}

// Subscribe registers a listener and returns a function that removes it.
func (a *StatusAggregator) Subscribe(fn StageListListener) func() {
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	a.order = append(a.order, id)

	return func() {
		delete(a.listeners, id)
		a.order = lo.Without(a.order, id)
	}
}

// InProgress returns the index of the stage currently in progress, or -1.
func (a *StatusAggregator) InProgress() int {
	_, idx, ok := lo.FindIndexOf(a.stages, func(s StageRuntimeState) bool {
		return s.Status == StatusInProgress
	})
	if !ok {
		return -1
	}
	return idx
}

// Completed returns how many stages are complete.
func (a *StatusAggregator) Completed() int {
	return lo.CountBy(a.stages, func(s StageRuntimeState) bool {
		return s.Status == StatusComplete
	})
}

func (a *StatusAggregator) set(i int, status StageStatus, message string) {
	a.stages[i].Status = status
	a.stages[i].Message = message
	a.publish()
}

func (a *StatusAggregator) reset() {
	for i := range a.stages {
		a.stages[i].Status = StatusPending
		a.stages[i].Message = ""
	}
	a.publish()
}

func (a *StatusAggregator) publish() {
	for _, id := range a.order {
		if fn, ok := a.listeners[id]; ok {
			fn(a.Stages())
		}
	}
}
