// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rfpintel/agentflow/internal/analysis"
	"github.com/rfpintel/agentflow/internal/pipeline"
	"github.com/rfpintel/agentflow/internal/protocol"
)

const writeTimeout = 5 * time.Second

type writeOp struct {
	name  string
	runID string
	fn    func(ctx context.Context) error
}

// Recorder turns controller events and analysis results into store writes.
// Observe never blocks the controller: writes queue on a buffered channel and
// a single worker applies them in order. Writes that do not fit are dropped.
type Recorder struct {
	store Store
	ops   chan writeOp
	done  chan struct{}

	mu        sync.Mutex
	closed    bool
	dropped   int
	completed map[string]bool // runs whose completion was recorded
}

// NewRecorder starts the worker.
func NewRecorder(store Store, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = 256
	}
	r := &Recorder{
		store: store,
		ops:       make(chan writeOp, buffer),
		done:      make(chan struct{}),
		completed: make(map[string]bool),
	}
	go r.run()
	return r
}

func (r *Recorder) run() {
	defer close(r.done)
	for op := range r.ops {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := op.fn(ctx); err != nil {
			getLog().Error().Err(err).Str("op", op.name).Str("run_id", op.runID).Msg("Failed to record")
		}
		cancel()
	}
}

func (r *Recorder) enqueue(op writeOp) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.ops <- op:
	default:
		r.dropped++
		getLog().Warn().Str("op", op.name).Str("run_id", op.runID).Msg("Recorder queue full, dropping write")
	}
}

// Dropped returns how many writes were discarded because the queue was full.
func (r *Recorder) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Observe is a pipeline.Observer.
func (r *Recorder) Observe(e pipeline.Event) {
	switch e.Type {
	case pipeline.EventRunStarted:
		run := &RunRecord{ID: e.RunID, Status: RunStatusRunning, StartedAt: e.At}
		if session, ok := e.Payload.(protocol.Session); ok {
			run.SessionID = session.ID
		}
		r.enqueue(writeOp{name: "create_run", runID: e.RunID, fn: func(ctx context.Context) error {
			return r.store.CreateRun(ctx, run)
		}})

	case pipeline.EventStageStarted:
		stage := &StageRecord{
			RunID: e.RunID, StageIndex: e.StageIndex, StageID: e.StageID, StageName: e.StageName, StartedAt: e.At,
		}
		r.enqueue(writeOp{name: "start_stage", runID: e.RunID, fn: func(ctx context.Context) error {
			return r.store.StartStage(ctx, stage)
		}})

	case pipeline.EventStageCompleted:
		r.enqueue(writeOp{name: "complete_stage", runID: e.RunID, fn: func(ctx context.Context) error {
			return r.store.CompleteStage(ctx, e.RunID, e.StageIndex, e.At)
		}})

	case pipeline.EventRunCompleted:
		r.mu.Lock()
		r.completed[e.RunID] = true
		r.mu.Unlock()
		r.enqueue(writeOp{name: "finish_run", runID: e.RunID, fn: func(ctx context.Context) error {
			return r.store.FinishRun(ctx, e.RunID, RunStatusCompleted, e.StageIndex, e.At)
		}})

	case pipeline.EventRunStopped:
		// Leaving a completed run keeps its completed status
		r.mu.Lock()
		done := r.completed[e.RunID]
		delete(r.completed, e.RunID)
		r.mu.Unlock()
		if done {
			return
		}
		r.enqueue(writeOp{name: "stop_run", runID: e.RunID, fn: func(ctx context.Context) error {
			return r.store.FinishRun(ctx, e.RunID, RunStatusStopped, e.StageIndex, e.At)
		}})
	}
}

// RecordReport stores an analysis result.
func (r *Recorder) RecordReport(result analysis.Result) {
	report := &ReportRecord{
		ID:          uuid.New().String(),
		RunID:       result.RunID,
		SessionID:   result.SessionID,
		Report:      RawJSON(result.Report),
		RequestedAt: result.StartedAt,
		ReceivedAt:  result.FinishedAt,
	}
	if result.Err != nil {
		report.Error = result.Err.Error()
		report.Report = nil
	}
	r.enqueue(writeOp{name: "save_report", runID: result.RunID, fn: func(ctx context.Context) error {
		return r.store.SaveReport(ctx, report)
	}})
}

// Close stops accepting writes, applies the queued ones and waits for the worker.
func (r *Recorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.ops)
	}
	r.mu.Unlock()
	<-r.done
}
