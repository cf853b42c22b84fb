// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package analysis

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rfpintel/agentflow/internal/pipeline"
	"github.com/rfpintel/agentflow/internal/protocol"
)

// Result is the outcome of one analysis request.
type Result struct {
	RunID      string
	SessionID  string
	Report     json.RawMessage
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

type inflight struct {
	cancel context.CancelFunc
}

// Dispatcher issues one delayed analysis request per run. The delay is counted
// from Dispatch and is unrelated to how long the simulated stages take.
// onResult runs on the request goroutine; cancelled requests report nothing.
type Dispatcher struct {
	analyzer Analyzer
	delay    time.Duration
	onResult func(Result)

	mu      sync.Mutex
	pending map[string]*inflight
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(analyzer Analyzer, delay time.Duration, onResult func(Result)) *Dispatcher {
	if onResult == nil {
		onResult = func(Result) {}
	}
	return &Dispatcher{
		analyzer: analyzer,
		delay:    delay,
		onResult: onResult,
		pending:  make(map[string]*inflight),
	}
}

// Dispatch schedules the request for runID. A request already pending for the
// same run is cancelled first.
func (d *Dispatcher) Dispatch(ctx context.Context, runID, sessionID string) {
	ctx, cancel := context.WithCancel(ctx)
	entry := &inflight{cancel: cancel}

	d.mu.Lock()
	if prev, ok := d.pending[runID]; ok {
		prev.cancel()
	}
	d.pending[runID] = entry
	d.mu.Unlock()

	getLog().Info().
		Str("run_id", runID).
		Str("session_id", sessionID).
		Dur("delay", d.delay).
		Msg("Analysis request scheduled")

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.release(runID, entry)

		timer := time.NewTimer(d.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			getLog().Debug().Str("run_id", runID).Msg("Analysis request cancelled before sending")
			return
		case <-timer.C:
		}

		result := Result{RunID: runID, SessionID: sessionID, StartedAt: time.Now()}
		result.Report, result.Err = d.analyzer.Analyze(ctx, sessionID)
		result.FinishedAt = time.Now()

		if ctx.Err() != nil {
			getLog().Debug().Str("run_id", runID).Msg("Analysis request cancelled in flight")
			return
		}
		if result.Err != nil {
			getLog().Error().Err(result.Err).Str("run_id", runID).Msg("Analysis request failed")
		} else {
			getLog().Info().
				Str("run_id", runID).
				Int("bytes", len(result.Report)).
				Dur("took", result.FinishedAt.Sub(result.StartedAt)).
				Msg("Analysis report received")
		}
		d.onResult(result)
	}()
}

// Cancel aborts the request for runID. It reports whether one was pending.
func (d *Dispatcher) Cancel(runID string) bool {
	d.mu.Lock()
	entry, ok := d.pending[runID]
	delete(d.pending, runID)
	d.mu.Unlock()

	if ok {
		entry.cancel()
	}
	return ok
}

// Pending returns the number of requests not yet finished.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Close cancels every pending request and waits for the goroutines to exit.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	for runID, entry := range d.pending {
		entry.cancel()
		delete(d.pending, runID)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) release(runID string, entry *inflight) {
	d.mu.Lock()
	if d.pending[runID] == entry {
		delete(d.pending, runID)
	}
	d.mu.Unlock()
	entry.cancel()
}

// Observer dispatches a request when a run starts with a protocol.Session
// payload and cancels it when the run is stopped.
func (d *Dispatcher) Observer(ctx context.Context) pipeline.Observer {
	return func(e pipeline.Event) {
		switch e.Type {
		case pipeline.EventRunStarted:
			session, ok := e.Payload.(protocol.Session)
			if !ok || session.ID == "" {
				return
			}
			d.Dispatch(ctx, e.RunID, session.ID)
		case pipeline.EventRunStopped:
			d.Cancel(e.RunID)
		}
	}
}
