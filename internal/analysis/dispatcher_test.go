// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfpintel/agentflow/internal/pipeline"
	"github.com/rfpintel/agentflow/internal/protocol"
)

type fakeAnalyzer struct {
	mu       sync.Mutex
	sessions []string
	report   json.RawMessage
	err      error
	block    chan struct{}
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, sessionID string) (json.RawMessage, error) {
	f.mu.Lock()
	f.sessions = append(f.sessions, sessionID)
	f.mu.Unlock()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.report, f.err
}

func (f *fakeAnalyzer) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sessions...)
}

func collect() (func(Result), <-chan Result) {
	ch := make(chan Result, 8)
	return func(r Result) { ch <- r }, ch
}

func TestDispatcher_DeliversReportAfterDelay(t *testing.T) {
	analyzer := &fakeAnalyzer{report: json.RawMessage(`{"score":1}`)}
	onResult, results := collect()
	d := NewDispatcher(analyzer, 30*time.Millisecond, onResult)
	defer d.Close()

	start := time.Now()
	d.Dispatch(context.Background(), "run-1", "s-1")
	assert.Equal(t, 1, d.Pending())

	select {
	case r := <-results:
		assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
		assert.Equal(t, "run-1", r.RunID)
		assert.Equal(t, "s-1", r.SessionID)
		assert.NoError(t, r.Err)
		assert.JSONEq(t, `{"score":1}`, string(r.Report))
		assert.False(t, r.FinishedAt.Before(r.StartedAt))
	case <-time.After(2 * time.Second):
		t.Fatal("no result")
	}

	assert.Eventually(t, func() bool { return d.Pending() == 0 }, time.Second, 5*time.Millisecond)
}

func TestDispatcher_ReportsErrors(t *testing.T) {
	analyzer := &fakeAnalyzer{err: errors.New("service down")}
	onResult, results := collect()
	d := NewDispatcher(analyzer, 0, onResult)
	defer d.Close()

	d.Dispatch(context.Background(), "run-1", "s-1")

	select {
	case r := <-results:
		assert.EqualError(t, r.Err, "service down")
	case <-time.After(2 * time.Second):
		t.Fatal("no result")
	}
}

func TestDispatcher_CancelBeforeSend(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	onResult, results := collect()
	d := NewDispatcher(analyzer, time.Hour, onResult)

	d.Dispatch(context.Background(), "run-1", "s-1")
	assert.True(t, d.Cancel("run-1"))
	assert.False(t, d.Cancel("run-1"))
	d.Close()

	assert.Empty(t, analyzer.calls())
	assert.Empty(t, results)
}

func TestDispatcher_CancelInFlight(t *testing.T) {
	analyzer := &fakeAnalyzer{block: make(chan struct{})}
	onResult, results := collect()
	d := NewDispatcher(analyzer, 0, onResult)

	d.Dispatch(context.Background(), "run-1", "s-1")
	require.Eventually(t, func() bool { return len(analyzer.calls()) == 1 }, time.Second, 5*time.Millisecond)

	d.Cancel("run-1")
	d.Close()
	assert.Empty(t, results)
}

func TestDispatcher_RedispatchReplacesPending(t *testing.T) {
	analyzer := &fakeAnalyzer{report: json.RawMessage(`{}`)}
	onResult, results := collect()
	d := NewDispatcher(analyzer, 20*time.Millisecond, onResult)
	defer d.Close()

	d.Dispatch(context.Background(), "run-1", "old")
	d.Dispatch(context.Background(), "run-1", "new")

	select {
	case r := <-results:
		assert.Equal(t, "new", r.SessionID)
	case <-time.After(2 * time.Second):
		t.Fatal("no result")
	}
	assert.Equal(t, []string{"new"}, analyzer.calls())
}

func TestDispatcher_Observer(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	d := NewDispatcher(analyzer, time.Hour, nil)
	defer d.Close()
	observe := d.Observer(context.Background())

	// Payloads without a session are ignored
	observe(pipeline.Event{Type: pipeline.EventRunStarted, RunID: "run-0", Payload: "not a session"})
	assert.Equal(t, 0, d.Pending())

	observe(pipeline.Event{Type: pipeline.EventRunStarted, RunID: "run-1", Payload: protocol.Session{ID: "s-1"}})
	assert.Equal(t, 1, d.Pending())

	observe(pipeline.Event{Type: pipeline.EventStageProgress, RunID: "run-1"})
	assert.Equal(t, 1, d.Pending())

	observe(pipeline.Event{Type: pipeline.EventRunStopped, RunID: "run-1"})
	assert.Equal(t, 0, d.Pending())
}
