// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipelinesummary

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfpintel/agentflow/internal/pipeline"
	"github.com/rfpintel/agentflow/internal/protocol"
)

func TestCollector_CompletedRunOnVirtualClock(t *testing.T) {
	catalog := pipeline.MustCatalog([]pipeline.StageDefinition{
		{ID: "a", Name: "Alpha", Activities: []string{"x", "y"}},
		{ID: "b", Name: "Beta", Activities: []string{"x"}},
	})
	sched := pipeline.NewVirtualScheduler(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	collector := NewCollector(catalog)

	ctrl, err := pipeline.NewController(catalog, sched,
		pipeline.WithTiming(pipeline.Timing{StepSize: 25, TickInterval: 100 * time.Millisecond, SettleDelay: 50 * time.Millisecond}),
		pipeline.WithObserver(collector.Observe),
	)
	require.NoError(t, err)
	require.NoError(t, ctrl.Activate(protocol.Session{ID: "sess"}))
	sched.Drain(time.Minute)

	data := collector.Data()
	assert.Equal(t, StatusCompleted, data.Status)
	assert.Equal(t, "sess", data.SessionID)
	assert.Equal(t, 2, data.CompletedStages)
	assert.Equal(t, 900*time.Millisecond, data.Duration)
	require.Len(t, data.Stages, 2)
	assert.Equal(t, StageTiming{Name: "Alpha", Duration: 400 * time.Millisecond, Done: true}, data.Stages[0])

	// Leaving a completed run keeps it completed
	ctrl.Deactivate()
	assert.Equal(t, StatusCompleted, collector.Data().Status)

	view := New().SetData(collector.Data()).View()
	assert.Contains(t, view, "Completed")
	assert.Contains(t, view, "2/2")
	assert.Contains(t, view, "Alpha 0.4s")
}

func TestCollector_StoppedRun(t *testing.T) {
	catalog := pipeline.DefaultCatalog()
	sched := pipeline.NewVirtualScheduler(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	collector := NewCollector(catalog)

	ctrl, err := pipeline.NewController(catalog, sched, pipeline.WithObserver(collector.Observe))
	require.NoError(t, err)
	require.NoError(t, ctrl.Activate(nil))
	sched.Advance(10 * time.Second)
	ctrl.Deactivate()

	collector.SetAnalysis(0, errors.New("timeout"))
	data := collector.Data()
	assert.Equal(t, StatusStopped, data.Status)
	assert.Equal(t, 1, data.CompletedStages)
	assert.Equal(t, 10*time.Second, data.Duration)

	view := New().SetData(data).View()
	assert.Contains(t, view, "Stopped")
	assert.Contains(t, view, "Analysis failed: timeout")
}
