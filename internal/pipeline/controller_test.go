// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoStageCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog([]StageDefinition{
		{ID: "intake", Name: "Intake", Activities: []string{"i0", "i1", "i2", "i3", "i4"}},
		{ID: "review", Name: "Review", Activities: []string{"r0", "r1", "r2", "r3", "r4"}},
	})
	require.NoError(t, err)
	return c
}

type recorder struct {
	events      []Event
	completions []any
	completedAt []time.Duration
}

func newTestController(t *testing.T, catalog *Catalog, sched Scheduler, opts ...Option) (*Controller, *recorder) {
	t.Helper()
	rec := &recorder{}
	opts = append([]Option{
		WithObserver(func(e Event) { rec.events = append(rec.events, e) }),
		WithCompletion(func(payload any) {
			rec.completions = append(rec.completions, payload)
			rec.completedAt = append(rec.completedAt, sched.Now().Sub(epoch))
		}),
	}, opts...)
	c, err := NewController(catalog, sched, opts...)
	require.NoError(t, err)
	return c, rec
}

func (r *recorder) ofType(typ EventType) []Event {
	var out []Event
	for _, e := range r.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// assertInvariants checks the ordering invariants of the stage list.
func assertInvariants(t *testing.T, c *Controller) {
	t.Helper()
	snap := c.Snapshot()

	inProgress := 0
	for i, s := range snap.Stages {
		if s.Status == StatusInProgress {
			inProgress++
		}
		if snap.Phase == PhaseIdle {
			assert.Equal(t, StatusPending, s.Status, "idle stage %d", i)
			continue
		}
		switch {
		case i < snap.Run.ActiveStageIndex:
			assert.Equal(t, StatusComplete, s.Status, "stage %d before active", i)
		case i > snap.Run.ActiveStageIndex:
			assert.Equal(t, StatusPending, s.Status, "stage %d after active", i)
		}
	}
	assert.LessOrEqual(t, inProgress, 1)
	assert.GreaterOrEqual(t, snap.Run.ActiveStageProgress, 0.0)
	assert.LessOrEqual(t, snap.Run.ActiveStageProgress, 100.0)
}

func TestNewController_Validation(t *testing.T) {
	sched := NewVirtualScheduler(epoch)

	_, err := NewController(&Catalog{}, sched)
	assert.ErrorIs(t, err, ErrInvalidCatalog)

	_, err = NewController(nil, sched)
	assert.ErrorIs(t, err, ErrInvalidCatalog)

	_, err = NewController(twoStageCatalog(t), sched, WithTiming(Timing{StepSize: 0, TickInterval: time.Second}))
	assert.ErrorIs(t, err, ErrInvalidTiming)

	_, err = NewController(twoStageCatalog(t), nil)
	assert.ErrorIs(t, err, ErrNoScheduler)
}

func TestController_Activate(t *testing.T) {
	sched := NewVirtualScheduler(epoch)
	c, rec := newTestController(t, twoStageCatalog(t), sched)

	require.NoError(t, c.Activate("session-1"))

	snap := c.Snapshot()
	assert.Equal(t, PhaseRunning, snap.Phase)
	assert.NotEmpty(t, snap.RunID)
	assert.Equal(t, 0, snap.Run.ActiveStageIndex)
	assert.Equal(t, 0.0, snap.Run.ActiveStageProgress)
	assert.Equal(t, StageRuntimeState{ID: "intake", Status: StatusInProgress, Message: "i0"}, snap.Stages[0])
	assert.Equal(t, StatusPending, snap.Stages[1].Status)

	require.Len(t, rec.events, 2)
	assert.Equal(t, EventRunStarted, rec.events[0].Type)
	assert.Equal(t, "session-1", rec.events[0].Payload)
	assert.Equal(t, EventStageStarted, rec.events[1].Type)
	assert.Equal(t, snap.RunID, rec.events[1].RunID)
}

func TestController_FullRunTimeline(t *testing.T) {
	sched := NewVirtualScheduler(epoch)
	c, rec := newTestController(t, twoStageCatalog(t), sched)

	require.NoError(t, c.Activate("payload"))

	// Stage 0 reaches 100% at 20 ticks × 400ms
	sched.Advance(7999 * time.Millisecond)
	assert.Equal(t, 95.0, c.Snapshot().Run.ActiveStageProgress)
	assert.Equal(t, "i4", c.Snapshot().Stages[0].Message)

	sched.Advance(time.Millisecond)
	snap := c.Snapshot()
	assert.Equal(t, PhaseSettling, snap.Phase)
	assert.Equal(t, 100.0, snap.Run.ActiveStageProgress)
	assert.Equal(t, StageRuntimeState{ID: "intake", Status: StatusComplete, Message: DefaultDoneLabel}, snap.Stages[0])
	assert.Equal(t, StatusPending, snap.Stages[1].Status)
	assertInvariants(t, c)

	// Settle until 8500ms, then stage 1 starts from zero
	sched.Advance(499 * time.Millisecond)
	assert.Equal(t, PhaseSettling, c.Phase())
	sched.Advance(time.Millisecond)
	snap = c.Snapshot()
	assert.Equal(t, PhaseRunning, snap.Phase)
	assert.Equal(t, 1, snap.Run.ActiveStageIndex)
	assert.Equal(t, 0.0, snap.Run.ActiveStageProgress)
	assert.Equal(t, "r0", snap.Stages[1].Message)
	assertInvariants(t, c)

	// Stage 1 hits 100% at 16500ms; completion waits for its settle delay
	sched.Advance(8000 * time.Millisecond)
	assert.Equal(t, StatusComplete, c.Snapshot().Stages[1].Status)
	assert.Empty(t, rec.completions, "onComplete must not fire before the last stage settles")

	sched.Advance(500 * time.Millisecond)
	snap = c.Snapshot()
	assert.Equal(t, PhaseComplete, snap.Phase)
	assert.True(t, snap.Run.Complete)
	assert.Equal(t, []any{"payload"}, rec.completions)
	assert.Equal(t, []time.Duration{17000 * time.Millisecond}, rec.completedAt)
	assert.Equal(t, 0, sched.Pending(), "no timers remain after completion")

	// Nothing fires afterwards
	sched.Advance(time.Hour)
	assert.Len(t, rec.completions, 1)
}

func TestController_ProgressEventsAreMonotonic(t *testing.T) {
	sched := NewVirtualScheduler(epoch)
	c, rec := newTestController(t, twoStageCatalog(t), sched)

	require.NoError(t, c.Activate(nil))
	sched.Drain(time.Hour)

	progress := rec.ofType(EventStageProgress)
	require.Len(t, progress, 40)

	last := map[int]float64{}
	for _, e := range progress {
		assert.Greater(t, e.Progress, last[e.StageIndex])
		last[e.StageIndex] = e.Progress
	}
	assert.Equal(t, 100.0, last[0])
	assert.Equal(t, 100.0, last[1])
}

func TestController_StageCompletionOrder(t *testing.T) {
	catalogs := map[string][]StageDefinition{
		"single stage single activity": {
			{ID: "only", Activities: []string{"x"}},
		},
		"uneven activities": {
			{ID: "a", Activities: []string{"a0"}},
			{ID: "b", Activities: []string{"b0", "b1", "b2"}},
			{ID: "c", Activities: []string{"c0", "c1", "c2", "c3", "c4", "c5", "c6"}},
		},
		"default": DefaultCatalog().Stages(),
	}

	for name, stages := range catalogs {
		t.Run(name, func(t *testing.T) {
			catalog, err := NewCatalog(stages)
			require.NoError(t, err)
			sched := NewVirtualScheduler(epoch)
			c, rec := newTestController(t, catalog, sched, WithTiming(Timing{
				StepSize: 7, TickInterval: 10 * time.Millisecond, SettleDelay: 30 * time.Millisecond,
			}))

			// Check invariants on every published change
			c.Aggregator().Subscribe(func([]StageRuntimeState) { assertInvariants(t, c) })

			require.NoError(t, c.Activate(nil))
			sched.Drain(time.Hour)

			completed := rec.ofType(EventStageCompleted)
			started := rec.ofType(EventStageStarted)
			require.Len(t, completed, catalog.Len())
			require.Len(t, started, catalog.Len())
			for i := range completed {
				assert.Equal(t, i, completed[i].StageIndex)
				assert.Equal(t, catalog.At(i).ID, completed[i].StageID)
				assert.Equal(t, i, started[i].StageIndex)
			}
			assert.Len(t, rec.completions, 1)
			assert.Equal(t, PhaseComplete, c.Phase())
		})
	}
}

func TestController_ActivateTwice(t *testing.T) {
	sched := NewVirtualScheduler(epoch)
	c, _ := newTestController(t, twoStageCatalog(t), sched)

	require.NoError(t, c.Activate("first"))
	sched.Advance(1200 * time.Millisecond)
	before := c.Snapshot()

	err := c.Activate("second")
	require.ErrorIs(t, err, ErrAlreadyRunning)
	assert.Equal(t, before, c.Snapshot())

	// The first run keeps going
	sched.Advance(400 * time.Millisecond)
	assert.Equal(t, 20.0, c.Snapshot().Run.ActiveStageProgress)
	assert.Equal(t, before.RunID, c.RunID())
}

func TestController_ActivateFromCompleteRequiresDeactivate(t *testing.T) {
	sched := NewVirtualScheduler(epoch)
	c, rec := newTestController(t, twoStageCatalog(t), sched)

	require.NoError(t, c.Activate(nil))
	sched.Drain(time.Hour)
	require.Equal(t, PhaseComplete, c.Phase())

	assert.ErrorIs(t, c.Activate(nil), ErrAlreadyRunning)

	c.Deactivate()
	require.NoError(t, c.Activate(nil))
	sched.Drain(time.Hour)
	assert.Len(t, rec.completions, 2)
}

func TestController_Deactivate(t *testing.T) {
	sched := NewVirtualScheduler(epoch)
	c, rec := newTestController(t, twoStageCatalog(t), sched)

	// No-op from idle
	c.Deactivate()
	assert.Empty(t, rec.events)

	require.NoError(t, c.Activate(nil))
	sched.Advance(3 * time.Second)
	c.Deactivate()

	once := c.Snapshot()
	assert.Equal(t, PhaseIdle, once.Phase)
	assert.Empty(t, once.RunID)
	assert.Equal(t, RunState{}, once.Run)
	for _, s := range once.Stages {
		assert.Equal(t, StageRuntimeState{ID: s.ID, Status: StatusPending}, s)
	}
	assert.Equal(t, 0, sched.Pending())

	// Idempotent
	c.Deactivate()
	assert.Equal(t, once, c.Snapshot())
	assert.Len(t, rec.ofType(EventRunStopped), 1)

	sched.Advance(time.Hour)
	assert.Empty(t, rec.completions)
	assert.Equal(t, once, c.Snapshot())
}

func TestController_StaleSettleDoesNotTouchNewRun(t *testing.T) {
	// Cancellation is ineffective here, so only the generation guard protects the new run
	sched := leakyScheduler{NewVirtualScheduler(epoch)}
	c, rec := newTestController(t, twoStageCatalog(t), sched)

	require.NoError(t, c.Activate("old"))
	sched.Advance(8000 * time.Millisecond)
	require.Equal(t, PhaseSettling, c.Phase())

	// Restart while the settle delay (due at 8500ms) is still pending
	c.Deactivate()
	require.NoError(t, c.Activate("new"))
	newRun := c.RunID()

	sched.Advance(500 * time.Millisecond)
	snap := c.Snapshot()
	assert.Equal(t, newRun, snap.RunID)
	assert.Equal(t, 0, snap.Run.ActiveStageIndex, "stale settle must not advance the new run")
	assert.Equal(t, 5.0, snap.Run.ActiveStageProgress)
	assert.Equal(t, StatusPending, snap.Stages[1].Status)
	assertInvariants(t, c)

	sched.Drain(time.Hour)
	assert.Equal(t, []any{"new"}, rec.completions)
	for _, e := range rec.ofType(EventStageStarted) {
		if e.RunID != newRun {
			assert.Equal(t, 0, e.StageIndex, "old run never reached stage 1")
		}
	}
}

func TestController_StaleTickAfterDeactivate(t *testing.T) {
	sched := leakyScheduler{NewVirtualScheduler(epoch)}
	c, rec := newTestController(t, twoStageCatalog(t), sched)

	require.NoError(t, c.Activate(nil))
	sched.Advance(400 * time.Millisecond)
	c.Deactivate()
	stopped := len(rec.events)

	sched.Advance(time.Hour)
	assert.Len(t, rec.events, stopped)
	assert.Equal(t, PhaseIdle, c.Phase())
}

func TestController_ObserverMayDeactivate(t *testing.T) {
	sched := NewVirtualScheduler(epoch)
	var c *Controller
	var err error
	c, err = NewController(twoStageCatalog(t), sched, WithObserver(func(e Event) {
		if e.Type == EventStageCompleted && e.StageIndex == 0 {
			c.Deactivate()
		}
	}))
	require.NoError(t, err)

	require.NoError(t, c.Activate(nil))
	sched.Drain(time.Hour)

	assert.Equal(t, PhaseIdle, c.Phase())
	assert.Equal(t, 0, sched.Pending())
}

func TestController_CompletionBelongsToFinishedRun(t *testing.T) {
	sched := NewVirtualScheduler(epoch)
	var c *Controller
	var completions []any
	var phases []Phase
	var err error
	c, err = NewController(twoStageCatalog(t), sched,
		WithObserver(func(e Event) {
			if e.Type == EventRunCompleted {
				c.Deactivate()
				require.NoError(t, c.Activate("second"))
			}
		}),
		WithCompletion(func(payload any) {
			completions = append(completions, payload)
			phases = append(phases, c.Phase())
		}),
	)
	require.NoError(t, err)

	require.NoError(t, c.Activate("first"))
	sched.Advance(17 * time.Second)

	assert.Equal(t, []any{"first"}, completions)
	assert.Equal(t, []Phase{PhaseComplete}, phases)
	assert.Equal(t, PhaseRunning, c.Phase())
}

func TestController_CompletionMayDeactivate(t *testing.T) {
	sched := NewVirtualScheduler(epoch)
	var c *Controller
	var seen []EventType
	var err error
	c, err = NewController(twoStageCatalog(t), sched,
		WithObserver(func(e Event) { seen = append(seen, e.Type) }),
		WithCompletion(func(any) { c.Deactivate() }),
	)
	require.NoError(t, err)

	require.NoError(t, c.Activate(nil))
	sched.Drain(time.Hour)

	assert.Equal(t, PhaseIdle, c.Phase())
	assert.NotContains(t, seen, EventRunCompleted, "a run left inside the callback is reported as stopped")
	assert.Equal(t, EventRunStopped, seen[len(seen)-1])
}

func TestController_CustomDoneLabel(t *testing.T) {
	sched := NewVirtualScheduler(epoch)
	c, _ := newTestController(t, twoStageCatalog(t), sched, WithDoneLabel("Finished"))

	require.NoError(t, c.Activate(nil))
	sched.Advance(8 * time.Second)
	assert.Equal(t, "Finished", c.Snapshot().Stages[0].Message)
}
