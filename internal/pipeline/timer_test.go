// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

// leakyScheduler wraps a VirtualScheduler but ignores cancellation, modelling a
// callback that was already dispatched when cancel was called.
type leakyScheduler struct {
	*VirtualScheduler
}

func (s leakyScheduler) AfterFunc(d time.Duration, fn func()) CancelFunc {
	s.VirtualScheduler.AfterFunc(d, fn)
	return func() {}
}

func TestStageTimer_TicksToCompletion(t *testing.T) {
	sched := NewVirtualScheduler(epoch)

	var ticks []float64
	var tickTimes []time.Duration
	completions := 0
	timer := NewStageTimer(sched,
		func(p float64) {
			ticks = append(ticks, p)
			tickTimes = append(tickTimes, sched.Now().Sub(epoch))
		},
		func() {
			completions++
			assert.Equal(t, 100.0, ticks[len(ticks)-1], "terminal tick precedes completion")
		},
	)

	require.NoError(t, timer.Start(25, 100*time.Millisecond))
	assert.True(t, timer.Running())

	sched.Advance(time.Second)

	assert.Equal(t, []float64{25, 50, 75, 100}, ticks)
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond, 400 * time.Millisecond,
	}, tickTimes)
	assert.Equal(t, 1, completions)
	assert.False(t, timer.Running())
	assert.Equal(t, 0, sched.Pending())
}

func TestStageTimer_ClampsOvershoot(t *testing.T) {
	sched := NewVirtualScheduler(epoch)
	var ticks []float64
	completions := 0
	timer := NewStageTimer(sched, func(p float64) { ticks = append(ticks, p) }, func() { completions++ })

	require.NoError(t, timer.Start(30, time.Millisecond))
	sched.Advance(time.Second)

	assert.Equal(t, []float64{30, 60, 90, 100}, ticks)
	assert.Equal(t, 1, completions)
}

func TestStageTimer_StartErrors(t *testing.T) {
	sched := NewVirtualScheduler(epoch)
	timer := NewStageTimer(sched, nil, nil)

	assert.ErrorIs(t, timer.Start(0, time.Second), ErrInvalidTiming)
	assert.ErrorIs(t, timer.Start(5, 0), ErrInvalidTiming)

	require.NoError(t, timer.Start(5, time.Second))
	assert.ErrorIs(t, timer.Start(5, time.Second), ErrAlreadyRunning)
}

func TestStageTimer_CancelIsIdempotentAndFinal(t *testing.T) {
	sched := NewVirtualScheduler(epoch)
	ticks := 0
	timer := NewStageTimer(sched, func(float64) { ticks++ }, func() { t.Fatal("completion after cancel") })

	require.NoError(t, timer.Start(10, time.Second))
	sched.Advance(2 * time.Second)
	require.Equal(t, 2, ticks)

	timer.Cancel()
	timer.Cancel()
	sched.Advance(time.Minute)

	assert.Equal(t, 2, ticks)
	assert.False(t, timer.Running())
	assert.Equal(t, 0, sched.Pending())
}

func TestStageTimer_DropsAlreadyDispatchedTick(t *testing.T) {
	sched := leakyScheduler{NewVirtualScheduler(epoch)}
	ticks := 0
	timer := NewStageTimer(sched, func(float64) { ticks++ }, func() { t.Fatal("completion after cancel") })

	require.NoError(t, timer.Start(50, time.Second))
	timer.Cancel()

	// The tick still fires on the scheduler but must be discarded
	sched.Advance(5 * time.Second)
	assert.Equal(t, 0, ticks)
}

func TestStageTimer_CancelFromTick(t *testing.T) {
	sched := NewVirtualScheduler(epoch)
	var timer *StageTimer
	ticks := 0
	timer = NewStageTimer(sched,
		func(float64) {
			ticks++
			timer.Cancel()
		},
		func() { t.Fatal("completion after cancel") },
	)

	require.NoError(t, timer.Start(100, time.Second))
	sched.Advance(5 * time.Second)
	assert.Equal(t, 1, ticks)
}

func TestStageTimer_Restart(t *testing.T) {
	sched := leakyScheduler{NewVirtualScheduler(epoch)}
	var ticks []float64
	timer := NewStageTimer(sched, func(p float64) { ticks = append(ticks, p) }, nil)

	require.NoError(t, timer.Start(50, time.Second))
	timer.Cancel()
	require.NoError(t, timer.Start(50, 2*time.Second))

	sched.Advance(10 * time.Second)
	// Only the second start's ticks are observed, starting again from zero
	assert.Equal(t, []float64{50, 100}, ticks)
}
