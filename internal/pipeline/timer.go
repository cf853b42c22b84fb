// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"fmt"
	"time"
)

// StageTimer advances one stage's progress from 0 to 100 in fixed steps.
// Only one tick is ever scheduled at a time, so ticks cannot reorder.
type StageTimer struct {
	sched      Scheduler
	onTick     func(progress float64)
	onComplete func()

	step     float64
	interval time.Duration
	progress float64
	running  bool
	gen      uint64
	cancel   CancelFunc
}

// NewStageTimer creates an idle timer. Callbacks run on the scheduler's thread.
func NewStageTimer(sched Scheduler, onTick func(progress float64), onComplete func()) *StageTimer {
	if onTick == nil {
		onTick = func(float64) {}
	}
	if onComplete == nil {
		onComplete = func() {}
	}
	return &StageTimer{sched: sched, onTick: onTick, onComplete: onComplete}
}

// Start begins ticking from 0.
func (t *StageTimer) Start(step float64, interval time.Duration) error {
	if t.running {
		return ErrAlreadyRunning
	}
	if step <= 0 || interval <= 0 {
		return fmt.Errorf("%w: step %v, interval %s", ErrInvalidTiming, step, interval)
	}

	t.step = step
	t.interval = interval
	t.progress = 0
	t.running = true
	t.gen++
	t.arm(t.gen)
	return nil
}

// Cancel stops the timer. Callbacks already dispatched by the scheduler are dropped.
func (t *StageTimer) Cancel() {
	if !t.running {
		return
	}
	t.running = false
	t.gen++
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

// Running reports whether the timer is ticking.
func (t *StageTimer) Running() bool {
	return t.running
}

// Progress returns the last progress value reported to onTick.
func (t *StageTimer) Progress() float64 {
	return t.progress
}

func (t *StageTimer) arm(gen uint64) {
	t.cancel = t.sched.AfterFunc(t.interval, func() { t.fire(gen) })
}

func (t *StageTimer) fire(gen uint64) {
	if !t.running || gen != t.gen {
		return
	}

	t.progress += t.step
	if t.progress > 100 {
		t.progress = 100
	}
	t.onTick(t.progress)

	// onTick may have cancelled us
	if !t.running || gen != t.gen {
		return
	}

	if t.progress >= 100 {
		t.running = false
		t.cancel = nil
		t.onComplete()
		return
	}
	t.arm(gen)
}
