// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"context"
	"errors"
	"time"
)

// CancelFunc stops a scheduled callback. It is idempotent. A callback that was
// already handed to the loop may still run; callers guard against that themselves.
type CancelFunc func()

// Scheduler is the host's single-threaded cooperative scheduler. Every callback
// passed to AfterFunc runs on the same logical thread as the code that scheduled it.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) CancelFunc
	Now() time.Time
}

// ErrLoopStopped is returned when work is posted to an event loop that is no longer running.
var ErrLoopStopped = errors.New("event loop stopped")

// EventLoop is a run-to-completion loop owned by the goroutine calling Run.
// Timers fire on their own goroutines but only enqueue; the callback body always
// executes inside Run.
type EventLoop struct {
	queue chan func()
	done  chan struct{}
}

// NewEventLoop creates a loop with the given queue capacity.
func NewEventLoop(buffer int) *EventLoop {
	if buffer <= 0 {
		buffer = 64
	}
	return &EventLoop{
		queue: make(chan func(), buffer),
		done:  make(chan struct{}),
	}
}

// Run executes posted callbacks until ctx is cancelled.
func (l *EventLoop) Run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case fn := <-l.queue:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// Post enqueues fn. It reports false once the loop has stopped.
func (l *EventLoop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}

	select {
	case l.queue <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Do runs fn on the loop and waits for it to finish.
func (l *EventLoop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrLoopStopped
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AfterFunc posts fn to the loop once d has elapsed.
func (l *EventLoop) AfterFunc(d time.Duration, fn func()) CancelFunc {
	t := time.AfterFunc(d, func() { l.Post(fn) })
	return func() { t.Stop() }
}

// Now returns the wall clock.
func (l *EventLoop) Now() time.Time {
	return time.Now()
}
