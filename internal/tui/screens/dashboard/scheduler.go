// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package dashboard

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rfpintel/agentflow/internal/pipeline"
)

// TimerFiredMsg is delivered when a callback scheduled by the controller is due.
type TimerFiredMsg struct {
	ID uint64
}

type scheduled struct {
	fn  func()
	due time.Time
}

// teaScheduler runs controller timers through the bubbletea event loop.
// AfterFunc queues a tea.Tick; the resulting TimerFiredMsg runs the callback
// inside Update, so the controller only ever runs on the program goroutine.
type teaScheduler struct {
	now     func() time.Time
	nextID  uint64
	timers  map[uint64]scheduled
	pending []tea.Cmd
}

var _ pipeline.Scheduler = (*teaScheduler)(nil)

func newTeaScheduler(now func() time.Time) *teaScheduler {
	if now == nil {
		now = time.Now
	}
	return &teaScheduler{
		now:    now,
		timers: make(map[uint64]scheduled),
	}
}

func (s *teaScheduler) AfterFunc(d time.Duration, fn func()) pipeline.CancelFunc {
	s.nextID++
	id := s.nextID
	s.timers[id] = scheduled{fn: fn, due: s.now().Add(d)}
	s.pending = append(s.pending, tea.Tick(d, func(time.Time) tea.Msg {
		return TimerFiredMsg{ID: id}
	}))
	return func() { delete(s.timers, id) }
}

func (s *teaScheduler) Now() time.Time {
	return s.now()
}

// Fire runs the callback for id. Cancelled or unknown timers are ignored.
func (s *teaScheduler) Fire(id uint64) bool {
	t, ok := s.timers[id]
	if !ok {
		return false
	}
	delete(s.timers, id)
	t.fn()
	return true
}

// Flush returns the ticks queued since the last call.
func (s *teaScheduler) Flush() tea.Cmd {
	if len(s.pending) == 0 {
		return nil
	}
	cmds := s.pending
	s.pending = nil
	return tea.Batch(cmds...)
}

// Len returns the number of live timers.
func (s *teaScheduler) Len() int {
	return len(s.timers)
}

// next returns the live timer due first; ties go to the earliest scheduled.
func (s *teaScheduler) next() (uint64, time.Time, bool) {
	var (
		bestID  uint64
		bestDue time.Time
		found   bool
	)
	for id, t := range s.timers {
		if !found || t.due.Before(bestDue) || (t.due.Equal(bestDue) && id < bestID) {
			bestID, bestDue, found = id, t.due, true
		}
	}
	return bestID, bestDue, found
}
