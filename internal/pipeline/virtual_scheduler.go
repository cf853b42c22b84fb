// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"container/heap"
	"time"
)

// VirtualScheduler is a deterministic Scheduler driven by an explicit clock.
// Nothing fires until Advance or Drain is called, and callbacks due at the same
// instant fire in the order they were scheduled.
type VirtualScheduler struct {
	now     time.Time
	seq     uint64
	pending timerQueue
}

type virtualTimer struct {
	at        time.Time
	seq       uint64
	fn        func()
	cancelled bool
}

// NewVirtualScheduler creates a scheduler whose clock starts at start.
func NewVirtualScheduler(start time.Time) *VirtualScheduler {
	return &VirtualScheduler{now: start}
}

// AfterFunc schedules fn to run d after the current virtual time.
func (s *VirtualScheduler) AfterFunc(d time.Duration, fn func()) CancelFunc {
	if d < 0 {
		d = 0
	}
	t := &virtualTimer{at: s.now.Add(d), seq: s.seq, fn: fn}
	s.seq++
	heap.Push(&s.pending, t)
	return func() { t.cancelled = true }
}

// Now returns the virtual time.
func (s *VirtualScheduler) Now() time.Time {
	return s.now
}

// Pending reports how many live callbacks are waiting.
func (s *VirtualScheduler) Pending() int {
	n := 0
	for _, t := range s.pending {
		if !t.cancelled {
			n++
		}
	}
	return n
}

// Advance moves the clock forward by d, firing every callback that falls due,
// including ones scheduled by callbacks fired during this call.
func (s *VirtualScheduler) Advance(d time.Duration) {
	target := s.now.Add(d)
	for s.pending.Len() > 0 && !s.pending[0].at.After(target) {
		s.fireNext()
	}
	s.now = target
}

// Drain fires callbacks until none are left or limit is reached on the clock.
// It returns the virtual time that elapsed.
func (s *VirtualScheduler) Drain(limit time.Duration) time.Duration {
	start := s.now
	deadline := start.Add(limit)
	for s.pending.Len() > 0 && !s.pending[0].at.After(deadline) {
		s.fireNext()
	}
	return s.now.Sub(start)
}

func (s *VirtualScheduler) fireNext() {
	t := heap.Pop(&s.pending).(*virtualTimer)
	if t.cancelled {
		return
	}
	if t.at.After(s.now) {
		s.now = t.at
	}
	t.fn()
}

type timerQueue []*virtualTimer

func (q timerQueue) Len() int { return len(q) }

func (q timerQueue) Less(i, j int) bool {
	if q[i].at.Equal(q[j].at) {
		return q[i].seq < q[j].seq
	}
	return q[i].at.Before(q[j].at)
}

func (q timerQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *timerQueue) Push(x any) { *q = append(*q, x.(*virtualTimer)) }

func (q *timerQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return t
}
