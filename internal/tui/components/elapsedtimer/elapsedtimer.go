// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package elapsedtimer

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TickMsg is sent every second while the timer runs
type TickMsg time.Time

// Model shows how long the current run has taken. Start and stop times come
// from the pipeline so the display matches the scheduler clock.
type Model struct {
	now     func() time.Time
	start   time.Time
	elapsed time.Duration
	running bool
}

// New creates a stopped timer reading the given clock. A nil clock means time.Now.
func New(now func() time.Time) Model {
	if now == nil {
		now = time.Now
	}
	return Model{now: now}
}

// StartAt begins counting from t
func (m Model) StartAt(t time.Time) (Model, tea.Cmd) {
	wasRunning := m.running
	m.start = t
	m.elapsed = 0
	m.running = true
	if wasRunning {
		return m, nil
	}
	return m, tick()
}

// StopAt freezes the display at t
func (m Model) StopAt(t time.Time) Model {
	if m.running {
		m.elapsed = t.Sub(m.start)
		m.running = false
	}
	return m
}

// Reset clears the timer
func (m Model) Reset() Model {
	m.start = time.Time{}
	m.elapsed = 0
	m.running = false
	return m
}

// Running reports whether the timer is counting
func (m Model) Running() bool {
	return m.running
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if _, ok := msg.(TickMsg); ok && m.running {
		return m, tick()
	}
	return m, nil
}

// View renders: "⏱ 2m 34s"
func (m Model) View() string {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	accent := lipgloss.NewStyle().Foreground(lipgloss.Color("75"))

	return dim.Render("⏱") + " " + accent.Render(FormatDuration(m.Elapsed()))
}

// Elapsed returns the current elapsed duration
func (m Model) Elapsed() time.Duration {
	if m.running {
		return m.now().Sub(m.start)
	}
	return m.elapsed
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// FormatDuration renders whole seconds as "1h 2m 3s", "2m 3s" or "3s".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
