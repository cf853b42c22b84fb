// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package thinkingdots renders the "..." that cycles next to a busy label.
package thinkingdots

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Interval is how long each frame stays on screen.
const Interval = 400 * time.Millisecond

// Dots cycles one to three dots.
var Dots = spinner.Spinner{
	Frames: []string{".", "..", "..."},
	FPS:    Interval,
}

// Model is a spinner that only animates while active
type Model struct {
	spinner spinner.Model
	active  bool
}

// New creates an inactive model
func New() Model {
	return Model{
		spinner: spinner.New(
			spinner.WithSpinner(Dots),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#3B82F6"))),
		),
	}
}

// SetActive starts or stops the animation. Starting returns the first tick.
func (m Model) SetActive(active bool) (Model, tea.Cmd) {
	if active == m.active {
		return m, nil
	}
	m.active = active
	if !active {
		return m, nil
	}
	// A fresh spinner restarts at one dot and drops ticks from the previous activation
	m.spinner = spinner.New(spinner.WithSpinner(Dots), spinner.WithStyle(m.spinner.Style))
	return m, m.spinner.Tick
}

// Active reports whether the dots are animating
func (m Model) Active() bool {
	return m.active
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.active {
		return m, nil
	}
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

// View renders nothing while inactive. The output is padded to three cells so
// text after it does not jump.
func (m Model) View() string {
	if !m.active {
		return ""
	}
	return lipgloss.NewStyle().Width(3).Render(m.spinner.View())
}
