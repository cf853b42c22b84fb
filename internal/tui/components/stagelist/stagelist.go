// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stagelist renders one row per pipeline stage: badge, name,
// description, the current activity and a progress bar for the active stage.
package stagelist

import (
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/rfpintel/agentflow/internal/pipeline"
	"github.com/rfpintel/agentflow/internal/tui/layout"
)

var (
	nameStyle     = lipgloss.NewStyle().Bold(true).Foreground(layout.TextColor)
	descStyle     = lipgloss.NewStyle().Foreground(layout.MutedColor)
	activityStyle = lipgloss.NewStyle().Foreground(layout.SecondaryColor)
	doneStyle     = lipgloss.NewStyle().Foreground(layout.AccentColor)

	rowStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(layout.BorderColor).
			PaddingLeft(1).
			PaddingRight(1)
	activeRowStyle   = rowStyle.BorderForeground(layout.PrimaryColor)
	completeRowStyle = rowStyle.BorderForeground(layout.AccentColor)
)

// Model renders the stage rows
type Model struct {
	defs     []pipeline.StageDefinition
	stages   []pipeline.StageRuntimeState
	progress float64
	bar      progress.Model
	dots     string
	width    int
}

// New creates a list for the catalog with every stage pending
func New(catalog *pipeline.Catalog) Model {
	defs := catalog.Stages()
	stages := make([]pipeline.StageRuntimeState, len(defs))
	for i, d := range defs {
		stages[i] = pipeline.StageRuntimeState{ID: d.ID, Status: pipeline.StatusPending}
	}
	return Model{
		defs:   defs,
		stages: stages,
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		width:  60,
	}
}

// SetStages replaces the stage list. activeProgress is the progress of the
// in-progress stage.
func (m Model) SetStages(stages []pipeline.StageRuntimeState, activeProgress float64) Model {
	m.stages = stages
	m.progress = activeProgress
	return m
}

// SetDots sets the animation shown after the active stage's activity
func (m Model) SetDots(dots string) Model {
	m.dots = dots
	return m
}

// SetWidth sets the row width
func (m Model) SetWidth(w int) Model {
	if w > 0 {
		m.width = w
	}
	return m
}

// Stages returns the rendered stage list
func (m Model) Stages() []pipeline.StageRuntimeState {
	return m.stages
}

// Badge returns the badge for a status
func Badge(status pipeline.StageStatus) string {
	switch status {
	case pipeline.StatusInProgress:
		return layout.WorkingBadge.String()
	case pipeline.StatusComplete:
		return layout.CompleteBadge.String()
	default:
		return layout.PendingBadge.String()
	}
}

func (m Model) View() string {
	rows := make([]string, 0, len(m.stages))
	for i, s := range m.stages {
		if i >= len(m.defs) {
			break
		}
		rows = append(rows, m.renderRow(m.defs[i], s))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m Model) renderRow(def pipeline.StageDefinition, state pipeline.StageRuntimeState) string {
	// Border and padding take four cells
	inner := m.width - 4
	if inner < 20 {
		inner = 20
	}

	badge := Badge(state.Status)
	name := nameStyle.Render(def.Name)
	gap := inner - lipgloss.Width(name) - lipgloss.Width(badge)
	if gap < 1 {
		gap = 1
	}
	lines := []string{name + strings.Repeat(" ", gap) + badge}
	if def.Description != "" {
		lines = append(lines, descStyle.Render(def.Description))
	}

	style := rowStyle
	switch state.Status {
	case pipeline.StatusInProgress:
		style = activeRowStyle
		lines = append(lines, activityStyle.Render("✦ "+state.Message)+m.dots)
		m.bar.Width = inner
		lines = append(lines, m.bar.ViewAs(m.progress/100))
	case pipeline.StatusComplete:
		style = completeRowStyle
		lines = append(lines, doneStyle.Render("✓ "+state.Message))
	}

	return style.Width(inner + 2).Render(strings.Join(lines, "\n"))
}
