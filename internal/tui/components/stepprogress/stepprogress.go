// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package stepprogress

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"

	"github.com/rfpintel/agentflow/internal/pipeline"
)

// Model is the one-line overall progress of a run
type Model struct {
	names    []string
	stages   []pipeline.StageRuntimeState
	progress float64 // of the in-progress stage
	width    int
}

// New creates a progress line for the catalog
func New(catalog *pipeline.Catalog) Model {
	return Model{
		names: lo.Map(catalog.Stages(), func(d pipeline.StageDefinition, _ int) string { return d.Name }),
		width: 20,
	}
}

// SetStages sets the current stage list and active stage progress
func (m Model) SetStages(stages []pipeline.StageRuntimeState, activeProgress float64) Model {
	m.stages = stages
	m.progress = activeProgress
	return m
}

// SetWidth sets the bar width in cells
func (m Model) SetWidth(w int) Model {
	if w > 0 {
		m.width = w
	}
	return m
}

// Fraction returns overall completion in [0, 1]. The active stage counts
// in proportion to its progress.
func (m Model) Fraction() float64 {
	if len(m.stages) == 0 {
		return 0
	}
	done := float64(lo.CountBy(m.stages, func(s pipeline.StageRuntimeState) bool {
		return s.Status == pipeline.StatusComplete
	}))
	if lo.ContainsBy(m.stages, func(s pipeline.StageRuntimeState) bool { return s.Status == pipeline.StatusInProgress }) {
		done += m.progress / 100
	}
	return done / float64(len(m.stages))
}

// View renders: [▓▓▓▓▓░░░░░] 2/4 Risk Analysis
func (m Model) View() string {
	if len(m.stages) == 0 {
		return ""
	}

	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	accent := lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	success := lipgloss.NewStyle().Foreground(lipgloss.Color("35"))

	filled := int(m.Fraction() * float64(m.width))
	bar := success.Render(strings.Repeat("▓", filled)) + dim.Render(strings.Repeat("░", m.width-filled))

	total := len(m.stages)
	completed := 0
	label := ""
	step := 0
	for i, s := range m.stages {
		switch s.Status {
		case pipeline.StatusComplete:
			completed++
		case pipeline.StatusInProgress:
			step = i + 1
			if i < len(m.names) {
				label = accent.Render(m.names[i])
			}
		}
	}
	if step == 0 {
		step = completed
	}
	if completed == total {
		label = success.Render("Complete ✓")
	}

	return fmt.Sprintf("[%s] %s %s", bar, dim.Render(fmt.Sprintf("%d/%d", step, total)), label)
}
