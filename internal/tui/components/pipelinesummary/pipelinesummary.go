// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipelinesummary

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/rfpintel/agentflow/internal/pipeline"
	"github.com/rfpintel/agentflow/internal/protocol"
	"github.com/rfpintel/agentflow/internal/tui/components/elapsedtimer"
)

// Status represents how the run ended
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusCompleted
	StatusStopped
)

// StageTiming is how long one stage took. Duration is zero for stages that
// never finished.
type StageTiming struct {
	Name     string
	Duration time.Duration
	Done     bool
}

// SummaryData holds all the data for the pipeline summary
type SummaryData struct {
	Status          Status
	RunID           string
	SessionID       string
	Duration        time.Duration
	TotalStages     int
	CompletedStages int
	Stages          []StageTiming
	ReportBytes     int
	AnalysisError   string
}

// Model represents the pipeline summary component
type Model struct {
	data SummaryData
}

// New creates a new pipeline summary model
func New() Model {
	return Model{}
}

// SetData updates the summary data
func (m Model) SetData(data SummaryData) Model {
	m.data = data
	return m
}

// Data returns the summary data
func (m Model) Data() SummaryData {
	return m.data
}

// View renders the pipeline summary
func (m Model) View() string {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	label := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	value := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	success := lipgloss.NewStyle().Foreground(lipgloss.Color("35"))
	fail := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	accent := lipgloss.NewStyle().Foreground(lipgloss.Color("75"))

	var lines []string

	lines = append(lines, renderStatus(m.data.Status, success, fail, accent, label))

	if m.data.RunID != "" {
		lines = append(lines, fmt.Sprintf("%s %s", label.Render("Run:"), dim.Render(m.data.RunID)))
	}
	if m.data.SessionID != "" {
		lines = append(lines, fmt.Sprintf("%s %s", label.Render("Session:"), value.Render(m.data.SessionID)))
	}
	if m.data.Duration > 0 {
		lines = append(lines, fmt.Sprintf("%s %s", label.Render("Duration:"), value.Render(elapsedtimer.FormatDuration(m.data.Duration))))
	}

	lines = append(lines, fmt.Sprintf("%s %s", label.Render("Stages:"),
		value.Render(fmt.Sprintf("%d/%d", m.data.CompletedStages, m.data.TotalStages))))
	for _, s := range m.data.Stages {
		mark := dim.Render("○")
		took := ""
		if s.Done {
			mark = success.Render("✓")
			took = dim.Render(" " + formatSeconds(s.Duration))
		}
		lines = append(lines, fmt.Sprintf("  %s %s%s", mark, value.Render(s.Name), took))
	}

	switch {
	case m.data.AnalysisError != "":
		lines = append(lines, fail.Render("Analysis failed: "+m.data.AnalysisError))
	case m.data.ReportBytes > 0:
		lines = append(lines, fmt.Sprintf("%s %s", label.Render("Report:"), value.Render(formatBytes(m.data.ReportBytes))))
	}

	return strings.Join(lines, "\n")
}

func renderStatus(s Status, success, fail, accent, label lipgloss.Style) string {
	switch s {
	case StatusCompleted:
		return success.Render("✓") + " " + success.Bold(true).Render("Completed")
	case StatusStopped:
		return fail.Render("■") + " " + fail.Bold(true).Render("Stopped")
	case StatusRunning:
		return accent.Render("◦") + " " + accent.Bold(true).Render("Running")
	default:
		return label.Render("○") + " " + label.Bold(true).Render("Pending")
	}
}

// formatSeconds keeps tenths so sub-second stages stay distinguishable
func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatBytes(n int) string {
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}
	return fmt.Sprintf("%.1f KiB", float64(n)/1024)
}

// Collector builds SummaryData from controller events. It is a pipeline
// observer and must be fed from the scheduler's thread.
type Collector struct {
	catalog *pipeline.Catalog
	data    SummaryData
	started time.Time
	stageAt map[int]time.Time
}

// NewCollector creates a collector for runs over catalog
func NewCollector(catalog *pipeline.Catalog) *Collector {
	return &Collector{catalog: catalog}
}

// Observe records one controller event
func (c *Collector) Observe(e pipeline.Event) {
	switch e.Type {
	case pipeline.EventRunStarted:
		c.started = e.At
		c.stageAt = make(map[int]time.Time)
		c.data = SummaryData{
			Status:      StatusRunning,
			RunID:       e.RunID,
			TotalStages: c.catalog.Len(),
			Stages:      make([]StageTiming, c.catalog.Len()),
		}
		for i, d := range c.catalog.Stages() {
			c.data.Stages[i].Name = d.Name
		}
		if session, ok := e.Payload.(protocol.Session); ok {
			c.data.SessionID = session.ID
		}
	case pipeline.EventStageStarted:
		c.stageAt[e.StageIndex] = e.At
	case pipeline.EventStageCompleted:
		if c.data.Stages == nil {
			return
		}
		c.data.Stages[e.StageIndex].Duration = e.At.Sub(c.stageAt[e.StageIndex])
		c.data.Stages[e.StageIndex].Done = true
		c.data.CompletedStages++
	case pipeline.EventRunCompleted:
		c.data.Status = StatusCompleted
		c.data.Duration = e.At.Sub(c.started)
	case pipeline.EventRunStopped:
		// Leaving a completed run is not a stop
		if c.data.Status != StatusRunning {
			return
		}
		c.data.Status = StatusStopped
		c.data.Duration = e.At.Sub(c.started)
	}
}

// SetAnalysis records the outcome of the analysis request
func (c *Collector) SetAnalysis(reportBytes int, err error) {
	c.data.ReportBytes = reportBytes
	c.data.AnalysisError = ""
	if err != nil {
		c.data.AnalysisError = err.Error()
	}
}

// Data returns a copy of the collected summary
func (c *Collector) Data() SummaryData {
	data := c.data
	data.Stages = append([]StageTiming(nil), c.data.Stages...)
	return data
}
