// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package dashboard

import (
	"fmt"
	"strings"

	"github.com/rfpintel/agentflow/internal/pipeline"
	"github.com/rfpintel/agentflow/internal/tui/components/elapsedtimer"
	"github.com/rfpintel/agentflow/internal/tui/layout"
)

const title = "RFP Analysis Pipeline"

// View renders the dashboard screen
func (m Model) View() string {
	phase := m.ctrl.Phase()

	info := layout.Info{
		Title:    title,
		Subtitle: m.subtitle(phase),
		Status:   m.statusLine(),
		Keys:     m.keys.forPhase(phase == pipeline.PhaseIdle),
	}

	content := m.stages.View()
	if m.err != nil {
		content = layout.ErrorStyle.Render("Error: "+m.err.Error()) + "\n" + content
	}

	return layout.Render(content, info, m.width, m.height)
}

func (m Model) subtitle(phase pipeline.Phase) string {
	switch phase {
	case pipeline.PhaseComplete:
		return "Analysis complete. Results are ready for review."
	case pipeline.PhaseRunning, pipeline.PhaseSettling:
		return "Our AI agents are analyzing your RFP document" + m.dots.View()
	default:
		if m.session.ID == "" {
			return "No session selected"
		}
		return fmt.Sprintf("Session %s is ready. Press enter to start.", m.session.ID)
	}
}

func (m Model) statusLine() string {
	parts := []string{m.overall.View(), m.timer.View()}
	if a := m.analysisStatus(); a != "" {
		parts = append(parts, a)
	}
	return strings.Join(parts, " │ ")
}

// analysisStatus describes the remote analysis request of the current run
func (m Model) analysisStatus() string {
	if m.cfg.Analysis == nil {
		return layout.SubtitleStyle.Render("analysis disabled")
	}

	switch m.run.analysis {
	case analysisScheduled:
		wait := m.cfg.AnalysisDelay - m.sched.Now().Sub(m.run.requestedAt)
		if wait > 0 {
			return layout.SubtitleStyle.Render("report requested in " + elapsedtimer.FormatDuration(wait))
		}
		return layout.SubtitleStyle.Render("waiting for report")
	case analysisReceived:
		return layout.StatusStyle.Render(fmt.Sprintf("report received (%d bytes)", m.run.reportBytes))
	case analysisFailed:
		return layout.ErrorStyle.Render("analysis failed: " + m.run.analysisErr)
	case analysisCancelled:
		return layout.WarningStyle.Render("analysis cancelled")
	default:
		return ""
	}
}
