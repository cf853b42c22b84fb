// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package dashboard

import (
	"errors"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rfpintel/agentflow/internal/analysis"
	"github.com/rfpintel/agentflow/internal/logger"
	"github.com/rfpintel/agentflow/internal/pipeline"
	"github.com/rfpintel/agentflow/internal/tui/components/elapsedtimer"
	"github.com/rfpintel/agentflow/internal/tui/messages"
)

// ErrNoSession is shown when a run is started before a session is chosen.
var ErrNoSession = errors.New("no session selected")

// Update handles messages and updates the model state
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case TimerFiredMsg:
		m.sched.Fire(msg.ID)

	case StartRunMsg:
		m.activate()

	case AnalysisResultMsg:
		m.applyResult(msg.Result)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.ctrl.Deactivate()
			m.sync()
			return m, tea.Quit

		case key.Matches(msg, m.keys.Start):
			if m.ctrl.Phase() == pipeline.PhaseIdle {
				m.activate()
			}

		case key.Matches(msg, m.keys.Stop):
			m.ctrl.Deactivate()
			m.err = nil

		case key.Matches(msg, m.keys.Restart):
			m.ctrl.Deactivate()
			m.activate()

		case key.Matches(msg, m.keys.NewSession):
			m.ctrl.Deactivate()
			m.err = nil
			cmds = append(cmds, func() tea.Msg { return messages.GoToSessionFormMsg{} })
		}

	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)

	case elapsedtimer.TickMsg:
		var cmd tea.Cmd
		m.timer, cmd = m.timer.Update(msg)
		cmds = append(cmds, cmd)

	default:
		var cmd tea.Cmd
		m.dots, cmd = m.dots.Update(msg)
		cmds = append(cmds, cmd)
	}

	cmds = append(cmds, m.sync()...)
	cmds = append(cmds, m.sched.Flush())
	return m, tea.Batch(cmds...)
}

func (m *Model) activate() {
	log := logger.GetTUILogger().With().Str("component", "dashboard").Logger()

	if m.session.ID == "" {
		m.err = ErrNoSession
		return
	}
	if err := m.ctrl.Activate(m.session); err != nil {
		log.Warn().Err(err).Msg("Activation rejected")
		m.err = err
		return
	}
	m.err = nil
	log.Info().Str("session_id", m.session.ID).Str("run_id", m.ctrl.RunID()).Msg("Pipeline started")
}

func (m *Model) applyResult(result analysis.Result) {
	// Results for a run that was stopped or replaced are stale
	if result.RunID != m.run.runID {
		return
	}
	if result.Err != nil {
		m.run.analysis = analysisFailed
		m.run.analysisErr = result.Err.Error()
	} else {
		m.run.analysis = analysisReceived
		m.run.reportBytes = len(result.Report)
	}
	m.collect.SetAnalysis(len(result.Report), result.Err)
}

// sync copies controller state into the view components.
func (m *Model) sync() []tea.Cmd {
	var cmds []tea.Cmd

	snap := m.ctrl.Snapshot()
	m.stages = m.stages.SetStages(snap.Stages, snap.Run.ActiveStageProgress)
	m.overall = m.overall.SetStages(snap.Stages, snap.Run.ActiveStageProgress)

	busy := snap.Phase == pipeline.PhaseRunning || snap.Phase == pipeline.PhaseSettling
	var cmd tea.Cmd
	m.dots, cmd = m.dots.SetActive(busy)
	cmds = append(cmds, cmd)
	m.stages = m.stages.SetDots(m.dots.View())

	switch {
	case m.run.startedAt.IsZero():
		m.timer = m.timer.Reset()
		m.timerRun = ""
	case m.timerRun != m.run.runID:
		m.timer, cmd = m.timer.StartAt(m.run.startedAt)
		m.timerRun = m.run.runID
		cmds = append(cmds, cmd)
	}
	if !m.run.finishedAt.IsZero() {
		m.timer = m.timer.StopAt(m.run.finishedAt)
	}

	return cmds
}
