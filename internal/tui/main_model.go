// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rfpintel/agentflow/internal/pipeline"
	"github.com/rfpintel/agentflow/internal/protocol"
	"github.com/rfpintel/agentflow/internal/tui/components/pipelinesummary"
	"github.com/rfpintel/agentflow/internal/tui/messages"
	"github.com/rfpintel/agentflow/internal/tui/screens/dashboard"
	"github.com/rfpintel/agentflow/internal/tui/screens/sessionform"
)

// ScreenType represents the current active screen
type ScreenType int

const (
	SessionFormScreen ScreenType = iota
	DashboardScreen
)

// MainModel switches between the session form and the dashboard
type MainModel struct {
	currentScreen ScreenType

	catalog     *pipeline.Catalog
	sessionForm sessionform.Model
	dashboard   dashboard.Model

	width, height int
}

// NewMainModel starts on the dashboard when a session is given, on the form otherwise
func NewMainModel(catalog *pipeline.Catalog, dash dashboard.Model, session protocol.Session) MainModel {
	m := MainModel{
		currentScreen: SessionFormScreen,
		catalog:       catalog,
		sessionForm:   sessionform.NewModel(catalog, protocol.Session{}),
		dashboard:     dash,
	}
	if session.ID != "" {
		m.currentScreen = DashboardScreen
		m.dashboard = m.dashboard.SetSession(session)
	}
	return m
}

func (m MainModel) Init() tea.Cmd {
	if m.currentScreen == DashboardScreen {
		return func() tea.Msg { return dashboard.StartRunMsg{} }
	}
	return m.sessionForm.Init()
}

// setSize updates the size for every screen
func (m *MainModel) setSize(width, height int) {
	m.width = width
	m.height = height
	m.sessionForm.SetSize(width, height)
	m.dashboard.SetSize(width, height)
}

func (m MainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if windowSize, ok := msg.(tea.WindowSizeMsg); ok {
		m.setSize(windowSize.Width, windowSize.Height)
		return m, nil
	}

	// Navigation first; these return early to avoid screen delegation
	switch msg := msg.(type) {
	case messages.GoToDashboardMsg:
		m.currentScreen = DashboardScreen
		m.dashboard = m.dashboard.SetSession(msg.Session)
		if msg.Start {
			return m, func() tea.Msg { return dashboard.StartRunMsg{} }
		}
		return m, nil

	case messages.GoToSessionFormMsg:
		m.currentScreen = SessionFormScreen
		m.sessionForm = sessionform.NewModel(m.catalog, m.dashboard.Session())
		m.sessionForm.SetSize(m.width, m.height)
		return m, m.sessionForm.Init()

	case dashboard.TimerFiredMsg, dashboard.AnalysisResultMsg, dashboard.StartRunMsg:
		// The pipeline keeps running while the form is open
		return m.updateDashboard(msg)
	}

	if m.currentScreen == SessionFormScreen {
		model, cmd := m.sessionForm.Update(msg)
		m.sessionForm = model.(sessionform.Model)
		return m, cmd
	}
	return m.updateDashboard(msg)
}

func (m MainModel) updateDashboard(msg tea.Msg) (tea.Model, tea.Cmd) {
	model, cmd := m.dashboard.Update(msg)
	m.dashboard = model.(dashboard.Model)
	return m, cmd
}

func (m MainModel) View() string {
	switch m.currentScreen {
	case SessionFormScreen:
		return m.sessionForm.View()
	case DashboardScreen:
		return m.dashboard.View()
	default:
		return "Unknown screen"
	}
}

// Screen returns the active screen
func (m MainModel) Screen() ScreenType {
	return m.currentScreen
}

// Summary returns the summary of the last run, if any run was started
func (m MainModel) Summary() (pipelinesummary.SummaryData, bool) {
	return m.dashboard.Summary()
}
