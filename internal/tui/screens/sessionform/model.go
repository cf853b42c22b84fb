// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sessionform asks for the analysis session the pipeline runs for.
package sessionform

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/samber/lo"

	"github.com/rfpintel/agentflow/internal/logger"
	"github.com/rfpintel/agentflow/internal/pipeline"
	"github.com/rfpintel/agentflow/internal/protocol"
	"github.com/rfpintel/agentflow/internal/tui/layout"
	"github.com/rfpintel/agentflow/internal/tui/messages"
)

// Model is the model for the session form screen
type Model struct {
	catalog   *pipeline.Catalog
	form      *huh.Form
	sessionID string
	previous  protocol.Session // returned to on esc
	width     int
	height    int
}

// NewModel creates the form. previous may be empty.
func NewModel(catalog *pipeline.Catalog, previous protocol.Session) Model {
	m := Model{
		catalog:  catalog,
		previous: previous,
		width:    80,
		height:   24,
	}
	m.initForm()
	return m
}

// ValidateSessionID rejects empty IDs and IDs containing whitespace
func ValidateSessionID(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("session ID is required")
	}
	if strings.ContainsAny(s, " \t\n") {
		return errors.New("session ID must not contain whitespace")
	}
	return nil
}

// initForm initializes the huh form
func (m *Model) initForm() {
	names := lo.Map(m.catalog.Stages(), func(d pipeline.StageDefinition, _ int) string { return d.Name })

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("session_id").
				Title("Session ID").
				Description("Returned by the document upload").
				Placeholder("e.g. 7f3c2a").
				Value(&m.sessionID).
				Validate(ValidateSessionID),

			huh.NewNote().
				Title(fmt.Sprintf("%d agents will run", len(names))).
				Description(strings.Join(names, " → ")),
		),
	).WithTheme(huh.ThemeCharm()).WithShowHelp(false)
}

func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

// SetSize updates the model's dimensions
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.form = m.form.WithWidth(layout.ContentWidth(width) - 4)
}

// Update handles messages and updates the model state
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "esc":
			if m.previous.ID == "" {
				return m, tea.Quit
			}
			previous := m.previous
			return m, func() tea.Msg { return messages.GoToDashboardMsg{Session: previous} }
		case "ctrl+c":
			return m, tea.Quit
		}
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		sessionID := m.form.GetString("session_id")
		if sessionID == "" {
			sessionID = m.sessionID
		}
		sessionID = strings.TrimSpace(sessionID)

		log := logger.GetTUILogger().With().Str("component", "sessionform").Logger()
		log.Info().Str("session_id", sessionID).Msg("Session selected")

		session := protocol.Session{ID: sessionID}
		return m, func() tea.Msg { return messages.GoToDashboardMsg{Session: session, Start: true} }
	}

	return m, cmd
}

// View renders the session form screen
func (m Model) View() string {
	info := layout.Info{
		Title:    "RFP Analysis Pipeline",
		Subtitle: "Choose the session to analyze",
	}
	return layout.Render(m.form.View(), info, m.width, m.height)
}
