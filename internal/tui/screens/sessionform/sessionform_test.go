// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package sessionform

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfpintel/agentflow/internal/pipeline"
	"github.com/rfpintel/agentflow/internal/protocol"
	"github.com/rfpintel/agentflow/internal/tui/messages"
)

func TestValidateSessionID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{id: "7f3c2a"},
		{id: "session-01_b"},
		{id: "", wantErr: true},
		{id: "   ", wantErr: true},
		{id: "two words", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := ValidateSessionID(tt.id)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEscapeWithoutPreviousSessionQuits(t *testing.T) {
	model := NewModel(pipeline.DefaultCatalog(), protocol.Session{})

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEscape})

	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestEscapeReturnsToPreviousSession(t *testing.T) {
	model := NewModel(pipeline.DefaultCatalog(), protocol.Session{ID: "prev"})

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEscape})

	require.NotNil(t, cmd)
	msg, ok := cmd().(messages.GoToDashboardMsg)
	require.True(t, ok, "Expected GoToDashboardMsg")
	assert.Equal(t, "prev", msg.Session.ID)
	assert.False(t, msg.Start, "going back must not start a run")
}

func TestFormSubmissionStartsRun(t *testing.T) {
	model := NewModel(pipeline.DefaultCatalog(), protocol.Session{})
	model.sessionID = " sess-42 "

	// Simulate form completion
	model.form.State = huh.StateCompleted

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter})

	require.NotNil(t, cmd)
	msg, ok := cmd().(messages.GoToDashboardMsg)
	require.True(t, ok, "Expected GoToDashboardMsg after form submission")
	assert.Equal(t, protocol.Session{ID: "sess-42"}, msg.Session)
	assert.True(t, msg.Start)
}

func TestViewRendersHeader(t *testing.T) {
	model := NewModel(pipeline.DefaultCatalog(), protocol.Session{})
	model.SetSize(120, 40)

	// The form itself may not render fields before Init; the header always shows
	view := model.View()
	assert.Contains(t, view, "RFP Analysis Pipeline")
	assert.Contains(t, view, "Choose the session to analyze")
}
