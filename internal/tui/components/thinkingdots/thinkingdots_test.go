// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package thinkingdots

import (
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/stretchr/testify/assert"
)

func TestSetActive(t *testing.T) {
	m := New()
	assert.Empty(t, m.View())

	m, cmd := m.SetActive(true)
	assert.NotNil(t, cmd, "activation starts the animation")
	assert.Equal(t, ".  ", m.View())

	m, cmd = m.SetActive(true)
	assert.Nil(t, cmd, "already active")

	m, _ = m.SetActive(false)
	assert.Empty(t, m.View())
	assert.False(t, m.Active())
}

func TestUpdate_IgnoredWhileInactive(t *testing.T) {
	m := New()
	m, cmd := m.Update(spinner.TickMsg{})
	assert.Nil(t, cmd)
	assert.False(t, m.Active())
}

func TestDotsFrames(t *testing.T) {
	assert.Equal(t, []string{".", "..", "..."}, Dots.Frames)
	assert.Equal(t, Interval, Dots.FPS)
}
