// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package layout

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

const (
	// MinimumWidth is the minimum terminal width required
	MinimumWidth = 40
	// MinimumHeight is the minimum terminal height required (header + footer + some space)
	MinimumHeight = 10
)

// Info contains everything around the content of a screen
type Info struct {
	Title    string
	Subtitle string
	Status   string
	Keys     []key.Binding
}

// Dimensions represents the available space for content
type Dimensions struct {
	Width  int
	Height int
	Valid  bool
	Error  string
}

// ValidateSpace checks if the terminal has enough space to render properly
func ValidateSpace(width, height int) Dimensions {
	dims := Dimensions{Width: width, Height: height, Valid: true}

	switch {
	case width < MinimumWidth:
		dims.Valid = false
		dims.Error = fmt.Sprintf("Terminal too narrow (%d cols). Minimum: %d cols", width, MinimumWidth)
	case height < MinimumHeight:
		dims.Valid = false
		dims.Error = fmt.Sprintf("Terminal too short (%d lines). Minimum: %d lines", height, MinimumHeight)
	}
	return dims
}

// Render combines header, content, and footer into a complete screen.
// Returns an error view if the terminal is too small.
func Render(content string, info Info, width, height int) string {
	dims := ValidateSpace(width, height)
	if !dims.Valid {
		return renderSpaceError(dims.Error, width, height)
	}

	header := RenderHeader(info.Title, info.Subtitle, info.Status, width)
	footer := RenderFooter(info.Keys, width)

	contentHeight := height - lipgloss.Height(header) - lipgloss.Height(footer)
	if contentHeight < 1 {
		contentHeight = 1
	}

	// MaxHeight enforces the ceiling, Height sets the box size
	styledContent := lipgloss.NewStyle().
		Width(width).
		MaxHeight(contentHeight).
		Height(contentHeight).
		Align(lipgloss.Left, lipgloss.Top).
		Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, header, styledContent, footer)
}

// ContentWidth returns the usable width inside a screen, never below MinimumWidth.
func ContentWidth(width int) int {
	if width < MinimumWidth {
		return MinimumWidth
	}
	return width
}

// renderSpaceError renders an error message when terminal is too small
func renderSpaceError(message string, width, height int) string {
	errorStyle := lipgloss.NewStyle().
		Foreground(ErrorColor).
		Bold(true).
		Align(lipgloss.Center, lipgloss.Center).
		Width(width).
		Height(height)

	lines := []string{
		"⚠ Terminal Too Small ⚠",
		"",
		message,
		"",
		fmt.Sprintf("Current: %dx%d", width, height),
		fmt.Sprintf("Minimum: %dx%d", MinimumWidth, MinimumHeight),
	}
	return errorStyle.Render(strings.Join(lines, "\n"))
}
