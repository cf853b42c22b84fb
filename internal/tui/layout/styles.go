// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package layout

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	// Color palette
	PrimaryColor   = lipgloss.Color("#3B82F6")
	SecondaryColor = lipgloss.Color("#93C5FD")
	AccentColor    = lipgloss.Color("#10B981")
	TextColor      = lipgloss.Color("#F3F4F6")
	MutedColor     = lipgloss.Color("#9CA3AF")
	BorderColor    = lipgloss.Color("#4B5563")
	ErrorColor     = lipgloss.Color("#EF4444")
	WarningColor   = lipgloss.Color("#F59E0B")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(TextColor).
			Bold(true)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(MutedColor)

	StatusStyle = lipgloss.NewStyle().
			Foreground(AccentColor).
			Bold(true)

	FooterStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			PaddingLeft(1).
			PaddingRight(1)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(WarningColor).
			Bold(true)
)

// Stage badges
var (
	badgeBase = lipgloss.NewStyle().
			Bold(true).
			PaddingLeft(1).
			PaddingRight(1)

	PendingBadge = badgeBase.
			Foreground(MutedColor).
			Background(lipgloss.Color("#374151")).
			SetString("Pending")

	WorkingBadge = badgeBase.
			Foreground(TextColor).
			Background(PrimaryColor).
			SetString("Working")

	CompleteBadge = badgeBase.
			Foreground(TextColor).
			Background(AccentColor).
			SetString("Complete")
)

// Divider returns a horizontal rule of the specified width
func Divider(width int) string {
	if width <= 0 {
		return ""
	}
	return lipgloss.NewStyle().
		Foreground(BorderColor).
		Render(strings.Repeat("─", width))
}
