// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package layout

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
)

// RenderHeader creates a header with title, an optional subtitle and status line
func RenderHeader(title, subtitle, status string, width int) string {
	var header strings.Builder

	header.WriteString(TitleStyle.Render(title))
	if subtitle != "" {
		header.WriteString("\n")
		header.WriteString(SubtitleStyle.Render(subtitle))
	}
	if status != "" {
		header.WriteString("\n")
		header.WriteString(status)
	}

	header.WriteString("\n")
	header.WriteString(Divider(width))

	return header.String()
}

// RenderFooter renders the short help for the given bindings
func RenderFooter(bindings []key.Binding, width int) string {
	if len(bindings) == 0 {
		return ""
	}

	h := help.New()
	h.Width = width

	return Divider(width) + "\n" + FooterStyle.Width(width).Render(h.ShortHelpView(bindings))
}
