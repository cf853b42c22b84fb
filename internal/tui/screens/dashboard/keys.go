// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package dashboard

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Start      key.Binding
	Stop       key.Binding
	Restart    key.Binding
	NewSession key.Binding
	Quit       key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Start: key.NewBinding(
			key.WithKeys("enter", "s"),
			key.WithHelp("enter", "start"),
		),
		Stop: key.NewBinding(
			key.WithKeys("x", "esc"),
			key.WithHelp("x", "stop"),
		),
		Restart: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "restart"),
		),
		NewSession: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "new session"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// forPhase returns the bindings that do something in the given phase.
func (k keyMap) forPhase(idle bool) []key.Binding {
	if idle {
		return []key.Binding{k.Start, k.NewSession, k.Quit}
	}
	return []key.Binding{k.Stop, k.Restart, k.NewSession, k.Quit}
}
