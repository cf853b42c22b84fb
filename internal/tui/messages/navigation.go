// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package messages

import "github.com/rfpintel/agentflow/internal/protocol"

// Navigation messages for screen transitions within the TUI

// GoToDashboardMsg opens the dashboard for a session. Start activates a run
// right away.
type GoToDashboardMsg struct {
	Session protocol.Session
	Start   bool
}

// GoToSessionFormMsg opens the session form.
type GoToSessionFormMsg struct{}
