// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package logger

import (
	"github.com/rs/zerolog"
)

// Static logger getters that map directly to config.yaml log.levels
// These ensure consistent logger names across the codebase

// GetPipelineLogger returns a logger for the progress simulator
func GetPipelineLogger() zerolog.Logger {
	return GetLogger("pipeline")
}

// GetTUILogger returns a logger for TUI components
func GetTUILogger() zerolog.Logger {
	return GetLogger("tui")
}

// GetAPILogger returns a logger for API operations
func GetAPILogger() zerolog.Logger {
	return GetLogger("api")
}

// GetAnalysisLogger returns a logger for the remote analysis client
func GetAnalysisLogger() zerolog.Logger {
	return GetLogger("analysis")
}

// GetDatabaseLogger returns a logger for database operations
func GetDatabaseLogger() zerolog.Logger {
	return GetLogger("database")
}

// GetTelemetryLogger returns a logger for tracing setup and export
func GetTelemetryLogger() zerolog.Logger {
	return GetLogger("telemetry")
}
