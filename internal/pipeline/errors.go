// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import "errors"

var (
	// ErrInvalidCatalog is returned when a catalog is empty or a stage has no activities.
	// A controller is never built on top of an invalid catalog.
	ErrInvalidCatalog = errors.New("invalid stage catalog")

	// ErrAlreadyRunning is returned by Activate when the controller is not idle,
	// and by StageTimer.Start when the timer is already ticking.
	ErrAlreadyRunning = errors.New("already running")

	// ErrInvalidTiming is returned for non-positive step sizes or intervals.
	ErrInvalidTiming = errors.New("invalid timing")

	// ErrNoScheduler is returned by NewController when no scheduler is given.
	ErrNoScheduler = errors.New("scheduler is required")
)
