// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfpintel/agentflow/internal/protocol"
)

func completedEvent(seq uint64) protocol.Event {
	return protocol.PipelineCompletedEvent{Metadata: protocol.Metadata{RunID: "r1", Sequence: seq}}
}

func TestEventBroadcaster_DropsOutOfOrderEvents(t *testing.T) {
	events := make(chan protocol.Event, 8)
	b := NewEventBroadcaster(events, nil)

	events <- completedEvent(1)
	events <- completedEvent(3)
	events <- completedEvent(2)
	events <- completedEvent(3)
	events <- completedEvent(0)
	events <- completedEvent(4)
	close(events)

	b.Run(context.Background())

	stats := b.Stats()
	assert.Equal(t, uint64(4), stats.Events)
	assert.Equal(t, uint64(2), stats.Stale)
	assert.Equal(t, uint64(4), stats.LastSequence)
	assert.Zero(t, stats.Clients)
}

func TestEventBroadcaster_StopsOnCancel(t *testing.T) {
	b := NewEventBroadcaster(make(chan protocol.Event), NewClientRegistry())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		require.Fail(t, "broadcaster did not stop")
	}
}
