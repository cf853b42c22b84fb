// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusAggregator_PublishesCopies(t *testing.T) {
	a := NewStatusAggregator(twoStageCatalog(t))

	var received [][]StageRuntimeState
	unsubscribe := a.Subscribe(func(states []StageRuntimeState) {
		received = append(received, states)
	})

	a.set(0, StatusInProgress, "working")
	require.Len(t, received, 1)
	assert.Equal(t, StatusInProgress, received[0][0].Status)
	assert.Equal(t, 0, a.InProgress())

	// Mutating the published slice must not leak back
	received[0][0].Message = "tampered"
	assert.Equal(t, "working", a.Stages()[0].Message)

	a.set(0, StatusComplete, "done")
	assert.Equal(t, 1, a.Completed())
	assert.Equal(t, -1, a.InProgress())

	unsubscribe()
	a.reset()
	assert.Len(t, received, 2)
	assert.Equal(t, 0, a.Completed())
	for _, s := range a.Stages() {
		assert.Equal(t, StatusPending, s.Status)
		assert.Empty(t, s.Message)
	}
}

func TestStatusAggregator_UnsubscribeDuringPublish(t *testing.T) {
	a := NewStatusAggregator(twoStageCatalog(t))

	calls := 0
	var unsubscribe func()
	unsubscribe = a.Subscribe(func([]StageRuntimeState) {
		calls++
		unsubscribe()
	})
	other := 0
	a.Subscribe(func([]StageRuntimeState) { other++ })

	a.set(0, StatusInProgress, "x")
	a.set(0, StatusInProgress, "y")

	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, other)
}

func TestStageStatus_JSON(t *testing.T) {
	data, err := json.Marshal(StageRuntimeState{ID: "a", Status: StatusInProgress, Message: "m"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"a","status":"in_progress","message":"m"}`, string(data))

	var decoded StageRuntimeState
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, StatusInProgress, decoded.Status)

	assert.Error(t, json.Unmarshal([]byte(`{"status":"exploded"}`), &decoded))
}
