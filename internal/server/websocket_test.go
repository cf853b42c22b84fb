// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfpintel/agentflow/internal/analysis"
	"github.com/rfpintel/agentflow/internal/protocol"
)

type inMessage struct {
	Type      string          `json:"type"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	Message   string          `json:"message"`
}

func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) inMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg inMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

// readUntil reads messages until one of the given event type arrives and
// returns everything read, that message included.
func readUntil(t *testing.T, conn *websocket.Conn, eventType string) []inMessage {
	t.Helper()
	var msgs []inMessage
	for {
		msg := readMessage(t, conn)
		msgs = append(msgs, msg)
		if msg.EventType == eventType {
			return msgs
		}
	}
}

func TestWebSocket_InitialSnapshot(t *testing.T) {
	env := newTestEnv(t, slowTiming, nil)
	conn := env.dial(t)

	msg := readMessage(t, conn)
	assert.Equal(t, "event", msg.Type)
	assert.Equal(t, protocol.TypeStageListChanged, msg.EventType)

	var payload struct {
		Phase  string `json:"phase"`
		Stages []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"stages"`
	}
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, "idle", payload.Phase)
	require.Len(t, payload.Stages, 2)
	assert.Equal(t, "pending", payload.Stages[1].Status)
}

func TestWebSocket_RunToCompletion(t *testing.T) {
	env := newTestEnv(t, fastTiming, nil)
	conn := env.dial(t)
	readMessage(t, conn) // initial snapshot

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "activate", "session_id": "sess-ws"}))

	msgs := readUntil(t, conn, protocol.TypePipelineCompleted)

	assert.Equal(t, protocol.TypePipelineStarted, msgs[0].EventType)
	var started protocol.PipelineStartedEvent
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &started))
	assert.Equal(t, 2, started.StageCount)
	assert.Equal(t, "sess-ws", started.SessionID)
	assert.NotEmpty(t, started.RunID)

	var lastSeq uint64
	var sawComplete bool
	for _, m := range msgs {
		var meta protocol.Metadata
		require.NoError(t, json.Unmarshal(m.Payload, &meta))
		assert.Greater(t, meta.Sequence, lastSeq, "sequence must increase")
		assert.Equal(t, started.RunID, meta.RunID)
		lastSeq = meta.Sequence

		if m.EventType == protocol.TypeStageListChanged {
			var ev struct {
				Stages []struct {
					Status string `json:"status"`
				} `json:"stages"`
			}
			require.NoError(t, json.Unmarshal(m.Payload, &ev))
			if ev.Stages[0].Status == "complete" && ev.Stages[1].Status == "complete" {
				sawComplete = true
			}
		}
	}
	assert.True(t, sawComplete, "expected a stage list with every stage complete")
}

func TestWebSocket_Deactivate(t *testing.T) {
	env := newTestEnv(t, slowTiming, nil)
	conn := env.dial(t)
	readMessage(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "activate", "session_id": "sess-ws"}))
	readUntil(t, conn, protocol.TypePipelineStarted)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "deactivate"}))
	msgs := readUntil(t, conn, protocol.TypePipelineDeactivated)

	var ev protocol.PipelineDeactivatedEvent
	require.NoError(t, json.Unmarshal(msgs[len(msgs)-1].Payload, &ev))
	assert.Equal(t, 0, ev.StageIndex)
}

func TestWebSocket_CommandErrors(t *testing.T) {
	env := newTestEnv(t, slowTiming, nil)
	conn := env.dial(t)
	readMessage(t, conn)

	tests := []struct {
		name    string
		msg     map[string]string
		message string
	}{
		{name: "activate without session", msg: map[string]string{"type": "activate"}, message: "session_id is required"},
		{name: "unknown type", msg: map[string]string{"type": "explode"}, message: "unknown message type: explode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, conn.WriteJSON(tt.msg))
			msg := readMessage(t, conn)
			assert.Equal(t, "error", msg.Type)
			assert.Equal(t, tt.message, msg.Message)
		})
	}
}

func TestWebSocket_AnalysisReport(t *testing.T) {
	env := newTestEnv(t, slowTiming, nil)
	conn := env.dial(t)
	readMessage(t, conn)

	env.host.PublishReport(analysis.Result{
		RunID:     "run-9",
		SessionID: "sess-9",
		Report:    json.RawMessage(`{"verdict":"go"}`),
	})

	msgs := readUntil(t, conn, protocol.TypeAnalysisReport)
	var ev protocol.AnalysisReportEvent
	require.NoError(t, json.Unmarshal(msgs[len(msgs)-1].Payload, &ev))
	assert.Equal(t, "run-9", ev.RunID)
	assert.Equal(t, "sess-9", ev.SessionID)
	assert.JSONEq(t, `{"verdict":"go"}`, string(ev.Report))
	assert.Empty(t, ev.Error)
}

func TestClientFilters(t *testing.T) {
	event := protocol.PipelineCompletedEvent{Metadata: protocol.Metadata{RunID: "r1", SessionID: "s1"}}

	tests := []struct {
		name    string
		filters []SubscriptionFilter
		want    bool
	}{
		{name: "no filters", want: true},
		{name: "matching run", filters: []SubscriptionFilter{{RunID: "r1"}}, want: true},
		{name: "matching session", filters: []SubscriptionFilter{{SessionID: "s1"}}, want: true},
		{name: "other run", filters: []SubscriptionFilter{{RunID: "r2"}}, want: false},
		{name: "run matches session does not", filters: []SubscriptionFilter{{RunID: "r1", SessionID: "s2"}}, want: false},
		{name: "any of several", filters: []SubscriptionFilter{{RunID: "r2"}, {SessionID: "s1"}}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &wsClient{filters: tt.filters}
			assert.Equal(t, tt.want, c.matchesAny(event))
		})
	}
}

func TestRemoveFilter(t *testing.T) {
	filters := []SubscriptionFilter{{RunID: "a"}, {SessionID: "b"}, {RunID: "a"}}
	assert.Equal(t, []SubscriptionFilter{{SessionID: "b"}}, removeFilter(filters, SubscriptionFilter{RunID: "a"}))
}
