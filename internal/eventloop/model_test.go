// Copyright (C) 2026 openagent-terminal contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package eventloop

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openagent-terminal/client/internal/ipc/client"
	"github.com/openagent-terminal/client/internal/ipc/connection"
	"github.com/openagent-terminal/client/internal/ipc/message"
	"github.com/openagent-terminal/client/internal/session"
)

func newTestModel(t *testing.T) Model {
	t.Helper()
	c := client.New(client.Config{ClientVersion: "test"})
	return New(c, nil, nil)
}

func newTestModelWithSessions(t *testing.T) (Model, *session.RemoteSync) {
	t.Helper()
	c := client.New(client.Config{ClientVersion: "test"})
	store, err := session.NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	sync := session.NewRemoteSync(store, c, nil)
	return New(c, nil, sync), sync
}

func TestModel_StreamComplete_PersistsAssistantMessage(t *testing.T) {
	m, sync := newTestModelWithSessions(t)
	meta, err := sync.Create(context.Background(), "")
	require.NoError(t, err)
	m.sessionID = meta.SessionID
	m.turn = InFlight
	m.currentQueryID = "q1"
	m.assistantBuf = "hello there"

	n := notification(t, message.MethodStreamComplete, message.StreamCompleteParams{QueryID: "q1", Status: "success"})
	next, cmd := m.handleNotification(notificationMsg{n: n})
	got := next.(Model)

	assert.Equal(t, Idle, got.turn)
	assert.Equal(t, "", got.assistantBuf)
	require.NotNil(t, cmd)

	batch, ok := cmd().(tea.BatchMsg)
	require.True(t, ok)

	// waitForNotification blocks forever on an idle test client, so run
	// every sub-command concurrently and only wait for the one that
	// answers with a sessionSyncMsg.
	results := make(chan tea.Msg, len(batch))
	for _, sub := range batch {
		if sub == nil {
			continue
		}
		go func(c tea.Cmd) { results <- c() }(sub)
	}
	var sawSync bool
	for !sawSync {
		select {
		case got := <-results:
			if sm, ok := got.(sessionSyncMsg); ok {
				sawSync = true
				require.NoError(t, sm.err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for sessionSyncMsg")
		}
	}

	sess, err := sync.Store().Load(meta.SessionID)
	require.NoError(t, err)
	require.Len(t, sess.Messages, 1)
	assert.Equal(t, session.RoleAssistant, sess.Messages[0].Role)
	assert.Equal(t, "hello there", sess.Messages[0].Content)
}

func TestModel_SessionCommand_ListReportsStoreSessions(t *testing.T) {
	m, sync := newTestModelWithSessions(t)
	_, err := sync.Create(context.Background(), "first session")
	require.NoError(t, err)

	m.input.SetValue("/session list")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	got := next.(Model)
	require.NotNil(t, cmd)
	assert.Equal(t, "", got.input.Value())

	msg := cmd()
	result, ok := msg.(sessionCommandResultMsg)
	require.True(t, ok)
	require.NoError(t, result.err)
	assert.Contains(t, result.lines[0], "sessions")
}

func TestModel_SessionCommand_WithoutStoreReportsUnavailable(t *testing.T) {
	m := newTestModel(t)
	m.input.SetValue("/session list")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	msg := cmd()
	result, ok := msg.(sessionCommandResultMsg)
	require.True(t, ok)
	assert.Error(t, result.err)
}

func notification(t *testing.T, method string, params any) *message.Notification {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	return message.NewNotification(method, raw)
}

func TestTurnPhase_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to TurnPhase
		want     bool
	}{
		{Idle, InFlight, true},
		{Idle, Prompting, false},
		{Idle, Ended, false},
		{InFlight, Prompting, true},
		{InFlight, Ended, true},
		{InFlight, InFlight, true},
		{Prompting, InFlight, true},
		{Prompting, Ended, true},
		{Prompting, Idle, false},
		{Ended, Idle, true},
		{Ended, InFlight, false},
	}
	for _, tt := range tests {
		got := tt.from.canTransitionTo(tt.to)
		assert.Equalf(t, tt.want, got, "%s -> %s", tt.from, tt.to)
	}
}

func TestApprovalPrompt_HandleKey(t *testing.T) {
	p := newApprovalPrompt(message.ToolRequestApprovalParams{ExecutionID: "x", RiskLevel: message.RiskHigh})

	tests := []struct {
		key  string
		want approvalDecision
	}{
		{"y", decisionApprove},
		{"Y", decisionApprove},
		{"n", decisionDeny},
		{"enter", decisionDeny},
		{"esc", decisionDeny},
		{"ctrl+c", decisionCancelTurn},
		{"x", decisionPending},
	}
	for _, tt := range tests {
		got := p.handleKey(keyMsgFor(tt.key))
		assert.Equalf(t, tt.want, got, "key %q", tt.key)
	}
}

func keyMsgFor(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func TestCancelBroadcaster_RaiseNotifiesSubscribers(t *testing.T) {
	b := NewCancelBroadcaster()
	ch, unsubscribe := b.Subscribe()
	defer unsubscribe()

	token := b.Raise()
	select {
	case got := <-ch:
		assert.Equal(t, token, got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for raised token")
	}
}

func TestModel_Submit_EntersInFlight(t *testing.T) {
	m := newTestModel(t)
	m.connState = connection.State{Phase: connection.Connected}
	m.input.SetValue("hello")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	got := next.(Model)

	assert.Equal(t, InFlight, got.turn)
	assert.Equal(t, "", got.input.Value())
	require.Len(t, got.transcript, 1)
	assert.Equal(t, "> hello", got.transcript[0])
	require.NotNil(t, cmd)

	msg := cmd()
	qr, ok := msg.(queryResultMsg)
	require.True(t, ok)
	assert.ErrorIs(t, qr.err, client.ErrNotConnected)
}

func TestModel_Submit_WhileDisconnectedSetsError(t *testing.T) {
	m := newTestModel(t)
	m.input.SetValue("hello")

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	got := next.(Model)

	assert.Equal(t, Idle, got.turn)
	assert.ErrorIs(t, got.lastErr, client.ErrNotConnected)
}

func TestModel_StreamToken_AppendsAndSeedsQueryID(t *testing.T) {
	m := newTestModel(t)
	m.turn = InFlight

	n := notification(t, message.MethodStreamToken, message.StreamTokenParams{QueryID: "q1", Token: "hi"})
	next, _ := m.handleNotification(notificationMsg{n: n})
	got := next.(Model)

	assert.Equal(t, "q1", got.currentQueryID)
	require.Len(t, got.transcript, 1)
	assert.Equal(t, "hi", got.transcript[0])

	n2 := notification(t, message.MethodStreamToken, message.StreamTokenParams{QueryID: "q1", Token: " there"})
	next2, _ := got.handleNotification(notificationMsg{n: n2})
	got2 := next2.(Model)
	require.Len(t, got2.transcript, 1)
	assert.Equal(t, "hi there", got2.transcript[0])
}

func TestModel_StreamComplete_EndsTurn(t *testing.T) {
	m := newTestModel(t)
	m.turn = InFlight
	m.currentQueryID = "q1"

	n := notification(t, message.MethodStreamComplete, message.StreamCompleteParams{QueryID: "q1", Status: "success"})
	next, _ := m.handleNotification(notificationMsg{n: n})
	got := next.(Model)

	assert.Equal(t, Idle, got.turn)
	assert.Equal(t, "", got.currentQueryID)
}

func TestModel_ToolRequestApproval_EntersPrompting(t *testing.T) {
	m := newTestModel(t)
	m.turn = InFlight

	n := notification(t, message.MethodToolRequestApproval, message.ToolRequestApprovalParams{
		ExecutionID: "exec1",
		ToolName:    "shell.run",
		RiskLevel:   message.RiskHigh,
	})
	next, _ := m.handleNotification(notificationMsg{n: n})
	got := next.(Model)

	assert.Equal(t, Prompting, got.turn)
	require.NotNil(t, got.pendingPrompt)
	assert.Equal(t, "exec1", got.pendingPrompt.params.ExecutionID)
}

func TestModel_PromptDecision_CancelTurnDeniesAndCancels(t *testing.T) {
	m := newTestModel(t)
	m.turn = Prompting
	m.currentQueryID = "q1"
	prompt := newApprovalPrompt(message.ToolRequestApprovalParams{ExecutionID: "exec1"})
	m.pendingPrompt = &prompt

	next, cmd := m.handleKey(tea.KeyMsg{Type: tea.KeyCtrlC})
	got := next.(Model)

	assert.Equal(t, InFlight, got.turn)
	assert.True(t, got.cancelling)
	assert.Nil(t, got.pendingPrompt)
	require.NotNil(t, cmd)
}

func TestModel_ConnStateReconnecting_AutoDeniesPendingPrompt(t *testing.T) {
	m := newTestModel(t)
	m.turn = Prompting
	prompt := newApprovalPrompt(message.ToolRequestApprovalParams{ExecutionID: "exec1"})
	m.pendingPrompt = &prompt

	stateCh := make(chan connection.State, 1)
	m.connStateCh = stateCh

	next, _ := m.handleConnState(connStateMsg{state: connection.State{Phase: connection.Reconnecting, Attempt: 1}})
	got := next.(Model)

	assert.Equal(t, InFlight, got.turn)
	assert.Nil(t, got.pendingPrompt)
	require.Error(t, got.lastErr)
}
