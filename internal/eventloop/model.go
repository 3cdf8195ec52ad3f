// Copyright (C) 2026 openagent-terminal contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package eventloop implements the foreground cooperative loop: a
// bubbletea Model multiplexing keyboard input, streaming notifications,
// connection-state transitions, and cancellation into one turn state
// machine.
//
// # Thread Safety
//
// Model is driven exclusively by bubbletea's single goroutine; it is
// not safe to touch from any other goroutine. The *client.Client it
// wraps is safe for concurrent use by the tea.Cmd closures this package
// spawns to perform blocking sends off the Update goroutine.
package eventloop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/openagent-terminal/client/internal/ipc/client"
	"github.com/openagent-terminal/client/internal/ipc/connection"
	"github.com/openagent-terminal/client/internal/ipc/message"
	"github.com/openagent-terminal/client/internal/session"
	"github.com/openagent-terminal/client/pkg/logging"
)

const maxTranscriptLines = 500

// Model is the foreground event loop's bubbletea model (C5).
type Model struct {
	client *client.Client
	logger *logging.Logger

	input textinput.Model

	turn           TurnPhase
	currentQueryID string
	cancelling     bool
	pendingPrompt  *approvalPrompt

	cancelBcast *CancelBroadcaster
	connState   connection.State
	connStateCh <-chan connection.State
	unsubscribe func()

	transcript []string
	lastErr    error

	sessions     *session.RemoteSync
	sessionID    string
	assistantBuf string

	width, height int
	quitting      bool
}

// New builds a Model around an already-constructed, not-yet-connected
// or already-connected Client. Connect() is the caller's responsibility
// (normally cmd/openagent-terminal, before starting the tea.Program).
// sessions may be nil, in which case turns are not persisted and
// "/session ..." commands report the store as unavailable.
func New(c *client.Client, logger *logging.Logger, sessions *session.RemoteSync) Model {
	if logger == nil {
		logger = logging.Default()
	}
	ti := textinput.New()
	ti.Placeholder = "ask the agent..."
	ti.Focus()
	ti.CharLimit = 4096

	ch, unsubscribe := c.Subscribe()
	return Model{
		client:      c,
		logger:      logger.With("component", "eventloop"),
		input:       ti,
		turn:        Idle,
		cancelBcast: NewCancelBroadcaster(),
		connState:   c.ConnectionState(),
		connStateCh: ch,
		unsubscribe: unsubscribe,
		sessions:    sessions,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textinput.Blink,
		waitForNotification(m.client),
		waitForConnState(m.connStateCh),
	}
	if m.sessions != nil {
		cmds = append(cmds, createSessionCmd(m.sessions))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = msg.Width - 2
		// Fire-and-forget, no debounce: the contract explicitly accepts
		// redundant sends on rapid resize.
		size := message.TerminalSize{Cols: msg.Width, Rows: msg.Height}
		if err := m.client.SendNotification(message.MethodContextUpdate, marshalOrNil(message.ContextUpdateParams{TerminalSize: &size})); err != nil {
			m.logger.Warn("context.update send failed", "err", err)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case notificationMsg:
		return m.handleNotification(msg)

	case connStateMsg:
		return m.handleConnState(msg)

	case queryResultMsg:
		return m.handleQueryResult(msg)

	case cancelAckMsg:
		if msg.err != nil {
			m.logger.Warn("agent.cancel failed", "err", msg.err)
		}
		return m, nil

	case approvalSentMsg:
		if msg.err != nil {
			m.logger.Warn("tool.approve failed", "err", msg.err, "execution_id", msg.executionID)
			m.lastErr = msg.err
		}
		return m, nil

	case sessionStartedMsg:
		if msg.err != nil {
			m.logger.Warn("session create failed", "err", msg.err)
			return m, nil
		}
		m.sessionID = msg.meta.SessionID
		m.logger.Info("session started", "session_id", m.sessionID)
		return m, nil

	case sessionSyncMsg:
		if msg.err != nil {
			m.logger.Warn("session sync failed", "op", msg.op, "err", msg.err)
		}
		return m, nil

	case sessionCommandResultMsg:
		if msg.err != nil {
			m.lastErr = msg.err
			return m, nil
		}
		for _, line := range msg.lines {
			m.transcript = appendLine(m.transcript, line)
		}
		return m, nil
	}

	var cmd tea.Cmd
	if m.turn == Idle {
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.turn == Prompting && m.pendingPrompt != nil {
		decision := m.pendingPrompt.handleKey(msg)
		if decision == decisionPending {
			return m, nil
		}
		executionID := m.pendingPrompt.params.ExecutionID
		m.pendingPrompt = nil
		m.turn = InFlight

		approved := decision == decisionApprove
		cmds := []tea.Cmd{sendApproval(m.client, executionID, approved)}
		if decision == decisionCancelTurn {
			m.cancelling = true
			m.cancelBcast.Raise()
			cmds = append(cmds, sendCancel(m.client, m.currentQueryID))
		}
		return m, tea.Batch(cmds...)
	}

	switch msg.String() {
	case "ctrl+c":
		if m.turn == InFlight {
			m.cancelling = true
			m.cancelBcast.Raise()
			return m, sendCancel(m.client, m.currentQueryID)
		}
		m.quitting = true
		if m.unsubscribe != nil {
			m.unsubscribe()
		}
		return m, tea.Quit

	case "enter":
		if m.turn != Idle {
			return m, nil
		}
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		if isSessionCommand(text) {
			m.input.SetValue("")
			return m, m.runSessionCommand(text)
		}
		if m.connState.Phase != connection.Connected {
			m.lastErr = client.ErrNotConnected
			return m, nil
		}
		m.input.SetValue("")
		m.turn = InFlight
		m.currentQueryID = ""
		m.cancelling = false
		m.assistantBuf = ""
		m.transcript = appendLine(m.transcript, "> "+text)

		cmds := []tea.Cmd{submitQuery(m.client, text)}
		if m.sessions != nil && m.sessionID != "" {
			cmds = append(cmds, persistMessageCmd(m.sessions, m.sessionID, session.Message{Role: session.RoleUser, Content: text}))
		}
		return m, tea.Batch(cmds...)
	}

	var cmd tea.Cmd
	if m.turn == Idle {
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

func (m Model) handleNotification(msg notificationMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		if errors.Is(msg.err, client.ErrChannelClosed) {
			return m, nil
		}
		m.logger.Warn("next_notification error", "err", msg.err)
		return m, waitForNotification(m.client)
	}

	n := msg.n
	var persistCmd tea.Cmd
	switch n.Method {
	case message.MethodStreamToken:
		var p message.StreamTokenParams
		if err := json.Unmarshal(n.Params, &p); err == nil {
			if m.currentQueryID == "" {
				m.currentQueryID = p.QueryID
			}
			if !m.cancelling && p.QueryID == m.currentQueryID {
				m.transcript = appendToken(m.transcript, p.Token)
				m.assistantBuf += p.Token
			}
		}

	case message.MethodStreamBlock:
		var p message.StreamBlockParams
		if err := json.Unmarshal(n.Params, &p); err == nil {
			if m.currentQueryID == "" {
				m.currentQueryID = p.QueryID
			}
			if !m.cancelling && p.QueryID == m.currentQueryID {
				m.transcript = appendLine(m.transcript, renderBlock(p.Block))
				m.assistantBuf += p.Block.Content
			}
		}

	case message.MethodStreamComplete:
		var p message.StreamCompleteParams
		if err := json.Unmarshal(n.Params, &p); err == nil && (p.QueryID == m.currentQueryID || m.currentQueryID == "") {
			m.transcript = appendLine(m.transcript, fmt.Sprintf("[turn %s]", p.Status))
			m.turn = Ended
			m.currentQueryID = ""
			m.cancelling = false

			if m.sessions != nil && m.sessionID != "" && m.assistantBuf != "" {
				persistCmd = persistMessageCmd(m.sessions, m.sessionID, session.Message{Role: session.RoleAssistant, Content: m.assistantBuf})
			}
			m.assistantBuf = ""
		}

	case message.MethodToolRequestApproval:
		var p message.ToolRequestApprovalParams
		if err := json.Unmarshal(n.Params, &p); err == nil && m.turn.canTransitionTo(Prompting) {
			prompt := newApprovalPrompt(p)
			m.pendingPrompt = &prompt
			m.turn = Prompting
		}
	}

	if m.turn == Ended {
		m.turn = Idle
	}

	return m, tea.Batch(waitForNotification(m.client), persistCmd)
}

func (m Model) handleConnState(msg connStateMsg) (tea.Model, tea.Cmd) {
	m.connState = msg.state

	reconnecting := msg.state.Phase == connection.Reconnecting || msg.state.Phase == connection.Connecting
	if reconnecting && m.turn == Prompting && m.pendingPrompt != nil {
		executionID := m.pendingPrompt.params.ExecutionID
		m.pendingPrompt = nil
		m.turn = InFlight
		m.lastErr = fmt.Errorf("connection lost while awaiting approval: %s denied automatically", executionID)
		return m, tea.Batch(sendApproval(m.client, executionID, false), waitForConnState(m.connStateCh))
	}

	return m, waitForConnState(m.connStateCh)
}

func (m Model) handleQueryResult(msg queryResultMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.lastErr = msg.err
		m.turn = Idle
		m.currentQueryID = ""
		m.cancelling = false
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return "disconnecting...\n"
	}

	var b strings.Builder
	b.WriteString(stateStyle(m.connState.Phase).Render(m.connState.String()))
	b.WriteString("\n\n")

	for _, line := range m.transcript {
		b.WriteString(tokenStyle.Render(line))
		b.WriteString("\n")
	}

	if m.turn == Prompting && m.pendingPrompt != nil {
		b.WriteString("\n")
		b.WriteString(m.pendingPrompt.View())
	}

	if m.lastErr != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("error: " + m.lastErr.Error()))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.turn == Idle {
		b.WriteString(m.input.View())
	} else {
		b.WriteString(queryIDStyle.Render(fmt.Sprintf("turn %s (query_id=%s, ctrl+c to cancel)", m.turn, m.currentQueryID)))
	}
	return b.String()
}

func appendLine(lines []string, line string) []string {
	lines = append(lines, line)
	if len(lines) > maxTranscriptLines {
		lines = lines[len(lines)-maxTranscriptLines:]
	}
	return lines
}

func appendToken(lines []string, token string) []string {
	if len(lines) == 0 || strings.HasSuffix(lines[len(lines)-1], "\n") {
		return appendLine(lines, token)
	}
	lines[len(lines)-1] += token
	return lines
}

func renderBlock(block message.ContentBlock) string {
	switch block.Type {
	case message.BlockCode:
		lang := block.Language
		if lang == "" {
			lang = "text"
		}
		return fmt.Sprintf("```%s\n%s\n```", lang, block.Content)
	default:
		return block.Content
	}
}

func marshalOrNil(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

func waitForNotification(c *client.Client) tea.Cmd {
	return func() tea.Msg {
		n, err := c.NextNotification(context.Background())
		return notificationMsg{n: n, err: err}
	}
}

func waitForConnState(ch <-chan connection.State) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return connStateMsg{state: s}
	}
}

func submitQuery(c *client.Client, text string) tea.Cmd {
	return func() tea.Msg {
		params := marshalOrNil(message.AgentQueryParams{Message: text})
		resp, err := c.SendRequest(context.Background(), message.MethodAgentQuery, params)
		return queryResultMsg{resp: resp, err: err}
	}
}

func sendCancel(c *client.Client, queryID string) tea.Cmd {
	return func() tea.Msg {
		params := marshalOrNil(message.AgentCancelParams{QueryID: queryID})
		_, err := c.SendRequest(context.Background(), message.MethodAgentCancel, params)
		return cancelAckMsg{err: err}
	}
}

func sendApproval(c *client.Client, executionID string, approved bool) tea.Cmd {
	return func() tea.Msg {
		params := marshalOrNil(message.ToolApproveParams{ExecutionID: executionID, Approved: approved})
		_, err := c.SendRequest(context.Background(), message.MethodToolApprove, params)
		return approvalSentMsg{executionID: executionID, approved: approved, err: err}
	}
}
