// Copyright (C) 2026 openagent-terminal contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package eventloop

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/openagent-terminal/client/internal/session"
)

// isSessionCommand reports whether text is a local "/session ..."
// command rather than a query for the agent.
func isSessionCommand(text string) bool {
	return strings.HasPrefix(text, "/session")
}

// runSessionCommand parses and dispatches a "/session ..." line.
// list/load/export read the local store only; new/delete write the
// local store through m.sessions, which also mirrors them to the
// backend over the client.
func (m Model) runSessionCommand(text string) tea.Cmd {
	if m.sessions == nil {
		return func() tea.Msg {
			return sessionCommandResultMsg{err: fmt.Errorf("session store unavailable")}
		}
	}

	fields := strings.Fields(text)
	var sub, arg string
	if len(fields) > 1 {
		sub = fields[1]
	}
	if len(fields) > 2 {
		arg = strings.Join(fields[2:], " ")
	}

	switch sub {
	case "list":
		return listSessionsCmd(m.sessions)
	case "new":
		return newSessionCmd(m.sessions, arg)
	case "load":
		return loadSessionCmd(m.sessions, arg)
	case "export":
		return exportSessionCmd(m.sessions, arg)
	case "delete":
		return deleteSessionCmd(m.sessions, arg)
	default:
		return func() tea.Msg {
			return sessionCommandResultMsg{err: fmt.Errorf("usage: /session list|new|load|export|delete [arg]")}
		}
	}
}

func createSessionCmd(sessions *session.RemoteSync) tea.Cmd {
	return func() tea.Msg {
		meta, err := sessions.Create(context.Background(), "")
		return sessionStartedMsg{meta: meta, err: err}
	}
}

func newSessionCmd(sessions *session.RemoteSync, title string) tea.Cmd {
	return func() tea.Msg {
		meta, err := sessions.Create(context.Background(), title)
		if err != nil {
			return sessionCommandResultMsg{err: err}
		}
		return sessionStartedMsg{meta: meta}
	}
}

func listSessionsCmd(sessions *session.RemoteSync) tea.Cmd {
	return func() tea.Msg {
		metas, err := sessions.Store().List(20)
		if err != nil {
			return sessionCommandResultMsg{err: err}
		}
		lines := make([]string, 0, len(metas)+1)
		lines = append(lines, "sessions (most recent first):")
		for _, meta := range metas {
			lines = append(lines, fmt.Sprintf("  %s  %q  (%d msgs)", meta.SessionID, meta.Title, meta.MessageCount))
		}
		return sessionCommandResultMsg{lines: lines}
	}
}

func loadSessionCmd(sessions *session.RemoteSync, id string) tea.Cmd {
	return func() tea.Msg {
		if id == "" {
			return sessionCommandResultMsg{err: fmt.Errorf("usage: /session load <session-id>")}
		}
		sess, err := sessions.Store().Load(id)
		if err != nil {
			return sessionCommandResultMsg{err: err}
		}
		lines := make([]string, 0, len(sess.Messages)+1)
		lines = append(lines, fmt.Sprintf("-- %s (%s) --", sess.Metadata.Title, sess.Metadata.SessionID))
		for _, msg := range sess.Messages {
			lines = append(lines, fmt.Sprintf("[%s] %s", msg.Role, msg.Content))
		}
		return sessionCommandResultMsg{lines: lines}
	}
}

func exportSessionCmd(sessions *session.RemoteSync, id string) tea.Cmd {
	return func() tea.Msg {
		if id == "" {
			return sessionCommandResultMsg{err: fmt.Errorf("usage: /session export <session-id>")}
		}
		out, err := sessions.Store().Export(id, "markdown")
		if err != nil {
			return sessionCommandResultMsg{err: err}
		}
		return sessionCommandResultMsg{lines: strings.Split(strings.TrimRight(out, "\n"), "\n")}
	}
}

func deleteSessionCmd(sessions *session.RemoteSync, id string) tea.Cmd {
	return func() tea.Msg {
		if id == "" {
			return sessionCommandResultMsg{err: fmt.Errorf("usage: /session delete <session-id>")}
		}
		if err := sessions.Delete(context.Background(), id); err != nil {
			return sessionCommandResultMsg{err: err}
		}
		return sessionCommandResultMsg{lines: []string{fmt.Sprintf("deleted %s", id)}}
	}
}

// persistMessageCmd appends msg to sessionID in the background. Best
// effort: a failure is reported to the loop as a warning, not a fatal
// error, since the live conversation must keep working even if the
// disk (or the backend mirror) is unavailable.
func persistMessageCmd(sessions *session.RemoteSync, sessionID string, msg session.Message) tea.Cmd {
	return func() tea.Msg {
		_, err := sessions.AddMessage(context.Background(), sessionID, msg)
		return sessionSyncMsg{op: "add_message", err: err}
	}
}
