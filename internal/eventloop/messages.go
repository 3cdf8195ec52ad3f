// Copyright (C) 2026 openagent-terminal contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package eventloop

import (
	"github.com/openagent-terminal/client/internal/ipc/connection"
	"github.com/openagent-terminal/client/internal/ipc/message"
	"github.com/openagent-terminal/client/internal/session"
)

// notificationMsg wraps one inbound notification drained from the
// client's notification queue.
type notificationMsg struct {
	n   *message.Notification
	err error
}

// connStateMsg wraps a connection state transition observed via the
// client's Subscribe channel.
type connStateMsg struct {
	state connection.State
}

// queryResultMsg carries the outcome of the blocking agent.query
// request once the backend answers it (after the turn's stream.complete,
// per the protocol's own ordering).
type queryResultMsg struct {
	resp *message.Response
	err  error
}

// approvalSentMsg carries the outcome of sending tool.approve for a
// Prompting decision.
type approvalSentMsg struct {
	executionID string
	approved    bool
	err         error
}

// cancelAckMsg carries the outcome of sending agent.cancel.
type cancelAckMsg struct {
	err error
}

// sessionStartedMsg carries the outcome of creating the session this
// run's transcript will be persisted under.
type sessionStartedMsg struct {
	meta session.Metadata
	err  error
}

// sessionSyncMsg carries the outcome of a fire-and-forget AddMessage
// call made as a turn progresses. Failures are surfaced as a visible
// error but never block the turn: the store is a convenience, not a
// dependency of the live conversation.
type sessionSyncMsg struct {
	op  string
	err error
}

// sessionCommandResultMsg carries the rendered output of a local
// "/session ..." command (list, load, export, delete, new).
type sessionCommandResultMsg struct {
	lines []string
	err   error
}
