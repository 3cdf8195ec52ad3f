// Copyright (C) 2026 openagent-terminal contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package message

// Recognized inbound notification methods. A method outside this set is
// still delivered (notifications parse tolerantly) but is unrecognized:
// the client's reader logs one protocol_drift warning per method per
// connection, and the event loop ignores it rather than trying to
// interpret its params.
const (
	MethodStreamToken          = "stream.token"
	MethodStreamBlock          = "stream.block"
	MethodStreamComplete       = "stream.complete"
	MethodToolRequestApproval  = "tool.request_approval"
	MethodContextUpdateInbound = "context.update"
)

// Outbound request methods.
const (
	MethodInitialize     = "initialize"
	MethodAgentQuery     = "agent.query"
	MethodAgentCancel    = "agent.cancel"
	MethodToolApprove    = "tool.approve"
	MethodSessionCreate  = "session.create"
	MethodSessionSave    = "session.save"
	MethodSessionLoad    = "session.load"
	MethodSessionList    = "session.list"
	MethodSessionDelete  = "session.delete"
	MethodSessionExport  = "session.export"
)

// MethodContextUpdate is the single outbound notification method.
const MethodContextUpdate = "context.update"

// RiskLevel is the severity the backend attaches to a pending tool
// execution, shown to the user in the approval prompt.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// BlockType identifies the shape of a stream.block's content.
type BlockType string

const (
	BlockCode BlockType = "code"
	BlockDiff BlockType = "diff"
	BlockText BlockType = "text"
	BlockList BlockType = "list"
)

// StreamTokenParams is the params object of a stream.token notification.
type StreamTokenParams struct {
	QueryID string `json:"query_id"`
	Token   string `json:"token"`
}

// ContentBlock is the payload of a stream.block notification.
type ContentBlock struct {
	Type     BlockType         `json:"type"`
	Language string            `json:"language,omitempty"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// StreamBlockParams is the params object of a stream.block notification.
type StreamBlockParams struct {
	QueryID string       `json:"query_id"`
	Block   ContentBlock `json:"block"`
}

// StreamCompleteParams is the params object of a stream.complete
// notification.
type StreamCompleteParams struct {
	QueryID  string            `json:"query_id"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ToolRequestApprovalParams is the params object of a
// tool.request_approval notification.
type ToolRequestApprovalParams struct {
	ExecutionID string    `json:"execution_id"`
	ToolName    string    `json:"tool_name"`
	Description string    `json:"description"`
	Preview     string    `json:"preview"`
	RiskLevel   RiskLevel `json:"risk_level"`
}

// TerminalSize is the terminal dimensions carried by context.update and
// the initialize handshake.
type TerminalSize struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

// ContextUpdateParams is the params object of the context.update
// notification, in either direction. Only present fields are sent.
type ContextUpdateParams struct {
	Cwd          string        `json:"cwd,omitempty"`
	TerminalSize *TerminalSize `json:"terminal_size,omitempty"`
}
