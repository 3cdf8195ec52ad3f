// Copyright (C) 2026 openagent-terminal contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package message

import "encoding/json"

// ClientInfo identifies this client in the initialize handshake.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ServerInfo identifies the backend in its initialize response.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Capability names understood by initialize negotiation.
const (
	CapabilityStreaming          = "streaming"
	CapabilityBlocks             = "blocks"
	CapabilitySyntaxHighlighting = "syntax_highlighting"
)

// InitializeParams is the params object of the initialize request.
type InitializeParams struct {
	ProtocolVersion string       `json:"protocol_version"`
	ClientInfo      ClientInfo   `json:"client_info"`
	TerminalSize    TerminalSize `json:"terminal_size"`
	Capabilities    []string     `json:"capabilities"`
}

// InitializeResult is the result object the backend must return. Any
// other shape, or a status other than "ready", is a fatal init error.
type InitializeResult struct {
	Status       string     `json:"status"`
	ServerInfo   ServerInfo `json:"server_info"`
	Capabilities []string   `json:"capabilities"`
}

// AgentQueryParams is the params object of an agent.query request.
type AgentQueryParams struct {
	Message string            `json:"message"`
	Context map[string]string `json:"context,omitempty"`
}

// ToolApproveParams is the params object of a tool.approve request.
type ToolApproveParams struct {
	ExecutionID string `json:"execution_id"`
	Approved    bool   `json:"approved"`
}

// AgentCancelParams is the params object of an agent.cancel request.
type AgentCancelParams struct {
	QueryID string `json:"query_id"`
}

func marshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		// Every params type above is a plain struct of strings, ints,
		// and bools; marshaling cannot fail.
		panic("message: unexpected marshal failure: " + err.Error())
	}
	return b
}

// NotificationContextUpdate builds the outbound context.update
// notification. Both fields are optional; an empty cwd or a nil size is
// simply omitted from the wire params.
func NotificationContextUpdate(cwd string, size *TerminalSize) *Notification {
	return NewNotification(MethodContextUpdate, marshal(ContextUpdateParams{
		Cwd:          cwd,
		TerminalSize: size,
	}))
}

// RequestAgentQuery builds an agent.query request.
func RequestAgentQuery(id RequestID, msg string, context map[string]string) *Request {
	return NewRequest(id, MethodAgentQuery, marshal(AgentQueryParams{
		Message: msg,
		Context: context,
	}))
}

// RequestToolApprove builds a tool.approve request.
func RequestToolApprove(id RequestID, executionID string, approved bool) *Request {
	return NewRequest(id, MethodToolApprove, marshal(ToolApproveParams{
		ExecutionID: executionID,
		Approved:    approved,
	}))
}

// RequestAgentCancel builds an agent.cancel request.
func RequestAgentCancel(id RequestID, queryID string) *Request {
	return NewRequest(id, MethodAgentCancel, marshal(AgentCancelParams{QueryID: queryID}))
}

// RequestInitialize builds the initialize handshake request.
func RequestInitialize(id RequestID, clientVersion string, size TerminalSize) *Request {
	return NewRequest(id, MethodInitialize, marshal(InitializeParams{
		ProtocolVersion: "1.0.0",
		ClientInfo:      ClientInfo{Name: "openagent-terminal", Version: clientVersion},
		TerminalSize:    size,
		Capabilities:    []string{CapabilityStreaming, CapabilityBlocks, CapabilitySyntaxHighlighting},
	}))
}
