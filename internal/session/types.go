// Copyright (C) 2026 openagent-terminal contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package session implements the on-disk session store (C6): session
// documents, an atomic index, auto-titling, and markdown export.
package session

import "time"

// Role is the speaker of one message within a session transcript.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is one transcript entry.
type Message struct {
	Role       Role              `json:"role"`
	Content    string            `json:"content"`
	Timestamp  time.Time         `json:"timestamp"`
	TokenCount uint64            `json:"token_count,omitempty"`
	ToolCalls  []map[string]any  `json:"tool_calls,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Metadata is the mutable header of a Session, duplicated into the
// index so listing never requires opening every session file.
type Metadata struct {
	SessionID    string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount uint64    `json:"message_count"`
	TotalTokens  uint64    `json:"total_tokens"`
	Title        string    `json:"title,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
}

// Session is the full persisted document for one conversation.
type Session struct {
	Metadata Metadata  `json:"metadata"`
	Messages []Message `json:"messages"`
}

// IndexVersion is the current on-disk format version of index.json.
const IndexVersion = "1.0"

// Index is the atomic, store-wide catalog of session metadata.
type Index struct {
	Version  string     `json:"version"`
	Sessions []Metadata `json:"sessions"`
}

const sessionIDLayout = "2006-01-02_150405"
