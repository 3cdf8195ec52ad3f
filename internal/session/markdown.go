// Copyright (C) 2026 openagent-terminal contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

func roleEmoji(r Role) string {
	switch r {
	case RoleUser:
		return "🧑"
	case RoleAssistant:
		return "🤖"
	case RoleSystem:
		return "⚙️"
	case RoleTool:
		return "🛠️"
	default:
		return "❓"
	}
}

func titleCaseRole(r Role) string {
	s := string(r)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// RenderMarkdown formats a session as a markdown document: a header
// block of metadata followed by one section per message.
func RenderMarkdown(sess Session) string {
	var b strings.Builder

	title := sess.Metadata.Title
	if title == "" {
		title = sess.Metadata.SessionID
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "- id: %s\n", sess.Metadata.SessionID)
	fmt.Fprintf(&b, "- created: %s\n", sess.Metadata.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- updated: %s\n", sess.Metadata.UpdatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- messages: %d\n", sess.Metadata.MessageCount)
	fmt.Fprintf(&b, "- tokens: %d\n", sess.Metadata.TotalTokens)
	if len(sess.Metadata.Tags) > 0 {
		fmt.Fprintf(&b, "- tags: %s\n", strings.Join(sess.Metadata.Tags, ", "))
	}
	b.WriteString("\n")

	for _, msg := range sess.Messages {
		fmt.Fprintf(&b, "## %s %s [%s]\n\n", roleEmoji(msg.Role), titleCaseRole(msg.Role), msg.Timestamp.Format("15:04:05"))
		b.WriteString(escapeHeadings(msg.Content))
		b.WriteString("\n")
		if len(msg.ToolCalls) > 0 {
			data, err := json.MarshalIndent(msg.ToolCalls, "", "  ")
			if err == nil {
				fmt.Fprintf(&b, "\n```json\n%s\n```\n", data)
			}
		}
		b.WriteString("\n")
	}

	return b.String()
}

// escapeHeadings passes fenced code blocks through verbatim, but
// escapes any line that would otherwise render as a markdown heading
// so a message can't spoof the document's own section structure.
func escapeHeadings(content string) string {
	lines := strings.Split(content, "\n")
	inFence := false
	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " ")
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			indent := line[:len(line)-len(trimmed)]
			lines[i] = indent + "\\" + trimmed
		}
	}
	return strings.Join(lines, "\n")
}
