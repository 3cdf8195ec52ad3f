// Copyright (C) 2026 openagent-terminal contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package eventloop

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/openagent-terminal/client/internal/ipc/message"
)

// approvalDecision is the outcome of one approval prompt.
type approvalDecision int

const (
	decisionPending approvalDecision = iota
	decisionApprove
	decisionDeny
	decisionCancelTurn
)

// approvalPrompt is the modal sub-model entered on tool.request_approval.
// It owns no timers: per the contract there is no auto-approval, the
// loop simply keeps draining notifications elsewhere while this waits
// for one keystroke.
type approvalPrompt struct {
	params message.ToolRequestApprovalParams
}

func newApprovalPrompt(params message.ToolRequestApprovalParams) approvalPrompt {
	return approvalPrompt{params: params}
}

// handleKey interprets one keystroke against the fixed y/n/Esc/Ctrl-C
// keymap. Anything else is ignored and the prompt stays open.
func (p approvalPrompt) handleKey(msg tea.KeyMsg) approvalDecision {
	switch msg.String() {
	case "y", "Y":
		return decisionApprove
	case "n", "N", "enter", "esc":
		return decisionDeny
	case "ctrl+c":
		return decisionCancelTurn
	default:
		return decisionPending
	}
}

func (p approvalPrompt) View() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", promptStyle.Render("Tool approval requested"))
	fmt.Fprintf(&b, "  tool:        %s\n", p.params.ToolName)
	fmt.Fprintf(&b, "  risk:        %s\n", riskStyle(p.params.RiskLevel).Render(string(p.params.RiskLevel)))
	fmt.Fprintf(&b, "  description: %s\n", p.params.Description)
	if p.params.Preview != "" {
		fmt.Fprintf(&b, "  preview:\n%s\n", indent(p.params.Preview, "    "))
	}
	b.WriteString("  [y] approve   [n/Enter/Esc] deny   [Ctrl-C] deny and cancel turn\n")
	return b.String()
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
