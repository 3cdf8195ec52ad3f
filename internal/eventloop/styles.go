// Copyright (C) 2026 openagent-terminal contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package eventloop

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/openagent-terminal/client/internal/ipc/connection"
	"github.com/openagent-terminal/client/internal/ipc/message"
)

var (
	connectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	reconnectingStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("214")).
				Bold(true)

	disconnectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("196")).
				Bold(true)

	queryIDStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	tokenStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	riskLowStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	riskMediumStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	riskHighStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	riskCriticalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

func stateStyle(phase connection.Phase) lipgloss.Style {
	switch phase {
	case connection.Connected:
		return connectedStyle
	case connection.Reconnecting, connection.Connecting:
		return reconnectingStyle
	default:
		return disconnectedStyle
	}
}

func riskStyle(level message.RiskLevel) lipgloss.Style {
	switch level {
	case message.RiskLow:
		return riskLowStyle
	case message.RiskMedium:
		return riskMediumStyle
	case message.RiskHigh:
		return riskHighStyle
	case message.RiskCritical:
		return riskCriticalStyle
	default:
		return tokenStyle
	}
}
