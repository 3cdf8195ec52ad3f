// Copyright (C) 2026 openagent-terminal contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package eventloop

// TurnPhase is the state of one agent interaction, from submit to
// completion.
type TurnPhase int

const (
	// Idle: no turn in flight, the input line accepts a new message.
	Idle TurnPhase = iota

	// InFlight: agent.query sent, draining stream.token/stream.block
	// notifications for this turn.
	InFlight

	// Prompting: a tool.request_approval arrived; the loop is waiting on
	// a single keystroke decision while still draining notifications.
	Prompting

	// Ended: stream.complete received (or a cancelled turn's bounded
	// drain reached one); the loop moves on to Idle before the same
	// update returns.
	Ended
)

func (p TurnPhase) String() string {
	switch p {
	case Idle:
		return "idle"
	case InFlight:
		return "in_flight"
	case Prompting:
		return "prompting"
	case Ended:
		return "ended"
	default:
		return "unknown"
	}
}

func (p TurnPhase) canTransitionTo(next TurnPhase) bool {
	switch p {
	case Idle:
		return next == InFlight
	case InFlight:
		return next == InFlight || next == Prompting || next == Ended
	case Prompting:
		return next == InFlight || next == Ended
	case Ended:
		return next == Idle
	default:
		return false
	}
}
