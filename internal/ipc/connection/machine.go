// Copyright (C) 2026 openagent-terminal contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package connection

import (
	"fmt"
	"sync"
	"time"
)

// ErrIllegalTransition is returned when the caller requests a
// transition the state machine does not permit from its current phase.
type ErrIllegalTransition struct {
	From, To Phase
}

func (e *ErrIllegalTransition) Error() string {
	return fmt.Sprintf("connection: illegal transition %s -> %s", e.From, e.To)
}

// Machine drives the connection state machine described in the package
// doc comment. It owns the Broadcaster and the BackoffPolicy together
// so a caller never observes a Reconnecting state without a
// correspondingly advanced backoff sequence.
type Machine struct {
	mu      sync.Mutex
	bcast   *Broadcaster
	backoff *BackoffPolicy
}

// NewMachine creates a Machine starting in Disconnected.
func NewMachine() *Machine {
	return &Machine{
		bcast:   NewBroadcaster(State{Phase: Disconnected}),
		backoff: NewBackoffPolicy(),
	}
}

// Current returns the current state.
func (m *Machine) Current() State { return m.bcast.Current() }

// Subscribe attaches a listener; see Broadcaster.Subscribe.
func (m *Machine) Subscribe() (<-chan State, func()) { return m.bcast.Subscribe() }

// Connecting transitions Disconnected -> Connecting, at the start of a
// connect() call.
func (m *Machine) Connecting() error { return m.transition(State{Phase: Connecting}) }

// Connected transitions into Connected from Connecting or Reconnecting,
// resetting the backoff sequence so a future disconnect starts counting
// attempts from one again.
func (m *Machine) Connected() error {
	if err := m.transition(State{Phase: Connected}); err != nil {
		return err
	}
	m.mu.Lock()
	m.backoff.Reset()
	m.mu.Unlock()
	return nil
}

// Disconnect is always legal; it is the explicit disconnect() path.
func (m *Machine) Disconnect() {
	_ = m.transition(State{Phase: Disconnected})
}

// Reconnecting advances to the next Reconnecting{attempt}, or to Failed
// if the backoff policy's attempt budget is exhausted. On success it
// also returns the delay the caller must sleep before making the next
// attempt; the delay is zero when the returned state is Failed.
func (m *Machine) Reconnecting(reason string) (State, time.Duration, error) {
	m.mu.Lock()
	current := m.bcast.Current()
	attempt := 1
	if current.Phase == Reconnecting {
		attempt = current.Attempt + 1
	}
	if attempt > m.backoff.MaxAttempts() {
		m.mu.Unlock()
		next := State{Phase: Failed, Reason: reason}
		if err := m.transition(next); err != nil {
			return State{}, 0, err
		}
		return next, 0, nil
	}
	delay := m.backoff.Next()
	m.mu.Unlock()

	next := State{Phase: Reconnecting, Attempt: attempt}
	if err := m.transition(next); err != nil {
		return State{}, 0, err
	}
	return next, delay, nil
}

// Fail transitions directly to Failed, e.g. on a non-retryable
// initialize error.
func (m *Machine) Fail(reason string) error {
	return m.transition(State{Phase: Failed, Reason: reason})
}

func (m *Machine) transition(next State) error {
	current := m.bcast.Current()
	if !current.canTransitionTo(next.Phase) {
		return &ErrIllegalTransition{From: current.Phase, To: next.Phase}
	}
	m.bcast.Publish(next)
	return nil
}
