// Copyright (C) 2026 openagent-terminal contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package connection

import (
	"testing"
	"time"
)

func TestMachine_HappyPathConnect(t *testing.T) {
	m := NewMachine()
	if m.Current().Phase != Disconnected {
		t.Fatalf("initial phase = %v, want Disconnected", m.Current().Phase)
	}
	if err := m.Connecting(); err != nil {
		t.Fatalf("Connecting() error = %v", err)
	}
	if err := m.Connected(); err != nil {
		t.Fatalf("Connected() error = %v", err)
	}
	if m.Current().Phase != Connected {
		t.Fatalf("phase = %v, want Connected", m.Current().Phase)
	}
}

func TestMachine_RejectsIllegalTransition(t *testing.T) {
	m := NewMachine()
	err := m.Connected()
	if err == nil {
		t.Fatal("Connected() from Disconnected: error = nil, want ErrIllegalTransition")
	}
	if _, ok := err.(*ErrIllegalTransition); !ok {
		t.Fatalf("error type = %T, want *ErrIllegalTransition", err)
	}
}

func TestMachine_ReconnectSequenceMatchesBackoffFormula(t *testing.T) {
	m := NewMachine()
	_ = m.Connecting()
	_ = m.Connected()

	want := []time.Duration{
		200 * time.Millisecond,
		300 * time.Millisecond,
		450 * time.Millisecond,
		675 * time.Millisecond,
	}
	for i, w := range want {
		state, delay, err := m.Reconnecting("io error")
		if err != nil {
			t.Fatalf("Reconnecting() #%d error = %v", i, err)
		}
		if state.Phase != Reconnecting || state.Attempt != i+1 {
			t.Fatalf("state #%d = %+v, want Reconnecting{%d}", i, state, i+1)
		}
		if delay != w {
			t.Errorf("delay #%d = %v, want %v", i, delay, w)
		}
	}

	// Four attempts were made above, so the fifth call below is attempt
	// 5, still within MaxAttempts; the sixth call moves to Failed.
	state, _, err := m.Reconnecting("io error")
	if err != nil {
		t.Fatalf("5th Reconnecting() error = %v", err)
	}
	if state.Phase != Reconnecting || state.Attempt != 5 {
		t.Fatalf("5th state = %+v, want Reconnecting{5}", state)
	}

	state, delay, err := m.Reconnecting("io error")
	if err != nil {
		t.Fatalf("6th Reconnecting() error = %v", err)
	}
	if state.Phase != Failed {
		t.Fatalf("6th state = %+v, want Failed", state)
	}
	if delay != 0 {
		t.Errorf("delay on Failed = %v, want 0", delay)
	}
}

func TestMachine_ConnectedAfterReconnectingResetsBackoff(t *testing.T) {
	m := NewMachine()
	_ = m.Connecting()
	_ = m.Connected()
	_, _, _ = m.Reconnecting("io error")
	_, _, _ = m.Reconnecting("io error")
	if err := m.Connected(); err != nil {
		t.Fatalf("Connected() error = %v", err)
	}

	m.Disconnect()
	if err := m.Connecting(); err != nil {
		t.Fatalf("Connecting() error = %v", err)
	}
	state, delay, err := m.Reconnecting("io error")
	if err != nil {
		t.Fatalf("Reconnecting() error = %v", err)
	}
	if state.Attempt != 1 {
		t.Errorf("attempt = %d, want 1 (backoff reset)", state.Attempt)
	}
	if delay != 200*time.Millisecond {
		t.Errorf("delay = %v, want 200ms (backoff reset)", delay)
	}
}

func TestMachine_DisconnectAlwaysLegal(t *testing.T) {
	m := NewMachine()
	_ = m.Connecting()
	m.Disconnect()
	if m.Current().Phase != Disconnected {
		t.Fatalf("phase = %v, want Disconnected", m.Current().Phase)
	}
}

func TestBroadcaster_SubscriberSeesEveryTransition(t *testing.T) {
	m := NewMachine()
	ch, unsubscribe := m.Subscribe()
	defer unsubscribe()

	initial := <-ch
	if initial.Phase != Disconnected {
		t.Fatalf("initial = %v, want Disconnected", initial.Phase)
	}

	_ = m.Connecting()
	_ = m.Connected()

	if s := <-ch; s.Phase != Connecting {
		t.Errorf("got %v, want Connecting", s.Phase)
	}
	if s := <-ch; s.Phase != Connected {
		t.Errorf("got %v, want Connected", s.Phase)
	}
}
