// Copyright (C) 2026 openagent-terminal contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package message

import (
	"errors"
	"testing"
)

func TestAllocator_StaysWithinRange(t *testing.T) {
	a := NewAllocator(InteractiveRange)
	pending := map[RequestID]bool{}
	for i := 0; i < 1000; i++ {
		id, err := a.Next(func(id RequestID) bool { return pending[id] })
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if !InteractiveRange.Contains(id) {
			t.Fatalf("Next() = %d, outside interactive range", id)
		}
		pending[id] = true
	}
}

func TestAllocator_NoOverlapAcrossRanges(t *testing.T) {
	interactive := NewAllocator(InteractiveRange)
	session := NewAllocator(SessionManagerRange)

	seen := map[RequestID]bool{}
	for i := 0; i < 5000; i++ {
		id, err := interactive.Next(func(id RequestID) bool { return seen[id] })
		if err != nil {
			t.Fatalf("interactive.Next() error = %v", err)
		}
		if SessionManagerRange.Contains(id) {
			t.Fatalf("interactive allocator produced id %d in session range", id)
		}
		seen[id] = true

		sid, err := session.Next(func(id RequestID) bool { return seen[id] })
		if err != nil {
			t.Fatalf("session.Next() error = %v", err)
		}
		if InteractiveRange.Contains(sid) {
			t.Fatalf("session allocator produced id %d in interactive range", sid)
		}
		seen[sid] = true
	}
}

func TestAllocator_SkipsPendingIDs(t *testing.T) {
	a := NewAllocator(Range{Low: 0, High: 3})
	pending := map[RequestID]bool{0: true, 1: true}

	id, err := a.Next(func(id RequestID) bool { return pending[id] })
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if id != 2 {
		t.Errorf("Next() = %d, want 2", id)
	}
}

func TestAllocator_ExhaustionIsHardError(t *testing.T) {
	a := NewAllocator(Range{Low: 0, High: 2})
	_, err := a.Next(func(RequestID) bool { return true })
	if !errors.Is(err, ErrIDSpaceExhausted) {
		t.Fatalf("Next() error = %v, want ErrIDSpaceExhausted", err)
	}
}

func TestAllocator_WrapsAround(t *testing.T) {
	a := NewAllocator(Range{Low: 0, High: 3})
	pending := map[RequestID]bool{}

	for i := 0; i < 3; i++ {
		id, err := a.Next(func(id RequestID) bool { return pending[id] })
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		pending[id] = true
	}
	delete(pending, 0)

	id, err := a.Next(func(id RequestID) bool { return pending[id] })
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if id != 0 {
		t.Errorf("Next() after wrap = %d, want 0", id)
	}
}
