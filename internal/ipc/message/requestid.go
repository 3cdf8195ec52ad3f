// Copyright (C) 2026 openagent-terminal contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package message

import (
	"encoding/json"
	"errors"
	"fmt"
)

// RequestID is the 64-bit counter value carried on the wire as a JSON
// number. It is always non-negative; the top bit of a uint64 is never
// used, keeping the value representable in every JSON-RPC peer.
type RequestID uint64

// MarshalJSON encodes the id as a bare JSON number.
func (id RequestID) MarshalJSON() ([]byte, error) {
	return json.Marshal(uint64(id))
}

// UnmarshalJSON decodes a bare JSON number into the id. A string-typed
// wire id (permitted by the generic JSON-RPC spec but never emitted by
// this client) is rejected: every id in this system originates from one
// of the two partitioned integer allocators.
func (id *RequestID) UnmarshalJSON(data []byte) error {
	var v uint64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("request id: %w", err)
	}
	*id = RequestID(v)
	return nil
}

// Range is a half-open partition of the RequestID space, [Low, High).
type Range struct {
	Low, High uint64
}

// Contains reports whether id falls within the range.
func (r Range) Contains(id RequestID) bool {
	return uint64(id) >= r.Low && uint64(id) < r.High
}

// InteractiveRange is assigned by the IPC client core to foreground-
// initiated requests.
var InteractiveRange = Range{Low: 0, High: 10_000}

// SessionManagerRange is assigned by the session store to its own
// request-method calls over the same connection.
var SessionManagerRange = Range{Low: 10_000, High: 1 << 63}

// ErrIDSpaceExhausted is returned when every id in a range is currently
// pending; the allocator makes no further attempt and the caller must
// back off.
var ErrIDSpaceExhausted = errors.New("message: request id space exhausted")

// Allocator issues RequestID values from a single Range, wrapping around
// within it and skipping ids currently in use. It is not safe for
// concurrent use; callers serialize access (the client core does so
// behind the same lock that guards its pending-request map).
type Allocator struct {
	r    Range
	next uint64
}

// NewAllocator creates an Allocator over r, starting from r.Low.
func NewAllocator(r Range) *Allocator {
	return &Allocator{r: r, next: r.Low}
}

// Next returns an id in the allocator's range that inUse reports as
// free. It scans at most the full width of the range before giving up;
// an id outside the configured range is never returned. A collision
// with an id that inUse reports as free but is in fact already assigned
// is a programming error in the caller, not something this allocator
// can detect.
func (a *Allocator) Next(inUse func(RequestID) bool) (RequestID, error) {
	width := a.r.High - a.r.Low
	for i := uint64(0); i < width; i++ {
		candidate := a.r.Low + (a.next-a.r.Low+i)%width
		id := RequestID(candidate)
		if !inUse(id) {
			a.next = candidate + 1
			if a.next >= a.r.High {
				a.next = a.r.Low
			}
			return id, nil
		}
	}
	return 0, ErrIDSpaceExhausted
}
