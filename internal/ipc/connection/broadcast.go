// Copyright (C) 2026 openagent-terminal contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package connection

import "sync"

// Broadcaster is a single-producer, many-subscriber fan-out of State
// values. Unlike the notification queue (C4), a state transition is
// never dropped: every subscriber's channel is buffered deep enough to
// hold a full reconnect sequence, and Publish enqueues into each
// subscriber's channel, blocking on a subscriber whose buffer is full
// until that subscriber reads.
type Broadcaster struct {
	mu      sync.Mutex
	current State
	subs    map[int]chan State
	nextID  int
}

// NewBroadcaster creates a Broadcaster seeded with the given initial
// state (normally Disconnected).
func NewBroadcaster(initial State) *Broadcaster {
	return &Broadcaster{current: initial, subs: make(map[int]chan State)}
}

// Current returns the most recently published state.
func (b *Broadcaster) Current() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Subscribe registers a new listener and returns its channel along with
// an unsubscribe function. The channel receives every subsequent
// Publish call; it does not replay history beyond the current state,
// which is sent immediately so a new subscriber is never left wondering
// what the state was before it attached.
func (b *Broadcaster) Subscribe() (<-chan State, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan State, DefaultMaxAttempts+2)
	ch <- b.current
	b.subs[id] = ch

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if existing, ok := b.subs[id]; ok {
			close(existing)
			delete(b.subs, id)
		}
	}
	return ch, unsubscribe
}

// Publish records a new current state and delivers it to every
// subscriber. Each subscriber channel is buffered; a subscriber that
// never reads will eventually block Publish on that one channel, which
// is intentional — State transitions are load-bearing and must not be
// silently lost the way notifications may be.
func (b *Broadcaster) Publish(s State) {
	b.mu.Lock()
	b.current = s
	chans := make([]chan State, 0, len(b.subs))
	for _, ch := range b.subs {
		chans = append(chans, ch)
	}
	b.mu.Unlock()

	for _, ch := range chans {
		ch <- s
	}
}
