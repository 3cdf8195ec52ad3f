// Copyright (C) 2026 openagent-terminal contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package eventloop

import "sync"

// CancelBroadcaster is the loop's single-writer, many-subscriber
// cancellation signal. Raise bumps a monotonic token and offers it to
// every subscriber; raises a subscriber has not yet read collapse into
// the latest token. Unlike connection.Broadcaster nothing is sent on
// Subscribe: a subscriber sees only raises made after it attached, and
// Token reports the current value.
type CancelBroadcaster struct {
	mu      sync.Mutex
	current uint64
	subs    map[int]chan uint64
	nextID  int
}

// NewCancelBroadcaster creates a broadcaster starting at token 0 (never
// cancelled).
func NewCancelBroadcaster() *CancelBroadcaster {
	return &CancelBroadcaster{subs: make(map[int]chan uint64)}
}

// Token returns the current cancellation token.
func (b *CancelBroadcaster) Token() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Subscribe registers a listener and returns its channel (buffered by
// one, since only the latest token matters) and an unsubscribe func.
func (b *CancelBroadcaster) Subscribe() (<-chan uint64, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan uint64, 1)
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

// Raise bumps the token and notifies every subscriber, dropping a stale
// unread token from a channel rather than blocking: a subscriber only
// ever needs to see the latest cancellation, not every one raised while
// it wasn't looking.
func (b *CancelBroadcaster) Raise() uint64 {
	b.mu.Lock()
	b.current++
	next := b.current
	chans := make([]chan uint64, 0, len(b.subs))
	for _, ch := range b.subs {
		chans = append(chans, ch)
	}
	b.mu.Unlock()

	for _, ch := range chans {
		select {
		case ch <- next:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- next:
			default:
			}
		}
	}
	return next
}
