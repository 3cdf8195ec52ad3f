// Copyright (C) 2026 openagent-terminal contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package client

import (
	"sync"

	"github.com/openagent-terminal/client/internal/ipc/message"
)

// outboundQueue is the writer's unbounded FIFO. The public API never
// writes to the socket itself; it posts a marshaled frame here and the
// writer goroutine drains it one at a time, guaranteeing that
// send_request returns (enqueues) before any later send_request's
// bytes reach the wire.
type outboundQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  [][]byte
	closed bool
}

func newOutboundQueue() *outboundQueue {
	q := &outboundQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends a frame payload to the queue. It never blocks.
func (q *outboundQueue) Push(payload []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, payload)
	q.cond.Signal()
}

// Pop blocks until a payload is available or the queue is closed.
func (q *outboundQueue) Pop() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

// Close unblocks any pending Pop and rejects further pushes. Queued
// items not yet popped are discarded; the caller is reconnecting or
// shutting down and those frames belong to a dead connection.
func (q *outboundQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.items = nil
	q.cond.Broadcast()
}

// notificationQueue is the bounded, single-consumer queue C5 drains via
// NextNotification. When full, the oldest entry is dropped to make room
// for the newest — "newest wins" backpressure, since a user watching a
// live stream cares about the current token, not a stale one. Backed by
// a channel (rather than the outbound queue's cond-variable FIFO) so
// Channel() composes directly into the event loop's select statement.
type notificationQueue struct {
	ch    chan *message.Notification
	mu    sync.Mutex
	drops uint64
}

func newNotificationQueue(capacity int) *notificationQueue {
	return &notificationQueue{ch: make(chan *message.Notification, capacity)}
}

// Push enqueues a notification, dropping the oldest queued entry if the
// queue is already at capacity.
func (q *notificationQueue) Push(n *message.Notification) (dropped bool) {
	for {
		select {
		case q.ch <- n:
			return dropped
		default:
		}
		select {
		case <-q.ch:
			q.mu.Lock()
			q.drops++
			q.mu.Unlock()
			dropped = true
		default:
			// A concurrent consumer drained the queue between our full
			// check and this eviction attempt; loop and retry the send.
		}
	}
}

// Channel exposes the receive side for use in a select statement.
func (q *notificationQueue) Channel() <-chan *message.Notification { return q.ch }

// Drops returns the cumulative count of dropped-oldest notifications.
func (q *notificationQueue) Drops() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.drops
}

// Len reports the number of notifications currently queued.
func (q *notificationQueue) Len() int { return len(q.ch) }

// Close unblocks any pending receive on Channel() by closing it.
func (q *notificationQueue) Close() { close(q.ch) }
