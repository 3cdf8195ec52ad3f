// Copyright (C) 2026 openagent-terminal contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package client

import "errors"

var (
	// ErrNotConnected is returned by any public operation attempted
	// while the connection state machine is not Connected.
	ErrNotConnected = errors.New("client: not connected")

	// ErrSocketNotFound is returned by Connect when the socket path
	// does not exist.
	ErrSocketNotFound = errors.New("client: socket not found")

	// ErrTimeout is returned by SendRequest when no response arrives
	// within the request's deadline.
	ErrTimeout = errors.New("client: request timed out")

	// ErrConnectionReset is returned to every pending request when the
	// connection is lost; callers must retry idempotently.
	ErrConnectionReset = errors.New("client: connection reset")

	// ErrChannelClosed is returned by NextNotification once the client
	// has been permanently closed.
	ErrChannelClosed = errors.New("client: notification channel closed")

	// ErrInitFailed is returned by Connect when the backend's
	// initialize response is malformed or not status "ready".
	ErrInitFailed = errors.New("client: initialize handshake failed")

	// ErrIDNotInRange is returned by SendRequestWithID when the caller
	// supplies an id outside the range it is authorized to use.
	ErrIDNotInRange = errors.New("client: request id outside authorized range")

	// ErrIDCollision is returned when a caller-supplied id is already
	// pending; per the id-space invariant this is a hard error, never
	// silently resolved.
	ErrIDCollision = errors.New("client: request id collision")

	// ErrReconnectFailed is returned by Reconnect when the backoff
	// policy's attempt budget is exhausted.
	ErrReconnectFailed = errors.New("client: reconnect failed, connection is in Failed state")

	// ErrClosed is returned by Connect and Reconnect once Disconnect has
	// been called.
	ErrClosed = errors.New("client: closed")
)
