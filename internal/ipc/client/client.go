// Copyright (C) 2026 openagent-terminal contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package client implements the IPC client core: connection lifecycle,
// request/response correlation, notification delivery, and the
// reconnect loop driving the connection state machine.
//
// # Description
//
// A Client owns exactly one Unix domain socket connection at a time.
// The public API never touches the socket directly — it posts onto an
// outbound queue drained by a dedicated writer goroutine, and receives
// responses via one-shot channels populated by a dedicated reader
// goroutine. Both goroutines are scoped to a connection generation;
// when a generation is superseded by a reconnect, its goroutines exit
// without disturbing the new connection's state.
//
// # Thread Safety
//
// All exported methods are safe for concurrent use.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/openagent-terminal/client/internal/ipc/connection"
	"github.com/openagent-terminal/client/internal/ipc/frame"
	"github.com/openagent-terminal/client/internal/ipc/message"
	"github.com/openagent-terminal/client/pkg/logging"
)

// Config configures a Client.
type Config struct {
	// SocketPath is the Unix domain socket to dial.
	SocketPath string

	// RequestTimeout bounds send_request when the caller's context
	// carries no earlier deadline. Default 30s.
	RequestTimeout time.Duration

	// HandshakeTimeout bounds dialing and the initialize round-trip.
	// Default 5s.
	HandshakeTimeout time.Duration

	// NotificationQueueCapacity bounds the inbound notification queue.
	// Default 256.
	NotificationQueueCapacity int

	// ClientVersion is reported in the initialize handshake.
	ClientVersion string

	// TerminalSize is reported in the initialize handshake and updated
	// via context.update notifications as the terminal resizes.
	TerminalSize message.TerminalSize

	Logger *logging.Logger

	// Dial overrides how the client obtains a connection, bypassing
	// SocketPath. Production callers leave this nil, in which case
	// Connect dials SocketPath as a Unix domain socket. Tests set this
	// to hand the client the client end of a net.Pipe() so the full
	// reader/writer/handshake machinery runs hermetically against an
	// in-process fake backend rather than a real filesystem socket.
	Dial func(ctx context.Context) (net.Conn, error)
}

func (c *Config) setDefaults() {
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = 5 * time.Second
	}
	if c.NotificationQueueCapacity == 0 {
		c.NotificationQueueCapacity = 256
	}
	if c.Logger == nil {
		c.Logger = logging.Default()
	}
}

// Client is the IPC client core (C4).
type Client struct {
	cfg     Config
	logger  *logging.Logger
	machine *connection.Machine

	mu           sync.Mutex
	conn         net.Conn
	connGen      uint64
	outboundQ    *outboundQueue
	readerCancel context.CancelFunc

	allocator *message.Allocator

	pendingMu sync.Mutex
	pending   map[message.RequestID]chan *message.Response

	notifyQ      *notificationQueue
	driftTracker *message.DriftTracker

	wg     sync.WaitGroup
	closed atomic.Bool
}

// New creates a Client. Call Connect to establish the connection.
func New(cfg Config) *Client {
	cfg.setDefaults()
	return &Client{
		cfg:          cfg,
		logger:       cfg.Logger.With("component", "ipc.client"),
		machine:      connection.NewMachine(),
		allocator:    message.NewAllocator(message.InteractiveRange),
		pending:      make(map[message.RequestID]chan *message.Response),
		notifyQ:      newNotificationQueue(cfg.NotificationQueueCapacity),
		driftTracker: message.NewDriftTracker(),
	}
}

// ConnectionState returns the current state machine snapshot.
func (c *Client) ConnectionState() connection.State { return c.machine.Current() }

// Subscribe attaches a listener to every subsequent connection state
// transition.
func (c *Client) Subscribe() (<-chan connection.State, func()) { return c.machine.Subscribe() }

// Stats is a snapshot accessor used by tests and the status line.
type Stats struct {
	PendingCount         int
	NotificationDrops    uint64
	NotificationQueueLen int
	ReconnectAttempt     int
	State                connection.State
}

// Stats returns a point-in-time snapshot of the client's internal
// counters.
func (c *Client) Stats() Stats {
	c.pendingMu.Lock()
	pendingCount := len(c.pending)
	c.pendingMu.Unlock()

	state := c.machine.Current()
	attempt := 0
	if state.Phase == connection.Reconnecting {
		attempt = state.Attempt
	}
	return Stats{
		PendingCount:         pendingCount,
		NotificationDrops:    c.notifyQ.Drops(),
		NotificationQueueLen: c.notifyQ.Len(),
		ReconnectAttempt:     attempt,
		State:                state,
	}
}

// Connect dials the socket and performs the initialize handshake. On
// failure the state machine returns to Disconnected and the error is
// one of ErrSocketNotFound, a wrapped I/O error, or ErrInitFailed.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if err := c.machine.Connecting(); err != nil {
		return err
	}
	if err := c.dialAndInitialize(ctx); err != nil {
		c.machine.Disconnect()
		return err
	}
	return nil
}

// Disconnect tears down the connection and marks the client
// permanently closed. Idempotent.
func (c *Client) Disconnect() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}

	c.mu.Lock()
	if c.readerCancel != nil {
		c.readerCancel()
	}
	conn := c.conn
	q := c.outboundQ
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if q != nil {
		q.Close()
	}
	c.failAllPending(ErrConnectionReset)
	c.notifyQ.Close()
	c.machine.Disconnect()
	c.wg.Wait()
}

// Reconnect drives the connection back to Connected from Disconnected
// or Failed, or waits for an in-progress reconnect sequence to reach a
// terminal outcome. It returns ErrReconnectFailed if the backoff
// policy's attempt budget is exhausted.
func (c *Client) Reconnect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	switch c.machine.Current().Phase {
	case connection.Connected:
		return nil
	case connection.Failed:
		c.machine.Disconnect()
		fallthrough
	case connection.Disconnected:
		if err := c.machine.Connecting(); err != nil {
			return err
		}
		if err := c.dialAndInitialize(ctx); err != nil {
			c.machine.Disconnect()
			return err
		}
		return nil
	default: // Connecting or Reconnecting: a sequence is already running
		return c.awaitOutcome(ctx)
	}
}

func (c *Client) awaitOutcome(ctx context.Context) error {
	ch, unsubscribe := c.machine.Subscribe()
	defer unsubscribe()
	for {
		select {
		case s := <-ch:
			switch s.Phase {
			case connection.Connected:
				return nil
			case connection.Failed:
				return ErrReconnectFailed
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// SendRequest allocates an id from the interactive range and sends a
// request, blocking until the matching response arrives, the context
// is cancelled, or the request times out.
func (c *Client) SendRequest(ctx context.Context, method string, params json.RawMessage) (*message.Response, error) {
	if c.machine.Current().Phase != connection.Connected {
		return nil, ErrNotConnected
	}

	c.pendingMu.Lock()
	id, err := c.allocator.Next(func(id message.RequestID) bool {
		_, ok := c.pending[id]
		return ok
	})
	c.pendingMu.Unlock()
	if err != nil {
		return nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()
	return c.doRequest(timeoutCtx, id, message.NewRequest(id, method, params))
}

// SendRequestWithID sends a request using a caller-supplied id from the
// session-manager range. The session store uses this to share the
// connection's pending-request map and wire while keeping its own id
// allocator.
func (c *Client) SendRequestWithID(ctx context.Context, id message.RequestID, method string, params json.RawMessage) (*message.Response, error) {
	if !message.SessionManagerRange.Contains(id) {
		return nil, ErrIDNotInRange
	}
	if c.machine.Current().Phase != connection.Connected {
		return nil, ErrNotConnected
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()
	return c.doRequest(timeoutCtx, id, message.NewRequest(id, method, params))
}

// IsPending reports whether id currently has an outstanding request.
// Exposed so the session-manager allocator can skip ids this client
// already has in flight.
func (c *Client) IsPending(id message.RequestID) bool {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	_, ok := c.pending[id]
	return ok
}

func (c *Client) doRequest(ctx context.Context, id message.RequestID, req *message.Request) (*message.Response, error) {
	respCh := make(chan *message.Response, 1)

	c.pendingMu.Lock()
	if _, exists := c.pending[id]; exists {
		c.pendingMu.Unlock()
		return nil, ErrIDCollision
	}
	c.pending[id] = respCh
	c.pendingMu.Unlock()

	cleanup := func() {
		c.pendingMu.Lock()
		if cur, ok := c.pending[id]; ok && cur == respCh {
			delete(c.pending, id)
		}
		c.pendingMu.Unlock()
	}

	payload, err := json.Marshal(req)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	c.mu.Lock()
	q := c.outboundQ
	c.mu.Unlock()
	if q == nil {
		cleanup()
		return nil, ErrNotConnected
	}
	q.Push(payload)

	start := time.Now()
	select {
	case <-ctx.Done():
		cleanup()
		recordRequest(context.Background(), req.Method, time.Since(start), false)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, ctx.Err()
	case resp := <-respCh:
		if resp == nil {
			recordRequest(context.Background(), req.Method, time.Since(start), false)
			return nil, ErrConnectionReset
		}
		if resp.Error != nil {
			recordRequest(context.Background(), req.Method, time.Since(start), false)
			return nil, resp.Error
		}
		recordRequest(context.Background(), req.Method, time.Since(start), true)
		return resp, nil
	}
}

// SendNotification sends a fire-and-forget notification.
func (c *Client) SendNotification(method string, params json.RawMessage) error {
	if c.machine.Current().Phase != connection.Connected {
		return ErrNotConnected
	}
	payload, err := json.Marshal(message.NewNotification(method, params))
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	c.mu.Lock()
	q := c.outboundQ
	c.mu.Unlock()
	if q == nil {
		return ErrNotConnected
	}
	q.Push(payload)
	return nil
}

// NextNotification returns the next inbound notification, or
// ErrChannelClosed once the client has been permanently closed.
func (c *Client) NextNotification(ctx context.Context) (*message.Notification, error) {
	select {
	case n, ok := <-c.notifyQ.Channel():
		if !ok {
			return nil, ErrChannelClosed
		}
		return n, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) dialAndInitialize(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
	defer cancel()

	dial := c.cfg.Dial
	if dial == nil {
		dial = func(ctx context.Context) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", c.cfg.SocketPath)
		}
	}
	conn, err := dial(dialCtx)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrSocketNotFound, c.cfg.SocketPath)
		}
		return fmt.Errorf("dial: %w", err)
	}

	readerCtx, cancelReader := context.WithCancel(context.Background())
	outboundQ := newOutboundQueue()

	c.mu.Lock()
	c.conn = conn
	c.outboundQ = outboundQ
	c.readerCancel = cancelReader
	c.connGen++
	gen := c.connGen
	c.driftTracker = message.NewDriftTracker()
	drift := c.driftTracker
	c.mu.Unlock()

	dec := frame.NewDecoder(conn)
	var faultOnce sync.Once

	c.wg.Add(2)
	go c.writerLoop(gen, conn, outboundQ, &faultOnce)
	go c.readerLoop(readerCtx, gen, dec, drift, &faultOnce)

	id, err := c.allocator.Next(c.IsPending)
	if err != nil {
		cancelReader()
		conn.Close()
		return fmt.Errorf("%w: %v", ErrInitFailed, err)
	}
	req := message.RequestInitialize(id, c.cfg.ClientVersion, c.cfg.TerminalSize)
	resp, err := c.doRequest(dialCtx, id, req)
	if err != nil {
		cancelReader()
		conn.Close()
		return fmt.Errorf("%w: %v", ErrInitFailed, err)
	}

	var result message.InitializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil || result.Status != "ready" {
		cancelReader()
		conn.Close()
		return ErrInitFailed
	}

	return c.machine.Connected()
}

func (c *Client) writerLoop(gen uint64, conn net.Conn, q *outboundQueue, faultOnce *sync.Once) {
	defer c.wg.Done()
	for {
		payload, ok := q.Pop()
		if !ok {
			return
		}
		if err := frame.Encode(conn, payload); err != nil {
			faultOnce.Do(func() { c.handleFault(gen, err.Error()) })
			return
		}
	}
}

func (c *Client) readerLoop(ctx context.Context, gen uint64, dec *frame.Decoder, tracker *message.DriftTracker, faultOnce *sync.Once) {
	defer c.wg.Done()
	for {
		raw, err := dec.ReadFrame()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			faultOnce.Do(func() { c.handleFault(gen, err.Error()) })
			return
		}

		kind, err := message.Peek(raw)
		if err != nil {
			c.logger.Warn("dropping malformed frame", "err", err)
			continue
		}

		switch kind {
		case message.KindResponse:
			msg, err := message.ParseStrict(raw)
			if err != nil {
				c.logger.Warn("dropping response with strict-mode violation", "err", err)
				continue
			}
			c.dispatchResponse(msg.(*message.Response))
		case message.KindNotification:
			msg, drift, err := message.ParseTolerant(raw, tracker)
			if err != nil {
				c.logger.Warn("dropping malformed notification", "err", err)
				continue
			}
			for _, key := range drift {
				c.logger.Warn("protocol_drift", "key", key)
			}
			n := msg.(*message.Notification)
			switch n.Method {
			case message.MethodStreamToken, message.MethodStreamBlock, message.MethodStreamComplete,
				message.MethodToolRequestApproval, message.MethodContextUpdateInbound:
			default:
				if tracker.Once("method:" + n.Method) {
					c.logger.Warn("protocol_drift", "method", n.Method)
				}
			}
			c.dispatchNotification(n)
		default:
			c.logger.Warn("dropping unexpected request-shaped frame from backend")
		}
	}
}

func (c *Client) dispatchResponse(resp *message.Response) {
	if resp.ID == nil {
		c.logger.Warn("dropping response with null id")
		return
	}
	c.pendingMu.Lock()
	ch, ok := c.pending[*resp.ID]
	if ok {
		delete(c.pending, *resp.ID)
	}
	c.pendingMu.Unlock()
	if !ok {
		c.logger.Warn("dropping unmatched response", "id", *resp.ID)
		return
	}
	ch <- resp
}

func (c *Client) dispatchNotification(n *message.Notification) {
	if c.notifyQ.Push(n) {
		recordNotificationDrop(context.Background(), n.Method)
	}
}

func (c *Client) failAllPending(err error) {
	c.pendingMu.Lock()
	pending := c.pending
	c.pending = make(map[message.RequestID]chan *message.Response)
	c.pendingMu.Unlock()

	for _, ch := range pending {
		ch <- nil
		close(ch)
	}
	_ = err // nil on the channel is the ConnectionReset signal; see doRequest.
}

// handleFault runs on the first I/O error observed by either the
// reader or the writer of a given connection generation. A stale
// goroutine from a generation already superseded by a newer connection
// is a no-op: its fault is moot.
func (c *Client) handleFault(gen uint64, reason string) {
	c.mu.Lock()
	if gen != c.connGen {
		c.mu.Unlock()
		return
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	q := c.outboundQ
	c.outboundQ = nil
	c.mu.Unlock()

	c.failAllPending(ErrConnectionReset)
	if q != nil {
		q.Close()
	}
	if c.closed.Load() {
		return
	}
	go c.reconnectLoop(reason)
}

func (c *Client) reconnectLoop(reason string) {
	for {
		state, delay, err := c.machine.Reconnecting(reason)
		if err != nil {
			c.logger.Error("reconnect: illegal state transition", "err", err)
			return
		}
		if state.Phase == connection.Failed {
			recordReconnect(context.Background(), state.Attempt, "exhausted")
			return
		}
		recordReconnect(context.Background(), state.Attempt, "attempt")
		time.Sleep(delay)

		if err := c.dialAndInitialize(context.Background()); err != nil {
			reason = err.Error()
			continue
		}
		recordReconnect(context.Background(), state.Attempt, "success")
		return
	}
}
