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

// ErrUnknownField is wrapped into a *ProtocolError when strict parsing
// meets a top-level key outside the shape's known set.
var ErrUnknownField = errors.New("message: unknown top-level field")

// ErrAmbiguousShape is returned when a frame's key set does not
// unambiguously identify it as a Request, Response, or Notification.
var ErrAmbiguousShape = errors.New("message: ambiguous message shape")

// ErrBadVersion is returned when the jsonrpc field is missing or not "2.0".
var ErrBadVersion = errors.New("message: jsonrpc field must be \"2.0\"")

// ProtocolError reports a structural defect in an inbound frame. It
// wraps the underlying sentinel so callers can errors.Is against it
// while still presenting the offending field name.
type ProtocolError struct {
	Field string
	Err   error
}

func (e *ProtocolError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %q", e.Err, e.Field)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

var requestKeys = map[string]bool{"jsonrpc": true, "id": true, "method": true, "params": true}
var responseKeys = map[string]bool{"jsonrpc": true, "id": true, "result": true, "error": true}
var notificationKeys = map[string]bool{"jsonrpc": true, "method": true, "params": true}

func classify(raw map[string]json.RawMessage) (Kind, error) {
	_, hasID := raw["id"]
	_, hasMethod := raw["method"]
	_, hasResult := raw["result"]
	_, hasError := raw["error"]

	switch {
	case hasID && hasMethod:
		return KindRequest, nil
	case hasID && (hasResult || hasError) && !hasMethod:
		return KindResponse, nil
	case hasMethod && !hasID:
		return KindNotification, nil
	default:
		return 0, &ProtocolError{Err: ErrAmbiguousShape}
	}
}

func checkVersion(raw map[string]json.RawMessage) error {
	v, ok := raw["jsonrpc"]
	if !ok {
		return &ProtocolError{Field: "jsonrpc", Err: ErrBadVersion}
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil || s != Version {
		return &ProtocolError{Field: "jsonrpc", Err: ErrBadVersion}
	}
	return nil
}

// ParseStrict decodes a frame, rejecting any top-level key outside the
// known set for its shape. Use this for Responses to our own Requests:
// drift from the backend on a call we control must surface as an error,
// not be silently absorbed.
func ParseStrict(data []byte) (Message, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ProtocolError{Err: fmt.Errorf("invalid JSON: %w", err)}
	}
	if err := checkVersion(raw); err != nil {
		return nil, err
	}
	kind, err := classify(raw)
	if err != nil {
		return nil, err
	}

	known := keysFor(kind)
	for k := range raw {
		if !known[k] {
			return nil, &ProtocolError{Field: k, Err: ErrUnknownField}
		}
	}
	return decode(kind, data, nil, nil)
}

// ParseTolerant decodes a frame, retaining any top-level key outside
// the known set for its shape as an opaque Extra entry rather than
// rejecting it. Use this for Notifications, so forward-compatible
// server additions never break the client. newDrift returns the subset
// of unknown keys seen for the first time on tracker (suitable for
// logging by the caller as a protocol_drift warning); keys repeated on
// the same tracker are omitted.
func ParseTolerant(data []byte, tracker *DriftTracker) (msg Message, newDrift []string, err error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, &ProtocolError{Err: fmt.Errorf("invalid JSON: %w", err)}
	}
	if err := checkVersion(raw); err != nil {
		return nil, nil, err
	}
	kind, err := classify(raw)
	if err != nil {
		return nil, nil, err
	}

	known := keysFor(kind)
	extra := make(map[string]json.RawMessage)
	for k, v := range raw {
		if known[k] {
			continue
		}
		extra[k] = v
		if tracker != nil && tracker.Once(k) {
			newDrift = append(newDrift, k)
		}
	}
	if len(extra) == 0 {
		extra = nil
	}
	msg, err = decode(kind, data, extra, tracker)
	return msg, newDrift, err
}

// Peek reports which of the three shapes a frame carries without
// validating its field set, so the caller can route it to ParseStrict
// or ParseTolerant before committing to a parse mode.
func Peek(data []byte) (Kind, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return 0, &ProtocolError{Err: fmt.Errorf("invalid JSON: %w", err)}
	}
	if err := checkVersion(raw); err != nil {
		return 0, err
	}
	return classify(raw)
}

func keysFor(kind Kind) map[string]bool {
	switch kind {
	case KindRequest:
		return requestKeys
	case KindResponse:
		return responseKeys
	default:
		return notificationKeys
	}
}

func decode(kind Kind, data []byte, extra map[string]json.RawMessage, tracker *DriftTracker) (Message, error) {
	switch kind {
	case KindRequest:
		var r Request
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, &ProtocolError{Err: err}
		}
		r.Extra = extra
		return &r, nil
	case KindResponse:
		var r Response
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, &ProtocolError{Err: err}
		}
		if r.Result != nil && r.Error != nil {
			return nil, &ProtocolError{Err: errors.New("message: response carries both result and error")}
		}
		r.Extra = extra
		return &r, nil
	default:
		var n Notification
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, &ProtocolError{Err: err}
		}
		n.Extra = extra
		return &n, nil
	}
}
