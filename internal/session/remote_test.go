// Copyright (C) 2026 openagent-terminal contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openagent-terminal/client/internal/ipc/message"
)

type fakeRPCClient struct {
	mu       sync.Mutex
	sent     []string
	pending  map[message.RequestID]bool
	failNext bool
}

func (f *fakeRPCClient) SendRequestWithID(ctx context.Context, id message.RequestID, method string, params json.RawMessage) (*message.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, method)
	if f.failNext {
		f.failNext = false
		return nil, assertErr
	}
	return &message.Response{JSONRPC: message.Version, ID: &id}, nil
}

func (f *fakeRPCClient) IsPending(id message.RequestID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending[id]
}

var assertErr = assertError("rpc failed")

type assertError string

func (e assertError) Error() string { return string(e) }

func TestRemoteSync_Create_MirrorsOverRPC(t *testing.T) {
	store := newTestStore(t)
	fake := &fakeRPCClient{pending: map[message.RequestID]bool{}}
	rs := NewRemoteSync(store, fake, nil)

	meta, err := rs.Create(context.Background(), "hello")
	require.NoError(t, err)
	assert.NotEmpty(t, meta.SessionID)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.sent, 1)
	assert.Equal(t, message.MethodSessionCreate, fake.sent[0])
}

func TestRemoteSync_Create_SucceedsLocallyEvenIfMirrorFails(t *testing.T) {
	store := newTestStore(t)
	fake := &fakeRPCClient{pending: map[message.RequestID]bool{}, failNext: true}
	rs := NewRemoteSync(store, fake, nil)

	meta, err := rs.Create(context.Background(), "hello")
	require.NoError(t, err)

	_, err = store.Load(meta.SessionID)
	assert.NoError(t, err)
}

func TestRemoteSync_Delete_MirrorsOverRPC(t *testing.T) {
	store := newTestStore(t)
	fake := &fakeRPCClient{pending: map[message.RequestID]bool{}}
	rs := NewRemoteSync(store, fake, nil)

	meta, err := rs.Create(context.Background(), "")
	require.NoError(t, err)

	require.NoError(t, rs.Delete(context.Background(), meta.SessionID))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Contains(t, fake.sent, message.MethodSessionDelete)
}
