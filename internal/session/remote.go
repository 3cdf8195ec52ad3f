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

	"github.com/openagent-terminal/client/internal/ipc/message"
	"github.com/openagent-terminal/client/pkg/logging"
)

// RPCClient is the subset of *client.Client the session store's remote
// mirror needs. Defined locally so this package doesn't import
// internal/ipc/client and tests can substitute a fake.
type RPCClient interface {
	SendRequestWithID(ctx context.Context, id message.RequestID, method string, params json.RawMessage) (*message.Response, error)
	IsPending(id message.RequestID) bool
}

// RemoteSync mirrors a local Store's writes to the backend over the
// same socket C4 uses, via the session-manager id range. The local
// Store remains authoritative: mirror failures are logged, never
// returned to the caller, so the terminal stays usable while
// disconnected.
type RemoteSync struct {
	store     *Store
	client    RPCClient
	allocator *message.Allocator
	logger    *logging.Logger

	// idMu serializes allocator use across concurrent mirror calls.
	idMu sync.Mutex
}

// NewRemoteSync wraps store so its writes are also relayed to client.
func NewRemoteSync(store *Store, client RPCClient, logger *logging.Logger) *RemoteSync {
	if logger == nil {
		logger = logging.Default()
	}
	return &RemoteSync{
		store:     store,
		client:    client,
		allocator: message.NewAllocator(message.SessionManagerRange),
		logger:    logger.With("component", "session.remote"),
	}
}

// Store returns the underlying local Store for read-only operations
// (List, Load, Export) that have nothing to mirror to the backend.
func (r *RemoteSync) Store() *Store {
	return r.store
}

func (r *RemoteSync) nextID() (message.RequestID, error) {
	r.idMu.Lock()
	defer r.idMu.Unlock()
	return r.allocator.Next(r.client.IsPending)
}

func (r *RemoteSync) send(ctx context.Context, method string, params any) {
	id, err := r.nextID()
	if err != nil {
		r.logger.Warn("session-manager id allocation failed", "method", method, "err", err)
		return
	}
	raw, err := json.Marshal(params)
	if err != nil {
		r.logger.Warn("session-manager params marshal failed", "method", method, "err", err)
		return
	}
	if _, err := r.client.SendRequestWithID(ctx, id, method, raw); err != nil {
		r.logger.Warn("session-manager mirror request failed", "method", method, "err", err)
	}
}

// Create creates the session locally, then mirrors it to the backend.
func (r *RemoteSync) Create(ctx context.Context, title string) (Metadata, error) {
	meta, err := r.store.Create(ctx, title)
	if err != nil {
		return Metadata{}, err
	}
	r.send(ctx, message.MethodSessionCreate, map[string]string{
		"session_id": meta.SessionID,
		"title":      title,
	})
	return meta, nil
}

// AddMessage appends locally, then mirrors the updated document.
func (r *RemoteSync) AddMessage(ctx context.Context, id string, msg Message) (Metadata, error) {
	meta, err := r.store.AddMessage(ctx, id, msg)
	if err != nil {
		return Metadata{}, err
	}
	r.send(ctx, message.MethodSessionSave, map[string]any{"session_id": id, "metadata": meta})
	return meta, nil
}

// Delete deletes locally, then mirrors the deletion.
func (r *RemoteSync) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(id); err != nil {
		return err
	}
	r.send(ctx, message.MethodSessionDelete, map[string]string{"session_id": id})
	return nil
}
