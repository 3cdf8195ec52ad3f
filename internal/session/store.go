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
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openagent-terminal/client/pkg/logging"
)

// cleanupTrigger and cleanupFloor implement the retention policy: once
// the index exceeds cleanupTrigger entries, the oldest entries beyond
// cleanupFloor are deleted (file and index entry) in the same pass.
const (
	cleanupTrigger = 1000
	cleanupFloor   = 800
)

var sessionIDPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}_\d{6}$`)

// Store is the on-disk session store. Files on disk are owned
// exclusively by the Store; no external writer is permitted.
type Store struct {
	root   string
	logger *logging.Logger

	indexMu sync.Mutex

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewStore opens (creating if necessary) a session store rooted at
// root, with a quarantine subdirectory for files that fail to parse.
func NewStore(root string, logger *logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("session: create root: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(root, "quarantine"), 0o700); err != nil {
		return nil, fmt.Errorf("session: create quarantine dir: %w", err)
	}
	return &Store{
		root:   root,
		logger: logger.With("component", "session"),
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

func (s *Store) sessionLock(id string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// resolvePath validates id's shape before touching the filesystem at
// all, then defends in depth against path traversal by confirming the
// resolved absolute path still sits under the store root.
func (s *Store) resolvePath(id string) (string, error) {
	if !sessionIDPattern.MatchString(id) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	absRoot, err := filepath.Abs(s.root)
	if err != nil {
		return "", err
	}
	candidate := filepath.Join(absRoot, id+".json")
	if !strings.HasPrefix(candidate, absRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapesRoot, id)
	}
	return candidate, nil
}

// Create allocates a fresh session id from the current time and
// persists an empty session with the given title (may be empty; the
// first user message auto-titles it).
func (s *Store) Create(ctx context.Context, title string) (Metadata, error) {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	var id string
	for attempt := 0; ; attempt++ {
		candidate := time.Now().Format(sessionIDLayout)
		path, err := s.resolvePath(candidate)
		if err != nil {
			return Metadata{}, err
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			id = candidate
			break
		}
		if attempt > 2 {
			return Metadata{}, fmt.Errorf("session: create: id %s already in use", candidate)
		}
		time.Sleep(time.Second)
	}

	now := time.Now()
	meta := Metadata{SessionID: id, CreatedAt: now, UpdatedAt: now, Title: title}
	sess := Session{Metadata: meta}

	if err := s.writeSessionLocked(sess); err != nil {
		recordSave(ctx, "error")
		return Metadata{}, &StoreError{Op: "create", SessionID: id, Err: err}
	}
	idx, err := s.readIndexLocked()
	if err != nil {
		recordSave(ctx, "error")
		return Metadata{}, &StoreError{Op: "create", SessionID: id, Err: err}
	}
	idx.Sessions = append(idx.Sessions, meta)
	s.enforceCleanupPolicy(&idx)
	if err := s.writeIndexLocked(idx); err != nil {
		recordSave(ctx, "error")
		return Metadata{}, &StoreError{Op: "create", SessionID: id, Err: err}
	}
	recordSave(ctx, "success")
	return meta, nil
}

// AddMessage appends msg to session id, recomputes message_count and
// total_tokens, advances updated_at, and auto-titles the session if
// this is its first user message and no title is set. The whole
// read-modify-write is one critical section per session id.
func (s *Store) AddMessage(ctx context.Context, id string, msg Message) (Metadata, error) {
	lock := s.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.loadLocked(id)
	if err != nil {
		recordSave(ctx, "error")
		return Metadata{}, err
	}

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	sess.Messages = append(sess.Messages, msg)
	sess.Metadata.MessageCount = uint64(len(sess.Messages))

	var total uint64
	for _, m := range sess.Messages {
		total += m.TokenCount
	}
	sess.Metadata.TotalTokens = total

	if sess.Metadata.Title == "" && msg.Role == RoleUser {
		sess.Metadata.Title = autoTitle(msg.Content)
	}
	if msg.Timestamp.After(sess.Metadata.UpdatedAt) {
		sess.Metadata.UpdatedAt = msg.Timestamp
	} else {
		sess.Metadata.UpdatedAt = time.Now()
	}

	if err := s.writeSessionLocked(sess); err != nil {
		recordSave(ctx, "error")
		return Metadata{}, &StoreError{Op: "add_message", SessionID: id, Err: err}
	}
	if err := s.upsertIndexEntry(sess.Metadata); err != nil {
		recordSave(ctx, "error")
		return Metadata{}, &StoreError{Op: "add_message", SessionID: id, Err: err}
	}
	recordSave(ctx, "success")
	return sess.Metadata, nil
}

// Save overwrites the full session document, recomputing the derived
// metadata counters from the message list so the invariants in §3
// always hold regardless of what the caller supplied.
func (s *Store) Save(ctx context.Context, sess Session) (Metadata, error) {
	lock := s.sessionLock(sess.Metadata.SessionID)
	lock.Lock()
	defer lock.Unlock()

	sess.Metadata.MessageCount = uint64(len(sess.Messages))
	var total uint64
	latest := sess.Metadata.CreatedAt
	for _, m := range sess.Messages {
		total += m.TokenCount
		if m.Timestamp.After(latest) {
			latest = m.Timestamp
		}
	}
	sess.Metadata.TotalTokens = total
	if latest.After(sess.Metadata.UpdatedAt) {
		sess.Metadata.UpdatedAt = latest
	}

	if err := s.writeSessionLocked(sess); err != nil {
		recordSave(ctx, "error")
		return Metadata{}, &StoreError{Op: "save", SessionID: sess.Metadata.SessionID, Err: err}
	}
	if err := s.upsertIndexEntry(sess.Metadata); err != nil {
		recordSave(ctx, "error")
		return Metadata{}, &StoreError{Op: "save", SessionID: sess.Metadata.SessionID, Err: err}
	}
	recordSave(ctx, "success")
	return sess.Metadata, nil
}

// Load reads the full session document for id.
func (s *Store) Load(id string) (Session, error) {
	lock := s.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()
	return s.loadLocked(id)
}

func (s *Store) loadLocked(id string) (Session, error) {
	path, err := s.resolvePath(id)
	if err != nil {
		return Session{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Session{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Session{}, &StoreError{Op: "load", SessionID: id, Err: err}
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		s.quarantine(id, data)
		return Session{}, fmt.Errorf("%w: %s", ErrCorrupted, id)
	}
	return sess, nil
}

// List returns session metadata sorted by most-recently-updated first.
// limit <= 0 means unbounded.
func (s *Store) List(limit int) ([]Metadata, error) {
	s.indexMu.Lock()
	idx, err := s.readIndexLocked()
	s.indexMu.Unlock()
	if err != nil {
		return nil, err
	}
	sessions := append([]Metadata(nil), idx.Sessions...)
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

// Delete removes the session file and its index entry.
func (s *Store) Delete(id string) error {
	lock := s.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	path, err := s.resolvePath(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return &StoreError{Op: "delete", SessionID: id, Err: err}
	}

	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	idx, err := s.readIndexLocked()
	if err != nil {
		return err
	}
	out := idx.Sessions[:0]
	for _, m := range idx.Sessions {
		if m.SessionID != id {
			out = append(out, m)
		}
	}
	idx.Sessions = out
	return s.writeIndexLocked(idx)
}

// Export renders session id in the given format. "markdown" is the
// only supported format.
func (s *Store) Export(id, format string) (string, error) {
	if format != "markdown" {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	sess, err := s.Load(id)
	if err != nil {
		return "", err
	}
	return RenderMarkdown(sess), nil
}

func (s *Store) upsertIndexEntry(meta Metadata) error {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	idx, err := s.readIndexLocked()
	if err != nil {
		return err
	}
	found := false
	for i := range idx.Sessions {
		if idx.Sessions[i].SessionID == meta.SessionID {
			idx.Sessions[i] = meta
			found = true
			break
		}
	}
	if !found {
		idx.Sessions = append(idx.Sessions, meta)
	}
	s.enforceCleanupPolicy(&idx)
	return s.writeIndexLocked(idx)
}

// enforceCleanupPolicy deletes the oldest entries beyond cleanupFloor
// once the index exceeds cleanupTrigger. Best-effort: a failure to
// remove one file is logged and the pass continues.
func (s *Store) enforceCleanupPolicy(idx *Index) {
	if len(idx.Sessions) <= cleanupTrigger {
		return
	}
	sort.Slice(idx.Sessions, func(i, j int) bool {
		return idx.Sessions[i].UpdatedAt.Before(idx.Sessions[j].UpdatedAt)
	})
	excess := len(idx.Sessions) - cleanupFloor
	stale := idx.Sessions[:excess]
	idx.Sessions = idx.Sessions[excess:]

	for _, m := range stale {
		path, err := s.resolvePath(m.SessionID)
		if err != nil {
			s.logger.Warn("cleanup: resolve failed", "session_id", m.SessionID, "err", err)
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("cleanup: remove failed", "session_id", m.SessionID, "err", err)
		}
	}
}

func (s *Store) quarantine(id string, data []byte) {
	name := fmt.Sprintf("%s-%s.json", id, uuid.NewString())
	dest := filepath.Join(s.root, "quarantine", name)
	if err := os.WriteFile(dest, data, 0o600); err != nil {
		s.logger.Error("quarantine write failed", "session_id", id, "err", err)
		return
	}
	if path, err := s.resolvePath(id); err == nil {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("quarantine: remove original failed", "session_id", id, "err", err)
		}
	}
	s.logger.Warn("session file quarantined", "session_id", id, "quarantine_path", dest)
}

func (s *Store) writeSessionLocked(sess Session) error {
	path, err := s.resolvePath(sess.Metadata.SessionID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}
	return atomicWriteFile(path, data, 0o600)
}

func (s *Store) indexPath() string { return filepath.Join(s.root, "index.json") }

func (s *Store) readIndexLocked() (Index, error) {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return Index{Version: IndexVersion}, nil
		}
		return Index{}, &StoreError{Op: "read_index", Err: err}
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return Index{}, fmt.Errorf("%w: index.json", ErrCorrupted)
	}
	return idx, nil
}

func (s *Store) writeIndexLocked(idx Index) error {
	if idx.Version == "" {
		idx.Version = IndexVersion
	}
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	return atomicWriteFile(s.indexPath(), data, 0o600)
}

// atomicWriteFile writes data to a temp file in dir(path), sets its
// permissions, syncs it, then renames it over path so readers never
// observe a partial write.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// autoTitle implements the title-on-first-user-message algorithm: take
// the first line, normalize internal whitespace, truncate to 50 runes,
// append an ellipsis if truncated.
func autoTitle(content string) string {
	firstLine := content
	if idx := strings.IndexByte(content, '\n'); idx >= 0 {
		firstLine = content[:idx]
	}
	normalized := strings.Join(strings.Fields(firstLine), " ")

	const maxRunes = 50
	runes := []rune(normalized)
	if len(runes) <= maxRunes {
		return normalized
	}
	return string(runes[:maxRunes]) + "…"
}
