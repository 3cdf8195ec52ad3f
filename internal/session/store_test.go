// Copyright (C) 2026 openagent-terminal contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	return s
}

func TestStore_CreateAndLoad(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	meta, err := s.Create(ctx, "my title")
	require.NoError(t, err)
	assert.Equal(t, "my title", meta.Title)
	assert.NotEmpty(t, meta.SessionID)

	sess, err := s.Load(meta.SessionID)
	require.NoError(t, err)
	assert.Equal(t, meta.SessionID, sess.Metadata.SessionID)
	assert.Empty(t, sess.Messages)
}

func TestStore_AddMessage_AutoTitleAndCounters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	meta, err := s.Create(ctx, "")
	require.NoError(t, err)

	meta, err = s.AddMessage(ctx, meta.SessionID, Message{
		Role:       RoleUser,
		Content:    "Help me debug this authentication error in my Python application, it keeps failing",
		TokenCount: 12,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), meta.MessageCount)
	assert.Equal(t, uint64(12), meta.TotalTokens)
	assert.True(t, len([]rune(meta.Title)) <= 51)
	assert.Contains(t, meta.Title, "…")

	meta, err = s.AddMessage(ctx, meta.SessionID, Message{
		Role:       RoleAssistant,
		Content:    "Sure, let's look at the stack trace.",
		TokenCount: 8,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), meta.MessageCount)
	assert.Equal(t, uint64(20), meta.TotalTokens)
	assert.True(t, meta.UpdatedAt.Equal(meta.CreatedAt) || meta.UpdatedAt.After(meta.CreatedAt))

	sess, err := s.Load(meta.SessionID)
	require.NoError(t, err)
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, sess.Metadata.MessageCount, uint64(len(sess.Messages)))
}

func TestStore_AutoTitle_ShortMessageNotTruncated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	meta, err := s.Create(ctx, "")
	require.NoError(t, err)

	meta, err = s.AddMessage(ctx, meta.SessionID, Message{Role: RoleUser, Content: "hi there\nextra line"})
	require.NoError(t, err)
	assert.Equal(t, "hi there", meta.Title)
}

func TestStore_Load_RejectsPathTraversalWithoutTouchingFilesystem(t *testing.T) {
	root := t.TempDir()
	s, err := NewStore(root, nil)
	require.NoError(t, err)

	sentinel := filepath.Join(filepath.Dir(root), "sentinel.json")
	require.NoError(t, os.WriteFile(sentinel, []byte("do-not-touch"), 0o600))
	defer os.Remove(sentinel)

	_, err = s.Load("../" + filepath.Base(root) + "/../" + filepath.Base(sentinel))
	require.ErrorIs(t, err, ErrNotFound)

	data, err := os.ReadFile(sentinel)
	require.NoError(t, err)
	assert.Equal(t, "do-not-touch", string(data))
}

func TestStore_Load_UnknownIDIsNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Load("2026-01-01_000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_Load_CorruptedFileIsQuarantined(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	meta, err := s.Create(ctx, "")
	require.NoError(t, err)

	path, err := s.resolvePath(meta.SessionID)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err = s.Load(meta.SessionID)
	require.ErrorIs(t, err, ErrCorrupted)

	entries, err := os.ReadDir(filepath.Join(s.root, "quarantine"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStore_Delete_RemovesFileAndIndexEntry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	meta, err := s.Create(ctx, "")
	require.NoError(t, err)

	require.NoError(t, s.Delete(meta.SessionID))

	_, err = s.Load(meta.SessionID)
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := s.List(0)
	require.NoError(t, err)
	for _, m := range list {
		assert.NotEqual(t, meta.SessionID, m.SessionID)
	}
}

func TestStore_List_SortedByUpdatedDescending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.Create(ctx, "first")
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)
	second, err := s.Create(ctx, "second")
	require.NoError(t, err)

	list, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.SessionID, list[0].SessionID)
	assert.Equal(t, first.SessionID, list[1].SessionID)
}

func TestStore_Export_MarkdownContainsMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	meta, err := s.Create(ctx, "export demo")
	require.NoError(t, err)
	_, err = s.AddMessage(ctx, meta.SessionID, Message{Role: RoleUser, Content: "# not a real heading"})
	require.NoError(t, err)

	out, err := s.Export(meta.SessionID, "markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "export demo")
	assert.Contains(t, out, "\\# not a real heading")
}

func TestStore_Export_UnsupportedFormat(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	meta, err := s.Create(ctx, "")
	require.NoError(t, err)

	_, err = s.Export(meta.SessionID, "pdf")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestStore_CleanupPolicy_TrimsOldestBeyondFloor(t *testing.T) {
	s := newTestStore(t)

	idx := Index{Version: IndexVersion}
	base := time.Now().Add(-24 * time.Hour)
	for i := 0; i < cleanupTrigger+1; i++ {
		idx.Sessions = append(idx.Sessions, Metadata{
			SessionID: time.Unix(0, 0).Add(time.Duration(i) * time.Second).Format(sessionIDLayout),
			UpdatedAt: base.Add(time.Duration(i) * time.Second),
		})
	}

	s.enforceCleanupPolicy(&idx)
	assert.Len(t, idx.Sessions, cleanupFloor)
}
