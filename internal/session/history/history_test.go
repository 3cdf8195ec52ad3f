// Copyright (C) 2026 openagent-terminal contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package history

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_AppendAndReadAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "history")
	h, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, h.Append("ls -la"))
	require.NoError(t, h.Append("git status"))

	entries, err := h.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "ls -la", entries[0].Command)
	assert.Equal(t, "git status", entries[1].Command)
	assert.False(t, entries[0].Timestamp.IsZero())
}

func TestHistory_ReadAll_MissingFileIsEmpty(t *testing.T) {
	h, err := Open(filepath.Join(t.TempDir(), "history"))
	require.NoError(t, err)

	entries, err := h.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHistory_ReadAll_SkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history")
	h, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, h.Append("valid command"))

	f, err := filepath.Abs(path)
	require.NoError(t, err)
	appendRaw(t, f, "not-a-valid-line\n")

	entries, err := h.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "valid command", entries[0].Command)
}

func appendRaw(t *testing.T, path, s string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	defer f.Close()
	_, err = f.WriteString(s)
	require.NoError(t, err)
}
