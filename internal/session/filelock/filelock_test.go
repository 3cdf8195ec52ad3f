// Copyright (C) 2026 openagent-terminal contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package filelock

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *os.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestTryLock_SecondHolderOnSameFDIsAllowed(t *testing.T) {
	// flock(2) locks are associated with the open file description, not
	// the process: a second TryLock from the same fd succeeds (it's
	// already held by this description). Cross-process contention is
	// exercised by opening the path a second time.
	f := openTemp(t)
	require.NoError(t, TryLock(f))
	require.NoError(t, TryLock(f))
	require.NoError(t, Unlock(f))
}

func TestTryLock_ContendedFromSecondDescriptor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lock")
	a, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	require.NoError(t, err)
	defer a.Close()
	b, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, TryLock(a))
	err = TryLock(b)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, Unlock(a))
	assert.NoError(t, TryLock(b))
	require.NoError(t, Unlock(b))
}

func TestLock_BlocksThenUnlockReleases(t *testing.T) {
	f := openTemp(t)
	require.NoError(t, Lock(f))
	require.NoError(t, Unlock(f))
}
