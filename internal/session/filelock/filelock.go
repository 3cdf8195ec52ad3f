// Copyright (C) 2026 openagent-terminal contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package filelock provides OS-level advisory file locking for
// concurrent-append safety, shared by the session store and the
// command-history collaborator.
package filelock

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// ErrLocked is returned by TryLock when another process already holds
// the lock.
var ErrLocked = errors.New("filelock: already locked")

// Lock acquires a blocking exclusive advisory lock on f via flock(2).
// The lock is released by Unlock or when f is closed.
func Lock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_EX)
}

// TryLock acquires a non-blocking exclusive lock, returning ErrLocked
// immediately if another process holds it.
func TryLock(f *os.File) error {
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) {
			return ErrLocked
		}
		return err
	}
	return nil
}

// Unlock releases the lock. Safe to call even if f is not locked.
func Unlock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
