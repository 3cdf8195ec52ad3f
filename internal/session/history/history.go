// Copyright (C) 2026 openagent-terminal contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package history implements the command-history collaborator at
// <data-root>/history: an append-only "timestamp:command" file
// governed by the same flock discipline as the session store.
package history

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/openagent-terminal/client/internal/session/filelock"
)

// History is one process's handle on the history file. Append is safe
// for concurrent use within the process; filelock additionally
// serializes appends across processes sharing the same file.
type History struct {
	path string
	mu   sync.Mutex
}

// Open prepares the history file's parent directory and returns a
// handle. The file itself is created lazily on first Append.
func Open(path string) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("history: create dir: %w", err)
	}
	return &History{path: path}, nil
}

// Append records one command, timestamped now, at the end of the file.
func (h *History) Append(command string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	f, err := os.OpenFile(h.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("history: open: %w", err)
	}
	defer f.Close()

	if err := filelock.Lock(f); err != nil {
		return fmt.Errorf("history: lock: %w", err)
	}
	defer filelock.Unlock(f)

	line := fmt.Sprintf("%d:%s\n", time.Now().Unix(), command)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("history: write: %w", err)
	}
	return nil
}

// Entry is one parsed history line.
type Entry struct {
	Timestamp time.Time
	Command   string
}

// ReadAll returns every recorded entry in file order. A missing file
// is an empty history, not an error. Lines that fail to parse are
// skipped rather than aborting the whole read.
func (h *History) ReadAll() ([]Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	data, err := os.ReadFile(h.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("history: read: %w", err)
	}

	var entries []Entry
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		if line == "" {
			continue
		}
		sep := strings.IndexByte(line, ':')
		if sep < 0 {
			continue
		}
		sec, err := strconv.ParseInt(line[:sep], 10, 64)
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			Timestamp: time.Unix(sec, 0),
			Command:   line[sep+1:],
		})
	}
	return entries, nil
}
