// Copyright (C) 2026 openagent-terminal contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// WatchExternalChanges watches the store root and logs every write,
// create, remove or rename in it. Events caused by this Store's own
// writes are not filtered out and are logged as well. Detected changes
// are logged, never auto-reloaded: the store is the sole authority on
// what's on disk.
// The watcher goroutine exits once stop is closed.
func (s *Store) WatchExternalChanges(stop <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("session: create watcher: %w", err)
	}
	if err := watcher.Add(s.root); err != nil {
		watcher.Close()
		return fmt.Errorf("session: watch root: %w", err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					s.logger.Info("external session file change detected", "path", event.Name, "op", event.Op.String())
				}
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("session watcher error", "err", werr)
			case <-stop:
				return
			}
		}
	}()
	return nil
}
