// Copyright (C) 2026 openagent-terminal contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package message

import "sync"

// DriftTracker deduplicates protocol_drift warnings: a given unknown
// top-level key or unrecognized notification method produces at most
// one warning for the lifetime of the connection it is scoped to. A new
// connection (after reconnect) gets a fresh DriftTracker so drift is
// re-reported if it recurs.
type DriftTracker struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewDriftTracker returns an empty tracker.
func NewDriftTracker() *DriftTracker {
	return &DriftTracker{seen: make(map[string]struct{})}
}

// Once reports true the first time it is called with a given key and
// false on every subsequent call with that same key.
func (d *DriftTracker) Once(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[key]; ok {
		return false
	}
	d.seen[key] = struct{}{}
	return true
}
