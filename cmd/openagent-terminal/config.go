// Copyright (C) 2026 openagent-terminal contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"
	"path/filepath"
)

// resolveSocketPath applies the precedence CLI flag > OPENAGENT_SOCKET >
// $XDG_RUNTIME_DIR/openagent-terminal-0.sock.
func resolveSocketPath(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if v := os.Getenv("OPENAGENT_SOCKET"); v != "" {
		return v, nil
	}
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		return "", fmt.Errorf("no --socket given, OPENAGENT_SOCKET unset, and XDG_RUNTIME_DIR unset")
	}
	return filepath.Join(runtimeDir, "openagent-terminal-0.sock"), nil
}

// dataRoot returns $XDG_CONFIG_HOME/openagent-terminal, falling back to
// ~/.config/openagent-terminal.
func dataRoot() (string, error) {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "openagent-terminal"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "openagent-terminal"), nil
}
