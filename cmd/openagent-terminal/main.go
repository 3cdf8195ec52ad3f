// Copyright (C) 2026 openagent-terminal contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command openagent-terminal is the interactive terminal frontend: it
// connects to a local agent backend over a Unix domain socket and runs
// the foreground event loop, or executes a single query and exits when
// given --execute.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/openagent-terminal/client/internal/eventloop"
	"github.com/openagent-terminal/client/internal/ipc/client"
	"github.com/openagent-terminal/client/internal/ipc/message"
	"github.com/openagent-terminal/client/internal/session"
	"github.com/openagent-terminal/client/internal/session/history"
	"github.com/openagent-terminal/client/pkg/logging"
)

var (
	flagSocket   string
	flagExecute  string
	flagLogLevel string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "openagent-terminal",
		Short: "Interactive terminal frontend for a local agent backend",
		RunE:  run,
	}
	cmd.Flags().StringVar(&flagSocket, "socket", "", "Unix domain socket path (default: $OPENAGENT_SOCKET or $XDG_RUNTIME_DIR/openagent-terminal-0.sock)")
	cmd.Flags().StringVar(&flagExecute, "execute", "", "run a single query non-interactively and exit")
	cmd.Flags().StringVar(&flagLogLevel, "log-level", "info", "log level: debug, info, warn, error")
	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	level, err := logging.ParseLevel(flagLogLevel)
	if err != nil {
		return err
	}
	logger := logging.New(logging.Config{Level: level, Service: "openagent-terminal"})
	defer logger.Close()

	socketPath, err := resolveSocketPath(flagSocket)
	if err != nil {
		return err
	}

	root, err := dataRoot()
	if err != nil {
		return err
	}

	store, err := session.NewStore(root+"/sessions", logger)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	hist, err := history.Open(root + "/history")
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}

	c := client.New(client.Config{
		SocketPath:    socketPath,
		ClientVersion: version,
		Logger:        logger,
	})

	ctx := context.Background()
	if err := c.Connect(ctx); err != nil {
		return fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer c.Disconnect()

	sessions := session.NewRemoteSync(store, c, logger)

	watchStop := make(chan struct{})
	defer close(watchStop)
	if err := store.WatchExternalChanges(watchStop); err != nil {
		logger.Warn("session watcher failed to start", "err", err)
	}

	if flagExecute != "" {
		return runOnce(ctx, c, hist, sessions, flagExecute)
	}

	p := tea.NewProgram(eventloop.New(c, logger, sessions), tea.WithAltScreen())
	_, err = p.Run()
	return err
}

// runOnce sends a single agent.query, records it to the command
// history and to a dedicated session, prints the final response's
// result, and returns. Session persistence is best-effort: a failure
// to create or update the session is logged, never fatal to the query
// itself.
func runOnce(ctx context.Context, c *client.Client, hist *history.History, sessions *session.RemoteSync, query string) error {
	if err := hist.Append(query); err != nil {
		return fmt.Errorf("append history: %w", err)
	}

	meta, sessErr := sessions.Create(ctx, "")
	if sessErr != nil {
		fmt.Fprintln(os.Stderr, "warning: session create failed:", sessErr)
	} else if _, err := sessions.AddMessage(ctx, meta.SessionID, session.Message{Role: session.RoleUser, Content: query}); err != nil {
		fmt.Fprintln(os.Stderr, "warning: session add_message failed:", err)
	}

	params, err := json.Marshal(message.AgentQueryParams{Message: query})
	if err != nil {
		return err
	}
	resp, err := c.SendRequest(ctx, message.MethodAgentQuery, params)
	if err != nil {
		return fmt.Errorf("agent.query: %w", err)
	}
	if resp.Error != nil {
		return resp.Error
	}
	if sessErr == nil {
		if _, err := sessions.AddMessage(ctx, meta.SessionID, session.Message{Role: session.RoleAssistant, Content: string(resp.Result)}); err != nil {
			fmt.Fprintln(os.Stderr, "warning: session add_message failed:", err)
		}
	}
	fmt.Println(string(resp.Result))
	return nil
}

// version is overridden at build time via -ldflags.
var version = "dev"
