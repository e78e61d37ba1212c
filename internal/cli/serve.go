// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jeranaias/persona-tui/internal/logging"
	"github.com/jeranaias/persona-tui/internal/server"
	"github.com/jeranaias/persona-tui/internal/session"
)

// ServeCmd runs the local HTTP API until interrupted.
// Usage: persona serve --addr 127.0.0.1:8765
type ServeCmd struct {
	Addr  string `short:"a" long:"addr" description:"listen address (default: server.addr)"`
	Token string `long:"token" description:"bearer token required by every request except /health"`

	app *App
}

// Execute serves until SIGINT or SIGTERM. Logs go to stderr.
func (c *ServeCmd) Execute(_ []string) error {
	cfg, err := c.app.Config()
	if err != nil {
		return err
	}
	if c.Addr != "" {
		cfg.Server.Addr = c.Addr
	}
	if c.Token != "" {
		cfg.Server.Token = c.Token
	}

	logger, err := logging.NewStream(cfg, c.app.errOut)
	if err != nil {
		return err
	}
	c.app.UseLogger(logger)

	store, location, err := c.app.store()
	if err != nil {
		return err
	}
	backend := NewBackend(cfg)

	sessions := session.NewManager(session.Config{
		IdleTimeout: cfg.Server.SessionIdle(),
		MaxSessions: cfg.Server.MaxSessions,
		Logger:      logger,
	})

	srv := server.New(server.Options{
		Addr:      cfg.Server.Addr,
		Store:     store,
		Completer: backend,
		Health:    backend,
		Sessions:  sessions,
		Model:     backend.Model(),
		Token:     cfg.Server.Token,
		Logger:    logger,
	})

	if cfg.Server.Token == "" {
		logger.Warn("server.no_token", "addr", cfg.Server.Addr)
	}
	fmt.Fprintln(c.app.out, SuccessStyle.Render("[OK]")+" Serving personas from "+location+" on http://"+srv.Addr())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.ListenAndServe(ctx)
}
