// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/persona-tui/internal/config"
	"github.com/jeranaias/persona-tui/internal/session"
	"github.com/jeranaias/persona-tui/internal/storage"
	"github.com/jeranaias/persona-tui/internal/ui/chat"
	"github.com/jeranaias/persona-tui/internal/ui/styles"
)

// watchDebounce coalesces editor save bursts into one persona list reload.
const watchDebounce = 200 * time.Millisecond

// TUICmd starts the full-screen chat.
// Usage: persona tui --persona Nova
type TUICmd struct {
	Persona string `short:"p" long:"persona" description:"persona to talk to (default: personas.default)"`
	Model   string `short:"m" long:"model" description:"model name, overriding model.name"`

	app *App
}

// Execute runs the Bubble Tea program until the user quits.
func (c *TUICmd) Execute(_ []string) error {
	if err := RequiresTTY("run the full-screen chat"); err != nil {
		return err
	}

	cfg, err := c.app.Config()
	if err != nil {
		return err
	}
	if c.Model != "" {
		cfg.Model.Name = c.Model
	}

	store, location, err := c.app.store()
	if err != nil {
		return err
	}

	logger := c.app.Logger()
	backend := NewBackend(cfg)
	sess := session.New(backend, session.WithModel(backend.Model()), session.WithLogger(logger))

	name := c.Persona
	if name == "" {
		name = cfg.Personas.Default
	}
	if name != "" {
		p, err := store.Load(name)
		if err != nil {
			return fmt.Errorf("persona %q: %w", name, err)
		}
		sess.Start(p)
	}

	var changes <-chan struct{}
	if cfg.Personas.Backend != config.StoreSQLite {
		watcher, err := storage.NewWatcher(location, watchDebounce, logger)
		if err != nil {
			logger.Warn("tui.watch_disabled", "dir", location, "error", err)
		} else {
			defer watcher.Close()
			changes = watcher.Changes()
		}
	}

	m := chat.New(chat.Options{
		Theme:       styles.NewTheme(cfg.UI.Theme),
		Session:     sess,
		Store:       store,
		Health:      backend,
		Markdown:    cfg.UI.Markdown,
		Changes:     changes,
		ExitWords:   cfg.UI.ExitWords,
		FormatError: FormatError,
		Logger:      logger,
	})

	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
