// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// helpers.go - Wiring shared by the commands: config, logger, persona
// store and model backend, all built from the loaded config.

package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jeranaias/persona-tui/internal/compat"
	"github.com/jeranaias/persona-tui/internal/config"
	"github.com/jeranaias/persona-tui/internal/logging"
	"github.com/jeranaias/persona-tui/internal/model"
	"github.com/jeranaias/persona-tui/internal/ollama"
	"github.com/jeranaias/persona-tui/internal/storage"
)

// =============================================================================
// APP
// =============================================================================

// App carries the global options, the standard streams and lazily built
// shared resources for one invocation.
type App struct {
	opts   *Options
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	cfg     *config.Config
	logger  *slog.Logger
	closers []io.Closer
}

func newApp(opts *Options, in io.Reader, out, errOut io.Writer) *App {
	return &App{opts: opts, in: in, out: out, errOut: errOut}
}

// ConfigPath returns the file --config names, or the default TOML path.
func (a *App) ConfigPath() (string, error) {
	if a.opts.Config != "" {
		return config.ExpandPath(a.opts.Config)
	}
	return config.ConfigPathTOML()
}

// Config loads the configuration once.
func (a *App) Config() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}

	var cfg *config.Config
	var err error
	if a.opts.Config != "" {
		path, perr := config.ExpandPath(a.opts.Config)
		if perr != nil {
			return nil, perr
		}
		cfg, err = config.LoadFromPath(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if a.opts.Verbose {
		cfg.Log.Level = "debug"
	}
	a.cfg = cfg
	return cfg, nil
}

// Logger returns the file logger. Output that cannot be opened is
// reported once and dropped so the command still runs.
func (a *App) Logger() *slog.Logger {
	if a.logger != nil {
		return a.logger
	}
	a.logger = logging.Discard()

	cfg, err := a.Config()
	if err != nil {
		return a.logger
	}
	logger, closer, err := logging.New(cfg)
	if err != nil {
		fmt.Fprintln(a.errOut, WarningStyle.Render("[!] logging disabled: "+err.Error()))
		return a.logger
	}
	a.logger = logger
	a.closers = append(a.closers, closer)
	return a.logger
}

// UseLogger replaces the logger, e.g. with a stderr logger for serve.
func (a *App) UseLogger(l *slog.Logger) {
	a.logger = l
}

// Close releases everything opened for this invocation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i].Close()
	}
	a.closers = nil
}

// =============================================================================
// PERSONA STORE
// =============================================================================

// NewStore opens the persona store configured in cfg. The returned
// location is the directory or database path.
func NewStore(cfg *config.Config, logger *slog.Logger) (storage.PersonaStore, string, io.Closer, error) {
	switch cfg.Personas.Backend {
	case config.StoreSQLite:
		path, err := cfg.PersonaDBPath()
		if err != nil {
			return nil, "", nil, err
		}
		store, err := storage.NewSQLiteStore(path, logger)
		if err != nil {
			return nil, "", nil, err
		}
		return store, path, store, nil

	default:
		dir, err := cfg.PersonaDir()
		if err != nil {
			return nil, "", nil, err
		}
		format, err := storage.ParseFormat(cfg.Personas.Format)
		if err != nil {
			return nil, "", nil, err
		}
		store, err := storage.NewFileStore(dir, storage.WithFormat(format), storage.WithLogger(logger))
		if err != nil {
			return nil, "", nil, err
		}
		return store, dir, nopCloser{}, nil
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// store opens the configured store and registers it for Close.
func (a *App) store() (storage.PersonaStore, string, error) {
	cfg, err := a.Config()
	if err != nil {
		return nil, "", err
	}
	store, location, closer, err := NewStore(cfg, a.Logger())
	if err != nil {
		return nil, "", err
	}
	a.closers = append(a.closers, closer)
	return store, location, nil
}

// =============================================================================
// MODEL BACKEND
// =============================================================================

// Backend is a model service client usable by sessions and health checks.
type Backend interface {
	Complete(ctx context.Context, transcript []model.Turn) (string, error)
	CheckRunning(ctx context.Context) error
	Model() string
	BaseURL() string
}

// NewBackend builds the client for cfg.Model.Backend.
func NewBackend(cfg *config.Config) Backend {
	if cfg.Model.Backend == config.BackendOpenAI {
		return compat.NewClient(compat.Config{
			BaseURL: cfg.Model.URL,
			APIKey:  cfg.Model.APIKey,
			Model:   cfg.Model.Name,
			Timeout: cfg.Model.Timeout(),
		})
	}
	return ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:      cfg.Model.URL,
		Timeout:      cfg.Model.Timeout(),
		DefaultModel: cfg.Model.Name,
	})
}
