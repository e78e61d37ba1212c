// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Config command implementation for persona.
//
// Command: config [subcommand]
//
// Subcommands:
//
//	show (default)      Display the effective configuration
//	path                Show the configuration file path
//	init [--force]      Write the default configuration file
//	get <key>           Print one value
//	set <key> <value>   Set one value in the configuration file
//	keys                List every key
//
// Examples:
//
//	persona config set model.name mistral
//	persona config set personas.backend sqlite
//	persona config set ui.exit_words exit,quit,bye,ciao
//	persona config get server.addr
//
// Secrets (model.api_key, server.token) are redacted by show and get.

package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jeranaias/persona-tui/internal/config"
)

// ConfigCmd groups the configuration subcommands. With no subcommand it
// shows the configuration.
type ConfigCmd struct {
	Show ConfigShowCmd `command:"show" description:"Display the effective configuration"`
	Path ConfigPathCmd `command:"path" description:"Show the configuration file path"`
	Init ConfigInitCmd `command:"init" description:"Write the default configuration file"`
	Get  ConfigGetCmd  `command:"get" description:"Print one configuration value"`
	Set  ConfigSetCmd  `command:"set" description:"Set one value in the configuration file"`
	Keys ConfigKeysCmd `command:"keys" description:"List configuration keys"`

	app *App
}

func (c *ConfigCmd) attach(a *App) {
	c.app = a
	c.Show.app = a
	c.Path.app = a
	c.Init.app = a
	c.Get.app = a
	c.Set.app = a
	c.Keys.app = a
}

// Execute shows the configuration when no subcommand is given.
func (c *ConfigCmd) Execute(args []string) error {
	if len(args) > 0 {
		return unknownCommand("config", args[0])
	}
	return c.Show.Execute(args)
}

// secretKeys are redacted on output.
var secretKeys = map[string]bool{
	"model.api_key": true,
	"server.token":  true,
}

// maskSecret hides all but the last four characters of a secret.
func maskSecret(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 8 {
		return "****"
	}
	return "****" + value[len(value)-4:]
}

// =============================================================================
// SHOW / PATH / KEYS
// =============================================================================

// ConfigShowCmd prints the effective configuration, env overrides applied.
type ConfigShowCmd struct {
	app *App
}

func (c *ConfigShowCmd) Execute(_ []string) error {
	cfg, err := c.app.Config()
	if err != nil {
		return err
	}
	fmt.Fprint(c.app.out, cfg.String())
	return nil
}

// ConfigPathCmd prints the configuration file path and whether it exists.
type ConfigPathCmd struct {
	app *App
}

func (c *ConfigPathCmd) Execute(_ []string) error {
	path, err := c.app.ConfigPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(c.app.out, path+DimStyle.Render(" (not created; defaults in use)"))
		return nil
	}
	fmt.Fprintln(c.app.out, path)
	return nil
}

// ConfigKeysCmd lists every settable key.
type ConfigKeysCmd struct {
	app *App
}

func (c *ConfigKeysCmd) Execute(_ []string) error {
	for _, key := range config.GetAllKeys() {
		fmt.Fprintln(c.app.out, key)
	}
	return nil
}

// =============================================================================
// INIT
// =============================================================================

// ConfigInitCmd writes the default configuration.
type ConfigInitCmd struct {
	Force bool `short:"f" long:"force" description:"overwrite an existing file"`

	app *App
}

func (c *ConfigInitCmd) Execute(_ []string) error {
	path, err := c.app.ConfigPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !c.Force {
		return &UsageError{Message: path + " already exists; use --force to overwrite"}
	}
	if err := saveConfig(config.Default(), path); err != nil {
		return err
	}
	fmt.Fprintln(c.app.out, SuccessStyle.Render("[OK]")+" Wrote "+path)
	return nil
}

// =============================================================================
// GET / SET
// =============================================================================

// ConfigGetCmd prints one value of the effective configuration.
type ConfigGetCmd struct {
	Args struct {
		Key string `positional-arg-name:"KEY"`
	} `positional-args:"yes" required:"yes"`

	app *App
}

func (c *ConfigGetCmd) Execute(_ []string) error {
	cfg, err := c.app.Config()
	if err != nil {
		return err
	}
	key := strings.ToLower(c.Args.Key)
	value, err := cfg.Get(key)
	if err != nil {
		return &UsageError{Message: err.Error()}
	}

	text := formatValue(value)
	if secretKeys[key] {
		text = maskSecret(text)
	}
	fmt.Fprintln(c.app.out, text)
	return nil
}

func formatValue(v interface{}) string {
	if list, ok := v.([]string); ok {
		return strings.Join(list, ",")
	}
	return fmt.Sprint(v)
}

// ConfigSetCmd changes one value in the configuration file. Environment
// overrides are not written back.
type ConfigSetCmd struct {
	Args struct {
		Key   string `positional-arg-name:"KEY"`
		Value string `positional-arg-name:"VALUE"`
	} `positional-args:"yes" required:"yes"`

	app *App
}

func (c *ConfigSetCmd) Execute(_ []string) error {
	path, err := c.app.ConfigPath()
	if err != nil {
		return err
	}

	cfg := config.Default()
	if _, statErr := os.Stat(path); statErr == nil {
		if strings.HasSuffix(path, ".json") {
			err = config.LoadJSON(cfg, path)
		} else {
			err = config.LoadTOML(cfg, path)
		}
		if err != nil {
			return err
		}
	} else if !errors.Is(statErr, os.ErrNotExist) {
		return statErr
	}

	key := strings.ToLower(c.Args.Key)
	if err := cfg.Set(key, c.Args.Value); err != nil {
		return &UsageError{Message: err.Error()}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := saveConfig(cfg, path); err != nil {
		return err
	}

	shown := c.Args.Value
	if secretKeys[key] {
		shown = maskSecret(shown)
	}
	fmt.Fprintln(c.app.out, SuccessStyle.Render("[OK]")+" "+key+" = "+shown)
	return nil
}

// saveConfig writes JSON for a .json path and TOML otherwise.
func saveConfig(cfg *config.Config, path string) error {
	if strings.HasSuffix(path, ".json") {
		return config.SaveJSON(cfg, path)
	}
	return config.SaveTOML(cfg, path)
}
