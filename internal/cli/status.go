// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// status.go - Status command implementation for persona.
//
// Command: status
// Aliases: s, info
//
// Examples:
//
//	persona status          Show model service and persona store status
//	persona status --json   Same, as JSON
//
// Sections:
//
//	Model:    backend, URL, model name, reachability, model presence
//	Personas: store backend, location, persona count, default persona

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jeranaias/persona-tui/internal/config"
	"github.com/jeranaias/persona-tui/internal/ollama"
)

// statusTimeout bounds each model service probe.
const statusTimeout = 3 * time.Second

// StatusCmd reports whether chatting would work.
type StatusCmd struct {
	JSON bool `long:"json" description:"print status as JSON"`

	app *App
}

// StatusData is the JSON form of the status report.
type StatusData struct {
	ConfigPath string             `json:"config_path"`
	Model      StatusModelInfo    `json:"model"`
	Personas   StatusPersonasInfo `json:"personas"`
}

// StatusModelInfo describes the model service.
type StatusModelInfo struct {
	Backend string `json:"backend"`
	URL     string `json:"url"`
	Name    string `json:"name"`
	Running bool   `json:"running"`
	// Available is nil when it could not be determined.
	Available *bool  `json:"available,omitempty"`
	Error     string `json:"error,omitempty"`
}

// StatusPersonasInfo describes the persona store.
type StatusPersonasInfo struct {
	Backend  string `json:"backend"`
	Location string `json:"location"`
	Count    int    `json:"count"`
	Default  string `json:"default,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Execute gathers the status and prints it.
func (c *StatusCmd) Execute(_ []string) error {
	cfg, err := c.app.Config()
	if err != nil {
		return err
	}

	data := StatusData{}
	data.ConfigPath, _ = c.app.ConfigPath()
	data.Model = c.collectModelInfo(cfg)
	data.Personas = c.collectPersonasInfo(cfg)

	if c.JSON {
		enc := json.NewEncoder(c.app.out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	c.print(data)
	return nil
}

func (c *StatusCmd) collectModelInfo(cfg *config.Config) StatusModelInfo {
	backend := NewBackend(cfg)
	info := StatusModelInfo{
		Backend: cfg.Model.Backend,
		URL:     backend.BaseURL(),
		Name:    backend.Model(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), statusTimeout)
	defer cancel()

	if err := backend.CheckRunning(ctx); err != nil {
		info.Error = FormatError(err)
		return info
	}
	info.Running = true

	if client, ok := backend.(*ollama.Client); ok {
		exists, err := client.ModelExists(ctx, info.Name)
		if err != nil {
			info.Error = FormatError(err)
			return info
		}
		info.Available = &exists
	}
	return info
}

func (c *StatusCmd) collectPersonasInfo(cfg *config.Config) StatusPersonasInfo {
	info := StatusPersonasInfo{
		Backend: cfg.Personas.Backend,
		Default: cfg.Personas.Default,
	}
	store, location, err := c.app.store()
	if err != nil {
		info.Error = FormatError(err)
		return info
	}
	info.Location = location

	names, err := store.ListKeys()
	if err != nil {
		info.Error = FormatError(err)
		return info
	}
	info.Count = len(names)
	return info
}

func (c *StatusCmd) print(data StatusData) {
	out := c.app.out

	fmt.Fprintln(out, TitleStyle.Render("persona status"))
	fmt.Fprintln(out, RenderSeparator(41))
	fmt.Fprintln(out, "  "+RenderLabel("Config:")+ValueStyle.Render(data.ConfigPath))
	fmt.Fprintln(out)

	m := data.Model
	fmt.Fprintln(out, TitleStyle.Render("Model"))
	fmt.Fprintln(out, "  "+RenderLabel("Backend:")+ValueStyle.Render(m.Backend))
	fmt.Fprintln(out, "  "+RenderLabel("URL:")+ValueStyle.Render(m.URL))
	fmt.Fprintln(out, "  "+RenderLabel("Service:")+RenderStatus(m.Running))
	model := ValueStyle.Render(m.Name)
	if m.Available != nil {
		if *m.Available {
			model += " " + SuccessStyle.Render("(available)")
		} else {
			model += " " + WarningStyle.Render("(not pulled; run 'ollama pull "+m.Name+"')")
		}
	}
	fmt.Fprintln(out, "  "+RenderLabel("Model:")+model)
	if m.Error != "" {
		fmt.Fprintln(out, "  "+ErrorStyle.Render(m.Error))
	}
	fmt.Fprintln(out)

	p := data.Personas
	fmt.Fprintln(out, TitleStyle.Render("Personas"))
	fmt.Fprintln(out, "  "+RenderLabel("Store:")+ValueStyle.Render(p.Backend))
	if p.Error != "" {
		fmt.Fprintln(out, "  "+ErrorStyle.Render(p.Error))
		return
	}
	fmt.Fprintln(out, "  "+RenderLabel("Location:")+ValueStyle.Render(p.Location))
	fmt.Fprintln(out, "  "+RenderLabel("Saved:")+ValueStyle.Render(fmt.Sprintf("%d", p.Count)))
	if p.Default != "" {
		fmt.Fprintln(out, "  "+RenderLabel("Default:")+PersonaStyle.Render(p.Default))
	}
}
