// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// setup.go - First-run setup for persona.
//
// Command: setup
//
// Steps:
//
//	[1] Configuration: write ~/.persona/config.toml when missing
//	[2] System check: OS, ollama binary, model service, model presence
//	[3] Personas: open the store and add an example persona when empty
//
// Setup never downloads anything. A missing model is reported with the
// "ollama pull" command to run.

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"

	"github.com/jeranaias/persona-tui/internal/config"
	"github.com/jeranaias/persona-tui/internal/ollama"
	"github.com/jeranaias/persona-tui/internal/persona"
)

// ExamplePersona is added by setup when the store is empty.
var ExamplePersona = persona.Persona{
	Name:        "Nova",
	Description: "A friendly starship navigator who loves explaining how things work.",
	UserRole:    "a curious passenger on Nova's ship",
	ReplyStyle:  "Warm and concise. Use nautical and space metaphors now and then.",
}

// SetupCmd prepares the config directory, config file and persona store.
type SetupCmd struct {
	Model     string `short:"m" long:"model" description:"model name written to a new config (default: llama3.1)"`
	NoExample bool   `long:"no-example" description:"do not add the example persona"`

	app *App
}

// Execute runs every step and reports each outcome. Only failures to
// write the config or open the store are errors; a stopped model service
// is reported as a warning.
func (c *SetupCmd) Execute(_ []string) error {
	out := c.app.out

	fmt.Fprintln(out, RenderSeparator(60))
	fmt.Fprintln(out, TitleStyle.Render("persona setup"))
	fmt.Fprintln(out, RenderSeparator(60))

	path, err := c.app.ConfigPath()
	if err != nil {
		return err
	}
	if err := c.writeConfig(out, path); err != nil {
		return err
	}

	cfg, err := c.app.Config()
	if err != nil {
		return err
	}
	c.systemCheck(out, cfg)

	name, err := c.setupPersonas(out)
	if err != nil {
		return err
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, SuccessStyle.Render("Setup complete."))
	if name != "" {
		fmt.Fprintln(out, "Start chatting with: "+PromptStyle.Render("persona chat --persona "+quoteArg(name)))
	} else {
		fmt.Fprintln(out, "Create a persona with: "+PromptStyle.Render("persona personas create --name NAME --description TEXT"))
	}
	return nil
}

// =============================================================================
// STEPS
// =============================================================================

func (c *SetupCmd) writeConfig(out io.Writer, path string) error {
	section(out, "[1] Configuration")

	if _, err := os.Stat(path); err == nil {
		fmt.Fprintln(out, "  "+WarningStyle.Render("[!]")+" Config already exists: "+path)
		return nil
	}

	cfg := config.Default()
	if c.Model != "" {
		cfg.Model.Name = c.Model
	}
	if err := saveConfig(cfg, path); err != nil {
		return err
	}
	fmt.Fprintln(out, "  "+RenderStatus(true)+" Created config: "+path)
	return nil
}

func (c *SetupCmd) systemCheck(out io.Writer, cfg *config.Config) {
	section(out, "[2] System check")
	fmt.Fprintf(out, "  %s Operating system: %s/%s\n", RenderStatus(true), runtime.GOOS, runtime.GOARCH)

	if cfg.Model.Backend == config.BackendOllama {
		if _, err := exec.LookPath("ollama"); err != nil {
			fmt.Fprintln(out, "  "+WarningStyle.Render("[!]")+" ollama: not on PATH")
			fmt.Fprintln(out, "      -> Install it from https://ollama.com")
		} else {
			fmt.Fprintln(out, "  "+RenderStatus(true)+" ollama: installed")
		}
	}

	backend := NewBackend(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), statusTimeout)
	defer cancel()

	if err := backend.CheckRunning(ctx); err != nil {
		fmt.Fprintln(out, "  "+RenderStatus(false)+" Model service at "+backend.BaseURL()+" is not answering")
		if cfg.Model.Backend == config.BackendOllama && ollama.IsNotRunning(err) {
			fmt.Fprintln(out, "      -> Run: ollama serve")
		}
		return
	}
	fmt.Fprintln(out, "  "+RenderStatus(true)+" Model service: "+backend.BaseURL())

	client, ok := backend.(*ollama.Client)
	if !ok {
		return
	}
	exists, err := client.ModelExists(ctx, client.Model())
	switch {
	case err != nil:
		fmt.Fprintln(out, "  "+WarningStyle.Render("[!]")+" Could not list models: "+FormatError(err))
	case exists:
		fmt.Fprintln(out, "  "+RenderStatus(true)+" Model: "+client.Model())
	default:
		fmt.Fprintln(out, "  "+WarningStyle.Render("[!]")+" Model "+client.Model()+" is not pulled")
		fmt.Fprintln(out, "      -> Run: ollama pull "+client.Model())
	}
}

// setupPersonas opens the store and returns the persona to suggest, if any.
func (c *SetupCmd) setupPersonas(out io.Writer) (string, error) {
	section(out, "[3] Personas")

	store, location, err := c.app.store()
	if err != nil {
		return "", err
	}
	fmt.Fprintln(out, "  "+RenderStatus(true)+" Store: "+location)

	names, err := store.ListKeys()
	if err != nil {
		return "", err
	}
	if len(names) > 0 {
		fmt.Fprintf(out, "  %s %d personas saved\n", RenderStatus(true), len(names))
		return names[0], nil
	}
	if c.NoExample {
		return "", nil
	}

	if err := store.Save(ExamplePersona); err != nil {
		return "", err
	}
	c.app.Logger().Info("persona.saved", "name", ExamplePersona.Name, "source", "setup")
	fmt.Fprintln(out, "  "+RenderStatus(true)+" Added example persona "+PersonaStyle.Render(ExamplePersona.Name))
	return ExamplePersona.Name, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func section(out io.Writer, title string) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, TitleStyle.Render(title))
}

// quoteArg quotes a persona name for a shell command line when needed.
func quoteArg(s string) string {
	for _, r := range s {
		if r == ' ' || r == '\'' || r == '"' {
			return fmt.Sprintf("%q", s)
		}
	}
	return s
}
