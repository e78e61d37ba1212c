// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// personas.go - Persona management commands.
//
// Usage:
//
//	persona personas                      List saved personas
//	persona personas show NAME [--prompt] Show one persona
//	persona personas create --name NAME   Create or update a persona
//	persona personas delete NAME          Delete a persona
//	persona personas rename OLD NEW       Rename a persona
//	persona personas import FILE...       Import persona files
//	persona personas export NAME          Write a persona as JSON or YAML

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeranaias/persona-tui/internal/config"
	"github.com/jeranaias/persona-tui/internal/persona"
	"github.com/jeranaias/persona-tui/internal/storage"
	"github.com/jeranaias/persona-tui/internal/util"
)

// PersonasCmd groups the persona management subcommands. With no
// subcommand it lists personas.
type PersonasCmd struct {
	List   PersonasListCmd   `command:"list" alias:"ls" description:"List saved personas"`
	Show   PersonasShowCmd   `command:"show" description:"Show one persona"`
	Create PersonasCreateCmd `command:"create" alias:"add" description:"Create or update a persona"`
	Delete PersonasDeleteCmd `command:"delete" alias:"rm" description:"Delete a persona"`
	Rename PersonasRenameCmd `command:"rename" alias:"mv" description:"Rename a persona"`
	Import PersonasImportCmd `command:"import" description:"Import persona files (.json, .yaml)"`
	Export PersonasExportCmd `command:"export" description:"Write a persona to stdout or a file"`

	app *App
}

func (c *PersonasCmd) attach(a *App) {
	c.app = a
	c.List.app = a
	c.Show.app = a
	c.Create.app = a
	c.Delete.app = a
	c.Rename.app = a
	c.Import.app = a
	c.Export.app = a
}

// Execute lists personas when no subcommand is given.
func (c *PersonasCmd) Execute(args []string) error {
	if len(args) > 0 {
		return unknownCommand("personas", args[0])
	}
	return c.List.Execute(args)
}

// notFound adds the persona name to a store error.
func notFound(name string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("persona %q: %w", name, err)
	}
	return err
}

// =============================================================================
// LIST
// =============================================================================

// PersonasListCmd lists saved personas with their summaries.
type PersonasListCmd struct {
	app *App
}

func (c *PersonasListCmd) Execute(_ []string) error {
	store, location, err := c.app.store()
	if err != nil {
		return err
	}
	names, err := store.ListKeys()
	if err != nil {
		return err
	}

	out := c.app.out
	if len(names) == 0 {
		fmt.Fprintln(out, DimStyle.Render("No personas in "+location+"."))
		fmt.Fprintln(out, DimStyle.Render("Create one with: persona personas create --name NAME --description TEXT"))
		return nil
	}

	nameWidth := 0
	for _, name := range names {
		if w := util.StringWidth(name); w > nameWidth {
			nameWidth = w
		}
	}
	if nameWidth > 24 {
		nameWidth = 24
	}
	summaryWidth := terminalWidth(out) - nameWidth - 4
	if summaryWidth < 20 {
		summaryWidth = 20
	}

	cfg, _ := c.app.Config()
	for _, name := range names {
		marker := "  "
		if cfg != nil && name == cfg.Personas.Default {
			marker = "* "
		}
		summary := ""
		if p, err := store.Load(name); err == nil {
			summary = util.TruncateWidth(p.Summary(summaryWidth), summaryWidth)
		}
		fmt.Fprintln(out, marker+PersonaStyle.Render(util.PadRight(util.TruncateWidth(name, nameWidth), nameWidth))+"  "+DimStyle.Render(summary))
	}
	return nil
}

// =============================================================================
// SHOW
// =============================================================================

// PersonasShowCmd prints one persona's fields, or its system prompt.
type PersonasShowCmd struct {
	Prompt bool `long:"prompt" description:"print the system prompt built from the persona"`

	Args struct {
		Name string `positional-arg-name:"NAME"`
	} `positional-args:"yes" required:"yes"`

	app *App
}

func (c *PersonasShowCmd) Execute(_ []string) error {
	store, _, err := c.app.store()
	if err != nil {
		return err
	}
	p, err := store.Load(c.Args.Name)
	if err != nil {
		return notFound(c.Args.Name, err)
	}

	out := c.app.out
	if c.Prompt {
		fmt.Fprintln(out, p.SystemPrompt())
		return nil
	}

	fmt.Fprintln(out, TitleStyle.Render(p.Name))
	fmt.Fprintln(out, RenderSeparator(util.StringWidth(p.Name)))
	printField(out, "Description", p.Description)
	printField(out, "User role", p.UserRole)
	printField(out, "Reply style", p.ReplyStyle)
	printField(out, "Avatar", p.AvatarPath)
	return nil
}

func printField(out io.Writer, label, value string) {
	if strings.TrimSpace(value) == "" {
		value = DimStyle.Render("(none)")
	} else {
		value = ValueStyle.Render(value)
	}
	fmt.Fprintln(out, RenderLabel(label+":")+value)
}

// =============================================================================
// CREATE
// =============================================================================

// PersonasCreateCmd saves a persona built from flags.
type PersonasCreateCmd struct {
	Name        string `short:"n" long:"name" required:"yes" description:"persona name"`
	Description string `short:"d" long:"description" description:"who the persona is"`
	UserRole    string `long:"user-role" description:"who the user is to the persona"`
	ReplyStyle  string `long:"reply-style" description:"how the persona should reply"`
	Avatar      string `long:"avatar" description:"path or URL of an avatar image"`
	Force       bool   `short:"f" long:"force" description:"overwrite an existing persona"`

	app *App
}

func (c *PersonasCreateCmd) Execute(_ []string) error {
	p := persona.Persona{
		Name:        c.Name,
		Description: c.Description,
		UserRole:    c.UserRole,
		ReplyStyle:  c.ReplyStyle,
		AvatarPath:  c.Avatar,
	}.Normalize()
	if err := p.Validate(); err != nil {
		return err
	}

	store, _, err := c.app.store()
	if err != nil {
		return err
	}
	if !c.Force && storage.Exists(store, p.Name) {
		return &UsageError{Message: fmt.Sprintf("persona %q already exists; use --force to overwrite", p.Name)}
	}
	if err := store.Save(p); err != nil {
		return err
	}

	c.app.Logger().Info("persona.saved", "name", p.Name)
	fmt.Fprintln(c.app.out, SuccessStyle.Render("[OK]")+" Saved "+PersonaStyle.Render(p.Name))
	return nil
}

// =============================================================================
// DELETE
// =============================================================================

// PersonasDeleteCmd removes a persona.
type PersonasDeleteCmd struct {
	Args struct {
		Name string `positional-arg-name:"NAME"`
	} `positional-args:"yes" required:"yes"`

	app *App
}

func (c *PersonasDeleteCmd) Execute(_ []string) error {
	store, _, err := c.app.store()
	if err != nil {
		return err
	}
	if err := store.Delete(c.Args.Name); err != nil {
		return notFound(c.Args.Name, err)
	}

	c.app.Logger().Info("persona.deleted", "name", c.Args.Name)
	fmt.Fprintln(c.app.out, SuccessStyle.Render("[OK]")+" Deleted "+c.Args.Name)
	return nil
}

// =============================================================================
// RENAME
// =============================================================================

// PersonasRenameCmd moves a persona to a new name.
type PersonasRenameCmd struct {
	Args struct {
		Old string `positional-arg-name:"OLD"`
		New string `positional-arg-name:"NEW"`
	} `positional-args:"yes" required:"yes"`

	app *App
}

func (c *PersonasRenameCmd) Execute(_ []string) error {
	store, _, err := c.app.store()
	if err != nil {
		return err
	}
	p, err := storage.Rename(store, c.Args.Old, c.Args.New)
	if err != nil {
		return notFound(c.Args.Old, err)
	}

	c.app.Logger().Info("persona.renamed", "from", c.Args.Old, "to", p.Name)
	fmt.Fprintln(c.app.out, SuccessStyle.Render("[OK]")+" Renamed "+c.Args.Old+" to "+PersonaStyle.Render(p.Name))
	return nil
}

// =============================================================================
// IMPORT
// =============================================================================

// PersonasImportCmd saves personas read from JSON or YAML files.
type PersonasImportCmd struct {
	Force bool `short:"f" long:"force" description:"overwrite existing personas"`

	Args struct {
		Files []string `positional-arg-name:"FILE" required:"1"`
	} `positional-args:"yes"`

	app *App
}

// Execute imports every file it can and fails if any could not be
// imported.
func (c *PersonasImportCmd) Execute(_ []string) error {
	store, _, err := c.app.store()
	if err != nil {
		return err
	}

	var failed int
	for _, path := range c.Args.Files {
		p, err := c.importFile(store, path)
		if err != nil {
			failed++
			fmt.Fprintln(c.app.errOut, ErrorStyle.Render(FormatError(err)))
			continue
		}
		fmt.Fprintln(c.app.out, SuccessStyle.Render("[OK]")+" Imported "+PersonaStyle.Render(p.Name)+DimStyle.Render(" from "+path))
	}

	if failed > 0 {
		return &CommandError{
			Command: "personas",
			Action:  "import",
			Reason:  fmt.Sprintf("%d of %d files not imported", failed, len(c.Args.Files)),
		}
	}
	return nil
}

func (c *PersonasImportCmd) importFile(store storage.PersonaStore, path string) (persona.Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return persona.Persona{}, err
	}
	format, err := storage.ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return persona.Persona{}, fmt.Errorf("%s: %w", path, err)
	}
	p, err := storage.Decode(data, format, "")
	if err != nil {
		return persona.Persona{}, fmt.Errorf("%s: %w", path, err)
	}
	if !c.Force && storage.Exists(store, p.Name) {
		return persona.Persona{}, fmt.Errorf("%s: persona %q already exists; use --force to overwrite", path, p.Name)
	}
	if err := store.Save(p); err != nil {
		return persona.Persona{}, fmt.Errorf("%s: %w", path, err)
	}
	c.app.Logger().Info("persona.imported", "name", p.Name, "file", path)
	return p, nil
}

// =============================================================================
// EXPORT
// =============================================================================

// PersonasExportCmd encodes a persona as JSON or YAML.
type PersonasExportCmd struct {
	Format string `long:"format" choice:"json" choice:"yaml" default:"json" description:"output format"`
	Output string `short:"o" long:"output" description:"write to FILE instead of stdout"`

	Args struct {
		Name string `positional-arg-name:"NAME"`
	} `positional-args:"yes" required:"yes"`

	app *App
}

func (c *PersonasExportCmd) Execute(_ []string) error {
	format, err := storage.ParseFormat(c.Format)
	if err != nil {
		return &UsageError{Message: err.Error()}
	}

	store, _, err := c.app.store()
	if err != nil {
		return err
	}
	p, err := store.Load(c.Args.Name)
	if err != nil {
		return notFound(c.Args.Name, err)
	}
	data, err := storage.Encode(p, format)
	if err != nil {
		return err
	}

	if c.Output == "" {
		_, err := c.app.out.Write(data)
		return err
	}
	path, err := config.ExpandPath(c.Output)
	if err != nil {
		return err
	}
	if err := util.AtomicWriteFile(path, data, 0644); err != nil {
		return err
	}
	fmt.Fprintln(c.app.errOut, SuccessStyle.Render("[OK]")+" Wrote "+path)
	return nil
}
