// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"

	"github.com/jeranaias/persona-tui/internal/compat"
	"github.com/jeranaias/persona-tui/internal/ollama"
	"github.com/jeranaias/persona-tui/internal/util"
)

// ModelsCmd lists the models the configured service offers. The configured
// model is marked with "*".
type ModelsCmd struct {
	app *App
}

func (c *ModelsCmd) Execute(_ []string) error {
	cfg, err := c.app.Config()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Model.Timeout())
	defer cancel()

	out := c.app.out
	switch backend := NewBackend(cfg).(type) {
	case *ollama.Client:
		models, err := backend.ListModels(ctx)
		if err != nil {
			return err
		}
		if len(models) == 0 {
			fmt.Fprintln(out, DimStyle.Render("No models installed. Pull one with 'ollama pull "+backend.Model()+"'."))
			return nil
		}
		nameWidth := 0
		for _, m := range models {
			if w := util.StringWidth(m.Name); w > nameWidth {
				nameWidth = w
			}
		}
		for _, m := range models {
			fmt.Fprintln(out, marker(m.Name, backend.Model())+util.PadRight(m.Name, nameWidth)+"  "+DimStyle.Render(m.FormatSize()))
		}

	case *compat.Client:
		names, err := backend.ListModels(ctx)
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintln(out, marker(name, backend.Model())+name)
		}
	}
	return nil
}

// marker flags the configured model. Ollama reports "llama3.1:latest" for a
// model configured as "llama3.1".
func marker(name, current string) string {
	if name == current || name == current+":latest" {
		return SuccessStyle.Render("* ")
	}
	return "  "
}
