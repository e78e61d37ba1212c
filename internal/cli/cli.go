// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jessevdk/go-flags"
)

// Version is the persona release.
const Version = "1.0.0"

// =============================================================================
// ROOT OPTIONS
// =============================================================================

// Options is the root command that groups the sub-commands. The struct tags
// are interpreted by github.com/jessevdk/go-flags.
type Options struct {
	Config      string `short:"c" long:"config" description:"config file (TOML, or JSON when it ends in .json)"`
	Verbose     bool   `short:"v" long:"verbose" description:"log at debug level"`
	ShowVersion bool   `long:"version" description:"print the version and exit"`

	Chat     ChatCmd     `command:"chat" description:"Chat with a persona in the terminal (default)"`
	TUI      TUICmd      `command:"tui" description:"Chat with a persona in a full-screen interface"`
	Personas PersonasCmd `command:"personas" subcommands-optional:"yes" description:"Manage saved personas"`
	Models   ModelsCmd   `command:"models" description:"List models on the model service"`
	Status   StatusCmd   `command:"status" alias:"s" alias:"info" description:"Check the model service and persona store"`
	Serve    ServeCmd    `command:"serve" description:"Serve the local HTTP API"`
	Setup    SetupCmd    `command:"setup" description:"Create the config and persona store on first run"`
	Settings ConfigCmd   `command:"config" subcommands-optional:"yes" description:"Show or edit the configuration"`
}

// attach hands the invocation's App to every command.
func (o *Options) attach(a *App) {
	o.Chat.app = a
	o.TUI.app = a
	o.Models.app = a
	o.Status.app = a
	o.Serve.app = a
	o.Setup.app = a
	o.Personas.attach(a)
	o.Settings.attach(a)
}

// =============================================================================
// ENTRY POINTS
// =============================================================================

// Run parses args, executes the selected command and returns the process
// exit code. With no command it starts the chat REPL.
func Run(args []string) int {
	return RunWithIO(args, os.Stdin, os.Stdout, os.Stderr)
}

// RunWithIO is Run with explicit standard streams.
func RunWithIO(args []string, in io.Reader, out, errOut io.Writer) int {
	opts := &Options{}
	app := newApp(opts, in, out, errOut)
	defer app.Close()
	opts.attach(app)

	parser := flags.NewParser(opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = "persona"
	parser.SubcommandsOptional = true

	rest, err := parser.ParseArgs(args)
	if err != nil {
		var flagErr *flags.Error
		if errors.As(err, &flagErr) {
			if flagErr.Type == flags.ErrHelp {
				fmt.Fprintln(out, flagErr.Message)
				return ExitSuccess
			}
			fmt.Fprintln(errOut, ErrorStyle.Render("[Error] "+flagErr.Message))
			return ExitUsageError
		}
		return report(errOut, err)
	}

	if opts.ShowVersion {
		fmt.Fprintf(out, "persona %s\n", Version)
		return ExitSuccess
	}

	if parser.Active == nil {
		if len(rest) > 0 {
			return report(errOut, unknownCommand("persona", rest[0]))
		}
		if err := opts.Chat.Execute(rest); err != nil {
			return report(errOut, err)
		}
	}
	return ExitSuccess
}

// unknownCommand reports a word that names no subcommand of parent.
func unknownCommand(parent, name string) error {
	return &UsageError{Message: fmt.Sprintf("unknown command %q for %s; see '%s --help'", name, parent, parent)}
}

func report(errOut io.Writer, err error) int {
	fmt.Fprintln(errOut, ErrorStyle.Render(FormatError(err)))
	return ExitCodeFor(err)
}
