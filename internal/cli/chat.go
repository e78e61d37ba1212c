// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive line-oriented chat with a persona.
//
// The REPL reads lines with peterh/liner when stdin is a terminal (history,
// arrow keys) and with a plain scanner otherwise, so transcripts can be
// piped in. Replies are rendered with glamour when stdout is a terminal.

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/peterh/liner"

	"github.com/jeranaias/persona-tui/internal/config"
	"github.com/jeranaias/persona-tui/internal/export"
	"github.com/jeranaias/persona-tui/internal/model"
	"github.com/jeranaias/persona-tui/internal/session"
	"github.com/jeranaias/persona-tui/internal/storage"
	"github.com/jeranaias/persona-tui/internal/ui/styles"
	"github.com/jeranaias/persona-tui/internal/util"
)

// ChatCmd starts the REPL.
// Usage: persona chat --persona Nova
type ChatCmd struct {
	Persona    string `short:"p" long:"persona" description:"persona to talk to (default: personas.default)"`
	Model      string `short:"m" long:"model" description:"model name, overriding model.name"`
	NoMarkdown bool   `long:"no-markdown" description:"print replies as plain text"`

	app *App
}

// Execute runs the chat REPL until an exit word, EOF or Ctrl+C.
func (c *ChatCmd) Execute(_ []string) error {
	cfg, err := c.app.Config()
	if err != nil {
		return err
	}
	if c.Model != "" {
		cfg.Model.Name = c.Model
	}

	store, _, err := c.app.store()
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

	reader := newLineReader(c.app.in)
	defer reader.Close()

	repl := &REPL{
		sess:      sess,
		store:     store,
		out:       c.app.out,
		errOut:    c.app.errOut,
		reader:    reader,
		exitWords: cfg.UI,
	}
	if cfg.UI.Markdown && !c.NoMarkdown && isTerminal(c.app.out) {
		theme := styles.NewTheme(cfg.UI.Theme)
		if r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(theme.GlamourStyle()),
			glamour.WithWordWrap(terminalWidth(c.app.out)-4),
		); err == nil {
			repl.renderer = r
		}
	}

	return repl.Run(context.Background())
}

// =============================================================================
// LINE INPUT
// =============================================================================

// lineReader reads one line of input per prompt.
type lineReader interface {
	ReadLine(prompt string) (string, error)
	Close() error
}

// newLineReader uses liner on an interactive stdin and a scanner otherwise.
func newLineReader(in io.Reader) lineReader {
	if f, ok := in.(*os.File); ok && f == os.Stdin && isTerminal(f) {
		return newLinerReader()
	}
	return &scanReader{scanner: bufio.NewScanner(in)}
}

// linerReader provides input history and line editing.
type linerReader struct {
	line        *liner.State
	historyFile string
}

func newLinerReader() *linerReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	r := &linerReader{line: line}
	if dir, err := config.ConfigDir(); err == nil {
		r.historyFile = filepath.Join(dir, "chat_history")
		if f, err := os.Open(r.historyFile); err == nil {
			_, _ = line.ReadHistory(f)
			f.Close()
		}
	}
	return r
}

// ReadLine reads a line, adding non-empty input to the history.
func (r *linerReader) ReadLine(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves the history with owner-only permissions and restores the
// terminal.
func (r *linerReader) Close() error {
	if r.historyFile != "" {
		if err := os.MkdirAll(filepath.Dir(r.historyFile), 0700); err == nil {
			if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
				_, _ = r.line.WriteHistory(f)
				f.Close()
			}
		}
	}
	return r.line.Close()
}

// scanReader reads piped input. No prompt is printed.
type scanReader struct {
	scanner *bufio.Scanner
}

func (r *scanReader) ReadLine(string) (string, error) {
	if r.scanner.Scan() {
		return r.scanner.Text(), nil
	}
	if err := r.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (r *scanReader) Close() error { return nil }

// =============================================================================
// REPL
// =============================================================================

// REPL drives one session from line input.
type REPL struct {
	sess      *session.Session
	store     storage.PersonaStore
	out       io.Writer
	errOut    io.Writer
	reader    lineReader
	renderer  *glamour.TermRenderer
	exitWords config.UIConfig
}

// Run reads lines until an exit word, EOF or Ctrl+C. Failed sends are
// reported and the loop continues.
func (r *REPL) Run(ctx context.Context) error {
	r.printWelcome()

	for {
		input, err := r.reader.ReadLine(PromptStyle.Render("you> "))
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				r.printGoodbye()
				return nil
			}
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if r.exitWords.IsExitWord(input) {
			r.printGoodbye()
			return nil
		}
		if strings.HasPrefix(input, "/") {
			if quit := r.handleSlashCommand(input); quit {
				r.printGoodbye()
				return nil
			}
			continue
		}

		r.send(ctx, input)
	}
}

func (r *REPL) send(ctx context.Context, input string) {
	if r.sess.State() == session.StateUninitialized {
		fmt.Fprintln(r.out, WarningStyle.Render("No persona selected. Use /persona NAME."))
		return
	}

	reply, err := r.sess.Send(ctx, input)
	if err != nil {
		fmt.Fprintln(r.errOut, ErrorStyle.Render(FormatError(err)))
		return
	}

	p, _ := r.sess.Persona()
	fmt.Fprintln(r.out, PersonaStyle.Render(p.Name+">"))
	fmt.Fprintln(r.out, r.render(reply))
}

// render formats a reply as markdown when a renderer is available.
func (r *REPL) render(reply string) string {
	if r.renderer != nil {
		if out, err := r.renderer.Render(reply); err == nil {
			return strings.TrimRight(out, "\n")
		}
	}
	return reply
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand runs a slash command and reports whether to quit.
func (r *REPL) handleSlashCommand(line string) bool {
	fields := strings.Fields(strings.TrimPrefix(line, "/"))
	if len(fields) == 0 {
		return false
	}
	args := fields[1:]

	switch strings.ToLower(fields[0]) {
	case "persona", "p":
		r.switchPersona(strings.Join(args, " "))
	case "personas":
		r.listPersonas()
	case "reset":
		p, ok := r.sess.Persona()
		if !ok {
			fmt.Fprintln(r.out, WarningStyle.Render("No persona selected. Use /persona NAME."))
			return false
		}
		r.sess.Start(p)
		fmt.Fprintln(r.out, SuccessStyle.Render("[OK]")+" Conversation restarted.")
	case "history":
		r.printHistory()
	case "model":
		fmt.Fprintln(r.out, RenderLabel("Model:")+ValueStyle.Render(r.sess.Model()))
	case "export":
		r.exportTranscript(args)
	case "help", "?":
		r.printHelp()
	case "quit", "q", "exit":
		return true
	default:
		fmt.Fprintln(r.errOut, ErrorStyle.Render("[Error] Unknown command /"+fields[0]+". Try /help."))
	}
	return false
}

func (r *REPL) switchPersona(name string) {
	if name == "" {
		if p, ok := r.sess.Persona(); ok {
			fmt.Fprintln(r.out, RenderLabel("Persona:")+ValueStyle.Render(p.Name))
		} else {
			fmt.Fprintln(r.out, WarningStyle.Render("No persona selected. Use /persona NAME."))
		}
		return
	}

	p, err := r.store.Load(name)
	if err != nil {
		fmt.Fprintln(r.errOut, ErrorStyle.Render(FormatError(fmt.Errorf("persona %q: %w", name, err))))
		return
	}
	r.sess.Start(p)
	fmt.Fprintln(r.out, SuccessStyle.Render("[OK]")+" Now talking to "+PersonaStyle.Render(p.Name)+".")
}

func (r *REPL) listPersonas() {
	names, err := r.store.ListKeys()
	if err != nil {
		fmt.Fprintln(r.errOut, ErrorStyle.Render(FormatError(err)))
		return
	}
	if len(names) == 0 {
		fmt.Fprintln(r.out, DimStyle.Render("No personas saved. Create one with 'persona personas create'."))
		return
	}
	current, _ := r.sess.Persona()
	for _, name := range names {
		marker := "  "
		if name == current.Name {
			marker = "* "
		}
		fmt.Fprintln(r.out, marker+name)
	}
}

func (r *REPL) printHistory() {
	turns := r.sess.Transcript()
	if len(turns) <= 1 {
		fmt.Fprintln(r.out, DimStyle.Render("No messages yet."))
		return
	}
	p, _ := r.sess.Persona()
	for _, turn := range turns[1:] {
		label := "you"
		if turn.Role == model.RoleAssistant {
			label = p.Name
		}
		fmt.Fprintf(r.out, "%s %s\n", RenderLabel(label+":"), turn.Preview(terminalWidth(r.out)-20))
	}
	stats := r.sess.Stats()
	fmt.Fprintln(r.out, DimStyle.Render(fmt.Sprintf("%d exchanges, %d failed, %s", stats.Exchanges, stats.Failures,
		session.FormatDuration(stats.LastActivity.Sub(stats.StartedAt)))))
}

func (r *REPL) exportTranscript(args []string) {
	format := ""
	if len(args) > 0 {
		format = args[0]
	}
	exporter, err := export.ForFormat(format, nil)
	if err == nil {
		var t *export.Transcript
		if t, err = export.FromSession(r.sess); err == nil {
			err = export.Write(r.out, t, exporter)
		}
	}
	if err != nil {
		fmt.Fprintln(r.errOut, ErrorStyle.Render(FormatError(err)))
	}
}

func (r *REPL) printHelp() {
	help := [][2]string{
		{"/persona NAME", "start a new conversation with NAME"},
		{"/personas", "list saved personas"},
		{"/reset", "restart the conversation"},
		{"/history", "show this conversation"},
		{"/model", "show the model in use"},
		{"/export [json]", "print this conversation as Markdown or JSON"},
		{"/help", "show this help"},
		{"/quit", "leave"},
	}
	for _, h := range help {
		fmt.Fprintln(r.out, "  "+PromptStyle.Render(util.PadRight(h[0], 16))+h[1])
	}
	fmt.Fprintln(r.out, DimStyle.Render("  Type "+strings.Join(r.exitWords.ExitWords, ", ")+" to leave."))
}

func (r *REPL) printWelcome() {
	if p, ok := r.sess.Persona(); ok {
		fmt.Fprintln(r.out, TitleStyle.Render("Talking to "+p.Name)+DimStyle.Render(" ("+r.sess.Model()+")"))
		if p.HasAvatar() {
			fmt.Fprintln(r.out, DimStyle.Render("avatar: "+p.AvatarPath))
		}
	} else {
		fmt.Fprintln(r.out, TitleStyle.Render("persona")+DimStyle.Render(" ("+r.sess.Model()+")"))
		fmt.Fprintln(r.out, DimStyle.Render("No persona selected. Use /persona NAME or /personas."))
	}
	fmt.Fprintln(r.out, DimStyle.Render("Type /help for commands."))
}

func (r *REPL) printGoodbye() {
	stats := r.sess.Stats()
	fmt.Fprintln(r.out, DimStyle.Render(fmt.Sprintf("Goodbye. %d exchanges.", stats.Exchanges)))
}
