// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/persona-tui/internal/session"
	"github.com/jeranaias/persona-tui/internal/storage"
	"github.com/jeranaias/persona-tui/internal/ui/styles"
)

// DefaultExitWords end the conversation when typed on their own.
var DefaultExitWords = []string{"exit", "quit", "bye"}

// =============================================================================
// OPTIONS
// =============================================================================

// HealthChecker probes the model endpoint.
type HealthChecker interface {
	CheckRunning(ctx context.Context) error
}

// Options configures the chat model. Session and Store are required.
type Options struct {
	Theme    *styles.Theme
	Session  *session.Session
	Store    storage.PersonaStore
	Health   HealthChecker
	Markdown bool

	// Changes signals persona directory edits, usually from a storage.Watcher.
	Changes <-chan struct{}

	ExitWords []string

	// FormatError turns a failure into the single line shown to the user.
	FormatError func(error) string

	Logger *slog.Logger
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the persona chat view. The session is
// shared with the Send commands running off the update loop; everything
// else is owned by the loop.
type Model struct {
	theme *styles.Theme
	sess  *session.Session
	store storage.PersonaStore

	health  HealthChecker
	changes <-chan struct{}
	logger  *slog.Logger

	width  int
	height int
	ready  bool

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	keys     KeyMap

	markdown bool
	renderer *glamour.TermRenderer

	exitWords   []string
	formatError func(error) string

	renderedTurns int

	// pendingID is the conversation a dispatched Send belongs to. It is set
	// before the Send goroutine runs, so a second Enter cannot slip past.
	pendingID string

	personas    []string
	modelOnline *bool
	status      string
	errLine     string
	showHelp    bool
	quitting    bool
}

// New creates the chat model.
func New(opts Options) Model {
	if opts.Theme == nil {
		opts.Theme = styles.NewTheme(styles.ThemeAuto)
	}
	if len(opts.ExitWords) == 0 {
		opts.ExitWords = DefaultExitWords
	}
	if opts.FormatError == nil {
		opts.FormatError = func(err error) string { return err.Error() }
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Say something..."
	ti.CharLimit = 4096
	ti.Focus()

	vp := viewport.New(80, 20)

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	sp.Style = opts.Theme.Spinner

	return Model{
		theme:       opts.Theme,
		sess:        opts.Session,
		store:       opts.Store,
		health:      opts.Health,
		changes:     opts.Changes,
		logger:      opts.Logger,
		viewport:    vp,
		input:       ti,
		spinner:     sp,
		keys:        DefaultKeyMap(),
		markdown:    opts.Markdown,
		exitWords:   opts.ExitWords,
		formatError: opts.FormatError,
	}
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init starts the cursor blink and loads the persona list.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.spinner.Tick, LoadPersonasCmd(m.store)}
	if m.health != nil {
		cmds = append(cmds, CheckModelCmd(m.health))
	}
	if m.changes != nil {
		cmds = append(cmds, WaitForChangesCmd(m.changes))
	}
	return tea.Batch(cmds...)
}

// =============================================================================
// COMMAND CREATORS
// =============================================================================

// SendCmd runs Session.Send off the update loop and reports the outcome.
func SendCmd(sess *session.Session, text string) tea.Cmd {
	id := sess.ID()
	return func() tea.Msg {
		if sess.ID() != id {
			return ReplyMsg{SessionID: id, Err: session.ErrRestarted}
		}
		reply, err := sess.Send(context.Background(), text)
		return ReplyMsg{SessionID: id, Reply: reply, Err: err}
	}
}

// LoadPersonasCmd lists the store's personas.
func LoadPersonasCmd(store storage.PersonaStore) tea.Cmd {
	return func() tea.Msg {
		if store == nil {
			return PersonaListMsg{}
		}
		names, err := store.ListKeys()
		return PersonaListMsg{Names: names, Err: err}
	}
}

// WaitForChangesCmd blocks until the persona directory changes. It yields no
// message once the watcher is closed.
func WaitForChangesCmd(changes <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return nil
		}
		return PersonasChangedMsg{}
	}
}

// CheckModelCmd probes the model endpoint.
func CheckModelCmd(h HealthChecker) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := h.CheckRunning(ctx)
		return ModelStatusMsg{Running: err == nil, Err: err}
	}
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Session returns the conversation session.
func (m Model) Session() *session.Session {
	return m.sess
}

// Personas returns the persona names last read from the store.
func (m Model) Personas() []string {
	return m.personas
}

// Status returns the current informational line.
func (m Model) Status() string {
	return m.status
}

// ErrorLine returns the current error line, empty when there is none.
func (m Model) ErrorLine() string {
	return m.errLine
}

// Quitting reports whether the model asked the program to exit.
func (m Model) Quitting() bool {
	return m.quitting
}

// Waiting reports whether a reply is pending for the current conversation.
func (m Model) Waiting() bool {
	if m.pendingID != "" && m.pendingID == m.sess.ID() {
		return true
	}
	return m.sess.State() == session.StateAwaitingReply
}

func (m Model) isExitWord(text string) bool {
	for _, w := range m.exitWords {
		if strings.EqualFold(text, w) {
			return true
		}
	}
	return false
}

// =============================================================================
// RENDERER
// =============================================================================

// rebuildRenderer recreates the glamour renderer for the current width.
// Markdown is left off when the renderer cannot be built.
func (m *Model) rebuildRenderer() {
	if !m.markdown {
		return
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.theme.GlamourStyle()),
		glamour.WithWordWrap(m.theme.ContentWidth()),
	)
	if err != nil {
		m.logger.Warn("tui.markdown_disabled", "error", err)
		m.renderer = nil
		return
	}
	m.renderer = r
}
