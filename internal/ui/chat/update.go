// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/persona-tui/internal/session"
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case ReplyMsg:
		return m.handleReply(msg)

	case PersonaListMsg:
		if msg.Err != nil {
			m.errLine = m.formatError(msg.Err)
			return m, nil
		}
		m.personas = msg.Names
		return m, nil

	case PersonasChangedMsg:
		m.status = "Persona list updated."
		return m, tea.Batch(LoadPersonasCmd(m.store), WaitForChangesCmd(m.changes))

	case ModelStatusMsg:
		running := msg.Running
		m.modelOnline = &running
		if msg.Err != nil {
			m.errLine = m.formatError(msg.Err)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		// Send appends the user turn from its own goroutine.
		if len(m.sess.Transcript()) != m.renderedTurns {
			m.refreshViewport()
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// RESIZE
// =============================================================================

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.theme.SetSize(msg.Width, msg.Height)

	// header + separator + input + status
	const reserved = 2 + 1 + 1 + 2
	vpHeight := m.height - reserved
	if vpHeight < 1 {
		vpHeight = 1
	}
	m.viewport.Width = m.width
	m.viewport.Height = vpHeight

	inputWidth := m.width - 4
	if inputWidth < 10 {
		inputWidth = 10
	}
	m.input.Width = inputWidth

	m.rebuildRenderer()
	m.ready = true
	m.refreshViewport()
	return m, nil
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Top):
		m.viewport.GotoTop()
		return m, nil

	case key.Matches(msg, m.keys.Bottom):
		m.viewport.GotoBottom()
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.submit(m.input.Value())
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit routes one line of input: exit words quit, slash commands run
// locally, anything else goes to the session. Input that cannot be sent
// yet stays in the input line.
func (m Model) submit(text string) (tea.Model, tea.Cmd) {
	text = strings.TrimSpace(text)
	if text == "" {
		return m, nil
	}
	if m.isExitWord(text) {
		m.quitting = true
		return m, tea.Quit
	}
	if strings.HasPrefix(text, "/") {
		m.input.Reset()
		return m.runCommand(text)
	}

	if m.sess.State() == session.StateUninitialized {
		m.status = "No persona selected. Use /persona NAME."
		return m, nil
	}
	if m.Waiting() {
		m.status = "Still waiting for a reply."
		return m, nil
	}

	m.input.Reset()
	m.errLine = ""
	m.status = ""
	m.pendingID = m.sess.ID()
	return m, SendCmd(m.sess, text)
}

// =============================================================================
// REPLIES
// =============================================================================

func (m Model) handleReply(msg ReplyMsg) (tea.Model, tea.Cmd) {
	if msg.SessionID == m.pendingID {
		m.pendingID = ""
	}
	if errors.Is(msg.Err, session.ErrRestarted) || msg.SessionID != m.sess.ID() {
		// The conversation was restarted while this reply was in flight.
		m.refreshViewport()
		return m, nil
	}
	if msg.Err != nil {
		m.errLine = m.formatError(msg.Err)
		m.logger.Warn("tui.send_failed", "session", msg.SessionID, "error", msg.Err)
	} else {
		m.errLine = ""
	}
	m.refreshViewport()
	return m, nil
}

// =============================================================================
// VIEWPORT
// =============================================================================

func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	turns := m.sess.Transcript()
	m.renderedTurns = len(turns)
	m.viewport.SetContent(m.renderTranscript(turns))
	m.viewport.GotoBottom()
}

// personaLabel names the current persona for headers and status lines.
func (m Model) personaLabel() string {
	if p, ok := m.sess.Persona(); ok {
		return p.Name
	}
	return "no persona"
}

func (m Model) turnSummary() string {
	stats := m.sess.Stats()
	return fmt.Sprintf("%d exchanges, %d failed, started %s ago",
		stats.Exchanges, stats.Failures, session.FormatDuration(time.Since(stats.StartedAt)))
}
