// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/persona-tui/internal/session"
)

// =============================================================================
// COMMAND HANDLER REGISTRY
// =============================================================================

// CommandHandler handles one slash command. args excludes the command name.
type CommandHandler func(m *Model, args []string) (tea.Model, tea.Cmd)

// commandHandlers maps command names to their handlers.
var commandHandlers = map[string]CommandHandler{
	"persona":  handlePersonaCommand,
	"p":        handlePersonaCommand,
	"personas": handlePersonasCommand,
	"reset":    handleResetCommand,
	"history":  handleHistoryCommand,
	"model":    handleModelCommand,
	"help":     handleHelpCommand,
	"?":        handleHelpCommand,
	"quit":     handleQuitCommand,
	"q":        handleQuitCommand,
}

// CommandHelp lists the slash commands in display order.
var CommandHelp = [][2]string{
	{"/persona NAME", "start a new conversation with NAME"},
	{"/personas", "list saved personas"},
	{"/reset", "restart the conversation with the current persona"},
	{"/history", "show conversation statistics"},
	{"/model", "show the model in use"},
	{"/help", "toggle this help"},
	{"/quit", "leave"},
}

// runCommand dispatches a slash command line.
func (m Model) runCommand(line string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(strings.TrimPrefix(line, "/"))
	if len(fields) == 0 {
		return m, nil
	}
	handler, ok := commandHandlers[strings.ToLower(fields[0])]
	if !ok {
		m.status = "Unknown command /" + fields[0] + ". Try /help."
		return m, nil
	}
	return handler(&m, fields[1:])
}

// =============================================================================
// HANDLERS
// =============================================================================

func handlePersonaCommand(m *Model, args []string) (tea.Model, tea.Cmd) {
	if len(args) == 0 {
		if p, ok := m.sess.Persona(); ok {
			m.status = p.Name + ": " + p.Summary(60)
		} else {
			m.status = "No persona selected. Use /persona NAME."
		}
		return *m, nil
	}

	name := strings.Join(args, " ")
	p, err := m.store.Load(name)
	if err != nil {
		m.errLine = m.formatError(err)
		return *m, nil
	}
	m.sess.Start(p)
	m.errLine = ""
	m.status = "Now talking to " + p.Name + "."
	m.refreshViewport()
	return *m, nil
}

func handlePersonasCommand(m *Model, _ []string) (tea.Model, tea.Cmd) {
	if len(m.personas) == 0 {
		m.status = "No personas saved."
	} else {
		m.status = "Personas: " + strings.Join(m.personas, ", ")
	}
	return *m, LoadPersonasCmd(m.store)
}

func handleResetCommand(m *Model, _ []string) (tea.Model, tea.Cmd) {
	p, ok := m.sess.Persona()
	if !ok {
		m.status = "No persona selected. Use /persona NAME."
		return *m, nil
	}
	m.sess.Start(p)
	m.errLine = ""
	m.status = "Conversation restarted."
	m.refreshViewport()
	return *m, nil
}

func handleHistoryCommand(m *Model, _ []string) (tea.Model, tea.Cmd) {
	if m.sess.State() == session.StateUninitialized {
		m.status = "No conversation yet."
		return *m, nil
	}
	m.status = m.turnSummary()
	return *m, nil
}

func handleModelCommand(m *Model, _ []string) (tea.Model, tea.Cmd) {
	name := m.sess.Model()
	if name == "" {
		name = "default"
	}
	m.status = "Model: " + name
	return *m, nil
}

func handleHelpCommand(m *Model, _ []string) (tea.Model, tea.Cmd) {
	m.showHelp = !m.showHelp
	return *m, nil
}

func handleQuitCommand(m *Model, _ []string) (tea.Model, tea.Cmd) {
	m.quitting = true
	return *m, tea.Quit
}
