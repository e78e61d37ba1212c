// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/persona-tui/internal/model"
	"github.com/jeranaias/persona-tui/internal/ui/styles"
	"github.com/jeranaias/persona-tui/internal/util"
)

// View renders the chat interface.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	parts := []string{
		m.renderHeader(),
		m.viewport.View(),
	}
	if m.showHelp {
		parts = append(parts, m.renderHelp())
	}
	parts = append(parts, m.renderInput(), m.renderStatusBar())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// =============================================================================
// HEADER
// =============================================================================

func (m Model) renderHeader() string {
	width := m.width
	if width <= 0 {
		width = 80
	}

	title := m.theme.HeaderTitle.Render(m.personaLabel())

	modelName := m.sess.Model()
	if modelName == "" {
		modelName = "default model"
	}
	info := m.theme.HeaderSubtitle.Render(" | " + modelName)

	var online string
	switch {
	case m.modelOnline == nil:
	case *m.modelOnline:
		online = " " + m.theme.SuccessStyle.Render(styles.StatusIndicators.Success)
	default:
		online = " " + m.theme.ErrorStyle.Render(styles.StatusIndicators.Error+" offline")
	}

	line := title + info + online

	var avatar string
	if p, ok := m.sess.Persona(); ok && p.HasAvatar() {
		avatar = m.theme.Avatar.Render("avatar: " + util.TruncateWidth(p.AvatarPath, width/2))
	}

	header := m.theme.Header.Width(width).Render(line)
	if avatar == "" {
		return header + "\n"
	}
	return header + "\n" + avatar
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// renderTranscript renders every turn. The system turn is shown as a
// muted one-line preview of the persona prompt.
func (m Model) renderTranscript(turns []model.Turn) string {
	if len(turns) == 0 {
		return m.theme.Muted.Render("No persona selected. Use /persona NAME, or /personas to list them.")
	}

	name := m.personaLabel()
	var sb strings.Builder
	for i, turn := range turns {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		switch turn.Role {
		case model.RoleSystem:
			sb.WriteString(m.theme.SystemText.Render(turn.Preview(m.theme.ContentWidth())))
		case model.RoleUser:
			sb.WriteString(m.theme.UserLabel.Render("You"))
			sb.WriteString("\n")
			sb.WriteString(m.theme.UserText.Width(m.theme.ContentWidth()).Render(turn.Content))
		case model.RoleAssistant:
			sb.WriteString(m.theme.AssistantLabel.Render(name))
			sb.WriteString("\n")
			sb.WriteString(m.renderReply(turn.Content))
		}
	}

	if m.Waiting() {
		sb.WriteString("\n\n")
		sb.WriteString(m.spinner.View())
		sb.WriteString(m.theme.Muted.Render(" " + name + " is thinking..."))
	}
	return sb.String()
}

// renderReply renders assistant content as markdown when enabled.
func (m Model) renderReply(content string) string {
	if m.renderer != nil {
		if out, err := m.renderer.Render(content); err == nil {
			return strings.TrimRight(out, "\n")
		}
	}
	return m.theme.AssistantText.Width(m.theme.ContentWidth()).Render(content)
}

// =============================================================================
// INPUT AND STATUS
// =============================================================================

func (m Model) renderInput() string {
	return m.input.View()
}

func (m Model) renderStatusBar() string {
	width := m.width
	if width <= 0 {
		width = 80
	}

	var line string
	switch {
	case m.errLine != "":
		line = m.theme.ErrorStyle.Render(util.TruncateWidth(m.errLine, width-2))
	case m.status != "":
		line = util.TruncateWidth(m.status, width-2)
	default:
		var hints []string
		for _, b := range m.keys.ShortHelp() {
			h := b.Help()
			hints = append(hints, m.theme.StatusKey.Render(h.Key)+" "+h.Desc)
		}
		line = strings.Join(hints, "  ") + "  " + m.theme.StatusKey.Render("/help") + " commands"
	}
	return m.theme.StatusBar.Width(width).Render(line)
}

func (m Model) renderHelp() string {
	var sb strings.Builder
	for _, c := range CommandHelp {
		sb.WriteString(m.theme.StatusKey.Render(util.PadRight(c[0], 16)))
		sb.WriteString(c[1])
		sb.WriteString("\n")
	}
	sb.WriteString(m.theme.Muted.Render("Type " + strings.Join(m.exitWords, ", ") + " to leave."))
	return sb.String()
}
