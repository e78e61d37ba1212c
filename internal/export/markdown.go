// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jeranaias/persona-tui/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports transcripts to Markdown.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// frontMatter is the YAML header of a Markdown export.
type frontMatter struct {
	Persona   string `yaml:"persona"`
	Model     string `yaml:"model,omitempty"`
	Session   string `yaml:"session"`
	Started   string `yaml:"started"`
	Exported  string `yaml:"exported"`
	Exchanges int    `yaml:"exchanges"`
}

// Export converts a transcript to Markdown.
func (e *MarkdownExporter) Export(t *Transcript) ([]byte, error) {
	if t == nil {
		return nil, fmt.Errorf("transcript is nil")
	}

	var sb strings.Builder

	// Marshalling the header keeps persona names with ':' or newlines valid YAML.
	if e.options.IncludeMetadata {
		header, err := yaml.Marshal(frontMatter{
			Persona:   t.Persona,
			Model:     t.Model,
			Session:   t.SessionID,
			Started:   t.StartedAt.Format(time.RFC3339),
			Exported:  t.ExportedAt.Format(time.RFC3339),
			Exchanges: t.Exchanges,
		})
		if err != nil {
			return nil, fmt.Errorf("front matter: %w", err)
		}
		sb.WriteString("---\n")
		sb.Write(header)
		sb.WriteString("---\n\n")
	}

	sb.WriteString(fmt.Sprintf("# Conversation with %s\n\n", escapeMarkdown(t.Persona)))
	if t.Model != "" {
		sb.WriteString(fmt.Sprintf("*%s, started %s*\n\n", t.Model, formatTimestamp(t.StartedAt)))
	}

	if prompt := t.SystemPrompt(); prompt != "" && e.options.IncludeSystemPrompt {
		sb.WriteString("## Persona instructions\n\n")
		sb.WriteString(quote(prompt))
		sb.WriteString("\n\n")
	}

	messages := t.Messages()
	if len(messages) == 0 {
		sb.WriteString("*No messages yet.*\n")
		return []byte(sb.String()), nil
	}

	sb.WriteString("## Conversation\n\n")
	for i, turn := range messages {
		sb.WriteString(fmt.Sprintf("### %s\n\n", e.roleLabel(turn.Role, t.Persona)))
		sb.WriteString(strings.TrimSpace(turn.Content))
		sb.WriteString("\n\n")
		if i < len(messages)-1 {
			sb.WriteString("---\n\n")
		}
	}

	return []byte(sb.String()), nil
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

// roleLabel names the speaker: the persona for assistant turns.
func (e *MarkdownExporter) roleLabel(role model.Role, persona string) string {
	switch role {
	case model.RoleAssistant:
		return escapeMarkdown(persona)
	case "":
		return "Unknown"
	default:
		return role.DisplayName()
	}
}

// quote renders s as a Markdown block quote.
func quote(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i, line := range lines {
		if line == "" {
			lines[i] = ">"
		} else {
			lines[i] = "> " + line
		}
	}
	return strings.Join(lines, "\n")
}

// escapeMarkdown escapes characters that would break formatting in headings.
func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "#", "\\#")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "[", "\\[")
	s = strings.ReplaceAll(s, "]", "\\]")
	return s
}
