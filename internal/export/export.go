// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jeranaias/persona-tui/internal/model"
	"github.com/jeranaias/persona-tui/internal/session"
)

// ErrNoPersona is returned when exporting a session that was never started.
var ErrNoPersona = errors.New("no persona selected")

// =============================================================================
// TRANSCRIPT
// =============================================================================

// Transcript is a point-in-time copy of a conversation.
type Transcript struct {
	SessionID  string       `json:"session_id"`
	Persona    string       `json:"persona"`
	Model      string       `json:"model,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	ExportedAt time.Time    `json:"exported_at"`
	Exchanges  int          `json:"exchanges"`
	Turns      []model.Turn `json:"turns"`
}

// FromSession snapshots sess. The transcript keeps the system turn.
func FromSession(sess *session.Session) (*Transcript, error) {
	p, ok := sess.Persona()
	if !ok {
		return nil, ErrNoPersona
	}
	stats := sess.Stats()
	return &Transcript{
		SessionID:  sess.ID(),
		Persona:    p.Name,
		Model:      sess.Model(),
		StartedAt:  stats.StartedAt,
		ExportedAt: time.Now(),
		Exchanges:  stats.Exchanges,
		Turns:      sess.Transcript(),
	}, nil
}

// SystemPrompt returns the leading system turn, if any.
func (t *Transcript) SystemPrompt() string {
	if len(t.Turns) > 0 && t.Turns[0].Role == model.RoleSystem {
		return t.Turns[0].Content
	}
	return ""
}

// Messages returns the turns after the system turn.
func (t *Transcript) Messages() []model.Turn {
	if len(t.Turns) > 0 && t.Turns[0].Role == model.RoleSystem {
		return t.Turns[1:]
	}
	return t.Turns
}

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter formats a transcript.
type Exporter interface {
	// Export returns the formatted transcript.
	Export(t *Transcript) ([]byte, error)
}

// Options configures the Markdown exporter. The JSON exporter always
// writes every field.
type Options struct {
	// IncludeMetadata adds a YAML front matter block.
	IncludeMetadata bool

	// IncludeSystemPrompt adds the rendered persona instruction.
	IncludeSystemPrompt bool
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		IncludeMetadata:     true,
		IncludeSystemPrompt: true,
	}
}

// ForFormat returns the exporter for a format name: md, markdown or json.
// An empty name means markdown.
func ForFormat(format string, opts *Options) (Exporter, error) {
	switch strings.ToLower(format) {
	case "", "md", "markdown":
		return NewMarkdownExporter(opts), nil
	case "json":
		return NewJSONExporter(), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q: use markdown or json", format)
	}
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// Write formats t with exporter and writes it to w.
func Write(w io.Writer, t *Transcript, exporter Exporter) error {
	content, err := exporter.Export(t)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	_, err = w.Write(content)
	return err
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// formatTimestamp formats a timestamp for display.
func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}
