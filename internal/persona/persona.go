// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package persona

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/persona-tui/internal/util"
)

// closingDirective ends every system prompt.
const closingDirective = "You must stay in character at all times."

// ErrInvalidPersona is returned by Validate.
var ErrInvalidPersona = errors.New("invalid persona")

// Persona is a named character configuration.
// Name doubles as the storage key.
type Persona struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	UserRole    string `json:"user_role,omitempty" yaml:"user_role,omitempty"`
	ReplyStyle  string `json:"reply_style,omitempty" yaml:"reply_style,omitempty"`
	AvatarPath  string `json:"avatar_path,omitempty" yaml:"avatar_path,omitempty"`
}

// SystemPrompt composes the system instruction for this persona.
// Blocks are separated by a blank line; empty optional fields are omitted.
func (p Persona) SystemPrompt() string {
	var sb strings.Builder
	sb.WriteString("You are ")
	sb.WriteString(p.Name)
	sb.WriteString(".\n\n")

	if desc := strings.TrimSpace(p.Description); desc != "" {
		sb.WriteString(desc)
		sb.WriteString("\n\n")
	}

	if role := strings.TrimSpace(p.UserRole); role != "" {
		sb.WriteString("The user is: ")
		sb.WriteString(role)
		sb.WriteString("\n\n")
	}

	if style := strings.TrimSpace(p.ReplyStyle); style != "" {
		sb.WriteString("Reply style rules:\n")
		sb.WriteString(style)
		sb.WriteString("\n\n")
	}

	sb.WriteString(closingDirective)
	return sb.String()
}

// Validate checks the fields a store or session relies on.
func (p Persona) Validate() error {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidPersona)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: name contains control character %U", ErrInvalidPersona, r)
		}
	}
	// JSON records would silently replace invalid bytes with U+FFFD.
	for _, f := range []struct{ label, value string }{
		{"name", p.Name},
		{"description", p.Description},
		{"user_role", p.UserRole},
		{"reply_style", p.ReplyStyle},
		{"avatar_path", p.AvatarPath},
	} {
		if !utf8.ValidString(f.value) {
			return fmt.Errorf("%w: %s is not valid UTF-8", ErrInvalidPersona, f.label)
		}
	}
	return nil
}

// Normalize returns p with its name trimmed and in Unicode NFC form.
// Other fields are kept byte for byte.
func (p Persona) Normalize() Persona {
	p.Name = NormalizeName(p.Name)
	return p
}

// NormalizeName trims a persona name and converts it to NFC, so visually
// identical names typed on different platforms map to the same key.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// HasAvatar reports whether an avatar reference is set.
func (p Persona) HasAvatar() bool {
	return strings.TrimSpace(p.AvatarPath) != ""
}

// Summary returns the first line of the description, truncated to maxLen runes.
func (p Persona) Summary(maxLen int) string {
	line := strings.TrimSpace(p.Description)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	if maxLen <= 3 {
		return line
	}
	return util.TruncateRunes(line, maxLen)
}
