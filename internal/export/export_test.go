// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/persona-tui/internal/model"
	"github.com/jeranaias/persona-tui/internal/persona"
	"github.com/jeranaias/persona-tui/internal/session"
)

func testSession(t *testing.T, name string) *session.Session {
	t.Helper()
	echo := session.CompleterFunc(func(_ context.Context, turns []model.Turn) (string, error) {
		return "Aye: " + turns[len(turns)-1].Content, nil
	})
	p := persona.Persona{Name: name, Description: "A navigator.\nLoves maps.", ReplyStyle: "Short."}
	sess := session.NewWithPersona(p, echo, session.WithModel("llama3.1"))
	_, err := sess.Send(context.Background(), "Where are we?")
	require.NoError(t, err)
	return sess
}

func TestFromSession(t *testing.T) {
	tr, err := FromSession(testSession(t, "Nova"))
	require.NoError(t, err)

	assert.Equal(t, "Nova", tr.Persona)
	assert.Equal(t, "llama3.1", tr.Model)
	assert.Equal(t, 1, tr.Exchanges)
	require.Len(t, tr.Turns, 3)
	assert.Contains(t, tr.SystemPrompt(), "You are Nova.")
	assert.Equal(t, []model.Turn{
		model.UserTurn("Where are we?"),
		model.AssistantTurn("Aye: Where are we?"),
	}, tr.Messages())
}

func TestFromSession_NoPersona(t *testing.T) {
	_, err := FromSession(session.New(nil))
	assert.ErrorIs(t, err, ErrNoPersona)
}

func TestMarkdownExporter(t *testing.T) {
	tr, err := FromSession(testSession(t, "Nova"))
	require.NoError(t, err)

	out, err := NewMarkdownExporter(nil).Export(tr)
	require.NoError(t, err)
	md := string(out)

	assert.True(t, strings.HasPrefix(md, "---\npersona: Nova\n"))
	assert.Contains(t, md, "# Conversation with Nova")
	assert.Contains(t, md, "> You are Nova.")
	assert.Contains(t, md, "### You\n\nWhere are we?")
	assert.Contains(t, md, "### Nova\n\nAye: Where are we?")
}

func TestMarkdownExporter_FrontMatterStaysValid(t *testing.T) {
	tr, err := FromSession(testSession(t, "Captain: Nova #1"))
	require.NoError(t, err)

	out, err := NewMarkdownExporter(nil).Export(tr)
	require.NoError(t, err)

	parts := strings.SplitN(string(out), "---\n", 3)
	require.Len(t, parts, 3)
	var fm frontMatter
	require.NoError(t, yaml.Unmarshal([]byte(parts[1]), &fm))
	assert.Equal(t, "Captain: Nova #1", fm.Persona)
	assert.Equal(t, 1, fm.Exchanges)
	assert.Contains(t, parts[2], `# Conversation with Captain: Nova \#1`)
}

func TestMarkdownExporter_Options(t *testing.T) {
	p := persona.Persona{Name: "Nova", Description: "A navigator."}
	tr, err := FromSession(session.NewWithPersona(p, nil))
	require.NoError(t, err)

	out, err := NewMarkdownExporter(&Options{}).Export(tr)
	require.NoError(t, err)
	md := string(out)

	assert.True(t, strings.HasPrefix(md, "# Conversation with Nova"))
	assert.NotContains(t, md, "Persona instructions")
	assert.Contains(t, md, "No messages yet.")
}

func TestJSONExporter(t *testing.T) {
	tr, err := FromSession(testSession(t, "Nova"))
	require.NoError(t, err)

	out, err := NewJSONExporter().Export(tr)
	require.NoError(t, err)

	var decoded Transcript
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, tr.Turns, decoded.Turns)
	assert.Equal(t, tr.SessionID, decoded.SessionID)
	assert.Contains(t, string(out), `"role": "system"`)
}

func TestForFormat(t *testing.T) {
	for _, name := range []string{"", "md", "Markdown"} {
		e, err := ForFormat(name, nil)
		require.NoError(t, err, name)
		assert.IsType(t, &MarkdownExporter{}, e)
	}

	e, err := ForFormat("JSON", nil)
	require.NoError(t, err)
	assert.IsType(t, &JSONExporter{}, e)

	_, err = ForFormat("html", nil)
	assert.Error(t, err)
}

func TestWrite(t *testing.T) {
	tr, err := FromSession(testSession(t, "Nova"))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, tr, NewMarkdownExporter(&Options{})))
	assert.True(t, strings.HasPrefix(buf.String(), "# Conversation with Nova"))

	assert.Error(t, Write(&buf, nil, NewJSONExporter()))
}
