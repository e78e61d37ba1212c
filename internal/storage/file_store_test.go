// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/persona-tui/internal/persona"
)

func newFileStore(t *testing.T, opts ...FileOption) *FileStore {
	t.Helper()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "personas"), opts...)
	require.NoError(t, err)
	return s
}

func writeRaw(t *testing.T, s *FileStore, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(s.Dir(), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), name), []byte(content), 0644))
}

// =============================================================================
// CONSTRUCTION
// =============================================================================

func TestNewFileStore_EmptyDir(t *testing.T) {
	_, err := NewFileStore(" ")
	assert.Error(t, err)
}

func TestFileStore_SaveCreatesDirectory(t *testing.T) {
	s := newFileStore(t)
	_, err := os.Stat(s.Dir())
	require.True(t, os.IsNotExist(err))

	require.NoError(t, s.Save(persona.Persona{Name: "Nova", Description: "d"}))

	_, err = os.Stat(filepath.Join(s.Dir(), "Nova.json"))
	assert.NoError(t, err)
}

// =============================================================================
// FORMATS
// =============================================================================

func TestFileStore_JSONShape(t *testing.T) {
	s := newFileStore(t)
	require.NoError(t, s.Save(persona.Persona{Name: "Nova", Description: "A cheerful helper."}))

	data, err := os.ReadFile(filepath.Join(s.Dir(), "Nova.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Nova","description":"A cheerful helper."}`, string(data))
}

func TestFileStore_LoadsLegacyFullRecord(t *testing.T) {
	s := newFileStore(t)
	writeRaw(t, s, "Nova.json", `{
  "name": "Nova",
  "description": "A cheerful helper.",
  "user_role": "",
  "reply_style": "",
  "avatar_path": ""
}`)

	p, err := s.Load("Nova")
	require.NoError(t, err)
	assert.Equal(t, persona.Persona{Name: "Nova", Description: "A cheerful helper."}, p)
}

func TestFileStore_YAMLRecord(t *testing.T) {
	s := newFileStore(t, WithFormat(FormatYAML))
	require.NoError(t, s.Save(fullPersona))

	data, err := os.ReadFile(filepath.Join(s.Dir(), "Captain Vell.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "name: Captain Vell")
	assert.Contains(t, string(data), "user_role: a new recruit")
}

func TestFileStore_FormatSwitchKeepsOneRecord(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "personas")
	jsonStore, err := NewFileStore(dir)
	require.NoError(t, err)
	yamlStore, err := NewFileStore(dir, WithFormat(FormatYAML))
	require.NoError(t, err)

	require.NoError(t, jsonStore.Save(persona.Persona{Name: "Nova", Description: "json"}))

	// A YAML store still reads the JSON record.
	p, err := yamlStore.Load("Nova")
	require.NoError(t, err)
	assert.Equal(t, "json", p.Description)

	require.NoError(t, yamlStore.Save(persona.Persona{Name: "Nova", Description: "yaml"}))

	_, err = os.Stat(filepath.Join(dir, "Nova.json"))
	assert.True(t, os.IsNotExist(err), "stale json copy must be removed")

	keys, err := jsonStore.ListKeys()
	require.NoError(t, err)
	assert.Equal(t, []string{"Nova"}, keys)

	require.NoError(t, jsonStore.Delete("Nova"))
	assert.True(t, IsNotFound(yamlStore.Delete("Nova")))
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatJSON, "json": FormatJSON, "YAML": FormatYAML, "yml": FormatYAML} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("toml")
	assert.Error(t, err)
}

// =============================================================================
// CORRUPT RECORDS
// =============================================================================

func TestFileStore_LoadCorrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid json", `{"name": "Nova", "description": `},
		{"missing name", `{"description": "no name"}`},
		{"missing description", `{"name": "Nova"}`},
		{"wrong type", `{"name": "Nova", "description": 42}`},
		{"name mismatch", `{"name": "Other", "description": "d"}`},
		{"blank name", `{"name": " ", "description": "d"}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newFileStore(t)
			writeRaw(t, s, "Nova.json", tc.content)

			_, err := s.Load("Nova")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrCorruptRecord), "got %v", err)
			assert.False(t, IsNotFound(err))
		})
	}
}

func TestFileStore_LoadCorruptYAML(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"malformed", "Nova.yaml", "name: [not, a, string\n"},
		{"list name", "Nova.yaml", "name: [not, a, string]\ndescription: d\n"},
		{"numeric fields", "5.yaml", "name: 5\ndescription: 42\nuser_role: true\n"},
		{"numeric description", "Nova.yaml", "name: Nova\ndescription: 42\n"},
		{"bool reply style", "Nova.yaml", "name: Nova\ndescription: d\nreply_style: false\n"},
		{"map avatar", "Nova.yml", "name: Nova\ndescription: d\navatar_path: {x: 1}\n"},
		{"missing description", "Nova.yaml", "name: Nova\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newFileStore(t, WithFormat(FormatYAML))
			writeRaw(t, s, tc.file, tc.content)

			key := strings.TrimSuffix(tc.file, filepath.Ext(tc.file))
			p, err := s.Load(key)
			require.Error(t, err, "loaded %+v", p)
			assert.True(t, IsCorrupt(err), "got %v", err)
		})
	}
}

func TestFileStore_YAMLQuotedScalarsAreStrings(t *testing.T) {
	s := newFileStore(t, WithFormat(FormatYAML))
	writeRaw(t, s, "5.yaml", "name: \"5\"\ndescription: '42'\nreply_style: \"true\"\n")

	p, err := s.Load("5")
	require.NoError(t, err)
	assert.Equal(t, persona.Persona{Name: "5", Description: "42", ReplyStyle: "true"}, p)
}

func TestFileStore_ListKeysSkipsCorrupt(t *testing.T) {
	var logs bytes.Buffer
	s := newFileStore(t, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	require.NoError(t, s.Save(persona.Persona{Name: "Nova", Description: "ok"}))
	writeRaw(t, s, "Broken.json", `{not json`)
	writeRaw(t, s, "Mismatch.json", `{"name": "Someone", "description": "d"}`)
	writeRaw(t, s, "notes.txt", "ignored")
	writeRaw(t, s, ".tmp-123", `{"name": "Temp", "description": "d"}`)

	keys, err := s.ListKeys()
	require.NoError(t, err)
	assert.Equal(t, []string{"Nova"}, keys)
	assert.Contains(t, logs.String(), "store.skip_corrupt")
}
