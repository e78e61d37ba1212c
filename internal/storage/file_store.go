// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jeranaias/persona-tui/internal/persona"
	"github.com/jeranaias/persona-tui/internal/util"
)

// =============================================================================
// RECORD FORMAT
// =============================================================================

// Format is the text encoding of persona files.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat converts a config value into a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown persona format %q: must be json or yaml", s)
}

// Ext returns the file extension for the format, including the dot.
func (f Format) Ext() string {
	if f == FormatYAML {
		return ".yaml"
	}
	return ".json"
}

// recordExts lists every extension FileStore reads.
var recordExts = []string{".json", ".yaml", ".yml"}

func formatForExt(ext string) Format {
	if ext == ".yaml" || ext == ".yml" {
		return FormatYAML
	}
	return FormatJSON
}

// Encode serializes p in format f.
func Encode(p persona.Persona, f Format) ([]byte, error) {
	if f == FormatYAML {
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(p); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Decode parses a persona record in format f. An empty key skips the
// name/key consistency check.
func Decode(data []byte, f Format, key string) (persona.Persona, error) {
	var rec record
	if f == FormatYAML {
		var yrec yamlRecord
		if err := yaml.Unmarshal(data, &yrec); err != nil {
			return persona.Persona{}, err
		}
		rec = yrec.record()
	} else if err := json.Unmarshal(data, &rec); err != nil {
		return persona.Persona{}, err
	}
	return rec.toPersona(key)
}

// yamlText is a string field that only accepts YAML string scalars.
// Plain yaml.v3 would turn `description: 42` into "42".
type yamlText string

func (t *yamlText) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode || n.ShortTag() != "!!str" {
		return fmt.Errorf("line %d: expected a string, got %s", n.Line, n.ShortTag())
	}
	*t = yamlText(n.Value)
	return nil
}

// yamlRecord is record with every field restricted to YAML strings.
type yamlRecord struct {
	Name        *yamlText `yaml:"name"`
	Description *yamlText `yaml:"description"`
	UserRole    yamlText  `yaml:"user_role"`
	ReplyStyle  yamlText  `yaml:"reply_style"`
	AvatarPath  yamlText  `yaml:"avatar_path"`
}

func (y yamlRecord) record() record {
	rec := record{
		UserRole:   string(y.UserRole),
		ReplyStyle: string(y.ReplyStyle),
		AvatarPath: string(y.AvatarPath),
	}
	if y.Name != nil {
		name := string(*y.Name)
		rec.Name = &name
	}
	if y.Description != nil {
		desc := string(*y.Description)
		rec.Description = &desc
	}
	return rec
}

// =============================================================================
// FILE STORE
// =============================================================================

// FileStore keeps one human-diffable file per persona in a directory.
type FileStore struct {
	dir    string
	format Format
	logger *slog.Logger
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithFormat sets the encoding used for new records.
func WithFormat(f Format) FileOption {
	return func(s *FileStore) { s.format = f }
}

// WithLogger sets the logger used to report skipped records.
func WithLogger(l *slog.Logger) FileOption {
	return func(s *FileStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewFileStore creates a store rooted at dir. The directory is created on
// first Save.
func NewFileStore(dir string, opts ...FileOption) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("persona directory is empty")
	}
	s := &FileStore{
		dir:    dir,
		format: FormatJSON,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the store directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Format returns the encoding used for new records.
func (s *FileStore) Format() Format {
	return s.format
}

// =============================================================================
// LOAD / SAVE / DELETE
// =============================================================================

// Load retrieves the persona stored under key.
func (s *FileStore) Load(key string) (persona.Persona, error) {
	path, ok := s.find(key)
	if !ok {
		return persona.Persona{}, ErrNotFound
	}
	return s.loadFile(path, key)
}

func (s *FileStore) loadFile(path, key string) (persona.Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return persona.Persona{}, ErrNotFound
		}
		return persona.Persona{}, err
	}

	p, err := Decode(data, formatForExt(filepath.Ext(path)), key)
	if err != nil {
		return persona.Persona{}, &CorruptRecordError{Key: key, Source: path, Err: err}
	}
	return p, nil
}

// Save upserts p. The record is written to a temp file and renamed into
// place, so concurrent readers see either the old or the new record.
func (s *FileStore) Save(p persona.Persona) error {
	p = p.Normalize()
	if err := p.Validate(); err != nil {
		return err
	}

	data, err := Encode(p, s.format)
	if err != nil {
		return fmt.Errorf("failed to encode persona %q: %w", p.Name, err)
	}

	stem := encodeKey(p.Name)
	target := filepath.Join(s.dir, stem+s.format.Ext())
	if err := util.AtomicWriteFile(target, data, 0644); err != nil {
		return fmt.Errorf("failed to save persona %q: %w", p.Name, err)
	}

	// One record per name: drop copies left in another format.
	for _, ext := range recordExts {
		if ext == s.format.Ext() {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, stem+ext)); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("store.stale_record", "name", p.Name, "ext", ext, "error", err)
		}
	}
	return nil
}

// Delete removes the record stored under key.
func (s *FileStore) Delete(key string) error {
	stem := encodeKey(key)
	removed := false
	for _, ext := range recordExts {
		err := os.Remove(filepath.Join(s.dir, stem+ext))
		if err == nil {
			removed = true
			continue
		}
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete persona %q: %w", key, err)
		}
	}
	if !removed {
		return ErrNotFound
	}
	return nil
}

// =============================================================================
// LIST
// =============================================================================

// ListKeys returns the names of all readable records, sorted.
// Corrupt files are logged and skipped.
func (s *FileStore) ListKeys() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	seen := make(map[string]bool)
	keys := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !isRecordFile(name) {
			continue
		}

		path := filepath.Join(s.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("store.skip_unreadable", "path", path, "error", err)
			continue
		}
		p, err := Decode(data, formatForExt(filepath.Ext(name)), "")
		if err == nil && encodeKey(p.Name) != strings.TrimSuffix(name, filepath.Ext(name)) {
			err = fmt.Errorf("record name %q does not match file name", p.Name)
		}
		if err != nil {
			s.logger.Warn("store.skip_corrupt", "path", path, "error", err)
			continue
		}

		key := persona.NormalizeName(p.Name)
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)
	return keys, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// find returns the path of the record for key, preferring the configured format.
func (s *FileStore) find(key string) (string, bool) {
	if persona.NormalizeName(key) == "" {
		return "", false
	}
	stem := encodeKey(key)
	candidates := append([]string{s.format.Ext()}, recordExts...)
	for _, ext := range candidates {
		path := filepath.Join(s.dir, stem+ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

func isRecordFile(name string) bool {
	ext := filepath.Ext(name)
	for _, e := range recordExts {
		if ext == e {
			return true
		}
	}
	return false
}
