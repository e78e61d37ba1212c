// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/persona-tui/internal/persona"
)

// =============================================================================
// STORE INTERFACE
// =============================================================================

// PersonaStore loads and saves persona records keyed by persona name.
type PersonaStore interface {
	// Load returns the persona stored under key.
	Load(key string) (persona.Persona, error)

	// Save upserts p under p.Name.
	Save(p persona.Persona) error

	// Delete removes the record stored under key.
	Delete(key string) error

	// ListKeys returns the names of all readable records, sorted.
	ListKeys() ([]string, error)
}

// Exists reports whether key has a readable record in store.
func Exists(store PersonaStore, key string) bool {
	_, err := store.Load(key)
	return err == nil
}

// Rename moves the persona stored under oldKey to newName.
// The record is saved under the new key before the old one is deleted, so a
// failure part way leaves a duplicate rather than losing the persona.
// Avatar files referenced by the persona are not touched.
func Rename(store PersonaStore, oldKey, newName string) (persona.Persona, error) {
	p, err := store.Load(oldKey)
	if err != nil {
		return persona.Persona{}, err
	}

	newName = persona.NormalizeName(newName)
	if newName == persona.NormalizeName(oldKey) {
		return p, nil
	}
	if Exists(store, newName) {
		return persona.Persona{}, fmt.Errorf("rename %q to %q: %w", oldKey, newName, ErrExists)
	}

	p.Name = newName
	if err := store.Save(p); err != nil {
		return persona.Persona{}, err
	}
	if err := store.Delete(oldKey); err != nil {
		return persona.Persona{}, fmt.Errorf("renamed to %q but failed to remove %q: %w", newName, oldKey, err)
	}
	return p, nil
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrNotFound is returned when no record exists for a key.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &StoreError{Message: "persona not found"}

// ErrExists is returned when a rename target is already taken.
var ErrExists = &StoreError{Message: "persona already exists"}

// ErrCorruptRecord matches every *CorruptRecordError through errors.Is.
var ErrCorruptRecord = &StoreError{Message: "corrupt persona record"}

// StoreError represents a persona store error.
// It implements the error interface and can be compared using errors.Is.
type StoreError struct {
	Message string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing store errors.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// CorruptRecordError describes a stored record that cannot be decoded into
// a persona.
type CorruptRecordError struct {
	Key    string
	Source string // file path or table name
	Err    error
}

func (e *CorruptRecordError) Error() string {
	msg := "corrupt persona record " + quote(e.Key)
	if e.Source != "" {
		msg += " (" + e.Source + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CorruptRecordError) Unwrap() error {
	return e.Err
}

// Is reports true for ErrCorruptRecord.
func (e *CorruptRecordError) Is(target error) bool {
	return target == ErrCorruptRecord
}

// IsNotFound checks if an error is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsCorrupt checks if an error is a corrupt-record error.
func IsCorrupt(err error) bool {
	var corrupt *CorruptRecordError
	return errors.As(err, &corrupt)
}

func quote(s string) string {
	return "\"" + strings.ReplaceAll(s, "\"", "\\\"") + "\""
}

// =============================================================================
// RECORD DECODING
// =============================================================================

// record mirrors persona.Persona with pointer fields for required keys so a
// missing field can be told apart from an empty one.
type record struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	UserRole    string  `json:"user_role,omitempty"`
	ReplyStyle  string  `json:"reply_style,omitempty"`
	AvatarPath  string  `json:"avatar_path,omitempty"`
}

// toPersona validates required fields and checks that the record belongs to key.
func (r record) toPersona(key string) (persona.Persona, error) {
	if r.Name == nil {
		return persona.Persona{}, errors.New("missing required field \"name\"")
	}
	if r.Description == nil {
		return persona.Persona{}, errors.New("missing required field \"description\"")
	}

	p := persona.Persona{
		Name:        *r.Name,
		Description: *r.Description,
		UserRole:    r.UserRole,
		ReplyStyle:  r.ReplyStyle,
		AvatarPath:  r.AvatarPath,
	}
	if err := p.Validate(); err != nil {
		return persona.Persona{}, err
	}
	if key != "" && persona.NormalizeName(p.Name) != persona.NormalizeName(key) {
		return persona.Persona{}, fmt.Errorf("record name %q does not match key %q", p.Name, key)
	}
	return p, nil
}

// =============================================================================
// KEY ENCODING
// =============================================================================

// encodeKey maps a persona name to a file name stem.
// ASCII letters, digits, space, '-', '_' and inner '.' are kept; every other
// byte is percent-encoded, so distinct names never share a stem.
func encodeKey(name string) string {
	name = persona.NormalizeName(name)
	var sb strings.Builder
	last := len(name) - 1
	for i := 0; i < len(name); i++ {
		c := name[i]
		if keepByte(c) || (c == '.' && i != 0 && i != last) {
			sb.WriteByte(c)
			continue
		}
		fmt.Fprintf(&sb, "%%%02X", c)
	}
	return sb.String()
}

func keepByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == ' ', c == '-', c == '_':
		return true
	}
	return false
}
