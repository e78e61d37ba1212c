// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides persona persistence.
//
// Each persona is stored as one record keyed by its name. Two backends
// implement PersonaStore:
//
//   - FileStore: one JSON or YAML file per persona, written atomically
//   - SQLiteStore: one row per persona in a local SQLite database
//
// # Usage
//
//	store, err := storage.NewFileStore(dir, storage.WithFormat(storage.FormatYAML))
//	err = store.Save(persona.Persona{Name: "Nova", Description: "A cheerful helper."})
//	p, err := store.Load("Nova")
//	keys, err := store.ListKeys()
//
// Load reports ErrNotFound for a missing key and a *CorruptRecordError
// (matching ErrCorruptRecord) for a record that does not decode into a
// persona. ListKeys skips corrupt records.
//
// # Watching
//
// Watcher reports debounced changes to a FileStore directory so shells can
// refresh their persona list.
package storage
