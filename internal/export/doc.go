// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export renders the current conversation as Markdown or JSON.
//
// # Key Types
//
//   - Transcript: a snapshot of one session, persona and turns included
//   - Exporter: formats a Transcript (Markdown or JSON)
//   - Options: what the Markdown output includes
//
// # Usage
//
//	t, err := export.FromSession(sess)
//	exporter, err := export.ForFormat("markdown", nil)
//	err = export.Write(os.Stdout, t, exporter)
//
// Nothing is written to disk; transcripts end with the process.
package export
