// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the local HTTP API behind "persona serve".
//
// Routes:
//
//	GET    /health
//	GET    /personas
//	GET    /personas/{name}
//	PUT    /personas/{name}
//	DELETE /personas/{name}
//	GET    /sessions
//	POST   /sessions                 {"persona": "Nova"}
//	GET    /sessions/{id}
//	DELETE /sessions/{id}
//	POST   /sessions/{id}/messages   {"content": "hi"}
//	POST   /sessions/{id}/reset      {"persona": "Ember"} (body optional)
//
// Errors are returned as {"error": {"message": ..., "code": ...}}. Invalid
// input maps to 400, unknown personas and sessions to 404, a send on a busy
// session to 409, an unreachable model to 503 and a bad model reply to 502.
//
// Sessions live in memory only and expire after an idle period.
package server
