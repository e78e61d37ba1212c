// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session runs conversations between the user and a persona.
//
// A Session owns one transcript and moves through three states:
//
//	Uninitialized --Start--> Ready --Send--> AwaitingReply --> Ready
//
// Start can be called from any state and always yields a transcript holding
// exactly one system turn rendered from the persona. Send accepts text only
// in Ready. A failed model call leaves the user turn in place, adds no
// assistant turn and returns the session to Ready, so the next Send can
// proceed.
//
// # Key Types
//
//   - Session: the conversation state machine
//   - Completer: consumer-side interface for the model service client
//   - Manager: registry of sessions with idle expiry, used by the HTTP API
//
// # Usage
//
//	s := session.NewWithPersona(nova, ollama.NewClient())
//	reply, err := s.Send(ctx, "hi")
//	if errors.Is(err, model.ErrServiceUnavailable) {
//	    // show the error; the session is still usable
//	}
package session
