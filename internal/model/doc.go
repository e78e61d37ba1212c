// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the conversation data shared by the session and the
// model service clients.
//
// # Key Types
//
//   - Role: sender of a turn (system, user, assistant)
//   - Turn: one role-tagged message in a transcript
//
// # Errors
//
// Every model service client reports failures through two sentinels so the
// session and the shells can handle them without knowing the backend:
//
//	if errors.Is(err, model.ErrServiceUnavailable) {
//	    // endpoint unreachable or timed out
//	}
//	if errors.Is(err, model.ErrServiceResponse) {
//	    // endpoint answered, but not with a usable reply
//	}
package model
