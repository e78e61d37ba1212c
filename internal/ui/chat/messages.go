// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

// =============================================================================
// SESSION MESSAGES
// =============================================================================

// ReplyMsg carries the outcome of a Send dispatched off the update loop.
type ReplyMsg struct {
	SessionID string
	Reply     string
	Err       error
}

// =============================================================================
// PERSONA MESSAGES
// =============================================================================

// PersonaListMsg carries the store's persona names.
type PersonaListMsg struct {
	Names []string
	Err   error
}

// PersonasChangedMsg signals that the persona directory changed on disk.
type PersonasChangedMsg struct{}

// =============================================================================
// MODEL SERVICE MESSAGES
// =============================================================================

// ModelStatusMsg reports whether the model endpoint answered.
type ModelStatusMsg struct {
	Running bool
	Err     error
}
