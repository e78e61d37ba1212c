// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

// =============================================================================
// ERROR TYPES
// =============================================================================

// SessionError represents a rejected session operation.
type SessionError struct {
	Message string
}

func (e *SessionError) Error() string {
	return e.Message
}

// Is implements error comparison for errors.Is.
func (e *SessionError) Is(target error) bool {
	t, ok := target.(*SessionError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

var (
	// ErrNotReady is returned by Send before Start or while a reply is pending.
	ErrNotReady = &SessionError{Message: "session is not ready"}

	// ErrInvalidInput is returned by Send for empty or whitespace-only text.
	ErrInvalidInput = &SessionError{Message: "message is empty"}

	// ErrRestarted is returned by a Send whose reply arrived after Start
	// began a new conversation. The reply is discarded.
	ErrRestarted = &SessionError{Message: "session was restarted while waiting for a reply"}

	// ErrSessionNotFound is returned by Manager lookups for unknown IDs.
	ErrSessionNotFound = &SessionError{Message: "session not found"}
)

// SendError wraps a model service failure during Send. The user turn
// stays in the transcript; no assistant turn is added.
type SendError struct {
	Text string
	Err  error
}

func (e *SendError) Error() string {
	return "send failed: " + e.Err.Error()
}

func (e *SendError) Unwrap() error {
	return e.Err
}
