// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error display and exit codes for persona commands.
//
// Commands always return errors; Run decides how to display them. Every
// failure is shown as a single "[Error] ..." line.

package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/persona-tui/internal/config"
	"github.com/jeranaias/persona-tui/internal/model"
	"github.com/jeranaias/persona-tui/internal/ollama"
	"github.com/jeranaias/persona-tui/internal/persona"
	"github.com/jeranaias/persona-tui/internal/session"
	"github.com/jeranaias/persona-tui/internal/storage"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitNetworkError indicates the model service could not be reached
	ExitNetworkError = 5
	// ExitNotFoundError indicates a persona or model was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string // Command that failed (e.g., "personas")
	Action  string // Action being performed (e.g., "import")
	Reason  string // Human-readable reason
	Err     error  // Underlying error (if any)
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// UsageError reports a bad argument combination.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return e.Message
}

// =============================================================================
// ERROR DISPLAY
// =============================================================================

// FormatError renders err as the one line shown to the user. A model
// service outage reads "[Error] Ollama is not running." followed by the
// cause.
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case ollama.IsTimeout(err):
		return "[Error] The model did not answer in time. " + detail(err)
	case errors.Is(err, model.ErrServiceUnavailable):
		return "[Error] Ollama is not running. " + detail(err)
	case ollama.IsModelNotFound(err):
		return "[Error] Model not found. Pull it with 'ollama pull <model>'. " + detail(err)
	case errors.Is(err, model.ErrServiceResponse):
		return "[Error] The model returned an unusable reply. " + detail(err)
	case errors.Is(err, session.ErrInvalidInput):
		return "[Error] Message is empty."
	case errors.Is(err, session.ErrNotReady):
		return "[Error] Still waiting for the previous reply."
	}
	return "[Error] " + oneLine(err.Error())
}

// detail is the error text on a single line.
func detail(err error) string {
	return oneLine(err.Error())
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ExitCodeFor maps an error onto a process exit code.
func ExitCodeFor(err error) int {
	var usage *UsageError
	var validation config.ValidateErrors
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &usage):
		return ExitUsageError
	case errors.As(err, &validation):
		return ExitConfigError
	case ollama.IsTimeout(err):
		return ExitTimeoutError
	case errors.Is(err, model.ErrServiceUnavailable):
		return ExitNetworkError
	case errors.Is(err, storage.ErrNotFound), ollama.IsModelNotFound(err):
		return ExitNotFoundError
	case errors.Is(err, persona.ErrInvalidPersona):
		return ExitUsageError
	}
	return ExitGeneralError
}
