// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "errors"

// Service failures shared by all model service clients.
// Use errors.Is(err, ErrServiceUnavailable) to check.
var (
	// ErrServiceUnavailable means the endpoint could not be reached or did
	// not answer in time.
	ErrServiceUnavailable = errors.New("model service unavailable")

	// ErrServiceResponse means the endpoint answered without a usable
	// assistant reply.
	ErrServiceResponse = errors.New("model service returned an invalid response")
)

// IsServiceError reports whether err is one of the model service failures.
func IsServiceError(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) || errors.Is(err, ErrServiceResponse)
}
