// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package compat talks to OpenAI-compatible chat endpoints.
//
// Ollama exposes one under /v1, and so do llama.cpp's server and LM Studio.
// The Client wraps github.com/sashabaranov/go-openai and reports failures
// through the shared model.ErrServiceUnavailable and
// model.ErrServiceResponse sentinels, so sessions treat it exactly like
// the native Ollama client.
package compat
