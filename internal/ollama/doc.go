// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for the native Ollama API.
//
// # Key Types
//
//   - Client: HTTP client for /api/chat, /api/tags and the health probe
//   - Message: Chat message with role and content
//   - ChatRequest / ChatResponse: non-streaming chat wire types
//   - ClientError: categorized failure that also matches the shared
//     model.ErrServiceUnavailable and model.ErrServiceResponse sentinels
//
// # Usage
//
//	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
//	    BaseURL:      "http://127.0.0.1:11434",
//	    DefaultModel: "llama3.1",
//	})
//	reply, err := client.Complete(ctx, transcript)
//
// Client satisfies session.Completer.
package ollama
