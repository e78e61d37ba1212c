// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package persona defines the character a conversation is seeded with.
//
// A Persona renders itself into the single system instruction that opens a
// session transcript:
//
//	p := persona.Persona{Name: "Nova", Description: "A cheerful helper."}
//	p.SystemPrompt()
//	// You are Nova.
//	//
//	// A cheerful helper.
//	//
//	// You must stay in character at all times.
//
// Personas are plain values. Persistence lives in package storage.
package persona
