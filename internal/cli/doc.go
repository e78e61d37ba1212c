// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and execution for persona.
//
// Commands are go-flags structs. Each one carries the invocation's App,
// which loads the config once and builds the logger, persona store and
// model backend on demand.
//
// # Usage
//
//	os.Exit(cli.Run(os.Args[1:]))
//
// # Commands Overview
//
// Conversation:
//   - chat: line-oriented chat with a persona (the default command)
//   - tui: full-screen chat built on Bubble Tea
//   - serve: local HTTP API over the same personas and sessions
//
// Management:
//   - personas: list, show, create, delete, rename, import, export
//   - models: list the models the service offers
//   - status: model service reachability and persona store summary
//   - config: show, path, init, get, set, keys
//   - setup: first-run config, system check and example persona
//
// # Errors
//
// Commands return errors; Run prints them as one "[Error] ..." line and
// maps them onto exit codes with ExitCodeFor.
package cli
