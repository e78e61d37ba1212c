// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles holds the lipgloss palette and theme shared by the line
// REPL and the Bubble Tea interface.
//
// Colors are lipgloss.AdaptiveColor values. The theme name from config
// ("dark", "light" or "auto") pins or detects the background, and every
// status line carries an ASCII marker ([OK], [X], [!], [i]) so it reads
// without color.
package styles
