// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the storage and CLI packages.
//
// # Key Functions
//
//   - AtomicWriteFile: crash-safe write-then-rename with fsync
//   - TruncateWidth, PadRight: display-width aware text for table output
//
// # Usage
//
//	err := util.AtomicWriteFile(path, data, 0644)
//	cell := util.PadRight(util.TruncateWidth(name, 20), 20)
package util
