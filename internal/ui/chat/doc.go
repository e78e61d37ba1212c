// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the Bubble Tea interface for talking to a persona.

The Model wraps a session.Session. Every Send runs as a tea.Cmd, so the
update loop never blocks on the model service; the outcome comes back as
a ReplyMsg. The transcript is always rendered from the session itself.
While a reply is pending the spinner tick picks up the user turn as soon
as Send has appended it.

# Files

  - model.go: Options, Model and the command creators
  - update.go: the update loop, key handling and reply handling
  - view.go: header (persona, model, avatar), transcript and status bar
  - commands.go: slash commands (/persona, /personas, /reset, /history,
    /model, /help, /quit)
  - keys.go: key bindings

# Usage

	m := chat.New(chat.Options{
		Session:     sess,
		Store:       store,
		Health:      client,
		Markdown:    true,
		Changes:     watcher.Changes(),
		FormatError: cli.FormatError,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}
*/
package chat
