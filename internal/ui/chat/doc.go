// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the full-screen chat view of mcpchat.

The view is a Bubble Tea model driven by a session.Manager. Sessions render
through a ProgramSink, which turns every RenderSink call into a tea.Msg and
delivers it to the running program in order:

	sink := chat.NewProgramSink()
	mgr := session.NewManager(ctx, client, sink, cfg)
	p := tea.NewProgram(chat.New(theme, mgr, chat.Options{}), tea.WithAltScreen())
	sink.Attach(p.Send)
	_, err := p.Run()

# Threading

tea.Program.Send blocks while Update runs, and Update must never block on a
session. The sink therefore queues messages and a single pump goroutine
sends them, and every Manager call the model makes runs inside a tea.Cmd.

# Key Bindings

  - Enter: send the input line
  - Esc: cancel the running answer
  - Ctrl+N: start a new conversation
  - PgUp/PgDn: scroll the transcript
  - Ctrl+C: quit
*/
package chat
