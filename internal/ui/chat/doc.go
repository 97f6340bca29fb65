// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the terminal chat interface built on Bubble Tea.

The Model renders a chat.View from the core controller and turns key presses
and slash commands into controller calls. It never holds conversation state
of its own: every frame is drawn from a fresh View.

# Key Components

## Model (model.go)

  - Viewport for the message history
  - Single-line input with slash commands
  - Optional conversation sidebar
  - Spinner while a response is in flight

## Rendering (render.go)

Committed messages are rendered through glamour when markdown rendering is
enabled. The live response is drawn as plain text until it is committed.

## Commands (commands.go)

  - /new, /switch, /rename, /delete, /clear - conversations
  - /image, /unstage - attachments
  - /key, /model - credentials
  - /export - write the active conversation to a file
  - /help, /quit

## Program (program.go)

Run wires session events and store changes into the running program. Leaving
the program abandons any in-flight response.
*/
package chat
