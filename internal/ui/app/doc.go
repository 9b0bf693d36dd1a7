// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package app is the interactive terminal application: the mode state machine
and the event loop that drives it.

# Event Loop

App is a Bubble Tea model and the single owner of the UI state: the active
Mode, the chat session, the model parameters and the at-most-one live
generation. Bubble Tea calls Update on one goroutine, so none of that state
is locked.

Background work never touches that state. Generations, downloads, backend
calls, the resource sampler and the history watcher all publish messages to
one ordered Bus. App re-arms a single listener after each bus message, so
messages of one producer are handled in the order they were published.

# Rendering

View returns a cached frame. The frame is rebuilt only when a handled
message changed something visible. Token messages are coalesced: they update
the transcript immediately, but rebuild the frame at most MaxFPS times per
second, with a frame tick flushing whatever arrived in between.

# Modes

	Chat           hub state; prompt input and transcript
	ModelSelect    F2, pick or delete an installed model
	ModelDownload  F3, pull a model by name with live progress
	SystemMonitor  F4, CPU, memory, GPU and processes
	ChatHistory    F5, load or delete saved sessions
	ModelConfig    F8, edit generation parameters
	Help           F1, key reference

Esc returns to Chat from every mode. Errors are shown in the status line;
they never switch modes on their own.
*/
package app
