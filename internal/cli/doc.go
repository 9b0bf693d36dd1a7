// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the command-line interface for ollama-tui.
//
// Running the binary without a subcommand starts the full-screen UI. The
// subcommands cover the same backend from a plain shell:
//
//	ollama-tui                       Start the terminal UI
//	ollama-tui chat [-m MODEL]       Line-mode chat
//	ollama-tui models                List installed models
//	ollama-tui pull NAME             Download a model
//	ollama-tui rm NAME               Delete a model
//	ollama-tui sessions              List saved chats
//	ollama-tui sessions export ID    Print a saved chat as Markdown
//	ollama-tui config init|show      Write or print the configuration
//	ollama-tui version               Print version information
//
// Global flags override the config file and the environment.
package cli
