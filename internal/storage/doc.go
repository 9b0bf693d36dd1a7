// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists ollama-tui state on disk.
//
// # Key Types
//
//   - SessionStore: one JSON file per saved chat under <data_dir>/chats
//   - ConfigStore: the generation parameters in <data_dir>/model_config.json
//   - Watcher: reports changes to the chats directory
//   - PromptHistory: previously submitted prompts in SQLite
//
// Every file write goes through util.WriteFileAtomic, so a crash leaves
// either the previous file or the complete new one.
//
// # Usage
//
//	store, err := storage.NewSessionStore(cfg.ChatsDir())
//	if err != nil {
//	    return err
//	}
//	if err := store.Save(session); err != nil {
//	    return err
//	}
//	summaries, err := store.List() // newest first
package storage
