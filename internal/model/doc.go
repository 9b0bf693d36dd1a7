// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures shared by every ollama-tui
// component: chat messages and sessions, the generation parameters, and
// resource snapshots.
//
// # Key Types
//
//   - Message: a single chat message; assistant messages grow while streaming
//   - ChatSession: an ordered transcript bound to a model name
//   - ModelConfig: generation parameters with range clamping
//   - SystemSnapshot: one resource sampler reading
//   - Statistics: timing for a single generation
//
// # Ownership
//
// A live ChatSession belongs to the UI loop. Anything handed to another
// goroutine or written to disk is a Clone, so the two never share memory.
//
// # Usage
//
//	sess := model.NewSession("llama2:latest")
//	sess.AddUser("Hello")
//	reply := sess.BeginAssistant()
//	reply.AppendToken("Hel")
//	reply.Finalize(nil)
package model
