// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package generation drives one streaming model response at a time.
//
// # Key Types
//
//   - Controller: owns the single live Handle, starts and cancels generations
//   - Handle: identifies one generation and accumulates its accepted text
//   - Event: TokenReceived, GenerationComplete or GenerationFailed
//
// # Delivery Contract
//
// A generation runs on its own goroutine and publishes events through the
// sink given to NewController, in order. Every generation publishes exactly
// one terminal event (GenerationComplete or GenerationFailed).
//
// The owner of the Controller (the UI loop) passes every received event
// through Accept before acting on it. Accept enforces what the loop relies on:
//
//   - events of a handle that is not the live one are dropped
//   - once Cancel has returned, no TokenReceived of that handle is accepted
//   - the terminal event of a cancelled handle is reported as exactly one
//     GenerationFailed with reason Cancelled, whatever the goroutine saw
//
// Start, Cancel, CancelActive and Accept must all be called from the same
// goroutine. Cancellation is cooperative: the streaming goroutine checks
// for it between chunks.
//
// # Usage
//
//	ctrl := generation.NewController(backend, publish)
//	h, err := ctrl.Start(prompt, history, cfg)
//	...
//	if ev, ok := ctrl.Accept(ev); ok {
//	    switch ev := ev.(type) {
//	    case generation.TokenReceived:
//	        reply.AppendToken(ev.Text)
//	    }
//	}
package generation
