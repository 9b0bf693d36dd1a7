// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package generation

import (
	"fmt"

	"github.com/jeranaias/ollama-tui/internal/model"
)

// HandleID identifies one generation.
type HandleID uint64

// Event is emitted by a running generation.
type Event interface {
	HandleID() HandleID
	terminal() bool
}

// TokenReceived carries one text fragment.
type TokenReceived struct {
	Handle HandleID
	Text   string
}

// GenerationComplete is emitted when the server reports the response done.
type GenerationComplete struct {
	Handle HandleID
	Stats  model.Statistics
}

// FailureReason classifies a failed generation.
type FailureReason int

const (
	// Cancelled: the user stopped the generation. Not an error to show.
	Cancelled FailureReason = iota
	// ConnectionError: the server could not be reached or the transport broke.
	ConnectionError
	// ProtocolError: the server answered with something unusable.
	ProtocolError
)

func (r FailureReason) String() string {
	switch r {
	case Cancelled:
		return "cancelled"
	case ConnectionError:
		return "connection error"
	case ProtocolError:
		return "protocol error"
	default:
		return fmt.Sprintf("FailureReason(%d)", int(r))
	}
}

// GenerationFailed ends a generation that did not complete.
type GenerationFailed struct {
	Handle HandleID
	Reason FailureReason
	Err    error
}

func (e TokenReceived) HandleID() HandleID      { return e.Handle }
func (e GenerationComplete) HandleID() HandleID { return e.Handle }
func (e GenerationFailed) HandleID() HandleID   { return e.Handle }

func (TokenReceived) terminal() bool      { return false }
func (GenerationComplete) terminal() bool { return true }
func (GenerationFailed) terminal() bool   { return true }

// Error describes the failure for a status line.
func (e GenerationFailed) Error() string {
	if e.Err == nil {
		return e.Reason.String()
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}
