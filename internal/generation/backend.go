// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package generation

import (
	"context"

	"github.com/jeranaias/ollama-tui/internal/ollama"
)

// Stream yields chat chunks until io.EOF.
type Stream interface {
	Next() (ollama.ChatChunk, error)
	Close() error
}

// Backend opens chat streams. Retrying the initial connection is the
// backend's job; a returned Stream is never retried.
type Backend interface {
	OpenChatStream(ctx context.Context, req ollama.ChatRequest) (Stream, error)
}

// ClientBackend adapts *ollama.Client to Backend.
type ClientBackend struct {
	Client *ollama.Client
}

// OpenChatStream implements Backend.
func (b ClientBackend) OpenChatStream(ctx context.Context, req ollama.ChatRequest) (Stream, error) {
	s, err := b.Client.OpenChatStream(ctx, req)
	if err != nil {
		return nil, err
	}
	return s, nil
}
