// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
)

// =============================================================================
// CHAT STREAM
// =============================================================================

// ChatStream reads a newline-delimited JSON chat response one chunk at a
// time. It is not safe for concurrent use.
type ChatStream struct {
	ctx       context.Context
	body      io.ReadCloser
	reader    *bufio.Reader
	done      bool
	closeOnce sync.Once
}

func newChatStream(ctx context.Context, body io.ReadCloser) *ChatStream {
	return &ChatStream{
		ctx:    ctx,
		body:   body,
		reader: bufio.NewReaderSize(body, 16*1024),
	}
}

// NewChatStream wraps an NDJSON body. Used by tests and alternative transports.
func NewChatStream(ctx context.Context, body io.ReadCloser) *ChatStream {
	return newChatStream(ctx, body)
}

// Next returns the next chunk. It returns io.EOF after the chunk with
// Done set. If the body ends before that chunk the error is a connection
// ClientError wrapping io.ErrUnexpectedEOF.
// A line that is not valid JSON, or that carries an error field, yields a
// ClientError of type ErrTypeProtocol.
func (s *ChatStream) Next() (ChatChunk, error) {
	if s.done {
		return ChatChunk{}, io.EOF
	}

	for {
		line, readErr := s.reader.ReadBytes('\n')
		line = bytes.TrimSpace(line)

		if len(line) > 0 {
			var chunk ChatChunk
			if err := json.Unmarshal(line, &chunk); err != nil {
				return ChatChunk{}, &ClientError{Type: ErrTypeProtocol, Message: "malformed stream chunk", Cause: err}
			}
			if chunk.Error != "" {
				return ChatChunk{}, &ClientError{Type: ErrTypeProtocol, Message: chunk.Error}
			}
			if chunk.Done {
				s.done = true
			}
			return chunk, nil
		}

		if readErr != nil {
			if s.ctx.Err() != nil {
				return ChatChunk{}, s.ctx.Err()
			}
			if errors.Is(readErr, io.EOF) {
				return ChatChunk{}, &ClientError{Type: ErrTypeConnection, Message: "stream ended before completion", Cause: io.ErrUnexpectedEOF}
			}
			return ChatChunk{}, &ClientError{Type: ErrTypeConnection, Message: "stream read failed", Cause: readErr}
		}
	}
}

// Close releases the connection. It is safe to call more than once.
func (s *ChatStream) Close() error {
	var err error
	s.closeOnce.Do(func() { err = s.body.Close() })
	return err
}
