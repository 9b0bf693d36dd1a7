// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama is the HTTP client for a local Ollama server.
//
// # Key Types
//
//   - Client: model listing, pull, delete and streaming chat
//   - ChatStream: a pull-style reader over the NDJSON chat response
//   - ClientError: every failure, classified by ErrorType
//
// # Retries
//
// Only the initial connection is retried: a request whose transport fails
// before any response arrives is attempted up to ClientConfig.MaxAttempts
// times. The waits double from RetryDelay and are capped at MaxRetryDelay.
// Once a response has started, nothing is retried.
//
// # Usage
//
//	client := ollama.NewClient(ollama.ClientConfig{BaseURL: "http://localhost:11434"})
//	stream, err := client.OpenChatStream(ctx, req)
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//	for {
//	    chunk, err := stream.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    ...
//	}
package ollama
