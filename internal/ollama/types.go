// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"time"

	"github.com/jeranaias/ollama-tui/internal/util"
)

// =============================================================================
// CHAT
// =============================================================================

// Message is a chat message in the wire format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
	Options  *Options  `json:"options,omitempty"`
}

// Options are the generation parameters. Zero is a meaningful value for
// every field here, so none of them are omitempty.
type Options struct {
	Temperature   float64 `json:"temperature"`
	TopP          float64 `json:"top_p"`
	TopK          int     `json:"top_k"`
	RepeatPenalty float64 `json:"repeat_penalty"`
	NumCtx        int     `json:"num_ctx"`
}

// ChatChunk is one line of a streamed chat response.
type ChatChunk struct {
	Model      string    `json:"model"`
	CreatedAt  time.Time `json:"created_at"`
	Message    Message   `json:"message"`
	Done       bool      `json:"done"`
	DoneReason string    `json:"done_reason,omitempty"`

	TotalDuration   int64 `json:"total_duration,omitempty"`
	PromptEvalCount int   `json:"prompt_eval_count,omitempty"`
	EvalCount       int   `json:"eval_count,omitempty"`
	EvalDuration    int64 `json:"eval_duration,omitempty"`

	// Error is set by the server when generation fails mid-stream.
	Error string `json:"error,omitempty"`
}

// =============================================================================
// MODELS
// =============================================================================

// ModelInfo is one entry of GET /api/tags.
type ModelInfo struct {
	Name       string       `json:"name"`
	ModifiedAt time.Time    `json:"modified_at"`
	Size       int64        `json:"size"`
	Digest     string       `json:"digest"`
	Details    ModelDetails `json:"details,omitempty"`
}

// ModelDetails carries the model family and quantization.
type ModelDetails struct {
	Format            string `json:"format,omitempty"`
	Family            string `json:"family,omitempty"`
	ParameterSize     string `json:"parameter_size,omitempty"`
	QuantizationLevel string `json:"quantization_level,omitempty"`
}

// FormatSize returns the size in human-readable form.
func (m ModelInfo) FormatSize() string {
	if m.Size <= 0 {
		return "-"
	}
	return util.FormatBytes(uint64(m.Size))
}

type listModelsResponse struct {
	Models []ModelInfo `json:"models"`
}

type nameRequest struct {
	Name   string `json:"name"`
	Stream *bool  `json:"stream,omitempty"`
}

// PullProgress is one line of the streamed pull response.
type PullProgress struct {
	Status    string `json:"status"`
	Digest    string `json:"digest,omitempty"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Done reports whether this is the final success line.
func (p PullProgress) Done() bool { return p.Status == "success" }

// Percent returns the layer progress in [0, 100], or -1 when the line
// carries no byte counts.
func (p PullProgress) Percent() float64 {
	if p.Done() {
		return 100
	}
	if p.Total <= 0 {
		return -1
	}
	pct := float64(p.Completed) / float64(p.Total) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

type errorResponse struct {
	Error string `json:"error"`
}
