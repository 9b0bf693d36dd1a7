// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single entry of a chat transcript. An assistant message is
// append-only while Streaming is set and immutable once finalized.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// Assistant metrics, zero for other roles.
	TokenCount    int           `json:"token_count,omitempty"`
	TotalDuration time.Duration `json:"total_duration_ns,omitempty"`
	TokensPerSec  float64       `json:"tokens_per_sec,omitempty"`

	Streaming bool `json:"-"`
	// PERFORMANCE: a builder avoids quadratic copies while tokens stream in.
	// Held by pointer so a Message can be copied safely.
	buf *strings.Builder
}

// NewMessage creates a finished message.
func NewMessage(role Role, content string) *Message {
	return &Message{Role: role, Content: content, Timestamp: time.Now()}
}

// NewStreamingMessage creates an empty assistant message ready for tokens.
func NewStreamingMessage() *Message {
	return &Message{
		Role:      RoleAssistant,
		Timestamp: time.Now(),
		Streaming: true,
		buf:       &strings.Builder{},
	}
}

// AppendToken appends a fragment. It is ignored once the message is final.
func (m *Message) AppendToken(token string) {
	if !m.Streaming {
		return
	}
	if m.buf == nil {
		m.buf = &strings.Builder{}
	}
	m.buf.WriteString(token)
}

// Finalize freezes the message. stats may be nil.
func (m *Message) Finalize(stats *Statistics) {
	if !m.Streaming {
		return
	}
	if m.buf != nil {
		m.Content += m.buf.String()
		m.buf = nil
	}
	m.Streaming = false

	if stats != nil {
		m.TokenCount = stats.CompletionTokens
		m.TotalDuration = stats.TotalDuration
		m.TokensPerSec = stats.TokensPerSecond
	}
}

// Text returns the content, including tokens received so far.
func (m *Message) Text() string {
	if m.Streaming && m.buf != nil {
		return m.Content + m.buf.String()
	}
	return m.Content
}

// IsEmpty reports whether the message has no content at all.
func (m *Message) IsEmpty() bool {
	return len(m.Text()) == 0
}

// Clone returns an independent, finalized copy.
func (m *Message) Clone() *Message {
	c := *m
	c.Content = m.Text()
	c.Streaming = false
	c.buf = nil
	return &c
}

// FormatStats renders "2.5s | 128 tokens | 51.2 tok/s" for finished
// assistant messages and "" otherwise.
func (m *Message) FormatStats() string {
	if m.Role != RoleAssistant || m.TotalDuration == 0 {
		return ""
	}
	return fmt.Sprintf("%.1fs | %d tokens | %.1f tok/s",
		m.TotalDuration.Seconds(), m.TokenCount, m.TokensPerSec)
}

// =============================================================================
// STATISTICS TYPE
// =============================================================================

// Statistics holds timing and token count information for a generation.
type Statistics struct {
	StartTime      time.Time
	FirstTokenTime time.Time
	EndTime        time.Time

	CompletionTokens int

	TTFT            time.Duration
	TotalDuration   time.Duration
	TokensPerSecond float64
}

// NewStatistics creates a new Statistics with the start time set.
func NewStatistics() *Statistics {
	return &Statistics{StartTime: time.Now()}
}

// RecordToken notes one received fragment and the first-token time.
func (s *Statistics) RecordToken() {
	if s.FirstTokenTime.IsZero() {
		s.FirstTokenTime = time.Now()
		s.TTFT = s.FirstTokenTime.Sub(s.StartTime)
	}
	s.CompletionTokens++
}

// Finalize computes the derived metrics. A positive evalCount (reported by
// the server) replaces the fragment count.
func (s *Statistics) Finalize(evalCount int) {
	s.EndTime = time.Now()
	if evalCount > 0 {
		s.CompletionTokens = evalCount
	}
	s.TotalDuration = s.EndTime.Sub(s.StartTime)
	if s.TotalDuration > 0 {
		s.TokensPerSecond = float64(s.CompletionTokens) / s.TotalDuration.Seconds()
	}
}
