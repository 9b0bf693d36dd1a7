// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionTimeLayout is the timestamp embedded in session ids and file names.
const SessionTimeLayout = "20060102_150405"

// ChatSession is an ordered chat transcript.
type ChatSession struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	ModelName string     `json:"model_name"`
	Messages  []*Message `json:"messages"`
}

// NewSession starts an empty session for modelName.
func NewSession(modelName string) *ChatSession {
	now := time.Now()
	return &ChatSession{
		ID:        NewSessionID(now),
		CreatedAt: now,
		ModelName: modelName,
		Messages:  make([]*Message, 0),
	}
}

// NewSessionID returns "chat_20060102_150405_<8 hex>". The suffix keeps two
// sessions saved within the same second apart.
func NewSessionID(t time.Time) string {
	return "chat_" + t.Format(SessionTimeLayout) + "_" + uuid.NewString()[:8]
}

// AddUser appends a user message.
func (s *ChatSession) AddUser(text string) *Message {
	msg := NewMessage(RoleUser, text)
	s.Messages = append(s.Messages, msg)
	return msg
}

// BeginAssistant appends an empty streaming assistant message.
func (s *ChatSession) BeginAssistant() *Message {
	msg := NewStreamingMessage()
	s.Messages = append(s.Messages, msg)
	return msg
}

// Last returns the last message or nil.
func (s *ChatSession) Last() *Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return s.Messages[len(s.Messages)-1]
}

// DropEmptyAssistant removes a trailing assistant message that never
// received content. It reports whether one was removed.
func (s *ChatSession) DropEmptyAssistant() bool {
	last := s.Last()
	if last == nil || last.Role != RoleAssistant || !last.IsEmpty() {
		return false
	}
	s.Messages = s.Messages[:len(s.Messages)-1]
	return true
}

// Clear removes every message and starts a fresh id.
func (s *ChatSession) Clear() {
	now := time.Now()
	s.Messages = s.Messages[:0]
	s.ID = NewSessionID(now)
	s.CreatedAt = now
}

// Len returns the number of messages.
func (s *ChatSession) Len() int { return len(s.Messages) }

// Clone returns a deep, finalized copy sharing no memory with s.
func (s *ChatSession) Clone() *ChatSession {
	c := *s
	c.Messages = make([]*Message, len(s.Messages))
	for i, m := range s.Messages {
		c.Messages[i] = m.Clone()
	}
	return &c
}

// TotalTokens sums the token counts of assistant messages.
func (s *ChatSession) TotalTokens() int {
	n := 0
	for _, m := range s.Messages {
		n += m.TokenCount
	}
	return n
}

// SessionSummary describes a saved session without its messages.
type SessionSummary struct {
	ID           string
	CreatedAt    time.Time
	ModelName    string
	MessageCount int
	Preview      string
}

// Summary returns the summary for s. Preview is the first user message.
func (s *ChatSession) Summary() SessionSummary {
	sum := SessionSummary{
		ID:           s.ID,
		CreatedAt:    s.CreatedAt,
		ModelName:    s.ModelName,
		MessageCount: len(s.Messages),
	}
	for _, m := range s.Messages {
		if m.Role == RoleUser {
			sum.Preview = m.Content
			break
		}
	}
	return sum
}
