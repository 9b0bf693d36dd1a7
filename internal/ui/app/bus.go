// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// busMsg wraps a message delivered through the Bus so Update knows to
// re-arm the listener.
type busMsg struct {
	msg tea.Msg
}

// Bus is the ordered event channel between background work and the event
// loop. Publish is safe from any goroutine.
type Bus struct {
	ch   chan tea.Msg
	done chan struct{}
	once sync.Once
}

// NewBus creates a bus holding up to size undelivered messages.
func NewBus(size int) *Bus {
	if size < 0 {
		size = 0
	}
	return &Bus{
		ch:   make(chan tea.Msg, size),
		done: make(chan struct{}),
	}
}

// Publish enqueues msg, blocking while the bus is full. It returns false
// once the bus is closed.
func (b *Bus) Publish(msg tea.Msg) bool {
	select {
	case <-b.done:
		return false
	default:
	}
	select {
	case b.ch <- msg:
		return true
	case <-b.done:
		return false
	}
}

// Listen returns a command that waits for the next message.
func (b *Bus) Listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-b.ch:
			return busMsg{msg: msg}
		case <-b.done:
			return nil
		}
	}
}

// Close releases every blocked publisher and listener. Safe to call twice.
func (b *Bus) Close() {
	b.once.Do(func() { close(b.done) })
}
