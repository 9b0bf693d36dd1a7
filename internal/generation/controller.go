// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package generation

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/ollama-tui/internal/logging"
	"github.com/jeranaias/ollama-tui/internal/model"
	"github.com/jeranaias/ollama-tui/internal/ollama"
)

// ErrBusy is returned by Start while another generation is live.
var ErrBusy = errors.New("a generation is already in progress")

// ErrEmptyPrompt is returned by Start for a blank prompt.
var ErrEmptyPrompt = errors.New("prompt is empty")

// =============================================================================
// HANDLE
// =============================================================================

// Handle is a live or finished generation.
type Handle struct {
	ID      HandleID
	Model   string
	Prompt  string
	Started time.Time

	cancel    context.CancelFunc
	cancelled bool
	// accepted counts the characters of accepted fragments, for logging.
	accepted int
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller runs at most one generation at a time.
type Controller struct {
	backend Backend
	publish func(Event)
	log     *zap.Logger

	nextID HandleID
	active *Handle

	wg sync.WaitGroup
}

// NewController creates a Controller. publish receives the events of every
// generation, in order, from the generation's goroutine.
func NewController(backend Backend, publish func(Event)) *Controller {
	return &Controller{
		backend: backend,
		publish: publish,
		log:     logging.Named("generation"),
	}
}

// Busy reports whether a generation is live.
func (c *Controller) Busy() bool { return c.active != nil }

// Start begins streaming a response to prompt. history is the transcript
// before prompt; it is copied into the request and not retained. The model
// is history.ModelName.
func (c *Controller) Start(prompt string, history *model.ChatSession, cfg model.ModelConfig) (*Handle, error) {
	if c.active != nil {
		return nil, ErrBusy
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	req := BuildRequest(prompt, history, cfg)

	c.nextID++
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		ID:      c.nextID,
		Model:   req.Model,
		Prompt:  prompt,
		Started: time.Now(),
		cancel:  cancel,
	}
	c.active = h

	c.log.Info("generation started",
		zap.Uint64("handle", uint64(h.ID)),
		zap.String("model", h.Model),
		zap.Int("messages", len(req.Messages)))

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		c.run(ctx, h.ID, req)
	}()
	return h, nil
}

// Cancel requests that h stop. It returns false when h is not the live
// generation or was already cancelled. After Cancel returns, Accept drops
// every further fragment of h.
func (c *Controller) Cancel(h *Handle) bool {
	if h == nil || c.active != h || h.cancelled {
		return false
	}
	h.cancelled = true
	h.cancel()
	c.log.Info("generation cancel requested", zap.Uint64("handle", uint64(h.ID)))
	return true
}

// CancelActive cancels the live generation, if any.
func (c *Controller) CancelActive() bool {
	return c.Cancel(c.active)
}

// Accept filters an event received from the sink. It returns the event the
// caller should act on, and false when the event must be ignored.
func (c *Controller) Accept(ev Event) (Event, bool) {
	h := c.active
	if ev == nil || h == nil || ev.HandleID() != h.ID {
		return nil, false
	}

	if !ev.terminal() {
		if h.cancelled {
			return nil, false
		}
		if tok, ok := ev.(TokenReceived); ok {
			h.accepted += len(tok.Text)
		}
		return ev, true
	}

	c.active = nil

	if h.cancelled {
		c.log.Info("generation cancelled",
			zap.Uint64("handle", uint64(h.ID)),
			zap.Int("chars", h.accepted))
		return GenerationFailed{Handle: h.ID, Reason: Cancelled}, true
	}

	switch ev := ev.(type) {
	case GenerationComplete:
		c.log.Info("generation complete",
			zap.Uint64("handle", uint64(h.ID)),
			zap.Int("tokens", ev.Stats.CompletionTokens),
			zap.Duration("duration", ev.Stats.TotalDuration))
	case GenerationFailed:
		c.log.Warn("generation failed",
			zap.Uint64("handle", uint64(h.ID)),
			zap.Stringer("reason", ev.Reason),
			zap.Error(ev.Err))
	}
	return ev, true
}

// Wait blocks until every generation goroutine has returned.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// =============================================================================
// STREAMING
// =============================================================================

func (c *Controller) run(ctx context.Context, id HandleID, req ollama.ChatRequest) {
	fail := func(err error) {
		c.publish(GenerationFailed{Handle: id, Reason: classify(ctx, err), Err: err})
	}

	stream, err := c.backend.OpenChatStream(ctx, req)
	if err != nil {
		fail(err)
		return
	}
	defer stream.Close()

	stats := model.NewStatistics()
	for {
		if ctx.Err() != nil {
			fail(ctx.Err())
			return
		}

		chunk, err := stream.Next()
		if errors.Is(err, io.EOF) {
			// A stream only reports EOF after its done chunk was consumed.
			fail(io.ErrUnexpectedEOF)
			return
		}
		if err != nil {
			fail(err)
			return
		}
		if ctx.Err() != nil {
			fail(ctx.Err())
			return
		}

		if chunk.Message.Content != "" {
			stats.RecordToken()
			c.publish(TokenReceived{Handle: id, Text: chunk.Message.Content})
		}
		if chunk.Done {
			stats.Finalize(chunk.EvalCount)
			c.publish(GenerationComplete{Handle: id, Stats: *stats})
			return
		}
	}
}

// classify maps a stream error to a failure reason. Cancellation wins over
// whatever error the aborted read produced.
func classify(ctx context.Context, err error) FailureReason {
	switch {
	case ctx.Err() != nil, errors.Is(err, context.Canceled):
		return Cancelled
	case ollama.IsTransport(err), errors.Is(err, io.ErrUnexpectedEOF):
		return ConnectionError
	default:
		return ProtocolError
	}
}

// =============================================================================
// REQUEST
// =============================================================================

// BuildRequest assembles the chat request: the system prompt, the non-empty
// history messages, then prompt.
func BuildRequest(prompt string, history *model.ChatSession, cfg model.ModelConfig) ollama.ChatRequest {
	req := ollama.ChatRequest{
		Stream: true,
		Options: &ollama.Options{
			Temperature:   cfg.Temperature,
			TopP:          cfg.TopP,
			TopK:          cfg.TopK,
			RepeatPenalty: cfg.RepeatPenalty,
			NumCtx:        cfg.ContextWindow,
		},
	}

	if strings.TrimSpace(cfg.SystemPrompt) != "" {
		req.Messages = append(req.Messages, ollama.Message{
			Role:    string(model.RoleSystem),
			Content: cfg.SystemPrompt,
		})
	}
	if history != nil {
		req.Model = history.ModelName
		for _, m := range history.Messages {
			text := m.Text()
			if text == "" {
				continue
			}
			req.Messages = append(req.Messages, ollama.Message{Role: string(m.Role), Content: text})
		}
	}
	req.Messages = append(req.Messages, ollama.Message{Role: string(model.RoleUser), Content: prompt})
	return req
}
