// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package generation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/ollama-tui/internal/model"
	"github.com/jeranaias/ollama-tui/internal/ollama"
)

// =============================================================================
// FAKES
// =============================================================================

type step struct {
	chunk ollama.ChatChunk
	err   error
}

// chanStream yields steps from a channel until ctx is cancelled.
type chanStream struct {
	ctx   context.Context
	steps chan step
}

func (s *chanStream) Next() (ollama.ChatChunk, error) {
	select {
	case st, ok := <-s.steps:
		if !ok {
			return ollama.ChatChunk{}, io.EOF
		}
		return st.chunk, st.err
	case <-s.ctx.Done():
		return ollama.ChatChunk{}, s.ctx.Err()
	}
}

func (s *chanStream) Close() error { return nil }

type fakeBackend struct {
	steps   chan step
	openErr error
	lastReq ollama.ChatRequest
}

func newFakeBackend(buffered ...step) *fakeBackend {
	b := &fakeBackend{steps: make(chan step, 64)}
	for _, s := range buffered {
		b.steps <- s
	}
	return b
}

func (b *fakeBackend) OpenChatStream(ctx context.Context, req ollama.ChatRequest) (Stream, error) {
	b.lastReq = req
	if b.openErr != nil {
		return nil, b.openErr
	}
	return &chanStream{ctx: ctx, steps: b.steps}, nil
}

func token(s string) step {
	return step{chunk: ollama.ChatChunk{Message: ollama.Message{Role: "assistant", Content: s}}}
}

func done(evalCount int) step {
	return step{chunk: ollama.ChatChunk{Done: true, EvalCount: evalCount}}
}

func newTestController(b Backend) (*Controller, chan Event) {
	events := make(chan Event, 256)
	return NewController(b, func(ev Event) { events <- ev }), events
}

// drain plays the role of the UI loop: it accepts events until a terminal
// one is accepted and returns everything that was accepted.
func drain(t *testing.T, c *Controller, events <-chan Event) []Event {
	t.Helper()
	var accepted []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-events:
			out, ok := c.Accept(ev)
			if !ok {
				continue
			}
			accepted = append(accepted, out)
			if out.terminal() {
				return accepted
			}
		case <-timeout:
			t.Fatal("timed out waiting for a terminal event")
			return nil
		}
	}
}

// acceptedText joins the accepted token fragments.
func acceptedText(events []Event) string {
	var b strings.Builder
	for _, ev := range events {
		if tok, ok := ev.(TokenReceived); ok {
			b.WriteString(tok.Text)
		}
	}
	return b.String()
}

func next(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for an event")
		return nil
	}
}

func session() *model.ChatSession {
	return model.NewSession("llama2:latest")
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestStartStreamsTokensThenCompletes(t *testing.T) {
	b := newFakeBackend(token("Hel"), token("lo"), token(" there"), done(3))
	c, events := newTestController(b)

	h, err := c.Start("Hi", session(), model.DefaultModelConfig())
	require.NoError(t, err)
	assert.True(t, c.Busy())

	accepted := drain(t, c, events)
	require.Len(t, accepted, 4)

	var texts []string
	for _, ev := range accepted[:3] {
		tok, ok := ev.(TokenReceived)
		require.True(t, ok, "expected token, got %T", ev)
		texts = append(texts, tok.Text)
	}
	assert.Equal(t, []string{"Hel", "lo", " there"}, texts)

	complete, ok := accepted[3].(GenerationComplete)
	require.True(t, ok, "expected completion, got %T", accepted[3])
	assert.Equal(t, h.ID, complete.Handle)
	assert.Equal(t, 3, complete.Stats.CompletionTokens)

	assert.Equal(t, "Hello there", acceptedText(accepted))
	assert.False(t, c.Busy())
	_, ok = c.Accept(TokenReceived{Handle: h.ID, Text: "late"})
	assert.False(t, ok, "a finished handle accepts nothing")
	c.Wait()
}

func TestStartRejectsWhileBusy(t *testing.T) {
	b := newFakeBackend()
	c, events := newTestController(b)

	h, err := c.Start("first", session(), model.DefaultModelConfig())
	require.NoError(t, err)

	_, err = c.Start("second", session(), model.DefaultModelConfig())
	assert.ErrorIs(t, err, ErrBusy)
	assert.True(t, c.Busy())

	require.True(t, c.Cancel(h))
	drain(t, c, events)

	// Idle again: a new generation may start.
	b.steps <- done(0)
	h2, err := c.Start("third", session(), model.DefaultModelConfig())
	require.NoError(t, err)
	assert.NotEqual(t, h.ID, h2.ID)
	drain(t, c, events)
	c.Wait()
}

func TestStartRejectsBlankPrompt(t *testing.T) {
	c, _ := newTestController(newFakeBackend())
	_, err := c.Start("  \n", session(), model.DefaultModelConfig())
	assert.ErrorIs(t, err, ErrEmptyPrompt)
	assert.False(t, c.Busy())
}

func TestEmptyFragmentsAreNotForwarded(t *testing.T) {
	b := newFakeBackend(token(""), token("x"), token(""), done(0))
	c, events := newTestController(b)

	_, err := c.Start("Hi", session(), model.DefaultModelConfig())
	require.NoError(t, err)

	accepted := drain(t, c, events)
	require.Len(t, accepted, 2)
	assert.Equal(t, "x", acceptedText(accepted))
	// Without an eval count the fragment count is reported.
	assert.Equal(t, 1, accepted[1].(GenerationComplete).Stats.CompletionTokens)
	c.Wait()
}

// =============================================================================
// CANCELLATION
// =============================================================================

func TestCancelKeepsAcceptedPrefix(t *testing.T) {
	b := newFakeBackend()
	c, events := newTestController(b)

	h, err := c.Start("Hi", session(), model.DefaultModelConfig())
	require.NoError(t, err)

	var prefix []Event
	for _, frag := range []string{"Hel", "lo"} {
		b.steps <- token(frag)
		ev, ok := c.Accept(next(t, events))
		require.True(t, ok)
		prefix = append(prefix, ev)
	}

	require.True(t, c.Cancel(h))
	assert.False(t, c.Cancel(h), "second cancel is a no-op")

	// A fragment already in flight when Cancel returned is dropped.
	_, ok := c.Accept(TokenReceived{Handle: h.ID, Text: " there"})
	assert.False(t, ok)

	accepted := drain(t, c, events)
	require.Len(t, accepted, 1)
	failed, ok := accepted[0].(GenerationFailed)
	require.True(t, ok)
	assert.Equal(t, Cancelled, failed.Reason)

	assert.Equal(t, "Hello", acceptedText(prefix))
	assert.False(t, c.Busy())
	c.Wait()
}

func TestCancelReportsCancelledExactlyOnce(t *testing.T) {
	b := newFakeBackend()
	c, events := newTestController(b)

	h, err := c.Start("Hi", session(), model.DefaultModelConfig())
	require.NoError(t, err)
	require.True(t, c.Cancel(h))

	// The server finished at the same moment: still reported as cancelled.
	out, ok := c.Accept(GenerationComplete{Handle: h.ID})
	require.True(t, ok)
	assert.Equal(t, GenerationFailed{Handle: h.ID, Reason: Cancelled}, out)

	// The goroutine's own terminal event arrives later and is dropped.
	c.Wait()
	for {
		select {
		case ev := <-events:
			_, ok := c.Accept(ev)
			assert.False(t, ok, "unexpected event %#v", ev)
		default:
			return
		}
	}
}

func TestCancelIgnoresStaleHandle(t *testing.T) {
	b := newFakeBackend(done(0))
	c, events := newTestController(b)

	h, err := c.Start("Hi", session(), model.DefaultModelConfig())
	require.NoError(t, err)
	drain(t, c, events)

	assert.False(t, c.Cancel(h))
	assert.False(t, c.Cancel(nil))
	assert.False(t, c.CancelActive())
	c.Wait()
}

func TestAcceptDropsForeignEvents(t *testing.T) {
	c, _ := newTestController(newFakeBackend())

	_, ok := c.Accept(TokenReceived{Handle: 42, Text: "x"})
	assert.False(t, ok, "idle controller accepts nothing")

	_, err := c.Start("Hi", session(), model.DefaultModelConfig())
	require.NoError(t, err)
	_, ok = c.Accept(GenerationComplete{Handle: 42})
	assert.False(t, ok)
	_, ok = c.Accept(nil)
	assert.False(t, ok)
	assert.True(t, c.Busy())

	c.CancelActive()
	c.Wait()
}

// =============================================================================
// FAILURES
// =============================================================================

func TestFailureClassification(t *testing.T) {
	tests := []struct {
		name    string
		openErr error
		steps   []step
		eof     bool
		want    FailureReason
	}{
		{
			name:    "server not running",
			openErr: &ollama.ClientError{Type: ollama.ErrTypeNotRunning, Message: "refused"},
			want:    ConnectionError,
		},
		{
			name:    "model not found",
			openErr: &ollama.ClientError{Type: ollama.ErrTypeModelNotFound, StatusCode: 404},
			want:    ProtocolError,
		},
		{
			name:  "connection dropped mid stream",
			steps: []step{token("a"), {err: &ollama.ClientError{Type: ollama.ErrTypeConnection, Cause: io.ErrUnexpectedEOF}}},
			want:  ConnectionError,
		},
		{
			name:  "stream ended without done",
			steps: []step{token("a")},
			eof:   true,
			want:  ConnectionError,
		},
		{
			name:  "malformed chunk",
			steps: []step{{err: &ollama.ClientError{Type: ollama.ErrTypeProtocol, Message: "bad json"}}},
			want:  ProtocolError,
		},
		{
			name:  "unknown error",
			steps: []step{{err: errors.New("boom")}},
			want:  ProtocolError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newFakeBackend(tt.steps...)
			b.openErr = tt.openErr
			if tt.eof {
				close(b.steps)
			}
			c, events := newTestController(b)

			_, err := c.Start("Hi", session(), model.DefaultModelConfig())
			require.NoError(t, err)

			accepted := drain(t, c, events)
			failed, ok := accepted[len(accepted)-1].(GenerationFailed)
			require.True(t, ok)
			assert.Equal(t, tt.want, failed.Reason)
			assert.Error(t, failed.Err)
			assert.NotEmpty(t, failed.Error())
			c.Wait()
		})
	}
}

// =============================================================================
// REQUEST
// =============================================================================

func TestBuildRequest(t *testing.T) {
	hist := session()
	hist.AddUser("earlier question")
	hist.Messages = append(hist.Messages, model.NewMessage(model.RoleAssistant, "earlier answer"))
	hist.BeginAssistant() // empty, skipped

	cfg := model.DefaultModelConfig()
	cfg.Temperature = 0
	req := BuildRequest("now", hist, cfg)

	assert.Equal(t, "llama2:latest", req.Model)
	assert.True(t, req.Stream)
	require.Len(t, req.Messages, 4)
	assert.Equal(t, ollama.Message{Role: "system", Content: cfg.SystemPrompt}, req.Messages[0])
	assert.Equal(t, ollama.Message{Role: "user", Content: "earlier question"}, req.Messages[1])
	assert.Equal(t, ollama.Message{Role: "assistant", Content: "earlier answer"}, req.Messages[2])
	assert.Equal(t, ollama.Message{Role: "user", Content: "now"}, req.Messages[3])

	require.NotNil(t, req.Options)
	assert.Equal(t, 0.0, req.Options.Temperature)
	assert.Equal(t, cfg.TopK, req.Options.TopK)
	assert.Equal(t, cfg.ContextWindow, req.Options.NumCtx)
}

func TestBuildRequestWithoutSystemPrompt(t *testing.T) {
	cfg := model.DefaultModelConfig()
	cfg.SystemPrompt = "   "
	req := BuildRequest("hello", nil, cfg)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "user", req.Messages[0].Role)
}

// =============================================================================
// CLIENT BACKEND
// =============================================================================

func TestClientBackendAgainstServer(t *testing.T) {
	reqs := make(chan ollama.ChatRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollama.ChatRequest
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		reqs <- req
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, line := range []string{
			`{"message":{"role":"assistant","content":"Hel"},"done":false}`,
			`{"message":{"role":"assistant","content":"lo"},"done":false}`,
			`{"message":{"role":"assistant","content":" there"},"done":false}`,
			`{"message":{"role":"assistant","content":""},"done":true,"eval_count":3}`,
		} {
			_, _ = w.Write([]byte(line + "\n"))
		}
	}))
	defer srv.Close()

	client := ollama.NewClient(ollama.ClientConfig{BaseURL: srv.URL, MaxAttempts: 1})
	c, events := newTestController(ClientBackend{Client: client})

	_, err := c.Start("Hi", session(), model.DefaultModelConfig())
	require.NoError(t, err)

	accepted := drain(t, c, events)
	_, ok := accepted[len(accepted)-1].(GenerationComplete)
	require.True(t, ok)
	assert.Equal(t, "Hello there", acceptedText(accepted))
	got := <-reqs
	assert.Equal(t, "llama2:latest", got.Model)
	assert.Equal(t, "Hi", got.Messages[len(got.Messages)-1].Content)
	c.Wait()
}

func TestClientBackendReturnsNilStreamOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'nope' not found"}`))
	}))
	defer srv.Close()

	b := ClientBackend{Client: ollama.NewClient(ollama.ClientConfig{BaseURL: srv.URL, MaxAttempts: 1})}
	s, err := b.OpenChatStream(context.Background(), ollama.ChatRequest{Model: "nope"})
	assert.Nil(t, s)
	assert.True(t, ollama.IsModelNotFound(err))
}
