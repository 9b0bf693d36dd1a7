// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/ollama-tui/internal/generation"
	"github.com/jeranaias/ollama-tui/internal/model"
	"github.com/jeranaias/ollama-tui/internal/ollama"
	"github.com/jeranaias/ollama-tui/internal/ui/styles"
)

// =============================================================================
// FAKE BACKEND
// =============================================================================

type step struct {
	chunk ollama.ChatChunk
	err   error
}

func token(s string) step {
	return step{chunk: ollama.ChatChunk{Message: ollama.Message{Role: "assistant", Content: s}}}
}

func done(evalCount int) step {
	return step{chunk: ollama.ChatChunk{Done: true, EvalCount: evalCount}}
}

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
	steps chan step

	mu      sync.Mutex
	openErr error
	reqs    []ollama.ChatRequest
}

func newFakeBackend(buffered ...step) *fakeBackend {
	b := &fakeBackend{steps: make(chan step, 128)}
	for _, s := range buffered {
		b.steps <- s
	}
	return b
}

func (b *fakeBackend) OpenChatStream(ctx context.Context, req ollama.ChatRequest) (generation.Stream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reqs = append(b.reqs, req)
	if b.openErr != nil {
		return nil, b.openErr
	}
	return &chanStream{ctx: ctx, steps: b.steps}, nil
}

func (b *fakeBackend) requests() []ollama.ChatRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]ollama.ChatRequest(nil), b.reqs...)
}

// =============================================================================
// FAKE MODEL SERVICE
// =============================================================================

type fakeModels struct {
	mu       sync.Mutex
	models   []ollama.ModelInfo
	listErr  error
	progress []ollama.PullProgress
	pullErr  error
}

func (f *fakeModels) ListModels(ctx context.Context) ([]ollama.ModelInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]ollama.ModelInfo(nil), f.models...), nil
}

func (f *fakeModels) PullModel(ctx context.Context, name string, onProgress func(ollama.PullProgress)) error {
	f.mu.Lock()
	progress, pullErr := f.progress, f.pullErr
	f.mu.Unlock()

	for _, p := range progress {
		if err := ctx.Err(); err != nil {
			return err
		}
		onProgress(p)
	}
	if pullErr != nil {
		return pullErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.models = append(f.models, ollama.ModelInfo{Name: name, Size: 4 << 30, ModifiedAt: time.Now()})
	return nil
}

func (f *fakeModels) DeleteModel(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, m := range f.models {
		if m.Name == name {
			f.models = append(f.models[:i], f.models[i+1:]...)
			return nil
		}
	}
	return ollama.ErrModelNotFound
}

// =============================================================================
// FAKE STORES
// =============================================================================

type memSessions struct {
	mu       sync.Mutex
	sessions map[string]*model.ChatSession
	saveErr  error
	loadErr  error
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: make(map[string]*model.ChatSession)}
}

func (s *memSessions) Save(sess *model.ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

func (s *memSessions) Load(id string) (*model.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	sess, ok := s.sessions[id]
	if !ok {
		return nil, errors.New("chat session not found")
	}
	return sess.Clone(), nil
}

func (s *memSessions) List() ([]model.SessionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.SessionSummary, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memSessions) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

type memConfigs struct {
	saved []model.ModelConfig
	err   error
}

func (c *memConfigs) Save(cfg model.ModelConfig) error {
	if c.err != nil {
		return c.err
	}
	cfg.Clamp()
	c.saved = append(c.saved, cfg)
	return nil
}

type memHistory struct {
	mu      sync.Mutex
	entries []string
}

func (h *memHistory) Add(ctx context.Context, text, modelName string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, text)
	return nil
}

func (h *memHistory) Recent(ctx context.Context, n int) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.entries...), nil
}

// =============================================================================
// HARNESS
// =============================================================================

type harness struct {
	app      *App
	backend  *fakeBackend
	models   *fakeModels
	sessions *memSessions
	configs  *memConfigs
	copied   []string
	copyErr  error
}

func newHarness(t *testing.T, opts ...func(*Options)) *harness {
	t.Helper()
	h := &harness{
		backend: newFakeBackend(),
		models: &fakeModels{models: []ollama.ModelInfo{
			{Name: "llama2:latest", Size: 3 << 30},
			{Name: "codellama:7b", Size: 4 << 30},
		}},
		sessions: newMemSessions(),
		configs:  &memConfigs{},
	}
	o := Options{
		Model:       "llama2:latest",
		ModelConfig: model.DefaultModelConfig(),
		VimMode:     true,
		MaxFPS:      30,
		QuitTimeout: time.Second,
		StatusTTL:   time.Minute,
		Theme:       styles.NewTheme(),
	}
	for _, fn := range opts {
		fn(&o)
	}
	h.app = New(Deps{
		Backend:  h.backend,
		Models:   h.models,
		Sessions: h.sessions,
		Configs:  h.configs,
		Clipboard: func(text string) error {
			if h.copyErr != nil {
				return h.copyErr
			}
			h.copied = append(h.copied, text)
			return nil
		},
	}, o)
	h.app.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	h.app.View()

	t.Cleanup(func() {
		_ = h.app.Close(5 * time.Second)
	})
	return h
}

// press sends one key and renders, as the Bubble Tea runtime would.
func (h *harness) press(keys ...string) tea.Cmd {
	var cmd tea.Cmd
	for _, k := range keys {
		_, cmd = h.app.Update(keyMsg(k))
		h.app.View()
	}
	return cmd
}

// typeText sends each rune as a key press.
func (h *harness) typeText(s string) {
	for _, r := range s {
		h.app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	h.app.View()
}

// pump delivers the next bus message.
func (h *harness) pump(t *testing.T) tea.Msg {
	t.Helper()
	select {
	case msg := <-h.app.bus.ch:
		h.app.Update(msg)
		h.app.View()
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a bus message")
		return nil
	}
}

// pumpUntil delivers bus messages until pred accepts one.
func (h *harness) pumpUntil(t *testing.T, pred func(tea.Msg) bool) tea.Msg {
	t.Helper()
	for {
		if msg := h.pump(t); pred(msg) {
			return msg
		}
	}
}

func isTerminal(msg tea.Msg) bool {
	switch msg.(type) {
	case generation.GenerationComplete, generation.GenerationFailed:
		return true
	}
	return false
}

func isType[T any](msg tea.Msg) bool {
	_, ok := msg.(T)
	return ok
}

func keyMsg(k string) tea.KeyMsg {
	special := map[string]tea.KeyType{
		"enter":  tea.KeyEnter,
		"esc":    tea.KeyEscape,
		"tab":    tea.KeyTab,
		"up":     tea.KeyUp,
		"down":   tea.KeyDown,
		"pgup":   tea.KeyPgUp,
		"pgdown": tea.KeyPgDown,
		"ctrl+c": tea.KeyCtrlC,
		"ctrl+s": tea.KeyCtrlS,
		"ctrl+y": tea.KeyCtrlY,
		"ctrl+u": tea.KeyCtrlU,
		"ctrl+p": tea.KeyCtrlP,
		"ctrl+n": tea.KeyCtrlN,
		"f1":     tea.KeyF1,
		"f2":     tea.KeyF2,
		"f3":     tea.KeyF3,
		"f4":     tea.KeyF4,
		"f5":     tea.KeyF5,
		"f6":     tea.KeyF6,
		"f7":     tea.KeyF7,
		"f8":     tea.KeyF8,
	}
	if t, ok := special[k]; ok {
		return tea.KeyMsg{Type: t}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}
