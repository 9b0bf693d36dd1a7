// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/ollama-tui/internal/model"
)

// =============================================================================
// SESSION STORE
// =============================================================================

func newSession(t *testing.T, modelName string, created time.Time, texts ...string) *model.ChatSession {
	t.Helper()
	s := model.NewSession(modelName)
	s.CreatedAt = created
	s.ID = model.NewSessionID(created)
	for i, text := range texts {
		if i%2 == 0 {
			s.AddUser(text)
		} else {
			s.Messages = append(s.Messages, model.NewMessage(model.RoleAssistant, text))
		}
	}
	return s
}

func TestSessionStore_SaveLoadRoundTrip(t *testing.T) {
	store, err := NewSessionStore(filepath.Join(t.TempDir(), "chats"))
	require.NoError(t, err)

	orig := newSession(t, "llama2:latest", time.Now(), "Hello", "Hello there", "How are you?", "Fine.")
	require.NoError(t, store.Save(orig))

	loaded, err := store.Load(orig.ID)
	require.NoError(t, err)

	assert.Equal(t, orig.ID, loaded.ID)
	assert.Equal(t, orig.ModelName, loaded.ModelName)
	require.Len(t, loaded.Messages, len(orig.Messages))
	for i := range orig.Messages {
		assert.Equal(t, orig.Messages[i].Role, loaded.Messages[i].Role, "role of message %d", i)
		assert.Equal(t, orig.Messages[i].Content, loaded.Messages[i].Content, "text of message %d", i)
	}
	assert.True(t, orig.CreatedAt.Equal(loaded.CreatedAt))
}

func TestSessionStore_SaveIsASnapshot(t *testing.T) {
	store, err := NewSessionStore(t.TempDir())
	require.NoError(t, err)

	live := newSession(t, "m", time.Now(), "q")
	reply := live.BeginAssistant()
	reply.AppendToken("partial")
	require.NoError(t, store.Save(live))

	reply.AppendToken(" more")
	live.AddUser("later")

	loaded, err := store.Load(live.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Messages, 2)
	assert.Equal(t, "partial", loaded.Messages[1].Content)
}

func TestSessionStore_LoadNotFound(t *testing.T) {
	store, err := NewSessionStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load("chat_19990101_000000_deadbeef")
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestSessionStore_RejectsPathIDs(t *testing.T) {
	store, err := NewSessionStore(t.TempDir())
	require.NoError(t, err)

	for _, id := range []string{"", "../escape", "a/b", ".hidden"} {
		_, err := store.Load(id)
		assert.Error(t, err, "id %q", id)
	}
}

func TestSessionStore_ListNewestFirstSkipsCorrupt(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSessionStore(dir)
	require.NoError(t, err)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local)
	older := newSession(t, "llama2:latest", base, "old question")
	newer := newSession(t, "mistral:latest", base.Add(time.Hour), "new question")
	require.NoError(t, store.Save(older))
	require.NoError(t, store.Save(newer))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{nope"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, "new question", list[0].Preview)
	assert.Equal(t, older.ID, list[1].ID)
}

func TestSessionStore_Delete(t *testing.T) {
	store, err := NewSessionStore(t.TempDir())
	require.NoError(t, err)

	s := newSession(t, "m", time.Now(), "x")
	require.NoError(t, store.Save(s))
	require.NoError(t, store.Delete(s.ID))

	_, err = store.Load(s.ID)
	assert.True(t, errors.Is(err, ErrSessionNotFound))
	assert.True(t, errors.Is(store.Delete(s.ID), ErrSessionNotFound))
}

func TestSessionStore_LoadsLegacyFormat(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSessionStore(dir)
	require.NoError(t, err)

	legacy := map[string]any{
		"timestamp": "2024-03-09 14:05:07",
		"model":     "llama2:latest",
		"messages":  [][]string{{"user", "Hello"}, {"assistant", "Hi!"}},
	}
	data, err := json.Marshal(legacy)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chat_20240309_140507.json"), data, 0o644))

	sess, err := store.Load("chat_20240309_140507")
	require.NoError(t, err)
	assert.Equal(t, "llama2:latest", sess.ModelName)
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, model.RoleAssistant, sess.Messages[1].Role)
	assert.Equal(t, "Hi!", sess.Messages[1].Content)
	assert.Equal(t, 2024, sess.CreatedAt.Year())
}

func TestExportMarkdown(t *testing.T) {
	s := newSession(t, "llama2:latest", time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local), "Hello", "Hello there")
	md := ExportMarkdown(s)
	assert.True(t, strings.HasPrefix(md, "# Chat 2024-01-02 03:04:05"))
	assert.Contains(t, md, "**Model:** llama2:latest")
	assert.Contains(t, md, "## Assistant\n\nHello there")
}

// =============================================================================
// CONFIG STORE
// =============================================================================

func TestConfigStore_MissingFileGivesDefaults(t *testing.T) {
	store := NewConfigStore(filepath.Join(t.TempDir(), "model_config.json"))
	cfg, corrections, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, corrections)
	assert.Equal(t, model.DefaultModelConfig(), cfg)
}

func TestConfigStore_ClampsOnLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model_config.json")
	raw := `{"temperature": 3.5, "top_p": 0.5, "top_k": 0, "repeat_penalty": 1.1, "num_ctx": 4096, "system_prompt": "x"}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, corrections, err := NewConfigStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, 2.0, cfg.Temperature)
	assert.Equal(t, 1, cfg.TopK)
	assert.Equal(t, 4096, cfg.ContextWindow)
	require.Len(t, corrections, 2)
	assert.Equal(t, model.FieldTemperature, corrections[0].Field)
}

func TestConfigStore_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model_config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"temperature": 0.2}`), 0o644))

	cfg, _, err := NewConfigStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, 0.2, cfg.Temperature)
	assert.Equal(t, 40, cfg.TopK)
}

func TestConfigStore_SaveRoundTripAndNeverStoresInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model_config.json")
	store := NewConfigStore(path)

	cfg := model.DefaultModelConfig()
	cfg.Temperature = 9
	require.NoError(t, store.Save(cfg))

	var onDisk map[string]any
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, 2.0, onDisk["temperature"])
	assert.Contains(t, onDisk, "num_ctx")

	loaded, corrections, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, corrections)
	assert.Equal(t, 2.0, loaded.Temperature)
}

func TestConfigStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model_config.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))

	cfg, _, err := NewConfigStore(path).Load()
	var se *StorageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "decode", se.Op)
	assert.Equal(t, model.DefaultModelConfig(), cfg)
}

// =============================================================================
// WATCHER
// =============================================================================

func TestWatcher_ReportsSavedSessions(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSessionStore(dir)
	require.NoError(t, err)

	w, err := NewWatcher(dir, 20*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := make(chan struct{}, 8)
	go w.Run(ctx, func() { changes <- struct{}{} })

	require.NoError(t, store.Save(newSession(t, "m", time.Now(), "hi")))

	select {
	case <-changes:
	case <-time.After(3 * time.Second):
		t.Fatal("no change notification after save")
	}
}

// =============================================================================
// PROMPT HISTORY
// =============================================================================

func TestPromptHistory(t *testing.T) {
	ctx := context.Background()
	h, err := OpenPromptHistory(filepath.Join(t.TempDir(), "history.db"), 3)
	require.NoError(t, err)
	defer h.Close()

	for _, p := range []string{"one", "two", "two", "  ", "three", "four"} {
		require.NoError(t, h.Add(ctx, p, "llama2:latest"))
	}

	recent, err := h.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"two", "three", "four"}, recent)

	found, err := h.Search(ctx, "t", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"three", "two"}, found)
}
