// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/ollama-tui/internal/logging"
	"github.com/jeranaias/ollama-tui/internal/model"
	"github.com/jeranaias/ollama-tui/internal/util"
)

// =============================================================================
// SESSION STORE
// =============================================================================

// SessionStore manages saved chat sessions.
type SessionStore struct {
	dir string
	log *zap.Logger
}

// NewSessionStore opens (and creates) the chats directory.
func NewSessionStore(dir string) (*SessionStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &StorageError{Op: "create", Path: dir, Err: err}
	}
	return &SessionStore{dir: dir, log: logging.Named("storage")}, nil
}

// Dir returns the chats directory.
func (s *SessionStore) Dir() string { return s.dir }

func (s *SessionStore) path(id string) (string, error) {
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return "", fmt.Errorf("invalid session id %q", id)
	}
	return filepath.Join(s.dir, id+".json"), nil
}

// Save writes a snapshot of sess. The file is independent of the live
// session: later edits to sess do not affect it.
func (s *SessionStore) Save(sess *model.ChatSession) error {
	path, err := s.path(sess.ID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(sess.Clone(), "", "  ")
	if err != nil {
		return &StorageError{Op: "encode", Path: path, Err: err}
	}
	if err := util.WriteFileAtomic(path, data, 0o644); err != nil {
		return &StorageError{Op: "write", Path: path, Err: err}
	}
	s.log.Info("session saved", zap.String("id", sess.ID), zap.Int("messages", sess.Len()))
	return nil
}

// Load reads one session by id.
func (s *SessionStore) Load(id string) (*model.ChatSession, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, &StorageError{Op: "read", Path: path, Err: err}
	}
	sess, err := decodeSession(id, data)
	if err != nil {
		return nil, &StorageError{Op: "decode", Path: path, Err: err}
	}
	return sess, nil
}

// List returns the summaries of every readable session, newest first.
// Unreadable or corrupt files are skipped.
func (s *SessionStore) List() ([]model.SessionSummary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, &StorageError{Op: "list", Path: s.dir, Err: err}
	}

	summaries := make([]model.SessionSummary, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, ".") {
			continue
		}
		id := strings.TrimSuffix(name, ".json")
		sess, err := s.Load(id)
		if err != nil {
			s.log.Warn("skipping unreadable session", zap.String("file", name), zap.Error(err))
			continue
		}
		summaries = append(summaries, sess.Summary())
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		if summaries[i].CreatedAt.Equal(summaries[j].CreatedAt) {
			return summaries[i].ID > summaries[j].ID
		}
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries, nil
}

// Delete removes a saved session.
func (s *SessionStore) Delete(id string) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return &StorageError{Op: "delete", Path: path, Err: err}
	}
	s.log.Info("session deleted", zap.String("id", id))
	return nil
}

// =============================================================================
// DECODING
// =============================================================================

// legacySession is the layout written by earlier releases:
// {"timestamp": "2024-03-09 14:05:07", "model": "...", "messages": [["user","hi"], ...]}.
type legacySession struct {
	Timestamp string      `json:"timestamp"`
	Model     string      `json:"model"`
	Messages  [][2]string `json:"messages"`
}

const legacyTimeLayout = "2006-01-02 15:04:05"

func decodeSession(id string, data []byte) (*model.ChatSession, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}

	if _, ok := probe["model_name"]; ok {
		var sess model.ChatSession
		if err := json.Unmarshal(data, &sess); err != nil {
			return nil, err
		}
		if sess.ID == "" {
			sess.ID = id
		}
		if sess.Messages == nil {
			sess.Messages = make([]*model.Message, 0)
		}
		return &sess, nil
	}

	var legacy legacySession
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, err
	}
	if legacy.Model == "" && legacy.Timestamp == "" {
		return nil, errors.New("not a chat session")
	}
	created, err := time.ParseInLocation(legacyTimeLayout, legacy.Timestamp, time.Local)
	if err != nil {
		return nil, fmt.Errorf("legacy timestamp: %w", err)
	}
	sess := &model.ChatSession{
		ID:        id,
		CreatedAt: created,
		ModelName: legacy.Model,
		Messages:  make([]*model.Message, 0, len(legacy.Messages)),
	}
	for _, m := range legacy.Messages {
		msg := model.NewMessage(model.Role(m[0]), m[1])
		msg.Timestamp = created
		sess.Messages = append(sess.Messages, msg)
	}
	return sess, nil
}

// =============================================================================
// EXPORT
// =============================================================================

// ExportMarkdown renders a session as a Markdown document.
func ExportMarkdown(sess *model.ChatSession) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Chat %s\n\n", sess.CreatedAt.Format(legacyTimeLayout))
	fmt.Fprintf(&b, "**Model:** %s\n\n", sess.ModelName)
	for _, m := range sess.Messages {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", m.Role.DisplayName(), strings.TrimSpace(m.Text()))
	}
	return b.String()
}
