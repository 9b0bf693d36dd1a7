// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// =============================================================================
// PROMPT HISTORY
// =============================================================================

const historySchema = `
CREATE TABLE IF NOT EXISTS prompts (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	text       TEXT    NOT NULL,
	model      TEXT    NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_prompts_created ON prompts(created_at);
`

// PromptHistory stores submitted prompts for recall. Consecutive
// duplicates are stored once.
type PromptHistory struct {
	db    *sql.DB
	limit int
}

// OpenPromptHistory opens or creates the database at path. limit caps the
// number of stored prompts; older rows are pruned on insert.
func OpenPromptHistory(path string, limit int) (*PromptHistory, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=2000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	if limit <= 0 {
		limit = 1000
	}
	return &PromptHistory{db: db, limit: limit}, nil
}

// Add records a prompt. Blank prompts and repeats of the latest prompt are
// ignored.
func (h *PromptHistory) Add(ctx context.Context, text, modelName string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var last string
	err := h.db.QueryRowContext(ctx, `SELECT text FROM prompts ORDER BY id DESC LIMIT 1`).Scan(&last)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("read last prompt: %w", err)
	}
	if last == text {
		return nil
	}

	if _, err := h.db.ExecContext(ctx,
		`INSERT INTO prompts (text, model, created_at) VALUES (?, ?, ?)`,
		text, modelName, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("insert prompt: %w", err)
	}
	if _, err := h.db.ExecContext(ctx,
		`DELETE FROM prompts WHERE id NOT IN (SELECT id FROM prompts ORDER BY id DESC LIMIT ?)`,
		h.limit); err != nil {
		return fmt.Errorf("prune prompts: %w", err)
	}
	return nil
}

// Recent returns up to n prompts, oldest first, ready to be used as a
// recall ring.
func (h *PromptHistory) Recent(ctx context.Context, n int) ([]string, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT text FROM (SELECT id, text FROM prompts ORDER BY id DESC LIMIT ?) ORDER BY id ASC`, n)
	if err != nil {
		return nil, fmt.Errorf("query prompts: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, err
		}
		out = append(out, text)
	}
	return out, rows.Err()
}

// Search returns prompts containing substr, newest first.
func (h *PromptHistory) Search(ctx context.Context, substr string, n int) ([]string, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT text FROM prompts WHERE text LIKE '%' || ? || '%' ORDER BY id DESC LIMIT ?`, substr, n)
	if err != nil {
		return nil, fmt.Errorf("search prompts: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, err
		}
		out = append(out, text)
	}
	return out, rows.Err()
}

// Close closes the database.
func (h *PromptHistory) Close() error {
	return h.db.Close()
}
