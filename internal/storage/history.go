// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/roleplay-tui/internal/model"
	"github.com/jeranaias/roleplay-tui/internal/util"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrChatNotFound is returned when a chat id has no local history.
	ErrChatNotFound = errors.New("chat not found in history")
)

// =============================================================================
// HISTORY STORE
// =============================================================================

// ChatMeta summarizes a stored chat for listing.
type ChatMeta struct {
	ID           string
	Title        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
	// Preview is the first user message, truncated.
	Preview string
}

// HistoryStore persists transcripts to a local SQLite database.
type HistoryStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*HistoryStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &HistoryStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *HistoryStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// =============================================================================
// SAVE
// =============================================================================

// SaveTranscript replaces the stored copy of a chat with the given messages.
// Streaming and errored messages are skipped; they are transient client
// state. Replace-all keeps the stored order identical to the transcript,
// including messages whose ids were rewritten after reconciliation.
func (s *HistoryStore) SaveTranscript(ctx context.Context, chatID, title string, msgs []model.Message) error {
	if chatID == "" {
		return errors.New("chat id required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if title == "" {
		title = titleFrom(msgs)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO chats (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET title = excluded.title, updated_at = excluded.updated_at`,
		chatID, title, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert chat: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE chat_id = ?", chatID); err != nil {
		return fmt.Errorf("failed to clear old messages: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (id, chat_id, position, role, content, model_used, truncated, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	pos := 0
	for _, m := range msgs {
		if m.IsStreaming || m.IsError {
			continue
		}
		truncated := 0
		if m.Truncated {
			truncated = 1
		}
		if _, err := stmt.ExecContext(ctx, m.ID, chatID, pos, m.Role.String(), m.Content, m.ModelUsed, truncated, m.CreatedAt.UTC()); err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
		pos++
	}

	return tx.Commit()
}

// titleFrom derives a chat title from the first user message.
func titleFrom(msgs []model.Message) string {
	for _, m := range msgs {
		if m.Role == model.RoleUser && m.Content != "" {
			title := strings.ReplaceAll(m.Content, "\n", " ")
			title = strings.ReplaceAll(title, "\r", "")
			return util.TruncateRunes(title, 50)
		}
	}
	return "New chat"
}

// =============================================================================
// LOAD
// =============================================================================

// LoadTranscript returns the stored messages for a chat in transcript order.
func (s *HistoryStore) LoadTranscript(ctx context.Context, chatID string) ([]model.Message, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chats WHERE id = ?", chatID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat: %w", err)
	}
	if exists == 0 {
		return nil, ErrChatNotFound
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, model_used, truncated, created_at
		FROM messages WHERE chat_id = ? ORDER BY position`, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		var m model.Message
		var role string
		var truncated int
		if err := rows.Scan(&m.ID, &role, &m.Content, &m.ModelUsed, &truncated, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Role = model.Role(role)
		m.Truncated = truncated != 0
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// =============================================================================
// LIST, SEARCH, DELETE
// =============================================================================

// ListChats returns all stored chats, most recently updated first.
func (s *HistoryStore) ListChats(ctx context.Context) ([]ChatMeta, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.title, c.created_at, c.updated_at,
		       (SELECT COUNT(*) FROM messages m WHERE m.chat_id = c.id),
		       COALESCE((SELECT m.content FROM messages m
		                 WHERE m.chat_id = c.id AND m.role = 'user'
		                 ORDER BY m.position LIMIT 1), '')
		FROM chats c ORDER BY c.updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	defer rows.Close()

	var metas []ChatMeta
	for rows.Next() {
		var meta ChatMeta
		if err := rows.Scan(&meta.ID, &meta.Title, &meta.CreatedAt, &meta.UpdatedAt, &meta.MessageCount, &meta.Preview); err != nil {
			return nil, fmt.Errorf("failed to scan chat: %w", err)
		}
		meta.Preview = util.TruncateRunes(strings.ReplaceAll(meta.Preview, "\n", " "), 80)
		metas = append(metas, meta)
	}
	return metas, rows.Err()
}

// SearchMessages returns chats where any stored message contains the query,
// case-insensitive. An empty query lists everything.
func (s *HistoryStore) SearchMessages(ctx context.Context, query string) ([]ChatMeta, error) {
	if query == "" {
		return s.ListChats(ctx)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT c.id, c.title, c.created_at, c.updated_at,
		       (SELECT COUNT(*) FROM messages m2 WHERE m2.chat_id = c.id),
		       COALESCE((SELECT m3.content FROM messages m3
		                 WHERE m3.chat_id = c.id AND m3.role = 'user'
		                 ORDER BY m3.position LIMIT 1), '')
		FROM chats c
		JOIN messages m ON m.chat_id = c.id
		WHERE m.content LIKE '%' || ? || '%' COLLATE NOCASE
		ORDER BY c.updated_at DESC`, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	defer rows.Close()

	var metas []ChatMeta
	for rows.Next() {
		var meta ChatMeta
		if err := rows.Scan(&meta.ID, &meta.Title, &meta.CreatedAt, &meta.UpdatedAt, &meta.MessageCount, &meta.Preview); err != nil {
			return nil, fmt.Errorf("failed to scan chat: %w", err)
		}
		meta.Preview = util.TruncateRunes(strings.ReplaceAll(meta.Preview, "\n", " "), 80)
		metas = append(metas, meta)
	}
	return metas, rows.Err()
}

// DeleteChat removes a chat and its messages from local history.
func (s *HistoryStore) DeleteChat(ctx context.Context, chatID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM chats WHERE id = ?", chatID)
	if err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrChatNotFound
	}
	return nil
}

// GetChat returns the metadata for a single stored chat.
func (s *HistoryStore) GetChat(ctx context.Context, chatID string) (ChatMeta, error) {
	var meta ChatMeta
	err := s.db.QueryRowContext(ctx, `
		SELECT c.id, c.title, c.created_at, c.updated_at,
		       (SELECT COUNT(*) FROM messages m WHERE m.chat_id = c.id)
		FROM chats c WHERE c.id = ?`, chatID).
		Scan(&meta.ID, &meta.Title, &meta.CreatedAt, &meta.UpdatedAt, &meta.MessageCount)
	if errors.Is(err, sql.ErrNoRows) {
		return ChatMeta{}, ErrChatNotFound
	}
	if err != nil {
		return ChatMeta{}, fmt.Errorf("failed to load chat: %w", err)
	}
	return meta, nil
}
