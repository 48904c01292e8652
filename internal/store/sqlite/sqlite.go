// Package sqlite implements the store contracts on a local SQLite file.
// This is the standalone-mode backend: schema is created at open, no
// external migration step required.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vuongle/reactobot/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS chats (
	chat_id    INTEGER PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	admin_id   INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS filters (
	keyword    TEXT PRIMARY KEY,
	response   TEXT NOT NULL,
	buttons    TEXT NOT NULL DEFAULT '[]',
	admin_id   INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// New opens (creating if needed) the SQLite database at path and returns
// stores backed by it.
func New(path string) (*store.Stores, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc sqlite is single-writer; serialize access through one conn.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return store.NewStores(&chatStore{db: db}, &filterStore{db: db}, db.Close), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

type chatStore struct {
	db *sql.DB
}

func (s *chatStore) Upsert(ctx context.Context, chat store.Chat) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chats (chat_id, title, admin_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (chat_id) DO UPDATE SET title = excluded.title, admin_id = excluded.admin_id
	`, chat.ChatID, chat.Title, chat.AdminID, chat.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("upsert chat %d: %w", chat.ChatID, err)
	}
	return nil
}

func (s *chatStore) Delete(ctx context.Context, chatID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE chat_id = ?`, chatID)
	if err != nil {
		return false, fmt.Errorf("delete chat %d: %w", chatID, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *chatStore) Get(ctx context.Context, chatID int64) (*store.Chat, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT chat_id, title, admin_id, created_at FROM chats WHERE chat_id = ?
	`, chatID)
	return scanChat(row)
}

func (s *chatStore) List(ctx context.Context) ([]store.Chat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chat_id, title, admin_id, created_at FROM chats ORDER BY created_at, chat_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	var chats []store.Chat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, *c)
	}
	return chats, rows.Err()
}

func scanChat(row rowScanner) (*store.Chat, error) {
	var c store.Chat
	var createdAt int64
	err := row.Scan(&c.ChatID, &c.Title, &c.AdminID, &createdAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan chat: %w", err)
	}
	c.CreatedAt = time.Unix(createdAt, 0)
	return &c, nil
}

type filterStore struct {
	db *sql.DB
}

func (s *filterStore) Upsert(ctx context.Context, filter store.Filter) error {
	buttons, err := json.Marshal(filter.Buttons)
	if err != nil {
		return fmt.Errorf("marshal buttons: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO filters (keyword, response, buttons, admin_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (keyword) DO UPDATE SET
			response = excluded.response,
			buttons = excluded.buttons,
			admin_id = excluded.admin_id,
			updated_at = excluded.updated_at
	`, filter.Keyword, filter.Response, string(buttons), filter.AdminID,
		filter.CreatedAt.Unix(), filter.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("upsert filter %q: %w", filter.Keyword, err)
	}
	return nil
}

func (s *filterStore) Delete(ctx context.Context, keyword string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM filters WHERE keyword = ?`, keyword)
	if err != nil {
		return false, fmt.Errorf("delete filter %q: %w", keyword, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *filterStore) Get(ctx context.Context, keyword string) (*store.Filter, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT keyword, response, buttons, admin_id, created_at, updated_at
		FROM filters WHERE keyword = ?
	`, keyword)
	return scanFilter(row)
}

func (s *filterStore) List(ctx context.Context) ([]store.Filter, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT keyword, response, buttons, admin_id, created_at, updated_at
		FROM filters ORDER BY created_at, keyword
	`)
	if err != nil {
		return nil, fmt.Errorf("list filters: %w", err)
	}
	defer rows.Close()

	var filters []store.Filter
	for rows.Next() {
		f, err := scanFilter(rows)
		if err != nil {
			return nil, err
		}
		filters = append(filters, *f)
	}
	return filters, rows.Err()
}

func scanFilter(row rowScanner) (*store.Filter, error) {
	var f store.Filter
	var buttons string
	var createdAt, updatedAt int64
	err := row.Scan(&f.Keyword, &f.Response, &buttons, &f.AdminID, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan filter: %w", err)
	}
	if buttons != "" && buttons != "[]" {
		if err := json.Unmarshal([]byte(buttons), &f.Buttons); err != nil {
			return nil, fmt.Errorf("unmarshal buttons for %q: %w", f.Keyword, err)
		}
	}
	f.CreatedAt = time.Unix(createdAt, 0)
	f.UpdatedAt = time.Unix(updatedAt, 0)
	return &f, nil
}
