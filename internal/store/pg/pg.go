// Package pg implements the store contracts on Postgres. Schema is
// managed out of band by `reactobot migrate` (golang-migrate over the
// migrations/ directory).
package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/vuongle/reactobot/internal/store"
)

// New opens a Postgres connection pool and returns stores backed by it.
func New(dsn string) (*store.Stores, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return store.NewStores(&chatStore{db: db}, &filterStore{db: db}, db.Close), nil
}

type chatStore struct {
	db *sql.DB
}

func (s *chatStore) Upsert(ctx context.Context, chat store.Chat) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chats (id, chat_id, title, admin_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (chat_id) DO UPDATE SET title = EXCLUDED.title, admin_id = EXCLUDED.admin_id
	`, uuid.Must(uuid.NewV7()), chat.ChatID, chat.Title, chat.AdminID, chat.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert chat %d: %w", chat.ChatID, err)
	}
	return nil
}

func (s *chatStore) Delete(ctx context.Context, chatID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE chat_id = $1`, chatID)
	if err != nil {
		return false, fmt.Errorf("delete chat %d: %w", chatID, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *chatStore) Get(ctx context.Context, chatID int64) (*store.Chat, error) {
	var c store.Chat
	err := s.db.QueryRowContext(ctx, `
		SELECT chat_id, title, admin_id, created_at FROM chats WHERE chat_id = $1
	`, chatID).Scan(&c.ChatID, &c.Title, &c.AdminID, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get chat %d: %w", chatID, err)
	}
	return &c, nil
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
		var c store.Chat
		if err := rows.Scan(&c.ChatID, &c.Title, &c.AdminID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
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
		INSERT INTO filters (id, keyword, response, buttons, admin_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (keyword) DO UPDATE SET
			response = EXCLUDED.response,
			buttons = EXCLUDED.buttons,
			admin_id = EXCLUDED.admin_id,
			updated_at = EXCLUDED.updated_at
	`, uuid.Must(uuid.NewV7()), filter.Keyword, filter.Response, buttons,
		filter.AdminID, filter.CreatedAt, filter.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert filter %q: %w", filter.Keyword, err)
	}
	return nil
}

func (s *filterStore) Delete(ctx context.Context, keyword string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM filters WHERE keyword = $1`, keyword)
	if err != nil {
		return false, fmt.Errorf("delete filter %q: %w", keyword, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *filterStore) Get(ctx context.Context, keyword string) (*store.Filter, error) {
	var f store.Filter
	var buttons []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT keyword, response, buttons, admin_id, created_at, updated_at
		FROM filters WHERE keyword = $1
	`, keyword).Scan(&f.Keyword, &f.Response, &buttons, &f.AdminID, &f.CreatedAt, &f.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get filter %q: %w", keyword, err)
	}
	if len(buttons) > 0 {
		if err := json.Unmarshal(buttons, &f.Buttons); err != nil {
			return nil, fmt.Errorf("unmarshal buttons for %q: %w", keyword, err)
		}
	}
	return &f, nil
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
		var f store.Filter
		var buttons []byte
		if err := rows.Scan(&f.Keyword, &f.Response, &buttons, &f.AdminID, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan filter: %w", err)
		}
		if len(buttons) > 0 {
			if err := json.Unmarshal(buttons, &f.Buttons); err != nil {
				return nil, fmt.Errorf("unmarshal buttons for %q: %w", f.Keyword, err)
			}
		}
		filters = append(filters, f)
	}
	return filters, rows.Err()
}
