// Package store defines the persistence contracts for authorized chats
// and keyword filters, plus the record types they share. SQLite is the
// standalone default; Postgres is used when a DSN is configured.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/vuongle/reactobot/internal/markup"
)

// ErrNotFound is returned by Get when no record exists for the key.
var ErrNotFound = errors.New("record not found")

// Chat is an authorized group chat.
type Chat struct {
	ChatID    int64
	Title     string
	AdminID   int64
	CreatedAt time.Time
}

// Filter is a keyword auto-reply record. Keyword is stored normalized
// (lowercase, trimmed); Buttons are the pre-parsed layout persisted as
// JSON alongside the cleaned response text.
type Filter struct {
	Keyword   string
	Response  string
	Buttons   []markup.ButtonSpec
	AdminID   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ChatStore persists authorized chats. Upsert is idempotent per chat ID.
type ChatStore interface {
	Upsert(ctx context.Context, chat Chat) error
	Delete(ctx context.Context, chatID int64) (bool, error)
	Get(ctx context.Context, chatID int64) (*Chat, error)
	List(ctx context.Context) ([]Chat, error)
}

// FilterStore persists keyword filters. Upsert replaces the whole record
// (last-write-wins); no read-modify-write is ever required.
type FilterStore interface {
	Upsert(ctx context.Context, filter Filter) error
	Delete(ctx context.Context, keyword string) (bool, error)
	Get(ctx context.Context, keyword string) (*Filter, error)
	List(ctx context.Context) ([]Filter, error)
}

// Stores bundles all persistence backends.
type Stores struct {
	Chats   ChatStore
	Filters FilterStore

	closer func() error
}

// NewStores wires concrete backends and their close hook.
func NewStores(chats ChatStore, filters FilterStore, closer func() error) *Stores {
	return &Stores{Chats: chats, Filters: filters, closer: closer}
}

// Close releases the underlying database connection.
func (s *Stores) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
