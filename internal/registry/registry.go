// Package registry tracks which chats are enabled for automated
// behavior and which users are administrators. The admin set is
// immutable configuration; the chat set is store-backed with an
// in-process cache for the per-message scope check.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vuongle/reactobot/internal/store"
)

// Registry is the authorization registry. Safe for concurrent use.
type Registry struct {
	store  store.ChatStore
	admins map[int64]struct{}

	mu    sync.RWMutex
	chats map[int64]struct{}
}

// New creates a registry with the given immutable admin set.
func New(cs store.ChatStore, admins []int64) *Registry {
	set := make(map[int64]struct{}, len(admins))
	for _, id := range admins {
		set[id] = struct{}{}
	}
	return &Registry{
		store:  cs,
		admins: set,
		chats:  make(map[int64]struct{}),
	}
}

// Warm loads the authorized-chat set from the store. Called once at
// startup; the scope check is cache-only afterwards.
func (r *Registry) Warm(ctx context.Context) error {
	chats, err := r.store.List(ctx)
	if err != nil {
		return fmt.Errorf("warm chat cache: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.chats = make(map[int64]struct{}, len(chats))
	for _, c := range chats {
		r.chats[c.ChatID] = struct{}{}
	}
	slog.Debug("authorized chat cache warmed", "count", len(chats))
	return nil
}

// Authorize upserts an authorized-chat record. Idempotent per chat ID.
// The lock spans the store write so concurrent writes for the same chat
// commit to store and cache in the same order.
func (r *Registry) Authorize(ctx context.Context, chatID, adminID int64, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.store.Upsert(ctx, store.Chat{
		ChatID:    chatID,
		Title:     title,
		AdminID:   adminID,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return err
	}
	r.chats[chatID] = struct{}{}
	return nil
}

// Deauthorize removes a chat. Returns whether a record existed.
func (r *Registry) Deauthorize(ctx context.Context, chatID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existed, err := r.store.Delete(ctx, chatID)
	if err != nil {
		return false, err
	}
	delete(r.chats, chatID)
	return existed, nil
}

// IsAuthorized is the per-message scope check: O(1), cache only. A
// brief staleness window after Authorize/Deauthorize is acceptable.
func (r *Registry) IsAuthorized(chatID int64) bool {
	r.mu.RLock()
	_, ok := r.chats[chatID]
	r.mu.RUnlock()
	return ok
}

// IsAdmin reports membership in the configured administrator set.
func (r *Registry) IsAdmin(userID int64) bool {
	_, ok := r.admins[userID]
	return ok
}

// List returns all authorized chats in store order.
func (r *Registry) List(ctx context.Context) ([]store.Chat, error) {
	return r.store.List(ctx)
}

// Len reports the number of cached authorized chats.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.chats)
}

// AdminCount reports the size of the configured admin set.
func (r *Registry) AdminCount() int {
	return len(r.admins)
}
