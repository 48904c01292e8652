// Package filters owns the keyword auto-reply table: validation and
// normalization of keywords, button-markup parsing on the write path,
// and an in-process cache so dispatch lookups never touch the store.
package filters

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/vuongle/reactobot/internal/markup"
	"github.com/vuongle/reactobot/internal/store"
)

// Validation errors surfaced to the authoring admin.
var (
	ErrInvalidKeyword  = errors.New("keyword must contain only letters, digits and underscores")
	ErrEmptyResponse   = errors.New("response text must not be empty")
	ErrResponseTooLong = errors.New("response text is too long")
)

// keywordRe matches normalized (lowercased, trimmed) keywords.
var keywordRe = regexp.MustCompile(`^[a-z0-9_]+$`)

// Normalize folds a keyword to its canonical lookup form.
func Normalize(keyword string) string {
	return strings.ToLower(strings.TrimSpace(keyword))
}

// Table is the keyword table. Reads on the dispatch hot path are served
// from the cache; writes go through the store first, then update the
// cache (last-write-wins, one record per keyword).
type Table struct {
	store  store.FilterStore
	maxLen int

	mu    sync.RWMutex
	cache map[string]store.Filter
}

// NewTable creates a table over the given store. maxResponseLen bounds
// the cleaned response text in runes.
func NewTable(fs store.FilterStore, maxResponseLen int) *Table {
	return &Table{
		store:  fs,
		maxLen: maxResponseLen,
		cache:  make(map[string]store.Filter),
	}
}

// Warm loads all filters from the store into the cache. Called once at
// startup; dispatch lookups are cache-only afterwards.
func (t *Table) Warm(ctx context.Context) error {
	all, err := t.store.List(ctx)
	if err != nil {
		return fmt.Errorf("warm filter cache: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.cache = make(map[string]store.Filter, len(all))
	for _, f := range all {
		t.cache[f.Keyword] = f
	}
	slog.Debug("filter cache warmed", "count", len(all))
	return nil
}

// Upsert validates, parses and writes a filter record. The keyword is
// normalized; the response is run through the button-markup parser and
// the cleaned text is bounded. Overwrites any existing record.
func (t *Table) Upsert(ctx context.Context, keyword, rawResponse string, adminID int64) (*store.Filter, error) {
	key := Normalize(keyword)
	if !keywordRe.MatchString(key) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKeyword, keyword)
	}

	clean, buttons := markup.Parse(rawResponse)
	if clean == "" {
		return nil, ErrEmptyResponse
	}
	if utf8.RuneCountInString(clean) > t.maxLen {
		return nil, fmt.Errorf("%w: %d runes (max %d)", ErrResponseTooLong, utf8.RuneCountInString(clean), t.maxLen)
	}

	now := time.Now()
	record := store.Filter{
		Keyword:   key,
		Response:  clean,
		Buttons:   buttons,
		AdminID:   adminID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// The lock spans the store write so concurrent upserts of the same
	// keyword commit to store and cache in the same order.
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.store.Upsert(ctx, record); err != nil {
		return nil, err
	}
	t.cache[key] = record
	return &record, nil
}

// Remove deletes a filter. Returns whether a record existed; removing an
// absent keyword is not an error.
func (t *Table) Remove(ctx context.Context, keyword string) (bool, error) {
	key := Normalize(keyword)

	t.mu.Lock()
	defer t.mu.Unlock()
	existed, err := t.store.Delete(ctx, key)
	if err != nil {
		return false, err
	}
	delete(t.cache, key)
	return existed, nil
}

// Lookup is the dispatch hot path: exact match on a normalized keyword,
// served from the cache only. The returned record is a copy.
func (t *Table) Lookup(keyword string) (store.Filter, bool) {
	t.mu.RLock()
	f, ok := t.cache[keyword]
	t.mu.RUnlock()
	return f, ok
}

// List returns all filters in store order (used for admin listing, not
// for dispatch).
func (t *Table) List(ctx context.Context) ([]store.Filter, error) {
	return t.store.List(ctx)
}

// Len reports the number of cached filters.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.cache)
}
