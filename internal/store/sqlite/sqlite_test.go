package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/vuongle/reactobot/internal/markup"
	"github.com/vuongle/reactobot/internal/store"
)

func openTestStores(t *testing.T) *store.Stores {
	t.Helper()
	stores, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { stores.Close() })
	return stores
}

func TestChatRoundTrip(t *testing.T) {
	stores := openTestStores(t)
	ctx := context.Background()

	chat := store.Chat{ChatID: -1001234567890, Title: "test group", AdminID: 7, CreatedAt: time.Now()}
	if err := stores.Chats.Upsert(ctx, chat); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := stores.Chats.Get(ctx, chat.ChatID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "test group" || got.AdminID != 7 {
		t.Fatalf("unexpected chat %+v", got)
	}

	chat.Title = "renamed"
	if err := stores.Chats.Upsert(ctx, chat); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	chats, err := stores.Chats.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(chats) != 1 || chats[0].Title != "renamed" {
		t.Fatalf("upsert must replace, got %+v", chats)
	}

	existed, err := stores.Chats.Delete(ctx, chat.ChatID)
	if err != nil || !existed {
		t.Fatalf("delete: existed=%t err=%v", existed, err)
	}
	existed, err = stores.Chats.Delete(ctx, chat.ChatID)
	if err != nil || existed {
		t.Fatalf("second delete: existed=%t err=%v", existed, err)
	}
	if _, err := stores.Chats.Get(ctx, chat.ChatID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFilterRoundTrip(t *testing.T) {
	stores := openTestStores(t)
	ctx := context.Background()

	now := time.Now()
	filter := store.Filter{
		Keyword:  "docs",
		Response: "Read here",
		Buttons: []markup.ButtonSpec{
			{Label: "Docs", URL: "https://example.com"},
			{Label: "Chat", URL: "https://example.com/chat", SameRow: true},
		},
		AdminID:   7,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := stores.Filters.Upsert(ctx, filter); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := stores.Filters.Get(ctx, "docs")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Response != "Read here" {
		t.Fatalf("unexpected response %q", got.Response)
	}
	if len(got.Buttons) != 2 || !got.Buttons[1].SameRow || got.Buttons[0].URL != "https://example.com" {
		t.Fatalf("buttons did not survive the round trip: %+v", got.Buttons)
	}

	filter.Response = "Updated"
	filter.Buttons = nil
	if err := stores.Filters.Upsert(ctx, filter); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	got, err = stores.Filters.Get(ctx, "docs")
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if got.Response != "Updated" || len(got.Buttons) != 0 {
		t.Fatalf("upsert must replace, got %+v", got)
	}

	existed, err := stores.Filters.Delete(ctx, "docs")
	if err != nil || !existed {
		t.Fatalf("delete: existed=%t err=%v", existed, err)
	}
	if _, err := stores.Filters.Get(ctx, "docs"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListOrder(t *testing.T) {
	stores := openTestStores(t)
	ctx := context.Background()

	base := time.Now()
	for i, kw := range []string{"first", "second", "third"} {
		f := store.Filter{
			Keyword:   kw,
			Response:  "r",
			AdminID:   1,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
			UpdatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := stores.Filters.Upsert(ctx, f); err != nil {
			t.Fatalf("upsert %q: %v", kw, err)
		}
	}

	all, err := stores.Filters.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 filters, got %d", len(all))
	}
	for i, want := range []string{"first", "second", "third"} {
		if all[i].Keyword != want {
			t.Fatalf("creation order not preserved: %v", all)
		}
	}
}
