package reactions

import "testing"

func TestNew_Validates(t *testing.T) {
	if _, err := New(nil, "👍"); err == nil {
		t.Fatal("expected error for empty pool")
	}
	if _, err := New([]string{"👍"}, ""); err == nil {
		t.Fatal("expected error for missing default")
	}
}

func TestPick_StaysInPool(t *testing.T) {
	pool := []string{"👍", "🔥", "🎉"}
	s, err := New(pool, "👍")
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	member := make(map[string]bool, len(pool))
	for _, e := range pool {
		member[e] = true
	}
	for range 100 {
		if got := s.Pick(); !member[got] {
			t.Fatalf("picked %q, not in pool", got)
		}
	}
}

func TestSelector_IgnoresCallerMutation(t *testing.T) {
	pool := []string{"👍"}
	s, err := New(pool, "🔥")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	pool[0] = "💀"

	if got := s.Pick(); got != "👍" {
		t.Fatalf("pool must be copied at construction, got %q", got)
	}
	if got := s.Fallback(); got != "🔥" {
		t.Fatalf("unexpected fallback %q", got)
	}
	if s.PoolSize() != 1 {
		t.Fatalf("unexpected pool size %d", s.PoolSize())
	}
}
