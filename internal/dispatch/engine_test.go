package dispatch

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/vuongle/reactobot/internal/markup"
	"github.com/vuongle/reactobot/internal/reactions"
	"github.com/vuongle/reactobot/internal/store"
)

type reactCall struct {
	chatID    int64
	messageID int
	emoji     string
}

type replyCall struct {
	chatID    int64
	messageID int
	text      string
	rows      [][]markup.ButtonSpec
}

// fakeTransport scripts reaction results in order and records all calls.
type fakeTransport struct {
	reactResults []ReactResult
	sendErr      error

	reacts  []reactCall
	replies []replyCall
}

func (f *fakeTransport) React(_ context.Context, chatID int64, messageID int, emoji string) ReactResult {
	f.reacts = append(f.reacts, reactCall{chatID, messageID, emoji})
	if len(f.reactResults) == 0 {
		return ReactResult{Status: ReactOK}
	}
	res := f.reactResults[0]
	f.reactResults = f.reactResults[1:]
	return res
}

func (f *fakeTransport) SendReply(_ context.Context, chatID int64, messageID int, text string, rows [][]markup.ButtonSpec) error {
	f.replies = append(f.replies, replyCall{chatID, messageID, text, rows})
	return f.sendErr
}

// fakeAuth holds static authorization sets.
type fakeAuth struct {
	chats  map[int64]bool
	admins map[int64]bool
}

func (f *fakeAuth) IsAuthorized(chatID int64) bool { return f.chats[chatID] }
func (f *fakeAuth) IsAdmin(userID int64) bool      { return f.admins[userID] }

// fakeLookup is a map-backed keyword table.
type fakeLookup map[string]store.Filter

func (f fakeLookup) Lookup(keyword string) (store.Filter, bool) {
	rec, ok := f[keyword]
	return rec, ok
}

func newTestEngine(t *testing.T, tr *fakeTransport, auth *fakeAuth, table fakeLookup) *Engine {
	t.Helper()
	sel, err := reactions.New([]string{"🔥"}, "👍")
	if err != nil {
		t.Fatalf("selector: %v", err)
	}
	e := NewEngine(tr, auth, table, sel)
	e.sleep = func(context.Context, time.Duration) {}
	return e
}

func groupEvent(text string) Event {
	return Event{ChatID: -100123, ChatKind: ChatSupergroup, SenderID: 42, MessageID: 9, Text: text}
}

func TestProcess_UnauthorizedGroupIsOutOfScope(t *testing.T) {
	tr := &fakeTransport{}
	auth := &fakeAuth{chats: map[int64]bool{}}
	e := newTestEngine(t, tr, auth, fakeLookup{"hi": {Keyword: "hi", Response: "yo"}})

	out := e.Process(context.Background(), groupEvent("hi"))
	if out.State != StateOutOfScope {
		t.Fatalf("expected out_of_scope, got %q", out.State)
	}
	if len(tr.reacts) != 0 || len(tr.replies) != 0 {
		t.Fatal("unauthorized chats must get neither reaction nor reply")
	}

	// The same message passes once the chat is authorized.
	auth.chats[-100123] = true
	out = e.Process(context.Background(), groupEvent("hi"))
	if out.State != StateReplied || len(tr.reacts) != 1 || len(tr.replies) != 1 {
		t.Fatalf("authorized chat must get reaction and reply, got %+v", out)
	}
}

func TestProcess_AuthorizedGroupReactsAndReplies(t *testing.T) {
	tr := &fakeTransport{}
	auth := &fakeAuth{chats: map[int64]bool{-100123: true}}
	e := newTestEngine(t, tr, auth, fakeLookup{"hi": {Keyword: "hi", Response: "yo"}})

	out := e.Process(context.Background(), groupEvent("hi"))
	if !out.ReactionApplied {
		t.Fatal("expected reaction on authorized group message")
	}
	if out.State != StateReplied || !out.Replied || out.Keyword != "hi" {
		t.Fatalf("expected replied outcome, got %+v", out)
	}
	if len(tr.reacts) != 1 || len(tr.replies) != 1 {
		t.Fatalf("expected 1 react and 1 reply, got %d/%d", len(tr.reacts), len(tr.replies))
	}
	if tr.replies[0].text != "yo" || tr.replies[0].messageID != 9 {
		t.Fatalf("unexpected reply %+v", tr.replies[0])
	}
}

func TestProcess_FirstMatchWins(t *testing.T) {
	tr := &fakeTransport{}
	auth := &fakeAuth{chats: map[int64]bool{-100123: true}}
	table := fakeLookup{
		"hi":    {Keyword: "hi", Response: "R1"},
		"there": {Keyword: "there", Response: "R2"},
	}
	e := newTestEngine(t, tr, auth, table)

	out := e.Process(context.Background(), groupEvent("well hi there"))
	if out.Keyword != "hi" {
		t.Fatalf("expected first matching token to win, got %q", out.Keyword)
	}
	if len(tr.replies) != 1 || tr.replies[0].text != "R1" {
		t.Fatalf("expected exactly one reply with R1, got %+v", tr.replies)
	}
}

func TestProcess_TokenCleaning(t *testing.T) {
	tests := []struct {
		text string
		want string // matched keyword, empty for no match
	}{
		{"hi!!", "hi"},
		{"HI", "hi"},
		{"(hi)", "hi"},
		{"hi-there", ""}, // collapses to "hithere", not a keyword
		{"his", ""},      // substring of a token never matches
		{"say_hi", ""},
		{"!!! ... hi", "hi"},
	}
	auth := &fakeAuth{chats: map[int64]bool{-100123: true}}
	table := fakeLookup{"hi": {Keyword: "hi", Response: "yo"}}

	for _, tt := range tests {
		tr := &fakeTransport{}
		e := newTestEngine(t, tr, auth, table)
		out := e.Process(context.Background(), groupEvent(tt.text))
		if out.Keyword != tt.want {
			t.Errorf("text %q: matched %q, want %q", tt.text, out.Keyword, tt.want)
		}
	}
}

func TestProcess_EmptyTextSkipsFilters(t *testing.T) {
	tr := &fakeTransport{}
	auth := &fakeAuth{chats: map[int64]bool{-100123: true}}
	e := newTestEngine(t, tr, auth, fakeLookup{})

	out := e.Process(context.Background(), groupEvent(""))
	if out.State != StateNoMatch {
		t.Fatalf("expected no_match, got %q", out.State)
	}
	if len(tr.reacts) != 1 {
		t.Fatal("captionless media still gets a reaction")
	}
	if len(tr.replies) != 0 {
		t.Fatal("no text means no filter reply")
	}
}

func TestProcess_PrivateAdminGetsReplyNoReaction(t *testing.T) {
	tr := &fakeTransport{}
	auth := &fakeAuth{admins: map[int64]bool{42: true}}
	e := newTestEngine(t, tr, auth, fakeLookup{"hi": {Keyword: "hi", Response: "yo"}})

	ev := Event{ChatID: 42, ChatKind: ChatPrivate, SenderID: 42, MessageID: 3, Text: "hi"}
	out := e.Process(context.Background(), ev)
	if out.State != StateReplied {
		t.Fatalf("expected replied, got %q", out.State)
	}
	if len(tr.reacts) != 0 {
		t.Fatal("private chats never get reactions")
	}
}

func TestProcess_PrivateNonAdminIsOutOfScope(t *testing.T) {
	tr := &fakeTransport{}
	e := newTestEngine(t, tr, &fakeAuth{}, fakeLookup{"hi": {Keyword: "hi", Response: "yo"}})

	ev := Event{ChatID: 42, ChatKind: ChatPrivate, SenderID: 42, Text: "hi"}
	out := e.Process(context.Background(), ev)
	if out.State != StateOutOfScope {
		t.Fatalf("expected out_of_scope, got %q", out.State)
	}
	if len(tr.replies) != 0 {
		t.Fatal("non-admins must not trigger filter replies in private chat")
	}
}

func TestReact_RateLimitedRetriesSameSymbolOnce(t *testing.T) {
	tr := &fakeTransport{reactResults: []ReactResult{
		{Status: ReactRateLimited, RetryAfter: 2 * time.Second},
		{Status: ReactOK},
	}}
	auth := &fakeAuth{chats: map[int64]bool{-100123: true}}
	e := newTestEngine(t, tr, auth, fakeLookup{})

	var slept time.Duration
	e.sleep = func(_ context.Context, d time.Duration) { slept = d }

	out := e.Process(context.Background(), groupEvent("hello"))
	if !out.ReactionApplied {
		t.Fatal("retry after rate limit should succeed")
	}
	if slept != 2*time.Second {
		t.Fatalf("expected to wait the reported duration, slept %v", slept)
	}
	if len(tr.reacts) != 2 || tr.reacts[0].emoji != tr.reacts[1].emoji {
		t.Fatalf("expected two attempts with the same symbol, got %+v", tr.reacts)
	}
}

func TestReact_RejectedFallsBackOnce(t *testing.T) {
	tr := &fakeTransport{reactResults: []ReactResult{
		{Status: ReactRejected},
		{Status: ReactOK},
	}}
	auth := &fakeAuth{chats: map[int64]bool{-100123: true}}
	e := newTestEngine(t, tr, auth, fakeLookup{})

	out := e.Process(context.Background(), groupEvent("hello"))
	if !out.ReactionApplied {
		t.Fatal("fallback should be applied after the pick is rejected")
	}
	if out.Reaction != "👍" {
		t.Fatalf("expected fallback symbol recorded, got %q", out.Reaction)
	}
	want := []string{"🔥", "👍"}
	got := []string{tr.reacts[0].emoji, tr.reacts[1].emoji}
	if !slices.Equal(got, want) {
		t.Fatalf("expected attempts %v, got %v", want, got)
	}
}

func TestReact_ExhaustionDoesNotBlockFilters(t *testing.T) {
	tr := &fakeTransport{reactResults: []ReactResult{
		{Status: ReactRejected},
		{Status: ReactRejected},
	}}
	auth := &fakeAuth{chats: map[int64]bool{-100123: true}}
	e := newTestEngine(t, tr, auth, fakeLookup{"hi": {Keyword: "hi", Response: "yo"}})

	out := e.Process(context.Background(), groupEvent("hi"))
	if out.ReactionApplied || out.Reaction != "" {
		t.Fatalf("expected abandoned reaction, got %+v", out)
	}
	if len(tr.reacts) != 2 {
		t.Fatalf("expected pick then fallback only, got %d attempts", len(tr.reacts))
	}
	if out.State != StateReplied || len(tr.replies) != 1 {
		t.Fatal("filter phase must still run after the reaction is abandoned")
	}
}

func TestCheckFilters_SendFailureStopsScan(t *testing.T) {
	tr := &fakeTransport{sendErr: errors.New("network down")}
	auth := &fakeAuth{chats: map[int64]bool{-100123: true}}
	table := fakeLookup{
		"hi":    {Keyword: "hi", Response: "R1"},
		"there": {Keyword: "there", Response: "R2"},
	}
	e := newTestEngine(t, tr, auth, table)

	out := e.Process(context.Background(), groupEvent("hi there"))
	if out.State != StateReplied || out.Replied {
		t.Fatalf("expected matched-but-unsent outcome, got %+v", out)
	}
	if len(tr.replies) != 1 {
		t.Fatalf("a failed send must not fall through to later matches, got %d sends", len(tr.replies))
	}
}

func TestProcess_ReplyCarriesButtonRows(t *testing.T) {
	tr := &fakeTransport{}
	auth := &fakeAuth{chats: map[int64]bool{-100123: true}}
	table := fakeLookup{"docs": {Keyword: "docs", Response: "here", Buttons: []markup.ButtonSpec{
		{Label: "A", URL: "u1"},
		{Label: "B", URL: "u2", SameRow: true},
		{Label: "C", URL: "u3"},
	}}}
	e := newTestEngine(t, tr, auth, table)

	e.Process(context.Background(), groupEvent("docs"))
	if len(tr.replies) != 1 {
		t.Fatalf("expected one reply, got %d", len(tr.replies))
	}
	rows := tr.replies[0].rows
	if len(rows) != 2 || len(rows[0]) != 2 || len(rows[1]) != 1 {
		t.Fatalf("unexpected row layout %+v", rows)
	}
}

func TestCleanTokens_Lazy(t *testing.T) {
	var seen []string
	for token := range cleanTokens("One two!! three") {
		seen = append(seen, token)
		if len(seen) == 2 {
			break
		}
	}
	if !slices.Equal(seen, []string{"one", "two"}) {
		t.Fatalf("expected scan to stop where the consumer did, got %v", seen)
	}
}
