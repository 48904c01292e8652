// Package dispatch decides, for each inbound chat event, whether it is
// in scope, which reaction to attempt (and the fallback when it is
// rejected), and whether a keyword filter matches the message text.
// One engine serves all chats; per-chat ordering is provided by the
// Dispatcher in this package.
package dispatch

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/vuongle/reactobot/internal/markup"
	"github.com/vuongle/reactobot/internal/reactions"
	"github.com/vuongle/reactobot/internal/store"
)

// ChatKind mirrors the transport's chat classification.
type ChatKind string

const (
	ChatPrivate    ChatKind = "private"
	ChatGroup      ChatKind = "group"
	ChatSupergroup ChatKind = "supergroup"
)

// IsGroup reports whether the kind is a group-type chat.
func (k ChatKind) IsGroup() bool {
	return k == ChatGroup || k == ChatSupergroup
}

// Event is one inbound message to dispatch.
type Event struct {
	ChatID    int64
	ChatKind  ChatKind
	SenderID  int64
	MessageID int
	Text      string
}

// State is the terminal disposition of an event.
type State string

const (
	StateOutOfScope State = "out_of_scope"
	StateReplied    State = "replied"
	StateNoMatch    State = "no_match"
)

// Outcome records what happened to one event. Ephemeral; used for
// logging and tests only.
type Outcome struct {
	State           State
	Reaction        string
	ReactionApplied bool
	Keyword         string
	Replied         bool
}

// ReactStatus classifies the transport's response to a reaction attempt.
type ReactStatus int

const (
	ReactOK ReactStatus = iota
	ReactRateLimited
	ReactRejected
)

// ReactResult is the explicit result of a reaction call. RetryAfter is
// meaningful only for ReactRateLimited.
type ReactResult struct {
	Status     ReactStatus
	RetryAfter time.Duration
}

// Transport is the outbound surface the engine needs from the chat
// client. Implementations classify failures instead of returning raw
// transport errors.
type Transport interface {
	React(ctx context.Context, chatID int64, messageID int, emoji string) ReactResult
	SendReply(ctx context.Context, chatID int64, messageID int, text string, rows [][]markup.ButtonSpec) error
}

// Authorizer answers the scope questions on the dispatch hot path.
type Authorizer interface {
	IsAuthorized(chatID int64) bool
	IsAdmin(userID int64) bool
}

// KeywordLookup resolves a cleaned token to a filter record.
type KeywordLookup interface {
	Lookup(keyword string) (store.Filter, bool)
}

// Engine processes events one at a time. Safe for concurrent use across
// chats; per-chat serialization is the Dispatcher's job.
type Engine struct {
	transport Transport
	auth      Authorizer
	table     KeywordLookup
	selector  *reactions.Selector

	// sleep is swapped out in tests to avoid real rate-limit waits.
	sleep func(ctx context.Context, d time.Duration)
}

// NewEngine wires the engine's collaborators.
func NewEngine(t Transport, auth Authorizer, table KeywordLookup, sel *reactions.Selector) *Engine {
	return &Engine{
		transport: t,
		auth:      auth,
		table:     table,
		selector:  sel,
		sleep:     sleepCtx,
	}
}

// Process runs the full per-event state machine: scope check, reaction
// phase (group scope only), filter phase. Component failures are
// absorbed; control always returns to the caller.
func (e *Engine) Process(ctx context.Context, ev Event) Outcome {
	var out Outcome

	if ev.ChatKind.IsGroup() {
		if !e.auth.IsAuthorized(ev.ChatID) {
			out.State = StateOutOfScope
			return out
		}
		e.react(ctx, ev, &out)
	} else {
		// Private chats get filter replies for admins only, never
		// reactions.
		if !e.auth.IsAdmin(ev.SenderID) {
			out.State = StateOutOfScope
			return out
		}
	}

	e.checkFilters(ctx, ev, &out)
	return out
}

// react applies one reaction with the bounded retry/fallback policy:
// a rate-limited attempt sleeps the reported duration and retries the
// same symbol once; any remaining failure gets the default symbol once;
// after that the reaction is abandoned and dispatch continues.
func (e *Engine) react(ctx context.Context, ev Event, out *Outcome) {
	emoji := e.selector.Pick()
	out.Reaction = emoji

	res := e.transport.React(ctx, ev.ChatID, ev.MessageID, emoji)
	if res.Status == ReactRateLimited {
		slog.Warn("reaction rate limited",
			"chat_id", ev.ChatID, "message_id", ev.MessageID, "retry_after", res.RetryAfter)
		e.sleep(ctx, res.RetryAfter)
		res = e.transport.React(ctx, ev.ChatID, ev.MessageID, emoji)
	}
	if res.Status == ReactOK {
		out.ReactionApplied = true
		return
	}

	fallback := e.selector.Fallback()
	out.Reaction = fallback
	if e.transport.React(ctx, ev.ChatID, ev.MessageID, fallback).Status == ReactOK {
		out.ReactionApplied = true
		return
	}

	out.Reaction = ""
	slog.Warn("reaction attempts exhausted", "chat_id", ev.ChatID, "message_id", ev.MessageID)
}

// checkFilters scans cleaned tokens in order and replies to the first
// keyword hit. At most one reply per event; scanning stops at the first
// match whether or not the send succeeds.
func (e *Engine) checkFilters(ctx context.Context, ev Event, out *Outcome) {
	out.State = StateNoMatch
	if ev.Text == "" {
		return
	}

	for token := range cleanTokens(ev.Text) {
		f, ok := e.table.Lookup(token)
		if !ok {
			continue
		}

		out.Keyword = token
		out.State = StateReplied
		rows := markup.BuildRows(f.Buttons)
		if err := e.transport.SendReply(ctx, ev.ChatID, ev.MessageID, f.Response, rows); err != nil {
			slog.Warn("filter reply failed",
				"chat_id", ev.ChatID, "keyword", token, "error", err)
			return
		}
		out.Replied = true
		slog.Info("filter reply sent", "chat_id", ev.ChatID, "keyword", token)
		return
	}
}

// cleanTokens yields the message's whitespace-separated words,
// lowercased, with every rune that is not a letter, digit or underscore
// stripped. Empty results are skipped. The sequence is lazy: scanning
// stops as soon as the consumer does.
func cleanTokens(text string) func(yield func(string) bool) {
	lowered := strings.ToLower(text)
	return func(yield func(string) bool) {
		for word := range strings.FieldsSeq(lowered) {
			cleaned := strings.Map(func(r rune) rune {
				if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
					return r
				}
				return -1
			}, word)
			if cleaned == "" {
				continue
			}
			if !yield(cleaned) {
				return
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
