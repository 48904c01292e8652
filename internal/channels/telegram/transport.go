package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mymmrac/telego"
	"github.com/mymmrac/telego/telegoapi"
	tu "github.com/mymmrac/telego/telegoutil"
	"golang.org/x/time/rate"

	"github.com/vuongle/reactobot/internal/dispatch"
	"github.com/vuongle/reactobot/internal/markup"
)

// sendInterval paces outbound calls per chat. Telegram tolerates about
// one message per second per chat.
const sendInterval = time.Second

// Transport adapts the telego client to the dispatch engine's outbound
// contract, classifying Bot API failures into explicit results.
type Transport struct {
	bot      *telego.Bot
	limiters sync.Map // chatID int64 → *rate.Limiter
}

// NewTransport wraps the bot client.
func NewTransport(bot *telego.Bot) *Transport {
	return &Transport{bot: bot}
}

func (t *Transport) limiter(chatID int64) *rate.Limiter {
	if l, ok := t.limiters.Load(chatID); ok {
		return l.(*rate.Limiter)
	}
	l, _ := t.limiters.LoadOrStore(chatID, rate.NewLimiter(rate.Every(sendInterval), 3))
	return l.(*rate.Limiter)
}

// React applies one emoji reaction. A 429 from the Bot API maps to
// ReactRateLimited with the server-reported retry delay; every other
// API rejection maps to ReactRejected.
func (t *Transport) React(ctx context.Context, chatID int64, messageID int, emoji string) dispatch.ReactResult {
	if err := t.limiter(chatID).Wait(ctx); err != nil {
		return dispatch.ReactResult{Status: dispatch.ReactRejected}
	}

	err := t.bot.SetMessageReaction(ctx, &telego.SetMessageReactionParams{
		ChatID:    tu.ID(chatID),
		MessageID: messageID,
		Reaction: []telego.ReactionType{
			&telego.ReactionTypeEmoji{Type: telego.ReactionEmoji, Emoji: emoji},
		},
	})
	if err == nil {
		return dispatch.ReactResult{Status: dispatch.ReactOK}
	}

	var apiErr *telegoapi.Error
	if errors.As(err, &apiErr) && apiErr.ErrorCode == 429 {
		retryAfter := time.Second
		if apiErr.Parameters != nil && apiErr.Parameters.RetryAfter > 0 {
			retryAfter = time.Duration(apiErr.Parameters.RetryAfter) * time.Second
		}
		return dispatch.ReactResult{Status: dispatch.ReactRateLimited, RetryAfter: retryAfter}
	}

	slog.Debug("reaction rejected", "chat_id", chatID, "message_id", messageID, "emoji", emoji, "error", err)
	return dispatch.ReactResult{Status: dispatch.ReactRejected}
}

// SendReply sends text as a reply to the originating message, with the
// button rows rendered as an inline keyboard.
func (t *Transport) SendReply(ctx context.Context, chatID int64, messageID int, text string, rows [][]markup.ButtonSpec) error {
	if err := t.limiter(chatID).Wait(ctx); err != nil {
		return fmt.Errorf("send pacing: %w", err)
	}

	msg := tu.Message(tu.ID(chatID), text)
	msg.ReplyParameters = &telego.ReplyParameters{MessageID: messageID}
	if keyboard := buildKeyboard(rows); keyboard != nil {
		msg.ReplyMarkup = keyboard
	}

	if _, err := t.bot.SendMessage(ctx, msg); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}

// buildKeyboard converts markup rows into a telego inline keyboard.
func buildKeyboard(rows [][]markup.ButtonSpec) *telego.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}

	keyboard := make([][]telego.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]telego.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tu.InlineKeyboardButton(b.Label).WithURL(b.URL))
		}
		keyboard = append(keyboard, buttons)
	}
	return tu.InlineKeyboard(keyboard...)
}
