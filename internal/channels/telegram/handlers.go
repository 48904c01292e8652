package telegram

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mymmrac/telego"

	"github.com/vuongle/reactobot/internal/dispatch"
)

// handleMessage routes one inbound message: private chats go to the
// admin command surface (or an admin filter check), group chats go to
// the dispatch queue.
func (c *Channel) handleMessage(ctx context.Context, message *telego.Message) {
	user := message.From
	if user == nil {
		// Service/system message with no sender.
		slog.Debug("telegram message without sender skipped", "chat_id", message.Chat.ID)
		return
	}

	slog.Debug("telegram message received",
		"chat_type", message.Chat.Type,
		"chat_id", message.Chat.ID,
		"user_id", user.ID,
		"message_id", message.MessageID,
	)

	switch message.Chat.Type {
	case telego.ChatTypePrivate:
		if strings.HasPrefix(message.Text, "/") {
			c.handleCommand(ctx, message)
			return
		}
		// Non-command private text from an admin still gets the
		// filter check (never a reaction).
		c.dispatcher.Enqueue(dispatch.Event{
			ChatID:    message.Chat.ID,
			ChatKind:  dispatch.ChatPrivate,
			SenderID:  user.ID,
			MessageID: message.MessageID,
			Text:      message.Text,
		})

	case telego.ChatTypeGroup, telego.ChatTypeSupergroup:
		// Media messages carry their text in Caption.
		text := message.Text
		if text == "" {
			text = message.Caption
		}
		c.dispatcher.Enqueue(dispatch.Event{
			ChatID:    message.Chat.ID,
			ChatKind:  dispatch.ChatKind(message.Chat.Type),
			SenderID:  user.ID,
			MessageID: message.MessageID,
			Text:      text,
		})

	default:
		// Channel posts and anything else are out of scope.
	}
}
