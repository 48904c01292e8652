package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/vuongle/reactobot/internal/filters"
)

const startText = "Hi! I react to every message in connected groups and " +
	"auto-reply to configured keywords.\n\nAdmins: see /help for the command list."

const helpText = `Available commands:
/connect <group_id> — enable the bot for a group
/disconnect <group_id> — disable the bot for a group
/filter <keyword> <response> — add or replace a keyword reply
/removefilter <keyword> — delete a keyword reply
/filters — list keyword replies
/chats — list connected groups
/stats — show counters
/help — this message

Filter responses may embed link buttons:
/filter hi Hello!
[Docs](buttonurl://https://example.com)
[Chat](buttonurl://https://example.com/chat:same)

A trailing :same packs the button onto the previous row.`

// handleCommand dispatches one private-chat slash command. Everything
// except /start requires a configured admin.
func (c *Channel) handleCommand(ctx context.Context, message *telego.Message) {
	cmd, args := splitCommand(message.Text)
	chatID := message.Chat.ID
	userID := message.From.ID

	if cmd == "/start" {
		c.reply(ctx, chatID, startText)
		return
	}

	if !c.registry.IsAdmin(userID) {
		c.reply(ctx, chatID, "You are not authorized to use this command.")
		return
	}

	switch cmd {
	case "/help":
		c.reply(ctx, chatID, helpText)

	case "/connect":
		c.handleConnect(ctx, chatID, userID, args)

	case "/disconnect":
		c.handleDisconnect(ctx, chatID, userID, args)

	case "/filter":
		c.handleSetFilter(ctx, chatID, userID, args)

	case "/removefilter":
		c.handleRemoveFilter(ctx, chatID, userID, args)

	case "/filters":
		c.handleListFilters(ctx, chatID)

	case "/chats":
		c.handleListChats(ctx, chatID)

	case "/stats":
		c.handleStats(ctx, chatID)

	default:
		c.reply(ctx, chatID, "Unknown command. See /help.")
	}
}

func (c *Channel) handleConnect(ctx context.Context, chatID, adminID int64, args string) {
	groupID, ok := extractGroupID(args)
	if !ok {
		c.reply(ctx, chatID, "Invalid group ID.\nUsage: /connect -100xxxxxxxxxx")
		return
	}

	chat, err := c.bot.GetChat(ctx, &telego.GetChatParams{ChatID: tu.ID(groupID)})
	if err != nil {
		c.reply(ctx, chatID, "Could not look up that chat. Is the bot a member of the group?")
		return
	}
	if chat.Type != telego.ChatTypeGroup && chat.Type != telego.ChatTypeSupergroup {
		c.reply(ctx, chatID, "That chat is not a group.")
		return
	}

	// Best-effort check that the bot has admin rights in the group;
	// reactions work without them but surface the problem early.
	if member, err := c.bot.GetChatMember(ctx, &telego.GetChatMemberParams{
		ChatID: tu.ID(groupID),
		UserID: c.botID,
	}); err == nil {
		status := member.MemberStatus()
		if status != telego.MemberStatusAdministrator && status != telego.MemberStatusCreator {
			c.reply(ctx, chatID, "Note: the bot is not an admin in that group. Some features may not work.")
		}
	}

	if err := c.registry.Authorize(ctx, groupID, adminID, chat.Title); err != nil {
		slog.Warn("connect failed", "group_id", groupID, "error", err)
		c.reply(ctx, chatID, "Failed to connect the group. Please try again.")
		return
	}

	c.reply(ctx, chatID, fmt.Sprintf("Connected to %s (%d).", chat.Title, groupID))
	c.audit(ctx, fmt.Sprintf("Group %d connected by %d", groupID, adminID))
}

func (c *Channel) handleDisconnect(ctx context.Context, chatID, adminID int64, args string) {
	groupID, ok := extractGroupID(args)
	if !ok {
		c.reply(ctx, chatID, "Invalid group ID.\nUsage: /disconnect -100xxxxxxxxxx")
		return
	}

	existed, err := c.registry.Deauthorize(ctx, groupID)
	if err != nil {
		slog.Warn("disconnect failed", "group_id", groupID, "error", err)
		c.reply(ctx, chatID, "Failed to disconnect the group. Please try again.")
		return
	}
	if !existed {
		c.reply(ctx, chatID, "That group is not connected.")
		return
	}

	c.reply(ctx, chatID, fmt.Sprintf("Disconnected from group %d.", groupID))
	c.audit(ctx, fmt.Sprintf("Group %d disconnected by %d", groupID, adminID))
}

func (c *Channel) handleSetFilter(ctx context.Context, chatID, adminID int64, args string) {
	keyword, response := splitFirstWord(args)
	if keyword == "" || response == "" {
		c.reply(ctx, chatID, "Usage: /filter <keyword> <response>\n\n"+
			"The keyword must be a single word of letters, digits or underscores; "+
			"the response may span multiple lines and embed buttons (see /help).")
		return
	}

	record, err := c.filters.Upsert(ctx, keyword, response, adminID)
	switch {
	case errors.Is(err, filters.ErrInvalidKeyword):
		c.reply(ctx, chatID, "Invalid keyword: use only letters, digits and underscores, no spaces.")
		return
	case errors.Is(err, filters.ErrEmptyResponse):
		c.reply(ctx, chatID, "The response text must not be empty.")
		return
	case errors.Is(err, filters.ErrResponseTooLong):
		c.reply(ctx, chatID, "The response text is too long.")
		return
	case err != nil:
		slog.Warn("filter upsert failed", "keyword", keyword, "error", err)
		c.reply(ctx, chatID, "Failed to save the filter. Please try again.")
		return
	}

	info := ""
	if n := len(record.Buttons); n > 0 {
		info = fmt.Sprintf(" with %d button(s)", n)
	}
	c.reply(ctx, chatID, fmt.Sprintf("Filter %q saved%s.", record.Keyword, info))
	c.audit(ctx, fmt.Sprintf("Filter %q set by %d", record.Keyword, adminID))
}

func (c *Channel) handleRemoveFilter(ctx context.Context, chatID, adminID int64, args string) {
	keyword := strings.TrimSpace(args)
	if keyword == "" {
		c.reply(ctx, chatID, "Usage: /removefilter <keyword>")
		return
	}

	existed, err := c.filters.Remove(ctx, keyword)
	if err != nil {
		slog.Warn("filter remove failed", "keyword", keyword, "error", err)
		c.reply(ctx, chatID, "Failed to remove the filter. Please try again.")
		return
	}
	if !existed {
		c.reply(ctx, chatID, fmt.Sprintf("No filter found for %q.", filters.Normalize(keyword)))
		return
	}

	c.reply(ctx, chatID, fmt.Sprintf("Filter %q removed.", filters.Normalize(keyword)))
	c.audit(ctx, fmt.Sprintf("Filter %q removed by %d", filters.Normalize(keyword), adminID))
}

func (c *Channel) handleListFilters(ctx context.Context, chatID int64) {
	all, err := c.filters.List(ctx)
	if err != nil {
		slog.Warn("filter listing failed", "error", err)
		c.reply(ctx, chatID, "Failed to list filters. Please try again.")
		return
	}
	if len(all) == 0 {
		c.reply(ctx, chatID, "No filters set.")
		return
	}

	var b strings.Builder
	b.WriteString("Active filters:\n")
	for i, f := range all {
		fmt.Fprintf(&b, "%d. %s → %s", i+1, f.Keyword, truncate(f.Response, 50))
		if n := len(f.Buttons); n > 0 {
			fmt.Fprintf(&b, " (%d buttons)", n)
		}
		b.WriteByte('\n')
	}
	c.reply(ctx, chatID, b.String())
}

func (c *Channel) handleListChats(ctx context.Context, chatID int64) {
	chats, err := c.registry.List(ctx)
	if err != nil {
		slog.Warn("chat listing failed", "error", err)
		c.reply(ctx, chatID, "Failed to list connected groups. Please try again.")
		return
	}
	if len(chats) == 0 {
		c.reply(ctx, chatID, "No groups connected. Use /connect first.")
		return
	}

	var b strings.Builder
	b.WriteString("Connected groups:\n")
	for _, chat := range chats {
		title := chat.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(&b, "• %s (%d)\n", title, chat.ChatID)
	}
	c.reply(ctx, chatID, b.String())
}

func (c *Channel) handleStats(ctx context.Context, chatID int64) {
	c.reply(ctx, chatID, fmt.Sprintf(
		"Connected groups: %d\nActive filters: %d\nReaction pool: %d\nAdmins: %d",
		c.registry.Len(), c.filters.Len(), c.selector.PoolSize(), c.registry.AdminCount()))
}

// reply sends a plain message to the command chat; failures are logged,
// never escalated.
func (c *Channel) reply(ctx context.Context, chatID int64, text string) {
	if _, err := c.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text)); err != nil {
		slog.Warn("command reply failed", "chat_id", chatID, "error", err)
	}
}

// audit mirrors an admin action to the configured log channel, if any.
func (c *Channel) audit(ctx context.Context, line string) {
	if c.config.LogChannelID == 0 {
		return
	}
	if _, err := c.bot.SendMessage(ctx, tu.Message(tu.ID(c.config.LogChannelID), line)); err != nil {
		slog.Warn("audit log failed", "error", err)
	}
}

// SyncMenuCommands registers the bot command menu via setMyCommands.
func (c *Channel) SyncMenuCommands(ctx context.Context, commands []telego.BotCommand) error {
	return c.bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{Commands: commands})
}

// DefaultMenuCommands returns the bot menu shown in private chats.
func DefaultMenuCommands() []telego.BotCommand {
	return []telego.BotCommand{
		{Command: "start", Description: "What this bot does"},
		{Command: "help", Description: "Show admin commands"},
		{Command: "connect", Description: "Connect a group"},
		{Command: "disconnect", Description: "Disconnect a group"},
		{Command: "filter", Description: "Add a keyword reply"},
		{Command: "removefilter", Description: "Remove a keyword reply"},
		{Command: "filters", Description: "List keyword replies"},
		{Command: "chats", Description: "List connected groups"},
		{Command: "stats", Description: "Show counters"},
	}
}

// commandAliases maps historical command spellings to their canonical
// form.
var commandAliases = map[string]string{
	"/delfilter": "/removefilter",
}

// splitCommand separates "/cmd@bot rest..." into the lowercased,
// alias-resolved command and its raw argument string.
func splitCommand(text string) (string, string) {
	cmd, rest := splitFirstWord(text)
	if at := strings.Index(cmd, "@"); at > 0 {
		cmd = cmd[:at]
	}
	cmd = strings.ToLower(cmd)
	if canonical, ok := commandAliases[cmd]; ok {
		cmd = canonical
	}
	return cmd, rest
}

// splitFirstWord splits on the first whitespace run, trimming the
// remainder's leading space. The remainder keeps internal newlines so
// multi-line filter responses survive.
func splitFirstWord(s string) (string, string) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	idx := strings.IndexFunc(s, unicode.IsSpace)
	if idx < 0 {
		return s, ""
	}
	return s[:idx], strings.TrimLeftFunc(s[idx:], unicode.IsSpace)
}

// groupIDRe matches the first signed run of 10+ digits in the command
// argument; shorter IDs are not valid supergroup identifiers.
var groupIDRe = regexp.MustCompile(`(-?\d{10,})`)

// extractGroupID pulls a group chat ID out of a command argument. Bare
// positive IDs are normalized to the -100 supergroup form.
func extractGroupID(args string) (int64, bool) {
	match := groupIDRe.FindString(args)
	if match == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(match, 10, 64)
	if err != nil {
		return 0, false
	}
	if id > 0 {
		normalized, err := strconv.ParseInt("-100"+match, 10, 64)
		if err != nil {
			return 0, false
		}
		id = normalized
	}
	return id, true
}

// truncate shortens s to max runes with an ellipsis.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-3]) + "..."
}
