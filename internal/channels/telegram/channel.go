// Package telegram connects the bot to Telegram via the Bot API using
// long polling. It feeds group messages to the dispatch engine and
// serves the private-chat admin command surface.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/mymmrac/telego"

	"github.com/vuongle/reactobot/internal/config"
	"github.com/vuongle/reactobot/internal/dispatch"
	"github.com/vuongle/reactobot/internal/filters"
	"github.com/vuongle/reactobot/internal/reactions"
	"github.com/vuongle/reactobot/internal/registry"
)

// NewBot builds the telego client from config, honoring the optional
// HTTP proxy.
func NewBot(cfg config.TelegramConfig) (*telego.Bot, error) {
	var opts []telego.BotOption

	if cfg.Proxy != "" {
		proxyURL, parseErr := url.Parse(cfg.Proxy)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", cfg.Proxy, parseErr)
		}
		opts = append(opts, telego.WithHTTPClient(&http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyURL(proxyURL),
			},
		}))
	}

	bot, err := telego.NewBot(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return bot, nil
}

// Deps are the collaborators the channel needs beyond the bot itself.
type Deps struct {
	Dispatcher *dispatch.Dispatcher
	Registry   *registry.Registry
	Filters    *filters.Table
	Selector   *reactions.Selector
}

// Channel is the long-polling Telegram listener.
type Channel struct {
	bot        *telego.Bot
	config     config.TelegramConfig
	dispatcher *dispatch.Dispatcher
	registry   *registry.Registry
	filters    *filters.Table
	selector   *reactions.Selector

	botID      int64
	pollCancel context.CancelFunc
	pollDone   chan struct{}
}

// NewChannel wires the channel. The bot comes from NewBot; the
// dispatcher must already be started before Start is called.
func NewChannel(bot *telego.Bot, cfg config.TelegramConfig, deps Deps) *Channel {
	return &Channel{
		bot:        bot,
		config:     cfg,
		dispatcher: deps.Dispatcher,
		registry:   deps.Registry,
		filters:    deps.Filters,
		selector:   deps.Selector,
	}
}

// Start begins long polling for updates.
func (c *Channel) Start(ctx context.Context) error {
	slog.Info("starting telegram bot (polling mode)")

	pollCtx, cancel := context.WithCancel(ctx)
	c.pollCancel = cancel
	c.pollDone = make(chan struct{})

	me, err := c.bot.GetMe(pollCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("get bot identity: %w", err)
	}
	c.botID = me.ID

	updates, err := c.bot.UpdatesViaLongPolling(pollCtx, &telego.GetUpdatesParams{
		Timeout:        30,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		cancel()
		return fmt.Errorf("start long polling: %w", err)
	}

	slog.Info("telegram bot connected", "username", me.Username)

	// Register bot menu commands with retry.
	go func() {
		commands := DefaultMenuCommands()
		for attempt := 1; attempt <= 3; attempt++ {
			if err := c.SyncMenuCommands(pollCtx, commands); err != nil {
				slog.Warn("failed to sync telegram menu commands", "error", err, "attempt", attempt)
				if attempt < 3 {
					select {
					case <-pollCtx.Done():
						return
					case <-time.After(time.Duration(attempt*5) * time.Second):
					}
				}
			} else {
				slog.Info("telegram menu commands synced")
				return
			}
		}
	}()

	go func() {
		defer close(c.pollDone)
		for {
			select {
			case <-pollCtx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					slog.Info("telegram updates channel closed")
					return
				}
				if update.Message != nil {
					c.handleMessage(pollCtx, update.Message)
				}
			}
		}
	}()

	return nil
}

// Stop cancels the polling context and waits for the poll goroutine to
// exit so Telegram releases the getUpdates lock before a restart.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("stopping telegram bot")

	if c.pollCancel != nil {
		c.pollCancel()
	}

	if c.pollDone != nil {
		select {
		case <-c.pollDone:
			slog.Info("telegram bot stopped")
		case <-time.After(10 * time.Second):
			slog.Warn("telegram polling goroutine did not exit within timeout")
		}
	}

	return nil
}
