package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vuongle/reactobot/internal/channels/telegram"
	"github.com/vuongle/reactobot/internal/config"
	"github.com/vuongle/reactobot/internal/dispatch"
	"github.com/vuongle/reactobot/internal/filters"
	"github.com/vuongle/reactobot/internal/reactions"
	"github.com/vuongle/reactobot/internal/registry"
	"github.com/vuongle/reactobot/internal/store"
	"github.com/vuongle/reactobot/internal/store/pg"
	"github.com/vuongle/reactobot/internal/store/sqlite"
)

// openStores picks Postgres when a DSN is configured, SQLite otherwise.
func openStores(cfg *config.Config) (*store.Stores, string, error) {
	if cfg.Database.PostgresDSN != "" {
		stores, err := pg.New(cfg.Database.PostgresDSN)
		return stores, "postgres", err
	}
	stores, err := sqlite.New(config.ExpandHome(cfg.Database.SQLitePath))
	return stores, "sqlite", err
}

func runBot() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Telegram.Token == "" {
		slog.Error("REACTOBOT_BOT_TOKEN is not set")
		os.Exit(1)
	}
	if len(cfg.Admins) == 0 {
		slog.Warn("no admins configured; the command surface will be unusable")
	}

	stores, backend, err := openStores(cfg)
	if err != nil {
		slog.Error("failed to open store", "backend", backend, "error", err)
		os.Exit(1)
	}
	defer stores.Close()

	selector, err := reactions.New(cfg.Reactions.Pool, cfg.Reactions.Default)
	if err != nil {
		slog.Error("invalid reaction configuration", "error", err)
		os.Exit(1)
	}

	reg := registry.New(stores.Chats, cfg.Admins)
	table := filters.NewTable(stores.Filters, cfg.Filters.MaxResponseLen)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := reg.Warm(ctx); err != nil {
		slog.Error("failed to load authorized chats", "error", err)
		os.Exit(1)
	}
	if err := table.Warm(ctx); err != nil {
		slog.Error("failed to load filters", "error", err)
		os.Exit(1)
	}

	bot, err := telegram.NewBot(cfg.Telegram)
	if err != nil {
		slog.Error("failed to create telegram client", "error", err)
		os.Exit(1)
	}

	engine := dispatch.NewEngine(telegram.NewTransport(bot), reg, table, selector)
	dispatcher := dispatch.NewDispatcher(engine, 0)
	dispatcher.Start(ctx)

	channel := telegram.NewChannel(bot, cfg.Telegram, telegram.Deps{
		Dispatcher: dispatcher,
		Registry:   reg,
		Filters:    table,
		Selector:   selector,
	})
	if err := channel.Start(ctx); err != nil {
		slog.Error("failed to start telegram channel", "error", err)
		os.Exit(1)
	}

	slog.Info("reactobot started",
		"version", Version,
		"backend", backend,
		"chats", reg.Len(),
		"filters", table.Len(),
		"reactions", selector.PoolSize(),
	)

	<-ctx.Done()
	slog.Info("graceful shutdown initiated")

	// Stop the inbound side first, then drain in-flight dispatches.
	channel.Stop(context.Background())
	dispatcher.Stop()
}
