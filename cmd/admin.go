package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vuongle/reactobot/internal/config"
	"github.com/vuongle/reactobot/internal/filters"
	"github.com/vuongle/reactobot/internal/registry"
	"github.com/vuongle/reactobot/internal/store"
)

// withStores loads config, opens the configured store backend and
// passes it to fn, closing it afterwards.
func withStores(fn func(cfg *config.Config, stores *store.Stores) error) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	stores, _, err := openStores(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer stores.Close()
	return fn(cfg, stores)
}

// filtersCmd administers the keyword table directly against the store,
// without a running bot.
func filtersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filters",
		Short: "Manage keyword replies offline",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all keyword replies",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(func(cfg *config.Config, stores *store.Stores) error {
				table := filters.NewTable(stores.Filters, cfg.Filters.MaxResponseLen)
				all, err := table.List(context.Background())
				if err != nil {
					return err
				}
				if len(all) == 0 {
					fmt.Println("no filters set")
					return nil
				}
				for _, f := range all {
					line := fmt.Sprintf("%-20s %s", f.Keyword, strings.ReplaceAll(f.Response, "\n", " "))
					if n := len(f.Buttons); n > 0 {
						line += fmt.Sprintf(" [%d buttons]", n)
					}
					fmt.Println(line)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <keyword> <response>",
		Short: "Add or replace a keyword reply (response may embed button markup)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(func(cfg *config.Config, stores *store.Stores) error {
				table := filters.NewTable(stores.Filters, cfg.Filters.MaxResponseLen)
				record, err := table.Upsert(context.Background(), args[0], strings.Join(args[1:], " "), 0)
				if err != nil {
					if errors.Is(err, filters.ErrInvalidKeyword) ||
						errors.Is(err, filters.ErrEmptyResponse) ||
						errors.Is(err, filters.ErrResponseTooLong) {
						return fmt.Errorf("invalid filter: %w", err)
					}
					return err
				}
				fmt.Printf("filter %q saved (%d buttons)\n", record.Keyword, len(record.Buttons))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <keyword>",
		Short: "Delete a keyword reply",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(func(cfg *config.Config, stores *store.Stores) error {
				table := filters.NewTable(stores.Filters, cfg.Filters.MaxResponseLen)
				existed, err := table.Remove(context.Background(), args[0])
				if err != nil {
					return err
				}
				if !existed {
					fmt.Printf("no filter found for %q\n", filters.Normalize(args[0]))
					return nil
				}
				fmt.Printf("filter %q removed\n", filters.Normalize(args[0]))
				return nil
			})
		},
	})

	return cmd
}

// chatsCmd inspects and edits the authorized-chat list offline.
func chatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chats",
		Short: "Manage connected groups offline",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List connected groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(func(cfg *config.Config, stores *store.Stores) error {
				reg := registry.New(stores.Chats, cfg.Admins)
				chats, err := reg.List(context.Background())
				if err != nil {
					return err
				}
				if len(chats) == 0 {
					fmt.Println("no groups connected")
					return nil
				}
				for _, chat := range chats {
					title := chat.Title
					if title == "" {
						title = "(untitled)"
					}
					fmt.Printf("%d\t%s\tconnected by %d\n", chat.ChatID, title, chat.AdminID)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "disconnect <chat_id>",
		Short: "Remove a connected group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chatID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid chat ID %q", args[0])
			}
			return withStores(func(cfg *config.Config, stores *store.Stores) error {
				reg := registry.New(stores.Chats, cfg.Admins)
				existed, err := reg.Deauthorize(context.Background(), chatID)
				if err != nil {
					return err
				}
				if !existed {
					fmt.Println("that group is not connected")
					return nil
				}
				fmt.Printf("disconnected %d\n", chatID)
				return nil
			})
		},
	})

	return cmd
}
