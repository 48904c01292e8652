// Package config loads the bot configuration from a JSON5 file with an
// environment overlay. Secrets (bot token, Postgres DSN) are read from
// the environment only and never persisted to the config file.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// Config is the root configuration for reactobot.
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Database  DatabaseConfig  `json:"database,omitempty"`
	Reactions ReactionsConfig `json:"reactions"`
	Filters   FiltersConfig   `json:"filters"`
	// Admins are the Telegram user IDs allowed to use the command
	// surface. Immutable at runtime; injected into the registry.
	Admins []int64 `json:"admins"`
}

// TelegramConfig configures the bot transport.
type TelegramConfig struct {
	// Token comes from env REACTOBOT_BOT_TOKEN only (secret).
	Token string `json:"-"`
	// Proxy is an optional HTTP proxy URL for the Bot API client.
	Proxy string `json:"proxy,omitempty"`
	// LogChannelID, when set, receives an audit line for every admin
	// mutation (connect, disconnect, filter changes). Best effort.
	LogChannelID int64 `json:"log_channel_id,omitempty"`
}

// DatabaseConfig selects the persistence backend.
// PostgresDSN is never read from the config file; it comes from env
// REACTOBOT_POSTGRES_DSN only. When empty, SQLite is used.
type DatabaseConfig struct {
	PostgresDSN string `json:"-"`
	SQLitePath  string `json:"sqlite_path,omitempty"`
}

// ReactionsConfig is the process-wide reaction pool. Read-only after
// startup; an empty pool is a startup error, not a runtime condition.
type ReactionsConfig struct {
	Pool    []string `json:"pool"`
	Default string   `json:"default"`
}

// FiltersConfig bounds filter authoring.
type FiltersConfig struct {
	// MaxResponseLen caps the cleaned response text, in runes.
	MaxResponseLen int `json:"max_response_len"`
}

// IsAdmin reports whether userID is in the configured admin set.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Admins {
		if id == userID {
			return true
		}
	}
	return false
}

// ExpandHome expands a leading ~/ to the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
