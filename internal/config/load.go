package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults. The reaction pool
// matches the stock emoji set the bot shipped with.
func Default() *Config {
	return &Config{
		Reactions: ReactionsConfig{
			Pool: []string{
				"🤝", "😇", "🤗", "😍", "👍", "🎅", "😐",
				"🥰", "🤩", "😱", "🤣", "😘", "👏",
			},
			Default: "👍",
		},
		Filters: FiltersConfig{
			MaxResponseLen: 1000,
		},
		Database: DatabaseConfig{
			SQLitePath: "~/.reactobot/reactobot.db",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file is not an error: defaults plus env apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("REACTOBOT_BOT_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("REACTOBOT_POSTGRES_DSN"); v != "" {
		cfg.Database.PostgresDSN = v
	}
	if v := os.Getenv("REACTOBOT_SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("REACTOBOT_LOG_CHANNEL"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Telegram.LogChannelID = id
		}
	}
	// Comma-separated admin IDs, e.g. REACTOBOT_ADMINS="123,456".
	if v := os.Getenv("REACTOBOT_ADMINS"); v != "" {
		var admins []int64
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				continue
			}
			admins = append(admins, id)
		}
		if len(admins) > 0 {
			cfg.Admins = admins
		}
	}
}

func (c *Config) validate() error {
	if len(c.Reactions.Pool) == 0 {
		return fmt.Errorf("reactions.pool must not be empty")
	}
	if c.Reactions.Default == "" {
		return fmt.Errorf("reactions.default must be set")
	}
	if c.Filters.MaxResponseLen <= 0 {
		return fmt.Errorf("filters.max_response_len must be positive")
	}
	return nil
}
