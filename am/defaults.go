package am

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Defaults that also serve as fallbacks in the getters below
const (
	DefaultPostInterval       = 65 * time.Second
	DefaultActivityCapacity   = 50
	DefaultMinIntervalSeconds = 60
	DefaultPDSHost            = "https://bsky.social"
	DefaultModel              = "openai/gpt-4o-mini"
	DefaultDatabasePath       = "tcgbot.db"
	DefaultFeedMaxItems       = 50
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("bot.post_interval", DefaultPostInterval)
	v.SetDefault("bot.activity_capacity", DefaultActivityCapacity)
	v.SetDefault("bot.simulate", false)

	v.SetDefault("posting.min_interval_seconds", DefaultMinIntervalSeconds)

	v.SetDefault("bluesky.pds_host", DefaultPDSHost)

	v.SetDefault("openrouter.model", DefaultModel)
	v.SetDefault("openrouter.temperature", 0.8) // social posts want some variety
	v.SetDefault("openrouter.max_tokens", 300)

	v.SetDefault("database.path", DefaultDatabasePath)

	v.SetDefault("feed.max_items", DefaultFeedMaxItems)
}

// BindSensitiveEnvVars explicitly binds credentials to environment variables,
// including the unprefixed names commonly found in .env files
func BindSensitiveEnvVars(v *viper.Viper) {
	_ = v.BindEnv("bluesky.identifier", "TCGBOT_BLUESKY_IDENTIFIER", "BLUESKY_IDENTIFIER")
	_ = v.BindEnv("bluesky.app_password", "TCGBOT_BLUESKY_APP_PASSWORD", "BLUESKY_APP_PASSWORD")
	_ = v.BindEnv("openrouter.api_key", "TCGBOT_OPENROUTER_API_KEY", "OPENROUTER_API_KEY")
	_ = v.BindEnv("feed.sheet_csv_url", "TCGBOT_FEED_SHEET_CSV_URL", "GOOGLE_SHEET_CSV_URL")
	_ = v.BindEnv("database.path", "TCGBOT_DATABASE_PATH")
}

// GetServerPort returns server.port, or DefaultServerPort when unset
func (c *Config) GetServerPort() int {
	if c.Server.Port == nil {
		return DefaultServerPort
	}
	return *c.Server.Port
}

// GetPostInterval returns the wait between items of one job
func (c *Config) GetPostInterval() time.Duration {
	if c.Bot.PostInterval <= 0 {
		return DefaultPostInterval
	}
	return c.Bot.PostInterval
}

// GetActivityCapacity returns the recent activity capacity
func (c *Config) GetActivityCapacity() int {
	if c.Bot.ActivityCapacity <= 0 {
		return DefaultActivityCapacity
	}
	return c.Bot.ActivityCapacity
}

// GetMinPostInterval returns the spacing enforced by the global pacing gate
func (c *Config) GetMinPostInterval() time.Duration {
	if c.Posting.MinIntervalSeconds <= 0 {
		return DefaultMinIntervalSeconds * time.Second
	}
	return time.Duration(c.Posting.MinIntervalSeconds) * time.Second
}

// GetDatabasePath returns the configured database path
func (c *Config) GetDatabasePath() string {
	if c.Database.Path == "" {
		return DefaultDatabasePath
	}
	return c.Database.Path
}

// GetFeedMaxItems returns how many reply candidates a fetch returns at most
func (c *Config) GetFeedMaxItems() int {
	if c.Feed.MaxItems <= 0 {
		return DefaultFeedMaxItems
	}
	return c.Feed.MaxItems
}

// HasBlueskyCredentials reports whether the real poster can attempt a login
func (c *Config) HasBlueskyCredentials() bool {
	return c.Bluesky.Identifier != "" && c.Bluesky.AppPassword != ""
}

// String returns a string representation of the config without secrets
func (c *Config) String() string {
	return fmt.Sprintf("Config{Server: {Port: %d}, Bot: {PostInterval: %s, Simulate: %t}, Bluesky: {Identifier: %q}, Database: %s}",
		c.GetServerPort(), c.GetPostInterval(), c.Bot.Simulate, c.Bluesky.Identifier, c.GetDatabasePath())
}
