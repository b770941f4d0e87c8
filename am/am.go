package am

import "time"

// Config represents the tcgbot configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server" toml:"server" yaml:"server" json:"server"`
	Bot        BotConfig        `mapstructure:"bot" toml:"bot" yaml:"bot" json:"bot"`
	Posting    PostingConfig    `mapstructure:"posting" toml:"posting" yaml:"posting" json:"posting"`
	Bluesky    BlueskyConfig    `mapstructure:"bluesky" toml:"bluesky" yaml:"bluesky" json:"bluesky"`
	OpenRouter OpenRouterConfig `mapstructure:"openrouter" toml:"openrouter" yaml:"openrouter" json:"openrouter"`
	Database   DatabaseConfig   `mapstructure:"database" toml:"database" yaml:"database" json:"database"`
	Feed       FeedConfig       `mapstructure:"feed" toml:"feed" yaml:"feed" json:"feed"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Port           *int     `mapstructure:"port" toml:"port" yaml:"port" json:"port"` // nil = DefaultServerPort, 0 is invalid
	AllowedOrigins []string `mapstructure:"allowed_origins" toml:"allowed_origins" yaml:"allowed_origins" json:"allowed_origins"`
}

// Server port constants
const (
	DefaultServerPort  = 8000
	FallbackServerPort = 8080
)

// BotConfig configures job execution
type BotConfig struct {
	PostInterval     time.Duration `mapstructure:"post_interval" toml:"post_interval" yaml:"post_interval" json:"post_interval"`             // wait between items of one job (default 65s)
	ActivityCapacity int           `mapstructure:"activity_capacity" toml:"activity_capacity" yaml:"activity_capacity" json:"activity_capacity"` // recent activity entries kept (default 50)
	Simulate         bool          `mapstructure:"simulate" toml:"simulate" yaml:"simulate" json:"simulate"`                                 // force the simulated poster
}

// PostingConfig configures the global pacing gate shared by every job and direct post
type PostingConfig struct {
	MinIntervalSeconds int `mapstructure:"min_interval_seconds" toml:"min_interval_seconds" yaml:"min_interval_seconds" json:"min_interval_seconds"`
}

// BlueskyConfig configures the AT Protocol poster and feed source
type BlueskyConfig struct {
	PDSHost     string   `mapstructure:"pds_host" toml:"pds_host" yaml:"pds_host" json:"pds_host"`
	Identifier  string   `mapstructure:"identifier" toml:"identifier" yaml:"identifier" json:"identifier"`
	AppPassword string   `mapstructure:"app_password" toml:"app_password" yaml:"app_password" json:"-"`
	WatchActors []string `mapstructure:"watch_actors" toml:"watch_actors" yaml:"watch_actors" json:"watch_actors"`
}

// OpenRouterConfig configures the content generation model
type OpenRouterConfig struct {
	APIKey      string   `mapstructure:"api_key" toml:"api_key" yaml:"api_key" json:"-"`
	Model       string   `mapstructure:"model" toml:"model" yaml:"model" json:"model"`
	Temperature *float64 `mapstructure:"temperature" toml:"temperature" yaml:"temperature" json:"temperature"`
	MaxTokens   *int     `mapstructure:"max_tokens" toml:"max_tokens" yaml:"max_tokens" json:"max_tokens"`
}

// DatabaseConfig configures the SQLite usage ledger
type DatabaseConfig struct {
	Path string `mapstructure:"path" toml:"path" yaml:"path" json:"path"`
}

// FeedConfig configures reply-candidate sources
type FeedConfig struct {
	SheetCSVURL string `mapstructure:"sheet_csv_url" toml:"sheet_csv_url" yaml:"sheet_csv_url" json:"sheet_csv_url"`
	MaxItems    int    `mapstructure:"max_items" toml:"max_items" yaml:"max_items" json:"max_items"`
}
