package am

import (
	"net/url"

	"github.com/teranos/tcgbot/errors"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	// Server port: nil = default, 0 and negatives are invalid
	if c.Server.Port != nil && *c.Server.Port == 0 {
		return errors.Newf("server.port cannot be 0 (omit for default port %d)", DefaultServerPort)
	}
	if c.Server.Port != nil && (*c.Server.Port < 0 || *c.Server.Port > 65535) {
		return errors.Newf("server.port must be between 1 and 65535, got %d", *c.Server.Port)
	}

	// Zero intervals mean "use default"; negatives are invalid
	if c.Bot.PostInterval < 0 {
		return errors.Newf("bot.post_interval must be >= 0, got %s", c.Bot.PostInterval)
	}
	if c.Bot.ActivityCapacity < 0 {
		return errors.Newf("bot.activity_capacity must be >= 0, got %d", c.Bot.ActivityCapacity)
	}
	if c.Posting.MinIntervalSeconds < 0 {
		return errors.Newf("posting.min_interval_seconds must be >= 0, got %d", c.Posting.MinIntervalSeconds)
	}

	// Credentials come in pairs
	if (c.Bluesky.Identifier == "") != (c.Bluesky.AppPassword == "") {
		return errors.WithHint(
			errors.New("bluesky.identifier and bluesky.app_password must be set together"),
			"set both, or neither to run with the simulated poster")
	}
	if c.Bluesky.PDSHost != "" {
		if u, err := url.Parse(c.Bluesky.PDSHost); err != nil || u.Scheme == "" || u.Host == "" {
			return errors.Newf("bluesky.pds_host must be an absolute URL, got %q", c.Bluesky.PDSHost)
		}
	}

	if c.OpenRouter.Temperature != nil && (*c.OpenRouter.Temperature < 0 || *c.OpenRouter.Temperature > 2) {
		return errors.Newf("openrouter.temperature must be between 0 and 2, got %f", *c.OpenRouter.Temperature)
	}
	if c.OpenRouter.MaxTokens != nil && *c.OpenRouter.MaxTokens <= 0 {
		return errors.Newf("openrouter.max_tokens must be > 0, got %d (omit for default)", *c.OpenRouter.MaxTokens)
	}

	if c.Feed.MaxItems < 0 {
		return errors.Newf("feed.max_items must be >= 0, got %d", c.Feed.MaxItems)
	}

	return nil
}
